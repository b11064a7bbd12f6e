package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-core/pkg/config"
	"golang.org/x/crypto/argon2"
)

// KeyLen is the size of every derived key; it matches XChaCha20-Poly1305.
const KeyLen = 32

// Bounds applied to configured parameters and enforced on parsed headers.
const (
	minMemoryKB = 8
	maxMemoryKB = 512 * 1024
	minTime     = 1
	maxTime     = 10
	minSaltLen  = 8
	maxSaltLen  = 64
)

// ErrInvalidHeader signals a malformed Argon2id key header.
var ErrInvalidHeader = fmt.Errorf("invalid argon2id key header")

// ArgonParams captures the Argon2id parameters recorded in each key header.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
}

// KeyHeader is everything besides the passphrase needed to re-derive a key.
type KeyHeader struct {
	Params ArgonParams
	Salt   []byte
}

// NewKeyHeader draws a fresh salt using the configured parameters.
func NewKeyHeader(cfg config.PointerConfig) (KeyHeader, error) {
	params := paramsFromConfig(cfg)
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return KeyHeader{}, fmt.Errorf("generate salt: %w", err)
	}
	return KeyHeader{Params: params, Salt: salt}, nil
}

// DeriveKey stretches passphrase into a KeyLen-byte key.
func DeriveKey(passphrase string, header KeyHeader) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(header.Salt) == 0 {
		return nil, ErrInvalidHeader
	}
	p := header.Params
	return argon2.IDKey([]byte(passphrase), header.Salt, p.Time, p.Memory, p.Parallelism, KeyLen), nil
}

// String encodes the header as $argon2id$v=19$m=..,t=..,p=..$<salt>.
func (h KeyHeader) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version, h.Params.Memory, h.Params.Time, h.Params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt))
}

// ParseKeyHeader is the inverse of KeyHeader.String.
func ParseKeyHeader(encoded string) (KeyHeader, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "argon2id" {
		return KeyHeader{}, ErrInvalidHeader
	}

	var params ArgonParams
	for _, token := range strings.Split(parts[3], ",") {
		keyValue := strings.SplitN(token, "=", 2)
		if len(keyValue) != 2 {
			return KeyHeader{}, ErrInvalidHeader
		}
		key, value := keyValue[0], keyValue[1]
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return KeyHeader{}, ErrInvalidHeader
			}
			params.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return KeyHeader{}, ErrInvalidHeader
			}
			params.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return KeyHeader{}, ErrInvalidHeader
			}
			params.Parallelism = uint8(v)
		}
	}
	if !inRange(params.Memory, minMemoryKB, maxMemoryKB) || !inRange(params.Time, minTime, maxTime) || params.Parallelism == 0 {
		return KeyHeader{}, ErrInvalidHeader
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || !inRange(uint32(len(salt)), minSaltLen, maxSaltLen) {
		return KeyHeader{}, ErrInvalidHeader
	}
	params.SaltLen = uint32(len(salt))

	return KeyHeader{Params: params, Salt: salt}, nil
}

func paramsFromConfig(cfg config.PointerConfig) ArgonParams {
	threads := clampInt(cfg.ArgonParallelism, 1, 255)
	return ArgonParams{
		Memory:      clampUint32(cfg.ArgonMemoryKB, minMemoryKB, maxMemoryKB),
		Time:        clampUint32(cfg.ArgonTime, minTime, maxTime),
		Parallelism: uint8(threads),
		SaltLen:     clampUint32(cfg.ArgonSaltLen, minSaltLen, maxSaltLen),
	}
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampUint32(value, min, max int) uint32 {
	return uint32(clampInt(value, min, max))
}

func inRange(value uint32, min, max int) bool {
	return int64(value) >= int64(min) && int64(value) <= int64(max)
}
