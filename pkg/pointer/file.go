package pointer

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/security"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrUndecryptable means the pointer file exists but could not be opened with
// the configured passphrase.
var ErrUndecryptable = errors.New("pointer file could not be decrypted")

// FileStore keeps all pointers in one file sealed with XChaCha20-Poly1305.
//
// File layout: the Argon2id key header on the first line, then the nonce
// followed by the ciphertext of a JSON object. The header line is bound as
// additional data.
type FileStore struct {
	path   string
	header security.KeyHeader
	aead   cipher.AEAD

	mu      sync.Mutex
	entries map[string]string
}

// OpenFileStore opens (or prepares to create) the pointer file at cfg.Path.
func OpenFileStore(cfg config.PointerConfig) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("pointer file path is required")
	}

	raw, err := os.ReadFile(cfg.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		header, err := security.NewKeyHeader(cfg)
		if err != nil {
			return nil, err
		}
		aead, err := newAEAD(cfg.Passphrase, header)
		if err != nil {
			return nil, err
		}
		return &FileStore{path: cfg.Path, header: header, aead: aead, entries: map[string]string{}}, nil
	case err != nil:
		return nil, fmt.Errorf("reading pointer file: %w", err)
	}

	line, sealed, ok := bytes.Cut(raw, []byte("\n"))
	if !ok {
		return nil, ErrUndecryptable
	}
	header, err := security.ParseKeyHeader(string(line))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	aead, err := newAEAD(cfg.Passphrase, header)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrUndecryptable
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, line)
	if err != nil {
		return nil, ErrUndecryptable
	}

	entries := map[string]string{}
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	return &FileStore{path: cfg.Path, header: header, aead: aead, entries: entries}, nil
}

func newAEAD(passphrase string, header security.KeyHeader) (cipher.AEAD, error) {
	key, err := security.DeriveKey(passphrase, header)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok, nil
}

// Set records value and rewrites the file. The in-memory view is rolled back
// when the write fails.
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.entries[key]
	f.entries[key] = value
	if err := f.persist(); err != nil {
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) persist() error {
	plain, err := json.Marshal(f.entries)
	if err != nil {
		return err
	}
	line := []byte(f.header.String())
	nonce := make([]byte, f.aead.NonceSize(), f.aead.NonceSize()+len(plain)+f.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := f.aead.Seal(nonce, nonce, plain, line)

	var buf bytes.Buffer
	buf.Grow(len(line) + 1 + len(sealed))
	buf.Write(line)
	buf.WriteByte('\n')
	buf.Write(sealed)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating pointer dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".pointers-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
