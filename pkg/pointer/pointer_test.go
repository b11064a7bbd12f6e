package pointer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileConfig(t *testing.T, passphrase string) config.PointerConfig {
	t.Helper()
	return config.PointerConfig{
		Backend:          config.PointerBackendFile,
		Path:             filepath.Join(t.TempDir(), "secure", "pointers.bin"),
		Passphrase:       passphrase,
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "profile_image_path_u1", Key("u1"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, Key("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, Key("u1"), "/a.jpg"))
	require.NoError(t, s.Set(ctx, Key("u1"), "/b.jpg"))
	v, ok, err := s.Get(ctx, Key("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/b.jpg", v)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := fileConfig(t, "correct horse")

	s, err := OpenFileStore(cfg)
	require.NoError(t, err)
	_, ok, err := s.Get(ctx, Key("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, Key("u1"), "/images/profile_u1_1.jpg"))
	require.NoError(t, s.Set(ctx, Key("u2"), "/images/profile_u2_1.jpg"))

	reopened, err := OpenFileStore(cfg)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, Key("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/images/profile_u1_1.jpg", v)
}

func TestFileStoreIsNotPlaintext(t *testing.T) {
	ctx := context.Background()
	cfg := fileConfig(t, "correct horse")

	s, err := OpenFileStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, Key("u1"), "/images/very-recognizable-path.jpg"))

	raw, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("very-recognizable-path")))
	assert.False(t, bytes.Contains(raw, []byte("profile_image_path_u1")))
	assert.True(t, bytes.HasPrefix(raw, []byte("$argon2id$")))
}

func TestFileStoreWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	cfg := fileConfig(t, "correct horse")

	s, err := OpenFileStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, Key("u1"), "/a.jpg"))

	cfg.Passphrase = "battery staple"
	_, err = OpenFileStore(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndecryptable))
}

func TestFileStoreTamperedFile(t *testing.T) {
	ctx := context.Background()
	cfg := fileConfig(t, "correct horse")

	s, err := OpenFileStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, Key("u1"), "/a.jpg"))

	raw, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(cfg.Path, raw, 0o600))

	_, err = OpenFileStore(cfg)
	assert.ErrorIs(t, err, ErrUndecryptable)
}

func TestFileStoreRequiresPassphrase(t *testing.T) {
	_, err := OpenFileStore(fileConfig(t, ""))
	require.Error(t, err)
}

func TestFileStoreHonoursCancelledContext(t *testing.T) {
	s, err := OpenFileStore(fileConfig(t, "pw"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
	_, _, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRedis struct {
	data map[string]string
	err  error
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) PointerKey(name string) string { return "sf:pointer:" + name }

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	backend := &fakeRedis{data: map[string]string{}}
	s := NewRedisStore(backend)

	_, ok, err := s.Get(ctx, Key("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, Key("u1"), "/a.jpg"))
	assert.Equal(t, "/a.jpg", backend.data["sf:pointer:profile_image_path_u1"])

	v, ok, err := s.Get(ctx, Key("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/a.jpg", v)

	backend.err = errors.New("connection refused")
	_, _, err = s.Get(ctx, Key("u1"))
	assert.Error(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(config.PointerConfig{Backend: config.PointerBackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(fileConfig(t, "pw"), nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(config.PointerConfig{Backend: config.PointerBackendRedis}, nil)
	assert.Error(t, err)

	_, err = Open(config.PointerConfig{Backend: "bogus"}, nil)
	assert.Error(t, err)
}
