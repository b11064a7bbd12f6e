// Package pointer holds the small secure key/value store that remembers where
// each user's current profile image lives.
package pointer

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-core/pkg/config"
	pkgredis "github.com/angelmondragon/storefront-core/pkg/redis"
)

const keyPrefix = "profile_image_path_"

// Store is a secure string key/value store.
type Store interface {
	// Get returns the value for key. A missing key is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Key builds the pointer key for userID.
func Key(userID string) string {
	return keyPrefix + userID
}

// Open builds the backend selected by cfg. rc is only consulted for the redis
// backend.
func Open(cfg config.PointerConfig, rc *pkgredis.Client) (Store, error) {
	switch cfg.Backend {
	case config.PointerBackendFile:
		fs, err := OpenFileStore(cfg)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.PointerBackendRedis:
		if rc == nil {
			return nil, fmt.Errorf("redis client required for %s backend", cfg.Backend)
		}
		return NewRedisStore(rc), nil
	case config.PointerBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported pointer backend %q", cfg.Backend)
	}
}

// MemoryStore keeps pointers in process memory only.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}
