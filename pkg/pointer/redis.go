package pointer

import (
	"context"
	"time"

	pkgredis "github.com/angelmondragon/storefront-core/pkg/redis"
)

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PointerKey(name string) string
}

// RedisStore keeps pointers in redis under the pointer namespace. Entries
// never expire.
type RedisStore struct {
	client redisKV
}

func NewRedisStore(client redisKV) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.client.PointerKey(key))
	if pkgredis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.PointerKey(key), value, 0)
}
