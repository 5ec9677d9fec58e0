package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares resolved ids across processes when an import is sharded.
// Entries expire so a stale mapping cannot outlive a reloaded hierarchy.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (int64, bool, error) {
	id, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return id, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, id int64) error {
	if err := c.client.Set(ctx, key, id, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
