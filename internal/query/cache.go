package query

import (
	"context"
	"time"

	"github.com/rs-vn/document-search-platform/pkg/redis"
)

// Cache is the query-result cache contract. Get returns ok=false on a miss;
// cache errors are swallowed by implementations because a broken cache must
// never break a query.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Flush(ctx context.Context, pattern string)
}

// RedisCache backs the query cache with Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps the shared Redis client as a query Cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.client.Set(ctx, key, value, ttl)
}

func (c *RedisCache) Flush(ctx context.Context, pattern string) {
	_, _ = c.client.FlushByPattern(ctx, pattern)
}
