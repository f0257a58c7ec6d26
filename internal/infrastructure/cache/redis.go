package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/pkg/breaker"
)

const keyPrefix = "trust:verdict:"

// RedisCache is the shared verdict tier. Every call goes through a circuit
// breaker; an open breaker reports the cache as unavailable.
type RedisCache struct {
	client  redis.UniversalClient
	breaker *breaker.Breaker
	now     func() time.Time
}

// NewRedisCache creates a RedisCache.
func NewRedisCache(client redis.UniversalClient, b *breaker.Breaker) *RedisCache {
	return &RedisCache{client: client, breaker: b, now: time.Now}
}

// Get implements port.VerdictCache.
func (c *RedisCache) Get(ctx context.Context, key string) (model.Verdict, bool, error) {
	data, ok, err := c.getRaw(ctx, key)
	if err != nil || !ok {
		return model.Verdict{}, false, err
	}
	v, expiresAt, err := decodeEntry(data)
	if err != nil || !c.now().Before(expiresAt) {
		return model.Verdict{}, false, nil
	}
	return v, true, nil
}

func (c *RedisCache) getRaw(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := breaker.Execute(c.breaker, func() ([]byte, error) {
		b, err := c.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			// A miss is not a failure of the dependency.
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, false, model.CacheUnavailable("redis get", err)
	}
	return data, data != nil, nil
}

// Set implements port.VerdictCache.
func (c *RedisCache) Set(ctx context.Context, key string, v model.Verdict, ttl time.Duration) error {
	data, err := encodeEntry(v, c.now(), ttl)
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}
	return c.setRaw(ctx, key, data, ttl)
}

func (c *RedisCache) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := breaker.Execute(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.client.Set(ctx, keyPrefix+key, data, ttl).Err()
	})
	if err != nil {
		return model.CacheUnavailable("redis set", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. Used by the readiness probe.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
