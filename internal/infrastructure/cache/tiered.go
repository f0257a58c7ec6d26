package cache

import (
	"context"
	"time"

	"github.com/bibbank/trust-engine/internal/domain/model"
)

// TieredCache reads through the local tier to the shared tier and writes to
// both. A shared-tier hit is copied into the local tier.
type TieredCache struct {
	local  *LocalCache
	remote *RedisCache
}

// NewTieredCache creates a TieredCache. remote may be nil, in which case the
// cache is local only.
func NewTieredCache(local *LocalCache, remote *RedisCache) *TieredCache {
	return &TieredCache{local: local, remote: remote}
}

// Get implements port.VerdictCache.
func (c *TieredCache) Get(ctx context.Context, key string) (model.Verdict, bool, error) {
	v, ok, err := c.local.Get(ctx, key)
	if err != nil || ok || c.remote == nil {
		return v, ok, err
	}

	data, ok, err := c.remote.getRaw(ctx, key)
	if err != nil || !ok {
		return model.Verdict{}, false, err
	}
	v, expiresAt, err := decodeEntry(data)
	if err != nil || !c.local.now().Before(expiresAt) {
		return model.Verdict{}, false, nil
	}
	c.local.setRaw(key, data)
	return v, true, nil
}

// Set implements port.VerdictCache. The local write always happens; a shared
// tier failure is returned after it.
func (c *TieredCache) Set(ctx context.Context, key string, v model.Verdict, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	if c.remote == nil {
		return nil
	}
	return c.remote.Set(ctx, key, v, ttl)
}

// Ping checks the shared tier, if any.
func (c *TieredCache) Ping(ctx context.Context) error {
	if c.remote == nil {
		return nil
	}
	return c.remote.Ping(ctx)
}
