// Package cache provides the verdict cache: an in-process bigcache tier with
// an optional shared Redis tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/bibbank/trust-engine/internal/domain/model"
)

// LocalConfig configures the in-process tier.
type LocalConfig struct {
	// TTL bounds how long bigcache keeps an entry; entries also carry their
	// own expiry, which is checked on every read.
	TTL time.Duration
	// MaxSizeMB caps memory use. When full, the oldest entries are evicted.
	MaxSizeMB int
	Shards    int
	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// LocalCache is a VerdictCache backed by allegro/bigcache.
type LocalCache struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

// NewLocalCache creates a LocalCache.
func NewLocalCache(ctx context.Context, cfg LocalConfig) (*LocalCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	bc := bigcache.DefaultConfig(cfg.TTL)
	bc.Shards = cfg.Shards
	bc.HardMaxCacheSize = cfg.MaxSizeMB
	bc.MaxEntriesInWindow = cfg.Shards * 64
	bc.MaxEntrySize = 1024
	bc.CleanWindow = time.Minute
	bc.Verbose = false

	c, err := bigcache.New(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("creating bigcache: %w", err)
	}
	return &LocalCache{cache: c, now: cfg.Now}, nil
}

// Get implements port.VerdictCache.
func (c *LocalCache) Get(_ context.Context, key string) (model.Verdict, bool, error) {
	data, err := c.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return model.Verdict{}, false, nil
	}
	if err != nil {
		return model.Verdict{}, false, model.CacheUnavailable("local get", err)
	}

	v, expiresAt, err := decodeEntry(data)
	if err != nil {
		// A corrupt entry is dropped and treated as a miss.
		_ = c.cache.Delete(key)
		return model.Verdict{}, false, nil
	}
	if !c.now().Before(expiresAt) {
		_ = c.cache.Delete(key)
		return model.Verdict{}, false, nil
	}
	return v, true, nil
}

// Set implements port.VerdictCache.
func (c *LocalCache) Set(_ context.Context, key string, v model.Verdict, ttl time.Duration) error {
	data, err := encodeEntry(v, c.now(), ttl)
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}
	if err := c.cache.Set(key, data); err != nil {
		return model.CacheUnavailable("local set", err)
	}
	return nil
}

// setRaw stores an already encoded entry. Used to backfill from Redis.
func (c *LocalCache) setRaw(key string, data []byte) {
	_ = c.cache.Set(key, data)
}

// Len returns the number of stored entries, including expired ones not yet
// read back.
func (c *LocalCache) Len() int {
	return c.cache.Len()
}

// Close releases the cache's background cleaner.
func (c *LocalCache) Close() error {
	return c.cache.Close()
}
