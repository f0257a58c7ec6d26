package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL pool parameters. Zero durations and connection
// counts keep the pgxpool defaults except where noted.
type Config struct {
	URL             string
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	// MaxConnLifetime defaults to one hour.
	MaxConnLifetime time.Duration
	// MaxConnIdleTime defaults to thirty minutes.
	MaxConnIdleTime time.Duration
	// ConnectTimeout defaults to five seconds.
	ConnectTimeout time.Duration
}

// ParseConfig turns cfg into a pgxpool configuration without connecting.
func ParseConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres: url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = orDuration(cfg.MaxConnLifetime, time.Hour)
	poolCfg.MaxConnIdleTime = orDuration(cfg.MaxConnIdleTime, 30*time.Minute)
	poolCfg.ConnConfig.ConnectTimeout = orDuration(cfg.ConnectTimeout, 5*time.Second)
	if cfg.ApplicationName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	return poolCfg, nil
}

// NewPool creates a pool and pings the database before returning it.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

// HealthCheck reports whether the pool can reach the database.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check: %w", err)
	}
	return nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
