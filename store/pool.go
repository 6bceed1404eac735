package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig bounds the underlying connection pool. Exhaustion of the pool
// surfaces as a retriable error (callers see it as docerr.StoreTransient via
// the Tx helpers) rather than blocking indefinitely.
type PoolConfig struct {
	DatabaseURL     string
	MinConns        int32
	MaxConns        int32
	IdleTimeout     time.Duration
	AcquireTimeout  time.Duration
}

// Pool wraps a pgx connection pool with docvault's defaults applied.
type Pool struct {
	pool *pgxpool.Pool
}

// Open creates and pings a new connection pool. Callers must Close it on
// shutdown.
func Open(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}

	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.IdleTimeout > 0 {
		pcfg.MaxConnIdleTime = cfg.IdleTimeout
	}
	if cfg.AcquireTimeout > 0 {
		pcfg.HealthCheckPeriod = cfg.AcquireTimeout
	}

	pgxPool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("store: create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pgxPool.Ping(pingCtx); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	return &Pool{pool: pgxPool}, nil
}

// Close closes the underlying connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// Raw returns the underlying pgxpool.Pool for advanced operations such as
// manual transaction management or batch queries.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}
