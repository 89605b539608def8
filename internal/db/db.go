package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Conn is the subset of *pgxpool.Pool the storage layer depends on.
// Narrowing to an interface lets tests substitute pgxmock without a live
// database.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store is the storage layer's public contract: the five semantic
// operations the allocation orchestrator and ingress depend on. Defined as
// an interface so both can be tested against pgxmock or a hand-written
// fake without a live database.
type Store interface {
	CreateExperiment(ctx context.Context, name, description string, variants []VariantInput) (*Experiment, error)
	GetExperiment(ctx context.Context, idOrName string) (*Experiment, error)
	RecordMetrics(ctx context.Context, experimentID string, metricDate time.Time, entries []MetricEntry, source MetricSource, batchID string) (int, error)
	AggregateForAllocation(ctx context.Context, experimentID string, windowDays int) ([]AggregateRow, error)
	SaveAllocation(ctx context.Context, record AllocationRecord, details []AllocationDetail) (string, error)
	GetHistory(ctx context.Context, experimentID string, limit int) ([]HistoryEntry, error)
	Health(ctx context.Context) error
}

// DB wraps the PostgreSQL connection pool and the circuit breaker guarding
// it. It is the production implementation of Store.
type DB struct {
	pool    Conn
	breaker *Breaker
}

// PoolSettings configures the pgxpool.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// New creates a new database connection pool from a DSN.
func New(ctx context.Context, databaseURL string, pool PoolSettings, breakerSettings BreakerSettings) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if pool.MaxConns > 0 {
		cfg.MaxConns = pool.MaxConns
	} else {
		cfg.MaxConns = 10
	}
	if pool.MinConns > 0 {
		cfg.MinConns = pool.MinConns
	} else {
		cfg.MinConns = 2
	}
	if pool.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pool.MaxConnLifetime
	} else {
		cfg.MaxConnLifetime = time.Hour
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pool.MaxConnIdleTime
	} else {
		cfg.MaxConnIdleTime = 30 * time.Minute
	}
	cfg.HealthCheckPeriod = time.Minute

	connPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := connPool.Ping(ctx); err != nil {
		connPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("database connection pool created")

	return &DB{
		pool:    connPool,
		breaker: NewBreaker(breakerSettings),
	}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		log.Info().Msg("database connection pool closed")
	}
}

// Pool returns the underlying connection, typed as *pgxpool.Pool for
// callers (migrations, test containers) that need concrete pool methods
// this interface doesn't expose.
func (db *DB) Pool() *pgxpool.Pool {
	pool, _ := db.pool.(*pgxpool.Pool)
	return pool
}

// SetPool overrides the connection, accepting anything satisfying Conn —
// a real *pgxpool.Pool or a pgxmock mock. Used by tests.
func (db *DB) SetPool(pool Conn) {
	db.pool = pool
}

// Health checks database connectivity.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// withBreaker executes fn through the circuit breaker, translating an
// open-circuit rejection into apperr.UpstreamUnavailable at the call site
// (see translateExperimentErr in experiments.go).
func (db *DB) withBreaker(fn func() (interface{}, error)) (interface{}, error) {
	if db.breaker == nil {
		return fn()
	}
	result, err := db.breaker.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("database circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result, nil
}

var _ Store = (*DB)(nil)
