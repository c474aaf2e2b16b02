// Package postgres provides PostgreSQL database adapters.
//
// It implements the coordinator's repository interfaces for job, worker,
// source, data-quality, and DLQ persistence with connection pooling and
// transaction support.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool used by the repositories in this
// package. It exists so tests can substitute a lightweight fake.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// NewPool creates a pgx connection pool from the provided DSN and returns it.
// The pool is configured with sane defaults and includes OpenTelemetry
// tracing for distributed tracing visibility.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	cfg.ConnConfig.Tracer = otelpgx.NewTracer(
		otelpgx.WithTrimSQLInSpanName(),
	)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := otelpgx.RecordStats(pool); err != nil {
		slog.Warn("failed to record pgx stats", slog.Any("error", err))
	}

	return pool, nil
}

// AcquireWithRetry checks out a connection from the pool, pinging it before
// handing it back, retrying with exponential backoff on transient failures
// (a stale connection from a recycled network path, a momentary DB restart).
func AcquireWithRetry(ctx context.Context, pool *pgxpool.Pool, maxRetries int) (*pgxpool.Conn, error) {
	var conn *pgxpool.Conn
	op := func() error {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			c.Release()
			return err
		}
		conn = c
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries))
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("op=postgres.acquire: %w", err)
	}
	return conn, nil
}
