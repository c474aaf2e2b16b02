package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row for a single canned Scan call.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a fixed slice of scan functions.
type rowsStub struct {
	pgx.Rows
	scans []func(dest ...any) error
	idx   int
	err   error
}

func (r *rowsStub) Next() bool    { return r.idx < len(r.scans) }
func (r *rowsStub) Scan(dest ...any) error {
	fn := r.scans[r.idx]
	r.idx++
	return fn(dest...)
}
func (r *rowsStub) Err() error  { return r.err }
func (r *rowsStub) Close()      {}

// poolStub implements postgres.PgxPool for tests, exercising Exec and
// QueryRow/Query behavior without a real database.
type poolStub struct {
	execErr error
	execTag pgconn.CommandTag
	row     rowStub
	rows    *rowsStub
	queryErr error
}

func (p *poolStub) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return p.rows, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("BeginTx not used by this test stub")
}
