package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// poolStub implements postgres.PgxPool for tests. Exec pops one tag per
// call from execTags; QueryRow delegates to the queryRow func so a test
// can vary rows across calls.
type poolStub struct {
	execCalls int
	execTags  []string
	execErr   error
	queryRow  func(call int) rowStub
	rowCalls  int
}

func (p *poolStub) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	tag := "UPDATE 1"
	if p.execCalls < len(p.execTags) {
		tag = p.execTags[p.execCalls]
	}
	p.execCalls++
	return pgconn.NewCommandTag(tag), nil
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.queryRow == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	row := p.queryRow(p.rowCalls)
	p.rowCalls++
	return row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
