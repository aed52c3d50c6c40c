// Package postgres provides PostgreSQL database adapters.
//
// It implements the job, student, and drive repository ports on top of
// a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool creates a pgx connection pool from the provided DSN and returns it.
// The pool is configured with sane defaults for this application.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Migrate applies the schema. Statements are idempotent so it is safe to
// run on every startup.
func Migrate(ctx context.Context, pool PgxPool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evaluation_jobs (
			id TEXT PRIMARY KEY,
			version BIGINT NOT NULL DEFAULT 1,
			drive_id TEXT NOT NULL,
			evaluation_type TEXT NOT NULL,
			status TEXT NOT NULL,
			progress JSONB NOT NULL DEFAULT '{}'::jsonb,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluation_jobs_drive ON evaluation_jobs (drive_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluation_jobs_status ON evaluation_jobs (status)`,
		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			drive_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			registration_number TEXT NOT NULL DEFAULT '',
			degree TEXT NOT NULL DEFAULT '',
			github_profile TEXT NOT NULL DEFAULT '',
			github_evaluated BOOLEAN NOT NULL DEFAULT FALSE,
			github_details JSONB,
			resume_url TEXT NOT NULL DEFAULT '',
			resume_evaluated BOOLEAN NOT NULL DEFAULT FALSE,
			resume_score JSONB,
			wecp_test_score DOUBLE PRECISION,
			wecp_data JSONB,
			ai_score JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_students_drive ON students (drive_id)`,
		`CREATE TABLE IF NOT EXISTS drives (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			college_id TEXT NOT NULL DEFAULT '',
			college_name TEXT NOT NULL DEFAULT '',
			wecp_test_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
			rounds JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("op=postgres.migrate: %w", err)
		}
	}
	return nil
}
