package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// JobRepo persists and loads evaluation jobs from PostgreSQL.
// All progress mutations go through AtomicUpdate, which implements the
// version-conditioned write required by concurrent batch workers.
type JobRepo struct {
	Pool PgxPool
	// MaxLockAttempts bounds the optimistic-lock retry loop.
	MaxLockAttempts int
}

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool, maxLockAttempts int) *JobRepo {
	if maxLockAttempts <= 0 {
		maxLockAttempts = 5
	}
	return &JobRepo{Pool: p, MaxLockAttempts: maxLockAttempts}
}

// Create inserts a new job.
func (r *JobRepo) Create(ctx domain.Context, j domain.EvaluationJob) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	if j.Version == 0 {
		j.Version = 1
	}
	progress, err := json.Marshal(j.Progress)
	if err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO evaluation_jobs (id, version, drive_id, evaluation_type, status, progress, error, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.Pool.Exec(ctx, q, j.ID, j.Version, j.DriveID, j.Type, j.Status, progress, j.Error, now, now)
	if err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	return r.get(ctx, id)
}

func (r *JobRepo) get(ctx domain.Context, id string) (domain.EvaluationJob, error) {
	q := `SELECT id, version, drive_id, evaluation_type, status, progress, COALESCE(error,''), created_at, updated_at
	      FROM evaluation_jobs WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EvaluationJob{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.EvaluationJob{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// List returns a page of jobs plus the total count for the filter.
func (r *JobRepo) List(ctx domain.Context, f domain.JobFilter) ([]domain.EvaluationJob, int, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.List")
	defer span.End()
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	where := ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if f.DriveID != "" {
		args = append(args, f.DriveID)
		where += fmt.Sprintf(" AND drive_id=$%d", len(args))
	}

	var total int
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM evaluation_jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=job.list_count: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := `SELECT id, version, drive_id, evaluation_type, status, progress, COALESCE(error,''), created_at, updated_at
	      FROM evaluation_jobs` + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("op=job.list: %w", err)
	}
	defer rows.Close()
	var jobs []domain.EvaluationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("op=job.list_scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=job.list_rows: %w", err)
	}
	return jobs, total, nil
}

// AtomicUpdate implements the read-modify-write cycle conditioned on the
// captured version. A writer that loses the race rereads and reapplies,
// up to MaxLockAttempts; exhaustion surfaces ErrConflict so contention is
// visible instead of silently spinning.
func (r *JobRepo) AtomicUpdate(ctx domain.Context, id string, apply func(*domain.EvaluationJob) error) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.AtomicUpdate")
	defer span.End()

	for attempt := 0; attempt < r.MaxLockAttempts; attempt++ {
		j, err := r.get(ctx, id)
		if err != nil {
			return domain.EvaluationJob{}, err
		}
		captured := j.Version
		if err := apply(&j); err != nil {
			return domain.EvaluationJob{}, fmt.Errorf("op=job.atomic_update: %w", err)
		}
		progress, err := json.Marshal(j.Progress)
		if err != nil {
			return domain.EvaluationJob{}, fmt.Errorf("op=job.atomic_update: %w", err)
		}
		now := time.Now().UTC()
		q := `UPDATE evaluation_jobs SET version=version+1, status=$3, progress=$4, error=$5, updated_at=$6
		      WHERE id=$1 AND version=$2`
		tag, err := r.Pool.Exec(ctx, q, id, captured, j.Status, progress, j.Error, now)
		if err != nil {
			return domain.EvaluationJob{}, fmt.Errorf("op=job.atomic_update: %w", err)
		}
		if tag.RowsAffected() == 1 {
			j.Version = captured + 1
			j.UpdatedAt = now
			return j, nil
		}
		// Another writer won the race; reread and reapply.
	}
	return domain.EvaluationJob{}, fmt.Errorf("op=job.atomic_update id=%s: %w", id, domain.ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.EvaluationJob, error) {
	var j domain.EvaluationJob
	var progress []byte
	if err := row.Scan(&j.ID, &j.Version, &j.DriveID, &j.Type, &j.Status, &progress, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return domain.EvaluationJob{}, err
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &j.Progress); err != nil {
			return domain.EvaluationJob{}, err
		}
	}
	return j, nil
}
