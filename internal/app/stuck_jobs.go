package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// StuckJobSweeper marks IN_PROGRESS jobs as failed when they stop
// making progress. A worker crash after the queue message was deleted
// would otherwise leave the job in progress forever.
type StuckJobSweeper struct {
	jobs             domain.JobRepository
	maxProcessingAge time.Duration
	interval         time.Duration
}

// NewStuckJobSweeper builds a sweeper; zero durations fall back to
// defaults sized for multi-hour evaluation runs.
func NewStuckJobSweeper(jobs domain.JobRepository, maxProcessingAge, interval time.Duration) *StuckJobSweeper {
	if jobs == nil {
		return nil
	}
	if maxProcessingAge <= 0 {
		maxProcessingAge = 2 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StuckJobSweeper{
		jobs:             jobs,
		maxProcessingAge: maxProcessingAge,
		interval:         interval,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckJobSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-s.maxProcessingAge)
	const pageSize = 100
	marked := 0

	for page := 1; ; page++ {
		jobs, _, err := s.jobs.List(ctx, domain.JobFilter{
			Page:   page,
			Limit:  pageSize,
			Status: domain.JobInProgress,
		})
		if err != nil {
			span.RecordError(err)
			slog.Error("stuck job sweep failed to list jobs", slog.Any("error", err))
			return
		}
		if len(jobs) == 0 {
			break
		}

		for _, j := range jobs {
			if !j.UpdatedAt.Before(cutoff) {
				continue
			}
			msg := fmt.Sprintf("job exceeded maximum processing age %v", s.maxProcessingAge)
			_, err := s.jobs.AtomicUpdate(ctx, j.ID, func(job *domain.EvaluationJob) error {
				// Re-check under the lock; the worker may have finished.
				if job.Status != domain.JobInProgress {
					return fmt.Errorf("%w: job no longer in progress", domain.ErrConflict)
				}
				job.Status = domain.JobFailed
				job.Error = msg
				return nil
			})
			if err != nil {
				slog.Warn("stuck job not marked",
					slog.String("job_id", j.ID), slog.Any("error", err))
				continue
			}
			marked++
			slog.Warn("stuck job marked failed",
				slog.String("job_id", j.ID), slog.Time("updated_at", j.UpdatedAt))
		}

		if len(jobs) < pageSize {
			break
		}
	}
	span.SetAttributes(attribute.Int("jobs.marked_failed", marked))
}
