// Package usecase contains application business logic services.
package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// SubmitService creates evaluation jobs and hands them to the queue.
type SubmitService struct {
	Jobs     domain.JobRepository
	Drives   domain.DriveRepository
	Students domain.StudentRepository
	Queue    domain.Queue
}

// NewSubmitService constructs a SubmitService with its dependencies.
func NewSubmitService(j domain.JobRepository, d domain.DriveRepository, s domain.StudentRepository, q domain.Queue) SubmitService {
	return SubmitService{Jobs: j, Drives: d, Students: s, Queue: q}
}

// Submission is the accepted-job receipt returned to the API layer.
type Submission struct {
	JobID     string
	MessageID string
}

// Submit validates the drive, persists a PENDING job, and enqueues the
// evaluation directive. Validation failures surface at submission time
// rather than inside the worker.
func (s SubmitService) Submit(ctx domain.Context, driveID string, typ domain.EvaluationType, force bool) (Submission, error) {
	if typ != domain.EvaluationPreScreening && typ != domain.EvaluationFull {
		return Submission{}, fmt.Errorf("%w: unknown evaluation type %q", domain.ErrInvalidArgument, typ)
	}

	drive, err := s.Drives.Get(ctx, driveID)
	if err != nil {
		return Submission{}, fmt.Errorf("op=submit.drive drive=%s: %w", driveID, err)
	}
	if typ == domain.EvaluationFull && len(drive.WecpTestIDs) == 0 {
		return Submission{}, fmt.Errorf("%w: drive %s has no test ids configured", domain.ErrInvalidArgument, driveID)
	}

	students, err := s.Students.ListByDrive(ctx, driveID)
	if err != nil {
		return Submission{}, fmt.Errorf("op=submit.students drive=%s: %w", driveID, err)
	}

	now := time.Now().UTC()
	job := domain.EvaluationJob{
		ID:        uuid.NewString(),
		Version:   1,
		DriveID:   driveID,
		Type:      typ,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return Submission{}, fmt.Errorf("op=submit.create: %w", err)
	}

	directive := domain.EvaluationDirective{
		JobID:            job.ID,
		DriveID:          drive.ID,
		DriveName:        drive.Name,
		CollegeID:        drive.CollegeID,
		CollegeName:      drive.CollegeName,
		StudentCount:     len(students),
		EvaluationType:   typ,
		ForceDataRefresh: force,
		Timestamp:        now,
	}
	msgID, err := s.Queue.Send(ctx, directive)
	if err != nil {
		// The job must not sit PENDING forever when no message exists.
		if _, uerr := s.Jobs.AtomicUpdate(ctx, job.ID, func(j *domain.EvaluationJob) error {
			j.Status = domain.JobFailed
			j.Error = fmt.Sprintf("enqueue failed: %v", err)
			return nil
		}); uerr != nil {
			slog.Error("job failure persist failed", slog.String("job_id", job.ID), slog.Any("error", uerr))
		}
		return Submission{}, fmt.Errorf("op=submit.enqueue job=%s: %w", job.ID, err)
	}

	observability.EnqueueJob(string(typ))
	slog.Info("evaluation submitted",
		slog.String("job_id", job.ID),
		slog.String("drive_id", driveID),
		slog.String("type", string(typ)),
		slog.Int("students", len(students)))
	return Submission{JobID: job.ID, MessageID: msgID}, nil
}
