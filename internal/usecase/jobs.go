package usecase

import (
	"fmt"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// JobQueryService provides read access to evaluation jobs.
type JobQueryService struct {
	Jobs domain.JobRepository
}

// NewJobQueryService constructs a JobQueryService.
func NewJobQueryService(j domain.JobRepository) JobQueryService {
	return JobQueryService{Jobs: j}
}

// Get returns one job by id.
func (s JobQueryService) Get(ctx domain.Context, id string) (domain.EvaluationJob, error) {
	if id == "" {
		return domain.EvaluationJob{}, fmt.Errorf("%w: job id required", domain.ErrInvalidArgument)
	}
	return s.Jobs.Get(ctx, id)
}

// List returns a page of jobs plus the total match count. Page and
// limit are normalized so callers cannot request unbounded result sets.
func (s JobQueryService) List(ctx domain.Context, f domain.JobFilter) ([]domain.EvaluationJob, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > maxPageLimit {
		f.Limit = defaultPageLimit
	}
	return s.Jobs.List(ctx, f)
}
