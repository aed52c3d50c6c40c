package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirehub/profile-evaluator/internal/adapter/httpserver"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
	"github.com/hirehub/profile-evaluator/internal/usecase"
)

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t, []string{"*"}, ParseOrigins("*"))
	assert.Equal(t, []string{"*"}, ParseOrigins(" , ,"))
	assert.Equal(t,
		[]string{"https://a.example.com", "https://b.example.com"},
		ParseOrigins(" https://a.example.com, https://b.example.com "))
}

type sweeperJobs struct {
	byID map[string]domain.EvaluationJob
}

func (s *sweeperJobs) Create(_ domain.Context, j domain.EvaluationJob) error {
	s.byID[j.ID] = j
	return nil
}

func (s *sweeperJobs) Get(_ domain.Context, id string) (domain.EvaluationJob, error) {
	j, ok := s.byID[id]
	if !ok {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	return j, nil
}

func (s *sweeperJobs) List(_ domain.Context, f domain.JobFilter) ([]domain.EvaluationJob, int, error) {
	if f.Page > 1 {
		return nil, len(s.byID), nil
	}
	var out []domain.EvaluationJob
	for _, j := range s.byID {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, j)
	}
	return out, len(out), nil
}

func (s *sweeperJobs) AtomicUpdate(_ domain.Context, id string, apply func(*domain.EvaluationJob) error) (domain.EvaluationJob, error) {
	j, ok := s.byID[id]
	if !ok {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	if err := apply(&j); err != nil {
		return domain.EvaluationJob{}, err
	}
	j.Version++
	s.byID[id] = j
	return j, nil
}

func TestStuckJobSweeper(t *testing.T) {
	now := time.Now()
	jobs := &sweeperJobs{byID: map[string]domain.EvaluationJob{
		"stale": {ID: "stale", Status: domain.JobInProgress, UpdatedAt: now.Add(-3 * time.Hour)},
		"fresh": {ID: "fresh", Status: domain.JobInProgress, UpdatedAt: now.Add(-time.Minute)},
		"done":  {ID: "done", Status: domain.JobCompleted, UpdatedAt: now.Add(-3 * time.Hour)},
	}}

	s := NewStuckJobSweeper(jobs, 2*time.Hour, 10*time.Minute)
	require.NotNil(t, s)
	s.sweepOnce(context.Background())

	assert.Equal(t, domain.JobFailed, jobs.byID["stale"].Status)
	assert.Contains(t, jobs.byID["stale"].Error, "maximum processing age")
	assert.Equal(t, domain.JobInProgress, jobs.byID["fresh"].Status)
	assert.Equal(t, domain.JobCompleted, jobs.byID["done"].Status)
}

func TestNewStuckJobSweeperNilRepo(t *testing.T) {
	assert.Nil(t, NewStuckJobSweeper(nil, 0, 0))
}

func TestBuildRouterServesHealthAndMetrics(t *testing.T) {
	cfg := config.Config{RateLimitPerMin: 60}
	srv := httpserver.NewServer(cfg,
		usecase.SubmitService{}, usecase.JobQueryService{}, nil,
		nil, nil, nil)
	h := BuildRouter(cfg, srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
