package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
	"github.com/hirehub/profile-evaluator/internal/usecase"
)

// RateLimitReader exposes the current GitHub API quota to operators.
type RateLimitReader interface {
	RateLimit(ctx domain.Context) (domain.RateLimitStatus, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg    config.Config
	Submit usecase.SubmitService
	Jobs   usecase.JobQueryService
	GitHub RateLimitReader

	DBCheck    func(ctx context.Context) error
	QueueCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, submit usecase.SubmitService, jobs usecase.JobQueryService, github RateLimitReader,
	dbCheck, queueCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Submit:     submit,
		Jobs:       jobs,
		GitHub:     github,
		DBCheck:    dbCheck,
		QueueCheck: queueCheck,
		TikaCheck:  tikaCheck,
	}
}

type jobView struct {
	ID        string             `json:"id"`
	DriveID   string             `json:"driveId"`
	Type      string             `json:"type"`
	Status    string             `json:"status"`
	Progress  domain.JobProgress `json:"progress"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func viewOf(j domain.EvaluationJob) jobView {
	return jobView{
		ID:        j.ID,
		DriveID:   j.DriveID,
		Type:      string(j.Type),
		Status:    string(j.Status),
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// SubmitPreScreeningHandler accepts a pre-screening run for a drive.
func (s *Server) SubmitPreScreeningHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driveID := chi.URLParam(r, "driveID")
		if driveID == "" {
			writeError(w, r, fmt.Errorf("%w: drive id missing", domain.ErrInvalidArgument), nil)
			return
		}
		sub, err := s.Submit.Submit(r.Context(), driveID, domain.EvaluationPreScreening, false)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"jobId":     sub.JobID,
			"messageId": sub.MessageID,
			"status":    string(domain.JobPending),
		})
	}
}

// SubmitEvaluationHandler accepts a full test-platform evaluation run.
// The body is optional; an empty body means no forced data refresh.
func (s *Server) SubmitEvaluationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driveID := chi.URLParam(r, "driveID")
		if driveID == "" {
			writeError(w, r, fmt.Errorf("%w: drive id missing", domain.ErrInvalidArgument), nil)
			return
		}
		var req struct {
			ForceDataRefresh bool `json:"forceDataRefresh"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		sub, err := s.Submit.Submit(r.Context(), driveID, domain.EvaluationFull, req.ForceDataRefresh)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"jobId":     sub.JobID,
			"messageId": sub.MessageID,
			"status":    string(domain.JobPending),
		})
	}
}

// JobHandler returns one job with its progress block.
func (s *Server) JobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if res := ValidateJobID(id); !res.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid job id", domain.ErrInvalidArgument), res.Errors)
			return
		}
		job, err := s.Jobs.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(job))
	}
}

// JobsListHandler returns a page of jobs, optionally filtered by status
// and drive.
func (s *Server) JobsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if res := ValidatePagination(q.Get("page"), q.Get("limit")); !res.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid pagination", domain.ErrInvalidArgument), res.Errors)
			return
		}
		if res := ValidateStatus(q.Get("status")); !res.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid status", domain.ErrInvalidArgument), res.Errors)
			return
		}
		filter := domain.JobFilter{
			Status:  domain.JobStatus(q.Get("status")),
			DriveID: q.Get("driveId"),
		}
		filter.Page, _ = strconv.Atoi(q.Get("page"))
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		if filter.Page < 1 {
			filter.Page = 1
		}
		if filter.Limit < 1 || filter.Limit > 100 {
			filter.Limit = 20
		}

		jobs, total, err := s.Jobs.List(r.Context(), filter)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		views := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, viewOf(j))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":  views,
			"total": total,
			"page":  filter.Page,
			"limit": filter.Limit,
		})
	}
}

// GitHubRateLimitHandler reports the pooled GitHub API quota.
func (s *Server) GitHubRateLimitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.GitHub.RateLimit(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		tokens := make([]map[string]any, 0, len(status.Tokens))
		for _, t := range status.Tokens {
			tokens = append(tokens, map[string]any{
				"label":     t.Label,
				"remaining": t.Remaining,
				"reset":     t.Reset.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"remaining": status.Remaining,
			"reset":     status.Reset.UTC().Format(time.RFC3339),
			"tokens":    tokens,
		})
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the database, queue, and text extractor.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		run := func(name string, fn func(context.Context) error) check {
			if fn == nil {
				return check{Name: name, OK: true}
			}
			if err := fn(ctx); err != nil {
				return check{Name: name, OK: false, Details: err.Error()}
			}
			return check{Name: name, OK: true}
		}
		checks := []check{
			run("db", s.DBCheck),
			run("queue", s.QueueCheck),
			run("tika", s.TikaCheck),
		}
		status := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}
