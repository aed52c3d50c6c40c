package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// In-memory doubles shared by the processor and consumer tests.

type fakeStudents struct {
	mu      sync.Mutex
	byID    map[string]*domain.Student
	updates int
}

func newFakeStudents(students ...domain.Student) *fakeStudents {
	f := &fakeStudents{byID: map[string]*domain.Student{}}
	for i := range students {
		st := students[i]
		f.byID[st.ID] = &st
	}
	return f
}

func (f *fakeStudents) ListByDrive(_ domain.Context, driveID string) ([]domain.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Student
	for _, st := range f.byID {
		if st.DriveID == driveID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStudents) Get(_ domain.Context, id string) (domain.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.byID[id]
	if !ok {
		return domain.Student{}, domain.ErrNotFound
	}
	return *st, nil
}

func (f *fakeStudents) Update(_ domain.Context, id string, u domain.StudentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.updates++
	if u.GitHubProfile != nil {
		st.GitHubProfile = *u.GitHubProfile
	}
	if u.GitHubEvaluated != nil {
		st.GitHubEvaluated = *u.GitHubEvaluated
	}
	switch {
	case u.ClearGitHubDetails:
		st.GitHubDetails = nil
	case u.GitHubDetails != nil:
		d := *u.GitHubDetails
		st.GitHubDetails = &d
	}
	if u.ResumeEvaluated != nil {
		st.ResumeEvaluated = *u.ResumeEvaluated
	}
	if u.ResumeScore != nil {
		r := *u.ResumeScore
		st.ResumeScore = &r
	}
	if u.WecpTestScore != nil {
		v := *u.WecpTestScore
		st.WecpTestScore = &v
	}
	if u.WecpData != nil {
		w := *u.WecpData
		st.WecpData = &w
	}
	if u.AIScore != nil {
		a := *u.AIScore
		st.AIScore = &a
	}
	return nil
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]domain.EvaluationJob
}

func newFakeJobs(jobs ...domain.EvaluationJob) *fakeJobs {
	f := &fakeJobs{jobs: map[string]domain.EvaluationJob{}}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeJobs) Create(_ domain.Context, j domain.EvaluationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeJobs) Get(_ domain.Context, id string) (domain.EvaluationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) List(_ domain.Context, _ domain.JobFilter) ([]domain.EvaluationJob, int, error) {
	return nil, 0, nil
}

func (f *fakeJobs) AtomicUpdate(_ domain.Context, id string, apply func(*domain.EvaluationJob) error) (domain.EvaluationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	if err := apply(&j); err != nil {
		return domain.EvaluationJob{}, err
	}
	j.Version++
	f.jobs[id] = j
	return j, nil
}

type fakeDrives struct{ drives map[string]domain.Drive }

func (f *fakeDrives) Get(_ domain.Context, id string) (domain.Drive, error) {
	d, ok := f.drives[id]
	if !ok {
		return domain.Drive{}, domain.ErrNotFound
	}
	return d, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []domain.QueueMessage
	deleted  []string
	extended []string
}

func (f *fakeQueue) Send(_ domain.Context, _ domain.EvaluationDirective) (string, error) {
	return "msg-1", nil
}

func (f *fakeQueue) Receive(_ domain.Context) (*domain.QueueMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil, nil
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return &m, nil
}

func (f *fakeQueue) Delete(_ domain.Context, m domain.QueueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, m.ID)
	return nil
}

func (f *fakeQueue) ExtendVisibility(_ domain.Context, m domain.QueueMessage, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extended = append(f.extended, m.ID)
	return nil
}

type fakeWecp struct {
	candidates map[string][]domain.WecpCandidate
	details    map[string]domain.WecpCandidate
	listErr    error
	detailErr  error
}

func (f *fakeWecp) ListCandidates(_ domain.Context, testID string) ([]domain.WecpCandidate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.candidates[testID], nil
}

func (f *fakeWecp) GetCandidateDetail(_ domain.Context, candidateID string) (domain.WecpCandidate, error) {
	if f.detailErr != nil {
		return domain.WecpCandidate{}, f.detailErr
	}
	d, ok := f.details[candidateID]
	if !ok {
		return domain.WecpCandidate{}, domain.ErrNotFound
	}
	return d, nil
}

type githubScorerFunc func(ctx domain.Context, username string) (domain.GitHubDetails, error)

func (f githubScorerFunc) Score(ctx domain.Context, username string) (domain.GitHubDetails, error) {
	return f(ctx, username)
}

type resumeScorerFunc func(ctx domain.Context, url, degree string) (domain.ResumeScore, error)

func (f resumeScorerFunc) Evaluate(ctx domain.Context, url, degree string) (domain.ResumeScore, error) {
	return f(ctx, url, degree)
}

type fakeQuota struct{ status domain.RateLimitStatus }

func (f fakeQuota) RateLimit(_ domain.Context) (domain.RateLimitStatus, error) {
	return f.status, nil
}

func testCfg() config.Config {
	return config.Config{
		AppEnv:       "test",
		BatchSize:    5,
		MaxRetries:   3,
		BatchDelay:   2 * time.Second,
		PollInterval: 10 * time.Second,

		FullStackHighThreshold:   0.75,
		FullStackMediumThreshold: 0.5,
		AiMlHighThreshold:        0.7,
		AiMlMediumThreshold:      0.4,
	}
}

func okGitHubScorer(score float64) githubScorerFunc {
	return func(_ domain.Context, _ string) (domain.GitHubDetails, error) {
		return domain.GitHubDetails{
			TotalScore:  score,
			DomainScore: score,
			Domains:     map[string]string{"BACKEND": "GO"},
		}, nil
	}
}

func okResumeScorer(total float64) resumeScorerFunc {
	return func(_ domain.Context, _, _ string) (domain.ResumeScore, error) {
		return domain.ResumeScore{
			TotalScore: total,
			Backend:    8,
			CoreCS:     7,
		}, nil
	}
}

func newTestProcessor(students *fakeStudents, jobs *fakeJobs, gh GitHubScorer, rs ResumeScorer) *Processor {
	p := NewProcessor(students, jobs, gh, rs, fakeQuota{status: domain.RateLimitStatus{Remaining: 5000}}, testCfg())
	p.sleep = func(time.Duration) {}
	return p
}

func newTestConsumer(q domain.Queue, jobs *fakeJobs, drives *fakeDrives, students *fakeStudents, wecp domain.WecpClient, p *Processor) *Consumer {
	c := NewConsumer(q, jobs, drives, students, wecp, p, testCfg())
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func pendingJob(id, driveID string, typ domain.EvaluationType) domain.EvaluationJob {
	return domain.EvaluationJob{
		ID:      id,
		Version: 1,
		DriveID: driveID,
		Type:    typ,
		Status:  domain.JobPending,
	}
}

func student(id, driveID string) domain.Student {
	return domain.Student{
		ID:      id,
		DriveID: driveID,
		Email:   fmt.Sprintf("%s@example.edu", id),
	}
}

var errUpstream = errors.New("github unavailable")

func ctxb() context.Context { return context.Background() }
