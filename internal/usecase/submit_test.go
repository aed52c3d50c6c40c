package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

type jobStore struct {
	created []domain.EvaluationJob
	byID    map[string]domain.EvaluationJob
}

func newJobStore() *jobStore { return &jobStore{byID: map[string]domain.EvaluationJob{}} }

func (s *jobStore) Create(_ domain.Context, j domain.EvaluationJob) error {
	s.created = append(s.created, j)
	s.byID[j.ID] = j
	return nil
}

func (s *jobStore) Get(_ domain.Context, id string) (domain.EvaluationJob, error) {
	j, ok := s.byID[id]
	if !ok {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	return j, nil
}

func (s *jobStore) List(_ domain.Context, f domain.JobFilter) ([]domain.EvaluationJob, int, error) {
	var out []domain.EvaluationJob
	for _, j := range s.byID {
		out = append(out, j)
	}
	return out, len(out), nil
}

func (s *jobStore) AtomicUpdate(_ domain.Context, id string, apply func(*domain.EvaluationJob) error) (domain.EvaluationJob, error) {
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

type driveStore map[string]domain.Drive

func (s driveStore) Get(_ domain.Context, id string) (domain.Drive, error) {
	d, ok := s[id]
	if !ok {
		return domain.Drive{}, domain.ErrNotFound
	}
	return d, nil
}

type studentStore []domain.Student

func (s studentStore) ListByDrive(_ domain.Context, driveID string) ([]domain.Student, error) {
	var out []domain.Student
	for _, st := range s {
		if st.DriveID == driveID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s studentStore) Get(_ domain.Context, id string) (domain.Student, error) {
	return domain.Student{}, domain.ErrNotFound
}

func (s studentStore) Update(_ domain.Context, _ string, _ domain.StudentUpdate) error {
	return nil
}

type captureQueue struct {
	sent    []domain.EvaluationDirective
	sendErr error
}

func (q *captureQueue) Send(_ domain.Context, d domain.EvaluationDirective) (string, error) {
	if q.sendErr != nil {
		return "", q.sendErr
	}
	q.sent = append(q.sent, d)
	return "msg-1", nil
}

func (q *captureQueue) Receive(_ domain.Context) (*domain.QueueMessage, error) { return nil, nil }
func (q *captureQueue) Delete(_ domain.Context, _ domain.QueueMessage) error   { return nil }
func (q *captureQueue) ExtendVisibility(_ domain.Context, _ domain.QueueMessage, _ time.Duration) error {
	return nil
}

func TestSubmitPreScreening(t *testing.T) {
	jobs := newJobStore()
	drives := driveStore{"d1": {ID: "d1", Name: "Spring Drive", CollegeID: "c9", CollegeName: "State Tech"}}
	students := studentStore{{ID: "s1", DriveID: "d1"}, {ID: "s2", DriveID: "d1"}}
	queue := &captureQueue{}

	svc := NewSubmitService(jobs, drives, students, queue)
	sub, err := svc.Submit(context.Background(), "d1", domain.EvaluationPreScreening, false)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.JobID)
	assert.Equal(t, "msg-1", sub.MessageID)

	require.Len(t, jobs.created, 1)
	job := jobs.created[0]
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, domain.EvaluationPreScreening, job.Type)
	assert.Equal(t, int64(1), job.Version)

	require.Len(t, queue.sent, 1)
	d := queue.sent[0]
	assert.Equal(t, job.ID, d.JobID)
	assert.Equal(t, "Spring Drive", d.DriveName)
	assert.Equal(t, "State Tech", d.CollegeName)
	assert.Equal(t, 2, d.StudentCount)
	assert.False(t, d.ForceDataRefresh)
	assert.False(t, d.Timestamp.IsZero())
}

func TestSubmitFullEvaluationRequiresTestIDs(t *testing.T) {
	jobs := newJobStore()
	drives := driveStore{"d1": {ID: "d1"}}
	queue := &captureQueue{}

	svc := NewSubmitService(jobs, drives, studentStore{}, queue)
	_, err := svc.Submit(context.Background(), "d1", domain.EvaluationFull, true)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, jobs.created, "nothing is persisted for a rejected submission")
	assert.Empty(t, queue.sent)
}

func TestSubmitFullEvaluationCarriesForceFlag(t *testing.T) {
	jobs := newJobStore()
	drives := driveStore{"d1": {ID: "d1", WecpTestIDs: []string{"t1", "t2"}}}
	queue := &captureQueue{}

	svc := NewSubmitService(jobs, drives, studentStore{}, queue)
	sub, err := svc.Submit(context.Background(), "d1", domain.EvaluationFull, true)
	require.NoError(t, err)

	require.Len(t, queue.sent, 1)
	assert.True(t, queue.sent[0].ForceDataRefresh)
	assert.Equal(t, domain.EvaluationFull, queue.sent[0].EvaluationType)
	assert.Equal(t, sub.JobID, queue.sent[0].JobID)
}

func TestSubmitUnknownDrive(t *testing.T) {
	svc := NewSubmitService(newJobStore(), driveStore{}, studentStore{}, &captureQueue{})
	_, err := svc.Submit(context.Background(), "missing", domain.EvaluationPreScreening, false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitUnknownType(t *testing.T) {
	svc := NewSubmitService(newJobStore(), driveStore{}, studentStore{}, &captureQueue{})
	_, err := svc.Submit(context.Background(), "d1", "Mystery", false)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmitEnqueueFailureMarksJobFailed(t *testing.T) {
	jobs := newJobStore()
	drives := driveStore{"d1": {ID: "d1"}}
	queue := &captureQueue{sendErr: errors.New("queue unavailable")}

	svc := NewSubmitService(jobs, drives, studentStore{}, queue)
	_, err := svc.Submit(context.Background(), "d1", domain.EvaluationPreScreening, false)
	require.Error(t, err)

	require.Len(t, jobs.created, 1)
	stored := jobs.byID[jobs.created[0].ID]
	assert.Equal(t, domain.JobFailed, stored.Status)
	assert.Contains(t, stored.Error, "enqueue failed")
}

func TestJobQueryNormalizesPaging(t *testing.T) {
	jobs := newJobStore()
	require.NoError(t, jobs.Create(context.Background(), domain.EvaluationJob{ID: "j1"}))

	svc := NewJobQueryService(jobs)

	got, total, err := svc.List(context.Background(), domain.JobFilter{Page: 0, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, got, 1)

	_, err = svc.Get(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	j, err := svc.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", j.ID)
}
