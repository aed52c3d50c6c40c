package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
	"github.com/hirehub/profile-evaluator/internal/service/aiscore"
)

// topFraction selects the share of test scores that define the
// consideration threshold.
const topFraction = 0.2

// errUnprocessable tags directives that can never succeed, no matter
// how often they are redelivered. The job is failed once and the
// message is consumed instead of cycling through visibility timeouts.
var errUnprocessable = errors.New("unprocessable directive")

// Consumer polls the queue and drives one evaluation job at a time.
// A tick that fires while a message is still processing is skipped, so
// message handling is single-flight per instance.
type Consumer struct {
	queue     domain.Queue
	jobs      domain.JobRepository
	drives    domain.DriveRepository
	students  domain.StudentRepository
	wecp      domain.WecpClient
	processor *Processor
	cfg       config.Config

	thresholds aiscore.Thresholds
	busy       atomic.Bool
	now        func() time.Time
}

func NewConsumer(
	queue domain.Queue,
	jobs domain.JobRepository,
	drives domain.DriveRepository,
	students domain.StudentRepository,
	wecp domain.WecpClient,
	processor *Processor,
	cfg config.Config,
) *Consumer {
	return &Consumer{
		queue:     queue,
		jobs:      jobs,
		drives:    drives,
		students:  students,
		wecp:      wecp,
		processor: processor,
		cfg:       cfg,
		thresholds: aiscore.Thresholds{
			FullStackHigh:   cfg.FullStackHighThreshold,
			FullStackMedium: cfg.FullStackMediumThreshold,
			AiMlHigh:        cfg.AiMlHighThreshold,
			AiMlMedium:      cfg.AiMlMediumThreshold,
		},
		now: time.Now,
	}
}

// Run polls until the context is cancelled.
func (c *Consumer) Run(ctx domain.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	slog.Info("queue consumer started", slog.Duration("poll_interval", c.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !c.busy.CompareAndSwap(false, true) {
				continue
			}
			c.PollOnce(ctx)
			c.busy.Store(false)
		}
	}
}

// PollOnce receives and handles at most one message. The message is
// deleted only after fully successful processing; any failure leaves it
// for redelivery after the visibility timeout.
func (c *Consumer) PollOnce(ctx domain.Context) {
	msg, err := c.queue.Receive(ctx)
	if err != nil {
		slog.Error("queue receive failed", slog.Any("error", err))
		return
	}
	if msg == nil {
		return
	}
	observability.QueueMessagesTotal.WithLabelValues("received").Inc()
	slog.Info("message received", slog.String("message_id", msg.ID))

	// A slow evaluation must not be redelivered mid-flight; failure to
	// extend is not fatal, the receive-time timeout still applies.
	if err := c.queue.ExtendVisibility(ctx, *msg, c.cfg.VisibilityExtension); err != nil {
		slog.Warn("visibility extension failed",
			slog.String("message_id", msg.ID), slog.Any("error", err))
	}

	// Malformed bodies can never parse on redelivery; consume them.
	var directive domain.EvaluationDirective
	if err := json.Unmarshal(msg.Body, &directive); err != nil {
		slog.Warn("malformed directive, dropping message",
			slog.String("message_id", msg.ID), slog.Any("error", err))
		c.drop(ctx, *msg)
		return
	}
	if directive.JobID == "" {
		slog.Warn("directive missing job id, dropping message", slog.String("message_id", msg.ID))
		c.drop(ctx, *msg)
		return
	}

	if err := c.process(ctx, directive); err != nil {
		slog.Error("message processing failed, keeping in queue for retry",
			slog.String("message_id", msg.ID),
			slog.String("job_id", directive.JobID),
			slog.Any("error", err))
		return
	}

	if err := c.queue.Delete(ctx, *msg); err != nil {
		slog.Error("message delete failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		return
	}
	observability.QueueMessagesTotal.WithLabelValues("deleted").Inc()
	slog.Info("message processing completed", slog.String("message_id", msg.ID))
}

// drop deletes a message that no amount of redelivery could fix.
func (c *Consumer) drop(ctx domain.Context, msg domain.QueueMessage) {
	if err := c.queue.Delete(ctx, msg); err != nil {
		slog.Error("message delete failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		return
	}
	observability.QueueMessagesTotal.WithLabelValues("dropped").Inc()
}

func (c *Consumer) process(ctx domain.Context, d domain.EvaluationDirective) error {
	if _, err := c.jobs.AtomicUpdate(ctx, d.JobID, func(j *domain.EvaluationJob) error {
		j.Status = domain.JobInProgress
		return nil
	}); err != nil {
		return fmt.Errorf("op=consumer.claim job=%s: %w", d.JobID, err)
	}
	observability.StartProcessingJob(string(d.EvaluationType))

	var err error
	switch d.EvaluationType {
	case domain.EvaluationPreScreening:
		err = c.runPreScreening(ctx, d)
	case domain.EvaluationFull:
		err = c.runEvaluation(ctx, d)
	default:
		err = fmt.Errorf("%w: unknown evaluation type %q", errUnprocessable, d.EvaluationType)
	}
	if err != nil {
		observability.FailJob(string(d.EvaluationType))
		c.markFailed(ctx, d.JobID, err)
		// The job is failed either way; an unprocessable directive is
		// additionally consumed so it stops being redelivered.
		if errors.Is(err, errUnprocessable) {
			slog.Warn("directive can never succeed, consuming message",
				slog.String("job_id", d.JobID), slog.Any("error", err))
			return nil
		}
		return err
	}
	observability.CompleteJob(string(d.EvaluationType))
	return nil
}

// runPreScreening evaluates GitHub and resumes without test-platform
// data.
func (c *Consumer) runPreScreening(ctx domain.Context, d domain.EvaluationDirective) error {
	if _, err := c.drives.Get(ctx, d.DriveID); err != nil {
		return fmt.Errorf("op=consumer.drive drive=%s: %w", d.DriveID, err)
	}
	students, err := c.students.ListByDrive(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.students drive=%s: %w", d.DriveID, err)
	}
	slog.Info("pre-screening started",
		slog.String("drive_id", d.DriveID), slog.Int("students", len(students)))

	if err := c.setTotalsAndPhase(ctx, d.JobID, students, domain.PhaseGitHub); err != nil {
		return err
	}
	if err := c.processor.ProcessGitHub(ctx, d.JobID, students, nil); err != nil {
		return err
	}

	if err := c.setPhase(ctx, d.JobID, domain.PhaseResume); err != nil {
		return err
	}
	// Reload so the resume partitioner sees the flags the GitHub phase
	// just wrote.
	students, err = c.students.ListByDrive(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.students drive=%s: %w", d.DriveID, err)
	}
	if err := c.processor.ProcessResume(ctx, d.JobID, students); err != nil {
		return err
	}

	return c.markCompleted(ctx, d.JobID)
}

// runEvaluation is the full pipeline: test-platform sync, GitHub,
// resume, then the composite AI score.
func (c *Consumer) runEvaluation(ctx domain.Context, d domain.EvaluationDirective) error {
	drive, err := c.drives.Get(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.drive drive=%s: %w", d.DriveID, err)
	}
	// Submission rejects this up front; directives enqueued before that
	// validation existed are consumed here instead of retried forever.
	if len(drive.WecpTestIDs) == 0 {
		return fmt.Errorf("%w: drive %s has no test ids configured", errUnprocessable, d.DriveID)
	}

	if err := c.setPhase(ctx, d.JobID, domain.PhaseWecp); err != nil {
		return err
	}
	students, err := c.students.ListByDrive(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.students drive=%s: %w", d.DriveID, err)
	}

	matched, err := c.syncWecpData(ctx, drive, students, d.ForceDataRefresh)
	if err != nil {
		return err
	}
	if matched == 0 {
		return fmt.Errorf("%w: no test candidates matched for drive %s", errUnprocessable, d.DriveID)
	}

	// Reload to pick up refreshed scores and GitHub URLs.
	students, err = c.students.ListByDrive(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.students drive=%s: %w", d.DriveID, err)
	}
	threshold := topAverage(testScores(students))
	slog.Info("consideration threshold computed",
		slog.String("drive_id", d.DriveID), slog.Float64("threshold", threshold))

	if err := c.setTotalsAndPhase(ctx, d.JobID, students, domain.PhaseGitHub); err != nil {
		return err
	}
	if err := c.processor.ProcessGitHub(ctx, d.JobID, students, &threshold); err != nil {
		return err
	}

	if err := c.setPhase(ctx, d.JobID, domain.PhaseResume); err != nil {
		return err
	}
	students, err = c.students.ListByDrive(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.students drive=%s: %w", d.DriveID, err)
	}
	if err := c.processor.ProcessResume(ctx, d.JobID, students); err != nil {
		return err
	}

	if err := c.setPhase(ctx, d.JobID, domain.PhaseAI); err != nil {
		return err
	}
	students, err = c.students.ListByDrive(ctx, d.DriveID)
	if err != nil {
		return fmt.Errorf("op=consumer.students drive=%s: %w", d.DriveID, err)
	}
	c.computeAIScores(ctx, students)

	return c.markCompleted(ctx, d.JobID)
}

// syncWecpData pulls candidates for every configured test and copies
// score and profile data onto matching students. Returns how many
// students matched a candidate.
func (c *Consumer) syncWecpData(ctx domain.Context, drive domain.Drive, students []domain.Student, force bool) (int, error) {
	matched := 0
	anyCandidates := false
	var listErr error
	for _, testID := range drive.WecpTestIDs {
		candidates, err := c.wecp.ListCandidates(ctx, testID)
		if err != nil {
			listErr = err
			slog.Error("candidate listing failed",
				slog.String("test_id", testID), slog.Any("error", err))
			continue
		}
		if len(candidates) == 0 {
			slog.Warn("no candidates for test", slog.String("test_id", testID))
			continue
		}
		anyCandidates = true
		slog.Info("candidates retrieved",
			slog.String("test_id", testID), slog.Int("count", len(candidates)))

		for i := range students {
			st := &students[i]
			cand, ok := matchCandidate(candidates, *st)
			if !ok {
				continue
			}
			matched++
			if !force && st.WecpData != nil {
				continue
			}
			c.applyCandidate(ctx, st, cand, testID, force)
		}
	}
	if !anyCandidates {
		// A listing failure is transient; an empty platform is not.
		if listErr != nil {
			return 0, fmt.Errorf("op=consumer.wecp drive=%s: %w", drive.ID, listErr)
		}
		return 0, fmt.Errorf("%w: no candidates found for any test in drive %s", errUnprocessable, drive.ID)
	}
	return matched, nil
}

// applyCandidate persists one candidate's data onto a student, pulling
// the detailed record when available and falling back to the listing
// data otherwise.
func (c *Consumer) applyCandidate(ctx domain.Context, st *domain.Student, cand domain.WecpCandidate, testID string, force bool) {
	detail, err := c.wecp.GetCandidateDetail(ctx, cand.CandidateID)
	if err != nil {
		slog.Error("candidate detail fetch failed",
			slog.String("candidate_id", cand.CandidateID), slog.Any("error", err))
		if !force && st.WecpData != nil {
			return
		}
		detail = cand
	}

	score := detail.Percentage
	data := &domain.WecpData{
		CandidateID: detail.CandidateID,
		TestID:      testID,
		Score:       detail.Score,
		MaxScore:    detail.MaxScore,
		Percentage:  detail.Percentage,
		Raw:         detail.Raw,
		FetchedAt:   c.now(),
	}
	update := domain.StudentUpdate{
		WecpTestScore: &score,
		WecpData:      data,
	}

	// A changed GitHub URL invalidates the previous evaluation.
	if detail.GitHubURL != "" && !strings.EqualFold(detail.GitHubURL, st.GitHubProfile) {
		f := false
		update.GitHubProfile = &detail.GitHubURL
		update.GitHubEvaluated = &f
		update.ClearGitHubDetails = true
	}

	if err := c.students.Update(ctx, st.ID, update); err != nil {
		slog.Error("student test-data update failed",
			slog.String("student_id", st.ID), slog.Any("error", err))
		return
	}
	st.WecpTestScore = &score
	st.WecpData = data
}

// matchCandidate pairs a candidate with a student by registration
// number first, then case-insensitive email.
func matchCandidate(candidates []domain.WecpCandidate, st domain.Student) (domain.WecpCandidate, bool) {
	for _, cand := range candidates {
		if cand.RegistrationNumber != "" && st.RegistrationNumber != "" &&
			cand.RegistrationNumber == st.RegistrationNumber {
			return cand, true
		}
		if cand.Email != "" && st.Email != "" &&
			strings.EqualFold(cand.Email, st.Email) {
			return cand, true
		}
	}
	return domain.WecpCandidate{}, false
}

func (c *Consumer) computeAIScores(ctx domain.Context, students []domain.Student) {
	for _, st := range students {
		if st.Stage() != domain.StageResumeDone {
			continue
		}
		score := aiscore.Calculate(st.GitHubDetails, st.ResumeScore, c.thresholds)
		if err := c.students.Update(ctx, st.ID, domain.StudentUpdate{AIScore: &score}); err != nil {
			slog.Error("ai score update failed",
				slog.String("student_id", st.ID), slog.Any("error", err))
			continue
		}
		slog.Debug("ai score updated",
			slog.String("student_id", st.ID), slog.Float64("total", score.Total))
	}
}

func testScores(students []domain.Student) []float64 {
	var scores []float64
	for _, st := range students {
		if st.WecpTestScore != nil {
			scores = append(scores, *st.WecpTestScore)
		}
	}
	return scores
}

// topAverage returns the mean of the top max(1, floor(n*topFraction))
// scores, the consideration threshold for full evaluations.
func topAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	topCount := int(math.Floor(float64(len(sorted)) * topFraction))
	if topCount < 1 {
		topCount = 1
	}
	var sum float64
	for _, s := range sorted[:topCount] {
		sum += s
	}
	return sum / float64(topCount)
}

func (c *Consumer) setTotalsAndPhase(ctx domain.Context, jobID string, students []domain.Student, phase domain.PhaseLabel) error {
	resumeEligible := 0
	for _, st := range students {
		if st.ResumeURL != "" {
			resumeEligible++
		}
	}
	_, err := c.jobs.AtomicUpdate(ctx, jobID, func(j *domain.EvaluationJob) error {
		j.Progress.GitHub.Total = len(students)
		j.Progress.Resume.Total = resumeEligible
		j.Progress.Overall.Phase = phase
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=consumer.totals job=%s: %w", jobID, err)
	}
	return nil
}

func (c *Consumer) setPhase(ctx domain.Context, jobID string, phase domain.PhaseLabel) error {
	_, err := c.jobs.AtomicUpdate(ctx, jobID, func(j *domain.EvaluationJob) error {
		j.Progress.Overall.Phase = phase
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=consumer.phase job=%s: %w", jobID, err)
	}
	return nil
}

func (c *Consumer) markCompleted(ctx domain.Context, jobID string) error {
	_, err := c.jobs.AtomicUpdate(ctx, jobID, func(j *domain.EvaluationJob) error {
		j.Status = domain.JobCompleted
		j.Progress.Overall.Phase = domain.PhaseCompleted
		j.Progress.Overall.Percentage = 100
		j.Error = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=consumer.complete job=%s: %w", jobID, err)
	}
	return nil
}

func (c *Consumer) markFailed(ctx domain.Context, jobID string, cause error) {
	if _, err := c.jobs.AtomicUpdate(ctx, jobID, func(j *domain.EvaluationJob) error {
		j.Status = domain.JobFailed
		j.Error = cause.Error()
		return nil
	}); err != nil {
		slog.Error("job failure persist failed",
			slog.String("job_id", jobID), slog.Any("error", err))
	}
}
