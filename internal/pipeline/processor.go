// Package pipeline runs evaluation jobs: a queue consumer dispatches
// phases and a batch processor fans work out across students.
package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
	"github.com/hirehub/profile-evaluator/internal/service/githubscore"
)

// GitHubScorer evaluates one GitHub account.
type GitHubScorer interface {
	Score(ctx domain.Context, username string) (domain.GitHubDetails, error)
}

// ResumeScorer evaluates one resume document.
type ResumeScorer interface {
	Evaluate(ctx domain.Context, url, degree string) (domain.ResumeScore, error)
}

// QuotaChecker reports remaining GitHub API quota before a batch runs.
type QuotaChecker interface {
	RateLimit(ctx domain.Context) (domain.RateLimitStatus, error)
}

const (
	sourceGitHub = "github"
	sourceResume = "resume"
)

// Processor executes the per-source evaluation pipelines in fixed-size
// batches. Students run concurrently within a batch, batches run
// sequentially with a smoothing delay in between.
type Processor struct {
	students domain.StudentRepository
	jobs     domain.JobRepository
	github   GitHubScorer
	resume   ResumeScorer
	quota    QuotaChecker
	cfg      config.Config

	sleep func(time.Duration)
	now   func() time.Time
}

func NewProcessor(
	students domain.StudentRepository,
	jobs domain.JobRepository,
	github GitHubScorer,
	resume ResumeScorer,
	quota QuotaChecker,
	cfg config.Config,
) *Processor {
	return &Processor{
		students: students,
		jobs:     jobs,
		github:   github,
		resume:   resume,
		quota:    quota,
		cfg:      cfg,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// ProcessGitHub evaluates the GitHub source for every eligible student.
// avgPercentage is the top-20% test-score threshold in full evaluation
// mode; nil selects pre-screening consideration rules.
func (p *Processor) ProcessGitHub(ctx domain.Context, jobID string, students []domain.Student, avgPercentage *float64) error {
	eligible := partitionGitHub(students, p.cfg.MaxRetries)
	if len(eligible) == 0 {
		slog.Info("no students require github evaluation", slog.String("job_id", jobID))
		return nil
	}
	slog.Info("starting github evaluation",
		slog.String("job_id", jobID),
		slog.Int("eligible", len(eligible)),
		slog.Int("batch_size", p.cfg.BatchSize))

	batches := chunk(eligible, p.cfg.BatchSize)
	for i, batch := range batches {
		start := p.now()
		p.claimGitHub(ctx, batch)
		p.waitForQuota(ctx, len(batch))

		results := p.runBatch(ctx, batch, func(ctx domain.Context, st domain.Student) bool {
			return p.evaluateGitHubStudent(ctx, st, avgPercentage)
		}, p.resetGitHubClaim)

		for _, ok := range results {
			if err := p.recordOutcome(ctx, jobID, sourceGitHub, ok); err != nil {
				slog.Error("progress update failed",
					slog.String("job_id", jobID), slog.Any("error", err))
			}
			observability.ObserveStudentEvaluation(sourceGitHub, ok)
		}
		observability.BatchDuration.WithLabelValues(sourceGitHub).Observe(p.now().Sub(start).Seconds())

		if i < len(batches)-1 {
			p.sleep(p.cfg.BatchDelay)
		}
	}
	return nil
}

// ProcessResume evaluates the resume source. Students whose GitHub
// phase has not finished are left for a later pass.
func (p *Processor) ProcessResume(ctx domain.Context, jobID string, students []domain.Student) error {
	eligible := partitionResume(students, p.cfg.MaxRetries)
	if len(eligible) == 0 {
		slog.Info("no students require resume evaluation", slog.String("job_id", jobID))
		return nil
	}
	slog.Info("starting resume evaluation",
		slog.String("job_id", jobID),
		slog.Int("eligible", len(eligible)),
		slog.Int("batch_size", p.cfg.BatchSize))

	batches := chunk(eligible, p.cfg.BatchSize)
	for i, batch := range batches {
		start := p.now()
		p.claimResume(ctx, batch)

		results := p.runBatch(ctx, batch, p.evaluateResumeStudent, p.resetResumeClaim)

		for _, ok := range results {
			if err := p.recordOutcome(ctx, jobID, sourceResume, ok); err != nil {
				slog.Error("progress update failed",
					slog.String("job_id", jobID), slog.Any("error", err))
			}
			observability.ObserveStudentEvaluation(sourceResume, ok)
		}
		observability.BatchDuration.WithLabelValues(sourceResume).Observe(p.now().Sub(start).Seconds())

		if i < len(batches)-1 {
			p.sleep(p.cfg.BatchDelay)
		}
	}
	return nil
}

// runBatch evaluates every student in the batch concurrently. Each
// evaluation is fault-isolated: a panic resets that student's claim and
// counts as a failure without aborting siblings.
func (p *Processor) runBatch(
	ctx domain.Context,
	batch []domain.Student,
	evaluate func(domain.Context, domain.Student) bool,
	resetClaim func(domain.Context, domain.Student),
) []bool {
	results := make([]bool, len(batch))
	var wg sync.WaitGroup
	for idx, st := range batch {
		wg.Add(1)
		go func(idx int, st domain.Student) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("student evaluation panicked",
						slog.String("student_id", st.ID), slog.Any("panic", r))
					resetClaim(ctx, st)
				}
			}()
			results[idx] = evaluate(ctx, st)
		}(idx, st)
	}
	wg.Wait()
	return results
}

// partitionGitHub selects students needing GitHub evaluation: not yet
// evaluated, or failed with retry budget left, and not claimed.
func partitionGitHub(students []domain.Student, maxRetries int) []domain.Student {
	var out []domain.Student
	for _, st := range students {
		d := st.GitHubDetails
		if d != nil && d.IsProcessing {
			continue
		}
		needsEval := !st.GitHubEvaluated ||
			(d != nil && d.Error != "" && d.RetryCount < maxRetries)
		if needsEval {
			out = append(out, st)
		}
	}
	return out
}

// partitionResume selects students for the resume phase. The stage gate
// excludes anyone whose GitHub evaluation has not finished.
func partitionResume(students []domain.Student, maxRetries int) []domain.Student {
	var out []domain.Student
	for _, st := range students {
		if st.Stage() == domain.StageNotStarted {
			continue
		}
		r := st.ResumeScore
		if r != nil && r.IsProcessing {
			continue
		}
		needsEval := !st.ResumeEvaluated ||
			(r != nil && r.Error != "" && r.RetryCount < maxRetries)
		if needsEval {
			out = append(out, st)
		}
	}
	return out
}

func chunk(students []domain.Student, size int) [][]domain.Student {
	if size <= 0 {
		size = 1
	}
	var batches [][]domain.Student
	for i := 0; i < len(students); i += size {
		end := i + size
		if end > len(students) {
			end = len(students)
		}
		batches = append(batches, students[i:end])
	}
	return batches
}

// waitForQuota blocks until the GitHub quota can cover the batch. The
// wait is computed from the API-reported reset time, not a fixed guess.
func (p *Processor) waitForQuota(ctx domain.Context, batchSize int) {
	status, err := p.quota.RateLimit(ctx)
	if err != nil {
		slog.Warn("rate limit check failed", slog.Any("error", err))
		return
	}
	// Each student costs multiple API calls; require headroom.
	if status.Remaining >= batchSize*2 {
		return
	}
	wait := status.Reset.Sub(p.now())
	if wait <= 0 {
		return
	}
	slog.Warn("github quota too low, waiting for reset",
		slog.Int("remaining", status.Remaining),
		slog.Duration("wait", wait))
	p.sleep(wait)
}

func (p *Processor) claimGitHub(ctx domain.Context, batch []domain.Student) {
	for _, st := range batch {
		d := domain.GitHubDetails{}
		if st.GitHubDetails != nil {
			d = *st.GitHubDetails
		}
		d.IsProcessing = true
		if err := p.students.Update(ctx, st.ID, domain.StudentUpdate{GitHubDetails: &d}); err != nil {
			slog.Error("github claim failed", slog.String("student_id", st.ID), slog.Any("error", err))
		}
	}
}

func (p *Processor) resetGitHubClaim(ctx domain.Context, st domain.Student) {
	d := domain.GitHubDetails{}
	if st.GitHubDetails != nil {
		d = *st.GitHubDetails
	}
	d.IsProcessing = false
	d.RetryCount++
	if err := p.students.Update(ctx, st.ID, domain.StudentUpdate{GitHubDetails: &d}); err != nil {
		slog.Error("github claim reset failed", slog.String("student_id", st.ID), slog.Any("error", err))
	}
}

func (p *Processor) claimResume(ctx domain.Context, batch []domain.Student) {
	for _, st := range batch {
		r := domain.ResumeScore{}
		if st.ResumeScore != nil {
			r = *st.ResumeScore
		}
		r.IsProcessing = true
		if err := p.students.Update(ctx, st.ID, domain.StudentUpdate{ResumeScore: &r}); err != nil {
			slog.Error("resume claim failed", slog.String("student_id", st.ID), slog.Any("error", err))
		}
	}
}

func (p *Processor) resetResumeClaim(ctx domain.Context, st domain.Student) {
	r := domain.ResumeScore{}
	if st.ResumeScore != nil {
		r = *st.ResumeScore
	}
	r.IsProcessing = false
	r.RetryCount++
	if err := p.students.Update(ctx, st.ID, domain.StudentUpdate{ResumeScore: &r}); err != nil {
		slog.Error("resume claim reset failed", slog.String("student_id", st.ID), slog.Any("error", err))
	}
}

// evaluateGitHubStudent runs one student's GitHub evaluation and
// persists the outcome. The claim flag is cleared on every path. The
// return value feeds the succeeded/failed progress counters.
func (p *Processor) evaluateGitHubStudent(ctx domain.Context, st domain.Student, avgPercentage *float64) bool {
	prevRetries := 0
	if st.GitHubDetails != nil {
		prevRetries = st.GitHubDetails.RetryCount
	}

	if st.GitHubProfile == "" {
		p.saveGitHub(ctx, st.ID, true, domain.GitHubDetails{
			Domains:     map[string]string{},
			Error:       "No GitHub profile URL provided",
			LastAttempt: p.now(),
		})
		// Nothing to evaluate; recorded as a success, never retried.
		return true
	}

	username, ok := githubscore.ExtractUsername(st.GitHubProfile)
	if !ok {
		p.saveGitHub(ctx, st.ID, true, domain.GitHubDetails{
			Domains:     map[string]string{},
			Error:       fmt.Sprintf("Invalid GitHub URL: %s", st.GitHubProfile),
			LastAttempt: p.now(),
		})
		return true
	}

	details, err := p.github.Score(ctx, username)
	details.IsProcessing = false
	if err != nil {
		// Upstream failure: keep the student unevaluated so the retry
		// budget applies on the next pass.
		slog.Warn("github evaluation failed",
			slog.String("student_id", st.ID), slog.Any("error", err))
		details.Error = err.Error()
		details.RetryCount = prevRetries + 1
		details.LastAttempt = p.now()
		p.saveGitHub(ctx, st.ID, false, details)
		return false
	}

	if details.Error != "" {
		details.RetryCount = prevRetries + 1
		p.saveGitHub(ctx, st.ID, true, details)
		return false
	}

	details.RetryCount = prevRetries
	details.Consideration = p.consideration(st, details, avgPercentage)
	p.saveGitHub(ctx, st.ID, true, details)
	return true
}

// consideration shortlists a student. Full evaluation compares the test
// score against the top-20% threshold; pre-screening falls back to the
// GitHub score cutoff.
func (p *Processor) consideration(st domain.Student, d domain.GitHubDetails, avgPercentage *float64) bool {
	if avgPercentage != nil {
		return st.WecpTestScore != nil && *st.WecpTestScore > *avgPercentage
	}
	return d.TotalScore >= githubscore.PreScreeningCutoff
}

func (p *Processor) evaluateResumeStudent(ctx domain.Context, st domain.Student) bool {
	prevRetries := 0
	if st.ResumeScore != nil {
		prevRetries = st.ResumeScore.RetryCount
	}

	if st.ResumeURL == "" {
		p.saveResume(ctx, st.ID, domain.ResumeScore{
			Summary: "No resume available for evaluation",
			Error:   "No resume URL provided",
		})
		return true
	}

	score, err := p.resume.Evaluate(ctx, st.ResumeURL, st.Degree)
	if err != nil {
		slog.Warn("resume evaluation failed",
			slog.String("student_id", st.ID), slog.Any("error", err))
		p.saveResume(ctx, st.ID, domain.ResumeScore{
			Summary:    "Error evaluating resume",
			Error:      err.Error(),
			RetryCount: prevRetries + 1,
		})
		return false
	}

	score.RetryCount = prevRetries
	score.IsProcessing = false
	p.saveResume(ctx, st.ID, score)
	return true
}

func (p *Processor) saveGitHub(ctx domain.Context, id string, evaluated bool, d domain.GitHubDetails) {
	u := domain.StudentUpdate{GitHubDetails: &d}
	if evaluated {
		t := true
		u.GitHubEvaluated = &t
	}
	if err := p.students.Update(ctx, id, u); err != nil {
		slog.Error("github result persist failed", slog.String("student_id", id), slog.Any("error", err))
	}
}

func (p *Processor) saveResume(ctx domain.Context, id string, r domain.ResumeScore) {
	t := true
	u := domain.StudentUpdate{ResumeEvaluated: &t, ResumeScore: &r}
	if err := p.students.Update(ctx, id, u); err != nil {
		slog.Error("resume result persist failed", slog.String("student_id", id), slog.Any("error", err))
	}
}

// recordOutcome pushes one atomic progress update for a finished
// student and recomputes the overall percentage.
func (p *Processor) recordOutcome(ctx domain.Context, jobID, source string, succeeded bool) error {
	_, err := p.jobs.AtomicUpdate(ctx, jobID, func(j *domain.EvaluationJob) error {
		sp := &j.Progress.GitHub
		if source == sourceResume {
			sp = &j.Progress.Resume
		}
		sp.Completed++
		if succeeded {
			sp.Succeeded++
		} else {
			sp.Failed++
		}
		recomputeOverall(j)
		return nil
	})
	return err
}

// recomputeOverall derives the percentage from both sources against
// twice the job's student count (each student passes two phases).
func recomputeOverall(j *domain.EvaluationJob) {
	denom := 2 * j.Progress.GitHub.Total
	if denom == 0 {
		return
	}
	done := j.Progress.GitHub.Completed + j.Progress.Resume.Completed
	pct := int(math.Round(100 * float64(done) / float64(denom)))
	if pct > 100 {
		pct = 100
	}
	j.Progress.Overall.Percentage = pct
}
