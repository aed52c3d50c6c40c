package domain

import "time"

// JobFilter narrows and pages a job listing.
type JobFilter struct {
	Page    int
	Limit   int
	Status  JobStatus
	DriveID string
}

// JobRepository persists evaluation jobs. AtomicUpdate is the only write
// path for progress: it rereads the job, applies the mutation, and
// commits conditioned on the captured version, retrying a bounded number
// of times before surfacing ErrConflict.
type JobRepository interface {
	Create(ctx Context, j EvaluationJob) error
	Get(ctx Context, id string) (EvaluationJob, error)
	List(ctx Context, f JobFilter) ([]EvaluationJob, int, error)
	AtomicUpdate(ctx Context, id string, apply func(*EvaluationJob) error) (EvaluationJob, error)
}

// StudentUpdate is a partial write; nil fields are left untouched.
// ClearGitHubDetails removes the stored detail blob, used when a changed
// profile URL forces re-evaluation.
type StudentUpdate struct {
	GitHubProfile      *string
	GitHubEvaluated    *bool
	GitHubDetails      *GitHubDetails
	ClearGitHubDetails bool
	ResumeEvaluated    *bool
	ResumeScore        *ResumeScore
	WecpTestScore      *float64
	WecpData           *WecpData
	AIScore            *AIScore
}

// StudentRepository persists per-student evaluation state.
type StudentRepository interface {
	ListByDrive(ctx Context, driveID string) ([]Student, error)
	Get(ctx Context, id string) (Student, error)
	Update(ctx Context, id string, u StudentUpdate) error
}

// DriveRepository reads the drive slice the pipeline needs.
type DriveRepository interface {
	Get(ctx Context, id string) (Drive, error)
}

// Queue is the at-least-once message transport.
type Queue interface {
	Send(ctx Context, d EvaluationDirective) (string, error)
	// Receive returns at most one message, or nil when the queue is empty.
	Receive(ctx Context) (*QueueMessage, error)
	Delete(ctx Context, m QueueMessage) error
	ExtendVisibility(ctx Context, m QueueMessage, d time.Duration) error
}

// Repository is a GitHub repository as returned by the repos listing.
type Repository struct {
	Name     string
	FullName string
	Owner    string
	Fork     bool
}

// RepoContent is a top-level entry of a repository tree.
type RepoContent struct {
	Name string
	Type string
}

// TokenQuota is the rate-limit state of one credential in the pool.
type TokenQuota struct {
	Label     string
	Remaining int
	Reset     time.Time
}

// RateLimitStatus aggregates quota across the credential pool.
type RateLimitStatus struct {
	Remaining int
	Reset     time.Time
	Tokens    []TokenQuota
}

// GitHubClient is the REST+GraphQL surface the GitHub scorer consumes.
// Implementations rotate credentials internally on 403/429.
type GitHubClient interface {
	ListRepositories(ctx Context, username string) ([]Repository, error)
	ListLanguages(ctx Context, owner, repo string) (map[string]int64, error)
	CountCommits(ctx Context, owner, repo string) (int, error)
	ListContents(ctx Context, owner, repo string) ([]RepoContent, error)
	// ContributionCount returns the total contributions in [from, to]
	// from the GraphQL contribution calendar.
	ContributionCount(ctx Context, username string, from, to time.Time) (int, error)
	RateLimit(ctx Context) (RateLimitStatus, error)
}

// WecpCandidate is a normalized test-platform candidate.
type WecpCandidate struct {
	CandidateID        string
	Email              string
	RegistrationNumber string
	GitHubURL          string
	ResumeURL          string
	Score              float64
	MaxScore           float64
	Percentage         float64
	Raw                []byte
}

// WecpClient is the test-platform API surface. ListCandidates returns an
// empty slice, not an error, when the platform reports zero candidates.
type WecpClient interface {
	ListCandidates(ctx Context, testID string) ([]WecpCandidate, error)
	GetCandidateDetail(ctx Context, candidateID string) (WecpCandidate, error)
}

// AIClient is a single-turn LLM completion used for resume scoring.
type AIClient interface {
	// ChatJSON sends one prompt pair and returns the raw model text,
	// which is expected to contain exactly one JSON object.
	ChatJSON(ctx Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// TextExtractor turns a document reachable at a URL into plain text.
type TextExtractor interface {
	ExtractURL(ctx Context, url string) (string, error)
}
