// Package domain holds the core entities and ports of the profile
// evaluation pipeline. Adapters depend on this package, never the
// other way around.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Context is an alias so the domain does not import std context everywhere;
// adapters and usecases pass context.Context through unchanged.
type Context = context.Context

// JobStatus enumerates the lifecycle of an evaluation job.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// EvaluationType selects which pipeline a job runs.
type EvaluationType string

const (
	// EvaluationPreScreening evaluates GitHub and resume only.
	EvaluationPreScreening EvaluationType = "PreScreening"
	// EvaluationFull additionally pulls test-platform data and computes
	// the composite AI score.
	EvaluationFull EvaluationType = "Evaluation"
)

// PhaseLabel is the human-readable phase shown in job progress.
type PhaseLabel string

const (
	PhaseWecp      PhaseLabel = "WECP"
	PhaseGitHub    PhaseLabel = "GITHUB"
	PhaseResume    PhaseLabel = "RESUME"
	PhaseAI        PhaseLabel = "AI"
	PhaseCompleted PhaseLabel = "COMPLETED"
)

// SourceProgress tracks per-source completion counters.
// Invariant: Completed == Succeeded + Failed after every atomic update.
type SourceProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// OverallProgress summarizes the job across sources.
type OverallProgress struct {
	Percentage int        `json:"percentage"`
	Phase      PhaseLabel `json:"phase"`
}

// JobProgress is the full progress block persisted on the job record.
type JobProgress struct {
	GitHub  SourceProgress  `json:"github"`
	Resume  SourceProgress  `json:"resume"`
	Overall OverallProgress `json:"overall"`
}

// EvaluationJob is the unit of work tracked end to end. Version is the
// optimistic-lock token; every successful mutation increments it.
type EvaluationJob struct {
	ID        string
	Version   int64
	DriveID   string
	Type      EvaluationType
	Status    JobStatus
	Progress  JobProgress
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EvaluationDirective is the queue payload produced at submission time.
type EvaluationDirective struct {
	JobID            string         `json:"jobId"`
	DriveID          string         `json:"driveId"`
	DriveName        string         `json:"driveName,omitempty"`
	CollegeID        string         `json:"collegeId,omitempty"`
	CollegeName      string         `json:"collegeName,omitempty"`
	StudentCount     int            `json:"studentCount"`
	EvaluationType   EvaluationType `json:"evaluationType"`
	ForceDataRefresh bool           `json:"forceDataRefresh,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// QueueMessage is a received queue envelope. ReceiptHandle is required
// for deletion and visibility extension.
type QueueMessage struct {
	ID            string
	ReceiptHandle string
	Body          []byte
}

// EvaluationStage is the explicit per-student sequencing state derived
// from the evaluated flags. Resume evaluation requires StageGitHubDone.
type EvaluationStage string

const (
	StageNotStarted EvaluationStage = "NOT_STARTED"
	StageGitHubDone EvaluationStage = "GITHUB_DONE"
	StageResumeDone EvaluationStage = "RESUME_DONE"
)

// GitHubDetails is the persisted outcome of one GitHub evaluation.
type GitHubDetails struct {
	TotalScore        float64           `json:"totalScore"`
	DomainScore       float64           `json:"domainScore"`
	ContributionScore float64           `json:"contributionScore"`
	Domains           map[string]string `json:"domains,omitempty"`
	DomainOrder       []string          `json:"domainOrder,omitempty"`
	Technologies      string            `json:"technologies,omitempty"`
	CommitCount       int               `json:"commitCount,omitempty"`
	Consideration     bool              `json:"consideration"`
	Error             string            `json:"error,omitempty"`
	LastAttempt       time.Time         `json:"lastAttempt"`
	RetryCount        int               `json:"retryCount"`
	IsProcessing      bool              `json:"isProcessing"`
}

// ResumeScore is the persisted outcome of one resume evaluation.
// Sub-scores are on a 0-10 raw scale; TotalScore is 0-100.
type ResumeScore struct {
	TotalScore           float64 `json:"totalScore"`
	TechnicalFoundation  float64 `json:"technicalFoundation"`
	ProjectExperience    float64 `json:"projectExperience"`
	LearningAdaptability float64 `json:"learningAdaptability"`
	BackgroundBonus      float64 `json:"backgroundBonus"`
	Frontend             float64 `json:"frontend"`
	Backend              float64 `json:"backend"`
	Database             float64 `json:"database"`
	Infrastructure       float64 `json:"infrastructure"`
	CoreCS               float64 `json:"coreCS"`
	GenAI                float64 `json:"genAi"`
	Summary              string  `json:"summary,omitempty"`
	Error                string  `json:"error,omitempty"`
	RetryCount           int     `json:"retryCount"`
	IsProcessing         bool    `json:"isProcessing"`
}

// WecpData is the normalized test-platform payload kept on the student.
type WecpData struct {
	CandidateID string          `json:"candidateId"`
	TestID      string          `json:"testId"`
	Score       float64         `json:"score"`
	MaxScore    float64         `json:"maxScore"`
	Percentage  float64         `json:"percentage"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	FetchedAt   time.Time       `json:"fetchedAt"`
}

// ExpertiseLevel labels a derived expertise bucket.
type ExpertiseLevel string

const (
	ExpertiseHigh   ExpertiseLevel = "HIGH"
	ExpertiseMedium ExpertiseLevel = "MEDIUM"
	ExpertiseLow    ExpertiseLevel = "LOW"
)

// AIScore is the composite score combining GitHub and resume signals.
type AIScore struct {
	Total     float64          `json:"total"`
	GitHub    AIScoreGitHub    `json:"github"`
	Resume    AIScoreResume    `json:"resume"`
	Expertise AIScoreExpertise `json:"expertise"`
}

// AIScoreGitHub holds the normalized GitHub components (0-1 each).
type AIScoreGitHub struct {
	FullStack    float64 `json:"fullStack"`
	AiMl         float64 `json:"aiMl"`
	Contribution float64 `json:"contribution"`
}

// AIScoreResume holds the normalized resume component (0-1).
type AIScoreResume struct {
	Composite float64 `json:"composite"`
}

// AIScoreExpertise holds the derived expertise labels.
type AIScoreExpertise struct {
	FullStack ExpertiseLevel `json:"fullStack"`
	AiMl      ExpertiseLevel `json:"aiMl"`
}

// Student carries the evaluation state the pipeline owns. Identity and
// enrollment fields come from the drive-management collaborator.
type Student struct {
	ID                 string
	DriveID            string
	Name               string
	Email              string
	RegistrationNumber string
	Degree             string
	GitHubProfile      string
	GitHubEvaluated    bool
	GitHubDetails      *GitHubDetails
	ResumeURL          string
	ResumeEvaluated    bool
	ResumeScore        *ResumeScore
	WecpTestScore      *float64
	WecpData           *WecpData
	AIScore            *AIScore
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Stage derives the two-phase sequencing state. A student whose GitHub
// evaluation has not finished is never eligible for resume evaluation.
func (s Student) Stage() EvaluationStage {
	switch {
	case !s.GitHubEvaluated:
		return StageNotStarted
	case !s.ResumeEvaluated:
		return StageGitHubDone
	default:
		return StageResumeDone
	}
}

// Drive is the slice of the drive-management collaborator the pipeline
// consumes.
type Drive struct {
	ID          string
	Name        string
	CollegeID   string
	CollegeName string
	WecpTestIDs []string
	Rounds      []string
}
