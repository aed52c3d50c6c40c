package httpserver

import (
	"regexp"
	"strconv"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of an input validation pass.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var validJobID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateJobID checks a job id path parameter.
func ValidateJobID(jobID string) ValidationResult {
	if jobID == "" {
		return invalid("id", "REQUIRED", "Job ID is required")
	}
	if len(jobID) > 100 {
		return invalid("id", "TOO_LONG", "Job ID is too long (max 100 characters)")
	}
	if !validJobID.MatchString(jobID) {
		return invalid("id", "INVALID_FORMAT", "Job ID contains invalid characters")
	}
	return ValidationResult{Valid: true}
}

// ValidatePagination checks page and limit query parameters.
func ValidatePagination(page, limit string) ValidationResult {
	var errs []ValidationError
	if page != "" {
		if n, err := strconv.Atoi(page); err != nil || n < 1 {
			errs = append(errs, ValidationError{
				Field: "page", Code: "INVALID_FORMAT", Message: "Page must be a positive integer",
			})
		}
	}
	if limit != "" {
		if n, err := strconv.Atoi(limit); err != nil || n < 1 || n > 100 {
			errs = append(errs, ValidationError{
				Field: "limit", Code: "INVALID_FORMAT", Message: "Limit must be between 1 and 100",
			})
		}
	}
	if len(errs) > 0 {
		return ValidationResult{Valid: false, Errors: errs}
	}
	return ValidationResult{Valid: true}
}

// ValidateStatus checks a job status filter value.
func ValidateStatus(status string) ValidationResult {
	switch domain.JobStatus(status) {
	case "", domain.JobPending, domain.JobInProgress, domain.JobCompleted, domain.JobFailed:
		return ValidationResult{Valid: true}
	}
	return invalid("status", "INVALID_VALUE",
		"Status must be one of: PENDING, IN_PROGRESS, COMPLETED, FAILED")
}

func invalid(field, code, msg string) ValidationResult {
	return ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Field: field, Code: code, Message: msg}},
	}
}
