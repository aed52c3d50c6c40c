package ai

import (
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// Stub is a deterministic AIClient for dev environments without an LLM
// key. It returns a fixed resume-score payload.
type Stub struct{}

// ChatJSON returns a canned resume scoring response.
func (Stub) ChatJSON(_ domain.Context, _, _ string, _ int) (string, error) {
	return `{"totalScore":62,"technicalFoundation":22,"projectExperience":26,"learningAdaptability":14,"backgroundBonus":0,` +
		`"frontend":6,"backend":7,"database":5,"infrastructure":4,"coreCS":6,"genAi":3,` +
		`"summary":"Stubbed evaluation for local development."}`, nil
}
