// Package resumescore extracts resume text and scores it against a
// fixed full-stack hiring rubric through an LLM.
package resumescore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// Service implements the resume evaluation flow: fetch and extract the
// document, prompt the model, parse a strict JSON score out of the
// reply.
type Service struct {
	extractor domain.TextExtractor
	ai        domain.AIClient
	validate  *validator.Validate
}

func New(extractor domain.TextExtractor, ai domain.AIClient) *Service {
	return &Service{
		extractor: extractor,
		ai:        ai,
		validate:  validator.New(),
	}
}

// Evaluate scores the resume behind url. Any failure (download,
// extraction, model call, parse) is returned as an error the caller may
// retry; there is no graceful zero-score path here.
func (s *Service) Evaluate(ctx domain.Context, url, degree string) (domain.ResumeScore, error) {
	text, err := s.extractor.ExtractURL(ctx, url)
	if err != nil {
		return domain.ResumeScore{}, fmt.Errorf("op=resumescore.extract: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ResumeScore{}, fmt.Errorf("op=resumescore.extract: %w: empty document", domain.ErrInvalidArgument)
	}

	reply, err := s.ai.ChatJSON(ctx, systemPrompt, buildUserPrompt(text, degree), 0)
	if err != nil {
		return domain.ResumeScore{}, fmt.Errorf("op=resumescore.chat: %w", err)
	}
	return s.parse(reply)
}

// jsonObjectRe grabs the outermost JSON object from a free-form reply.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// scorePayload is the model reply contract. totalScore is required and
// a zero total is rejected the same as a missing one.
type scorePayload struct {
	TotalScore           float64 `json:"totalScore" validate:"required,gt=0,lte=100"`
	TechnicalFoundation  float64 `json:"technicalFoundation" validate:"gte=0,lte=35"`
	ProjectExperience    float64 `json:"projectExperience" validate:"gte=0,lte=40"`
	LearningAdaptability float64 `json:"learningAdaptability" validate:"gte=0,lte=25"`
	BackgroundBonus      float64 `json:"backgroundBonus" validate:"gte=0,lte=5"`
	Frontend             float64 `json:"frontend" validate:"gte=0,lte=10"`
	Backend              float64 `json:"backend" validate:"gte=0,lte=10"`
	Database             float64 `json:"database" validate:"gte=0,lte=10"`
	Infrastructure       float64 `json:"infrastructure" validate:"gte=0,lte=10"`
	CoreCS               float64 `json:"coreCS" validate:"gte=0,lte=10"`
	GenAI                float64 `json:"genAi" validate:"gte=0,lte=10"`
	Summary              string  `json:"summary"`
}

func (s *Service) parse(reply string) (domain.ResumeScore, error) {
	match := jsonObjectRe.FindString(reply)
	if match == "" {
		return domain.ResumeScore{}, fmt.Errorf("op=resumescore.parse: %w: no JSON object in reply", domain.ErrSchemaInvalid)
	}
	var payload scorePayload
	if err := json.Unmarshal([]byte(match), &payload); err != nil {
		return domain.ResumeScore{}, fmt.Errorf("op=resumescore.parse: %w: %v", domain.ErrSchemaInvalid, err)
	}
	if err := s.validate.Struct(payload); err != nil {
		return domain.ResumeScore{}, fmt.Errorf("op=resumescore.parse: %w: %v", domain.ErrSchemaInvalid, err)
	}
	return domain.ResumeScore{
		TotalScore:           payload.TotalScore,
		TechnicalFoundation:  payload.TechnicalFoundation,
		ProjectExperience:    payload.ProjectExperience,
		LearningAdaptability: payload.LearningAdaptability,
		BackgroundBonus:      payload.BackgroundBonus,
		Frontend:             payload.Frontend,
		Backend:              payload.Backend,
		Database:             payload.Database,
		Infrastructure:       payload.Infrastructure,
		CoreCS:               payload.CoreCS,
		GenAI:                payload.GenAI,
		Summary:              payload.Summary,
	}, nil
}
