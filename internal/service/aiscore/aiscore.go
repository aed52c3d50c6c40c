// Package aiscore combines GitHub and resume evaluations into one
// composite 0-100 score with derived expertise labels. Everything here
// is a pure function of its inputs.
package aiscore

import (
	"math"
	"strings"

	"github.com/hirehub/profile-evaluator/internal/domain"
	"github.com/hirehub/profile-evaluator/internal/service/githubscore"
)

// Thresholds are the expertise-label cutoffs, applied to total/100.
type Thresholds struct {
	FullStackHigh   float64
	FullStackMedium float64
	AiMlHigh        float64
	AiMlMedium      float64
}

// DefaultThresholds mirror the shipped configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FullStackHigh:   0.75,
		FullStackMedium: 0.5,
		AiMlHigh:        0.7,
		AiMlMedium:      0.4,
	}
}

// aimlTechWeights scores AI/ML affinity from the technology list. Max
// achievable is around 35, which is the normalization divisor.
var aimlTechWeights = map[string]float64{
	"tensorflow":   3,
	"pytorch":      3,
	"scikit-learn": 3,
	"keras":        3,
	"huggingface":  3,
	"langchain":    3,
	"openai":       3,
	"transformers": 3,

	"numpy":   2,
	"pandas":  2,
	"jupyter": 2,
	"opencv":  2,
	"nltk":    2,
	"spacy":   2,

	"python":     1,
	"cuda":       1,
	"matplotlib": 1,
	"seaborn":    1,
}

// Calculate builds the composite score. A GitHub detail carrying an
// error contributes nothing and the total collapses to the 10% resume
// weight.
func Calculate(github *domain.GitHubDetails, resume *domain.ResumeScore, th Thresholds) domain.AIScore {
	var gh domain.AIScoreGitHub
	hasGitHub := github != nil && github.Error == ""
	if hasGitHub {
		gh = domain.AIScoreGitHub{
			FullStack:    fullStackComponent(github.Domains),
			AiMl:         aimlComponent(github.Technologies),
			Contribution: clamp01(github.ContributionScore / 100),
		}
	}

	composite := resumeComposite(resume)

	var total float64
	if hasGitHub {
		total = gh.FullStack*50 + gh.AiMl*20 + gh.Contribution*20
	}
	total += composite * 10
	total = math.Min(100, math.Max(0, total))

	return domain.AIScore{
		Total:  total,
		GitHub: gh,
		Resume: domain.AIScoreResume{Composite: composite},
		Expertise: domain.AIScoreExpertise{
			FullStack: level(total/100, th.FullStackHigh, th.FullStackMedium),
			AiMl:      level(total/100, th.AiMlHigh, th.AiMlMedium),
		},
	}
}

// fullStackComponent scores domain coverage on a 0-1 scale. Full-stack
// work dominates; otherwise individual layers add up, with a breadth
// bonus for covering more than two domains.
func fullStackComponent(domains map[string]string) float64 {
	var score float64
	if _, ok := domains[githubscore.DomainFullStack]; ok {
		score = 50
	} else {
		if _, ok := domains[githubscore.DomainFrontend]; ok {
			score += 15
		}
		if _, ok := domains[githubscore.DomainBackend]; ok {
			score += 20
		}
		if _, ok := domains[githubscore.DomainData]; ok {
			score += 7
		}
		if _, ok := domains[githubscore.DomainDevOps]; ok {
			score += 8
		}
	}
	if n := len(domains); n > 2 {
		score += math.Min(float64(n-2)*5, 10)
	}
	return clamp01(score / 100)
}

func aimlComponent(technologies string) float64 {
	var score float64
	for _, tech := range strings.Split(technologies, ",") {
		tech = strings.ToLower(strings.TrimSpace(tech))
		if tech == "" {
			continue
		}
		score += aimlTechWeights[tech]
	}
	return clamp01(score / 35)
}

// resumeComposite weighs the stack layers 70% and the AI/ML layers 30%,
// each sub-score normalized from its 0-10 raw scale.
func resumeComposite(resume *domain.ResumeScore) float64 {
	if resume == nil {
		return 0
	}
	fullStack := norm(resume.Frontend)*0.2 +
		norm(resume.Backend)*0.3 +
		norm(resume.Database)*0.2 +
		norm(resume.Infrastructure)*0.3
	aiml := norm(resume.CoreCS)*0.7 + norm(resume.GenAI)*0.3
	return fullStack*0.7 + aiml*0.3
}

func norm(s float64) float64 {
	return clamp01(s / 10)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func level(normalizedTotal, high, medium float64) domain.ExpertiseLevel {
	switch {
	case normalizedTotal >= high:
		return domain.ExpertiseHigh
	case normalizedTotal >= medium:
		return domain.ExpertiseMedium
	default:
		return domain.ExpertiseLow
	}
}
