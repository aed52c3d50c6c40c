// Package githubscore evaluates a candidate's GitHub footprint into a
// domain and contribution score.
package githubscore

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// PreScreeningCutoff is the minimum GitHub score for a pre-screening
// candidate to be shortlisted without a test score.
const PreScreeningCutoff = 50

// contributionWindow is how far back the contribution calendar is read.
const contributionWindow = 2

// ignoredRepoNames marks throwaway repositories, matched by prefix or
// substring against the lowercased repository name.
var ignoredRepoNames = []string{
	"test", "sample", "example", "tutorial", "demo", "template", "boilerplate", "starter",
}

// nonCodeExtensions are file extensions that never indicate real code.
// A repository whose top level holds only these is skipped.
var nonCodeExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {}, ".bmp": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".md": {}, ".markdown": {}, ".txt": {}, ".json": {}, ".yml": {}, ".yaml": {},
	".env": {}, ".gitignore": {},
}

var usernameRe = regexp.MustCompile(`github\.com/([^/?#]+)`)

// ExtractUsername pulls the account name out of a GitHub profile URL.
func ExtractUsername(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	m := usernameRe.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Service computes GitHub scores through a rotating-credential client.
type Service struct {
	gh  domain.GitHubClient
	now func() time.Time
}

func New(gh domain.GitHubClient) *Service {
	return &Service{gh: gh, now: time.Now}
}

// NewWithClock fixes the clock, used by tests.
func NewWithClock(gh domain.GitHubClient, now func() time.Time) *Service {
	return &Service{gh: gh, now: now}
}

// Score evaluates a username end to end. Graceful degradations (no
// repositories, nothing left after filtering) come back as a zero-score
// detail with the Error field set and a nil error; a non-nil error
// means the upstream fetch itself failed and the caller may retry.
func (s *Service) Score(ctx domain.Context, username string) (domain.GitHubDetails, error) {
	details := domain.GitHubDetails{
		Domains:     map[string]string{},
		LastAttempt: s.now(),
	}

	repos, err := s.gh.ListRepositories(ctx, username)
	if err != nil {
		return details, fmt.Errorf("op=githubscore.repos username=%s: %w", username, err)
	}
	if len(repos) == 0 {
		details.Error = fmt.Sprintf("No repositories found for user: %s", username)
		return details, nil
	}

	kept := s.filterRepositories(ctx, repos)
	if len(kept) == 0 {
		details.Error = fmt.Sprintf("No valid repositories found for user: %s", username)
		return details, nil
	}

	technologies, commits := s.collectTechnologies(ctx, username, kept)

	to := s.now()
	from := to.AddDate(-contributionWindow, 0, 0)
	contributions, err := s.gh.ContributionCount(ctx, username, from, to)
	if err != nil {
		slog.Warn("github contributions fetch failed",
			slog.String("username", username), slog.Any("error", err))
		contributions = 0
	}

	domains := MapTechnologiesToDomains(technologies)
	details.Domains = domains
	details.DomainOrder = RankDomains(domains)
	details.Technologies = strings.Join(technologies, ", ")
	details.CommitCount = commits
	details.DomainScore = DomainScore(domains) + ExtraDomainScore(domains)
	details.ContributionScore = ContributionScore(contributions)
	details.TotalScore = details.DomainScore + details.ContributionScore
	return details, nil
}

// filterRepositories drops forks, throwaway-named repositories and
// repositories whose top level contains no code files.
func (s *Service) filterRepositories(ctx domain.Context, repos []domain.Repository) []domain.Repository {
	var kept []domain.Repository
	for _, repo := range repos {
		if repo.Fork || matchesIgnoredName(repo.Name) {
			continue
		}
		ok, err := s.hasCodeFiles(ctx, repo.Owner, repo.Name)
		if err != nil {
			slog.Warn("repo contents check failed",
				slog.String("repo", repo.FullName), slog.Any("error", err))
			continue
		}
		if ok {
			kept = append(kept, repo)
		}
	}
	return kept
}

func matchesIgnoredName(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range ignoredRepoNames {
		if strings.HasPrefix(lower, pattern) || strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func (s *Service) hasCodeFiles(ctx domain.Context, owner, repo string) (bool, error) {
	contents, err := s.gh.ListContents(ctx, owner, repo)
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	for _, entry := range contents {
		// Directories may hold code further down.
		if entry.Type != "file" {
			return true, nil
		}
		ext := strings.ToLower(path.Ext(entry.Name))
		if _, nonCode := nonCodeExtensions[ext]; !nonCode {
			return true, nil
		}
	}
	return false, nil
}

// collectTechnologies aggregates the uppercased language set across the
// kept repositories, along with the candidate's total commits in them.
// A repository whose language fetch fails is skipped rather than
// failing the whole evaluation; a failed commit count only loses that
// repository's commits.
func (s *Service) collectTechnologies(ctx domain.Context, username string, repos []domain.Repository) ([]string, int) {
	seen := map[string]struct{}{}
	var technologies []string
	var commits int
	for _, repo := range repos {
		languages, err := s.gh.ListLanguages(ctx, username, repo.Name)
		if err != nil {
			slog.Warn("repo languages fetch failed",
				slog.String("repo", repo.FullName), slog.Any("error", err))
			continue
		}
		if len(languages) == 0 {
			continue
		}
		if n, err := s.gh.CountCommits(ctx, username, repo.Name); err != nil {
			slog.Warn("repo commit count failed",
				slog.String("repo", repo.FullName), slog.Any("error", err))
		} else {
			commits += n
		}
		names := make([]string, 0, len(languages))
		for language := range languages {
			names = append(names, strings.ToUpper(language))
		}
		sort.Strings(names)
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			technologies = append(technologies, name)
		}
	}
	return technologies, commits
}

// DomainScore awards the base points per covered domain. Full stack is
// worth more than frontend and backend combined would be.
func DomainScore(domains map[string]string) float64 {
	var score float64
	if _, ok := domains[DomainFullStack]; ok {
		score += 16
	} else {
		if _, ok := domains[DomainFrontend]; ok {
			score += 8
		}
		if _, ok := domains[DomainBackend]; ok {
			score += 8
		}
	}
	if _, ok := domains[DomainData]; ok {
		score += 8
	}
	if _, ok := domains[DomainMobile]; ok {
		score += 8
	}
	if _, ok := domains[DomainDevOps]; ok {
		score += 8
	}
	return score
}

// ExtraDomainScore awards depth within each domain plus a breadth bonus
// when full-stack coverage coexists with dedicated frontend or backend
// work. Capped at 40.
func ExtraDomainScore(domains map[string]string) float64 {
	var score float64
	for dom, techs := range domains {
		count := len(strings.Split(techs, ","))
		if dom == DomainOthers {
			score += float64(count)
		} else {
			score += float64(count-1) * 3
		}
	}
	if _, ok := domains[DomainFullStack]; ok {
		if _, ok := domains[DomainFrontend]; ok {
			score += 3
		}
		if _, ok := domains[DomainBackend]; ok {
			score += 3
		}
	}
	if score > 40 {
		return 40
	}
	return score
}

// ContributionScore maps a two-year contribution count onto a step
// table.
func ContributionScore(total int) float64 {
	switch {
	case total > 200:
		return 20
	case total > 150:
		return 17
	case total > 100:
		return 15
	case total > 75:
		return 10
	case total > 50:
		return 5
	case total >= 25:
		return 3
	default:
		return 0
	}
}
