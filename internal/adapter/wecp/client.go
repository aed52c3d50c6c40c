// Package wecp implements the test-platform client. The platform keys
// every request with x-api-key and reports zero candidates as a 404
// with a "No candidate found" body, which this adapter normalizes to an
// empty slice.
package wecp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// Client implements domain.WecpClient.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// New constructs a Client from configuration.
func New(cfg config.Config) *Client {
	timeout := cfg.WecpTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.WecpBaseURL, "/"),
		apiKey:  cfg.WecpAPIKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

// NewWithClient wires an explicit HTTP client, used by tests.
func NewWithClient(baseURL, apiKey string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, hc: hc}
}

type rawCandidate struct {
	CandidateID      string          `json:"candidateId"`
	CandidateDetails map[string]any  `json:"candidateDetails"`
	Percentage       float64         `json:"percentage"`
	Score            float64         `json:"score"`
	MaxScore         float64         `json:"maxScore"`
	TestFinished     bool            `json:"testFinished"`
	Extra            json.RawMessage `json:"-"`
}

// ListCandidates fetches every candidate of one test.
func (c *Client) ListCandidates(ctx domain.Context, testID string) ([]domain.WecpCandidate, error) {
	u := fmt.Sprintf("%s/%s/candidates", c.baseURL, url.PathEscape(testID))
	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("op=wecp.list_candidates test_id=%s: %w", testID, err)
	}
	if status == http.StatusNotFound {
		if strings.Contains(string(body), "No candidate found") {
			slog.Warn("no candidates found for test", slog.String("test_id", testID))
			return []domain.WecpCandidate{}, nil
		}
		return nil, fmt.Errorf("op=wecp.list_candidates test_id=%s: %w", testID, domain.ErrNotFound)
	}
	var raw []rawCandidate
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("op=wecp.list_candidates test_id=%s: %w", testID, err)
	}
	out := make([]domain.WecpCandidate, 0, len(raw))
	for i := range raw {
		cand := normalize(raw[i])
		cand.Raw = marshalRaw(raw[i], body, i)
		out = append(out, cand)
	}
	return out, nil
}

// GetCandidateDetail fetches one candidate with score detail.
func (c *Client) GetCandidateDetail(ctx domain.Context, candidateID string) (domain.WecpCandidate, error) {
	u := fmt.Sprintf("%s/candidates/%s", c.baseURL, url.PathEscape(candidateID))
	body, status, err := c.get(ctx, u)
	if err != nil {
		return domain.WecpCandidate{}, fmt.Errorf("op=wecp.candidate_detail id=%s: %w", candidateID, err)
	}
	if status == http.StatusNotFound {
		return domain.WecpCandidate{}, fmt.Errorf("op=wecp.candidate_detail id=%s: %w", candidateID, domain.ErrNotFound)
	}
	var raw rawCandidate
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.WecpCandidate{}, fmt.Errorf("op=wecp.candidate_detail id=%s: %w", candidateID, err)
	}
	cand := normalize(raw)
	cand.Raw = body
	return cand, nil
}

func (c *Client) get(ctx domain.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return body, resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, 0, domain.ErrUpstreamRateLimit
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func normalize(raw rawCandidate) domain.WecpCandidate {
	cand := domain.WecpCandidate{
		CandidateID: raw.CandidateID,
		Score:       raw.Score,
		MaxScore:    raw.MaxScore,
		Percentage:  raw.Percentage,
	}
	if cand.Percentage == 0 && raw.MaxScore > 0 {
		cand.Percentage = math.Round(raw.Score/raw.MaxScore*100*100) / 100
	}
	if raw.CandidateDetails != nil {
		cand.Email = detailString(raw.CandidateDetails, "Email", "email")
		cand.RegistrationNumber = detailString(raw.CandidateDetails, "registrationNumber", "Registration Number")
		cand.GitHubURL = detailString(raw.CandidateDetails, "Github URL", "GitHub URL", "githubUrl")
		cand.ResumeURL = detailString(raw.CandidateDetails, "Resume URL", "Resume", "resumeUrl")
	}
	return cand
}

func detailString(details map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := details[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func marshalRaw(c rawCandidate, listBody []byte, idx int) []byte {
	// Keep the original element when possible so downstream consumers
	// see exactly what the platform sent.
	var elems []json.RawMessage
	if err := json.Unmarshal(listBody, &elems); err == nil && idx < len(elems) {
		return elems[idx]
	}
	b, _ := json.Marshal(c)
	return b
}
