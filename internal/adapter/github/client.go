package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// Client implements domain.GitHubClient over REST and GraphQL, rotating
// credentials from the pool on 403/429 responses.
type Client struct {
	cfg  config.Config
	hc   *http.Client
	pool *Pool
}

// New constructs a Client with a pool built from the configured tokens.
func New(cfg config.Config) *Client {
	timeout := cfg.GitHubTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		hc:   &http.Client{Timeout: timeout},
		pool: NewPool(cfg.GitHubTokens),
	}
}

// NewWithPool wires an explicit pool and HTTP client, used by tests.
func NewWithPool(cfg config.Config, pool *Pool, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, hc: hc, pool: pool}
}

// Pool exposes the credential pool for the rate-limit endpoint.
func (c *Client) Pool() *Pool { return c.pool }

func (c *Client) backoffConfig(ctx domain.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInterval, multiplier := c.cfg.GetBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return backoff.WithContext(expo, ctx)
}

type apiResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// do performs one API call with credential rotation and backoff.
// Statuses listed in tolerate are returned to the caller instead of
// being treated as errors.
func (c *Client) do(ctx domain.Context, op, method, rawURL string, payload []byte, tolerate ...int) (*apiResponse, error) {
	var result *apiResponse
	operation := func() error {
		tok, err := c.pool.Acquire(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		var body *bytes.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		} else {
			body = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.GitHubRequestsTotal.WithLabelValues(op, "error").Inc()
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		observability.GitHubRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
		c.observeQuota(tok, resp.Header)

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return err
		}

		for _, s := range tolerate {
			if resp.StatusCode == s {
				result = &apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: buf.Bytes()}
				return nil
			}
		}
		switch {
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			c.pool.MarkLimited(tok, resetFromHeader(resp.Header))
			slog.Warn("github rate limited, rotating credential",
				slog.String("op", op), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("op=github.%s: %w", op, domain.ErrUpstreamRateLimit)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("op=github.%s: %w", op, domain.ErrNotFound))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("op=github.%s: status %d", op, resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("op=github.%s: status %d", op, resp.StatusCode)
		}
		result = &apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: buf.Bytes()}
		return nil
	}
	if err := backoff.Retry(operation, c.backoffConfig(ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) observeQuota(token string, h http.Header) {
	if token == "" {
		return
	}
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	c.pool.Observe(token, remaining, resetFromHeader(h))
}

func resetFromHeader(h http.Header) time.Time {
	secs, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || secs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// ListRepositories returns up to 100 most recently updated repositories.
func (c *Client) ListRepositories(ctx domain.Context, username string) ([]domain.Repository, error) {
	u := fmt.Sprintf("%s/users/%s/repos?per_page=100&sort=updated", c.cfg.GitHubBaseURL, url.PathEscape(username))
	resp, err := c.do(ctx, "list_repos", http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		Fork     bool   `json:"fork"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("op=github.list_repos: %w", err)
	}
	repos := make([]domain.Repository, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, domain.Repository{
			Name:     r.Name,
			FullName: r.FullName,
			Owner:    r.Owner.Login,
			Fork:     r.Fork,
		})
	}
	return repos, nil
}

// ListLanguages returns the language byte histogram of a repository.
func (c *Client) ListLanguages(ctx domain.Context, owner, repo string) (map[string]int64, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/languages", c.cfg.GitHubBaseURL, url.PathEscape(owner), url.PathEscape(repo))
	resp, err := c.do(ctx, "list_languages", http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	langs := map[string]int64{}
	if err := json.Unmarshal(resp.Body, &langs); err != nil {
		return nil, fmt.Errorf("op=github.list_languages: %w", err)
	}
	return langs, nil
}

var lastPageRe = regexp.MustCompile(`[?&]page=(\d+)>; rel="last"`)

// CountCommits counts commits on the default branch using the Link
// header with per_page=1. Empty repositories report zero.
func (c *Client) CountCommits(ctx domain.Context, owner, repo string) (int, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1", c.cfg.GitHubBaseURL, url.PathEscape(owner), url.PathEscape(repo))
	// 409 is how the API reports an empty repository.
	resp, err := c.do(ctx, "count_commits", http.MethodGet, u, nil, http.StatusConflict)
	if err != nil {
		return 0, err
	}
	if resp.Status == http.StatusConflict {
		return 0, nil
	}
	if m := lastPageRe.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, nil
		}
	}
	var commits []json.RawMessage
	if err := json.Unmarshal(resp.Body, &commits); err != nil {
		return 0, fmt.Errorf("op=github.count_commits: %w", err)
	}
	return len(commits), nil
}

// ListContents returns the top-level entries of a repository tree.
func (c *Client) ListContents(ctx domain.Context, owner, repo string) ([]domain.RepoContent, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents", c.cfg.GitHubBaseURL, url.PathEscape(owner), url.PathEscape(repo))
	resp, err := c.do(ctx, "list_contents", http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("op=github.list_contents: %w", err)
	}
	contents := make([]domain.RepoContent, 0, len(raw))
	for _, e := range raw {
		contents = append(contents, domain.RepoContent{Name: e.Name, Type: e.Type})
	}
	return contents, nil
}

const contributionQuery = `query($login: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $login) {
    contributionsCollection(from: $from, to: $to) {
      contributionCalendar { totalContributions }
    }
  }
}`

// ContributionCount sums the contribution calendar over [from, to].
// The GraphQL API caps one collection at a year, so longer spans are
// queried in yearly windows.
func (c *Client) ContributionCount(ctx domain.Context, username string, from, to time.Time) (int, error) {
	total := 0
	for start := from; start.Before(to); {
		end := start.AddDate(1, 0, 0)
		if end.After(to) {
			end = to
		}
		n, err := c.contributionWindow(ctx, username, start, end)
		if err != nil {
			return 0, err
		}
		total += n
		start = end
	}
	return total, nil
}

func (c *Client) contributionWindow(ctx domain.Context, username string, from, to time.Time) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"query": contributionQuery,
		"variables": map[string]any{
			"login": username,
			"from":  from.UTC().Format(time.RFC3339),
			"to":    to.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("op=github.contributions: %w", err)
	}
	resp, err := c.do(ctx, "contributions", http.MethodPost, c.cfg.GitHubGraphQLURL, payload)
	if err != nil {
		return 0, err
	}
	var out struct {
		Data struct {
			User struct {
				ContributionsCollection struct {
					ContributionCalendar struct {
						TotalContributions int `json:"totalContributions"`
					} `json:"contributionCalendar"`
				} `json:"contributionsCollection"`
			} `json:"user"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return 0, fmt.Errorf("op=github.contributions: %w", err)
	}
	if len(out.Errors) > 0 {
		return 0, fmt.Errorf("op=github.contributions: %s", out.Errors[0].Message)
	}
	return out.Data.User.ContributionsCollection.ContributionCalendar.TotalContributions, nil
}

// RateLimit queries /rate_limit with every credential and refreshes the
// pool's view of each quota.
func (c *Client) RateLimit(ctx domain.Context) (domain.RateLimitStatus, error) {
	tokens := c.pool.values()
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, tok := range tokens {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.GitHubBaseURL+"/rate_limit", nil)
		if err != nil {
			return domain.RateLimitStatus{}, fmt.Errorf("op=github.rate_limit: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		resp, err := c.hc.Do(req)
		if err != nil {
			return domain.RateLimitStatus{}, fmt.Errorf("op=github.rate_limit: %w", err)
		}
		var out struct {
			Resources struct {
				Core struct {
					Remaining int   `json:"remaining"`
					Reset     int64 `json:"reset"`
				} `json:"core"`
			} `json:"resources"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if err != nil {
			return domain.RateLimitStatus{}, fmt.Errorf("op=github.rate_limit: %w", err)
		}
		if tok != "" {
			c.pool.Observe(tok, out.Resources.Core.Remaining, time.Unix(out.Resources.Core.Reset, 0))
		}
	}
	return c.pool.Status(), nil
}
