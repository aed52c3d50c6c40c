// Package ai implements the LLM client on an OpenAI-compatible chat
// completions API.
package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// Client implements domain.AIClient.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client with a timeout suited to long completions.
func New(cfg config.Config) *Client {
	timeout := cfg.LLMTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

// NewWithHTTPClient wires an explicit HTTP client, used by tests.
func NewWithHTTPClient(cfg config.Config, hc *http.Client) *Client {
	return &Client{cfg: cfg, hc: hc}
}

// ChatJSON calls the chat completions endpoint and returns the message
// content. Rate limits and 5xx responses are retried with exponential
// backoff; other 4xx responses are permanent.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.LLMAPIKey == "" {
		return "", fmt.Errorf("%w: LLM_API_KEY missing", domain.ErrInvalidArgument)
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.LLMMaxTokens
	}
	body := map[string]any{
		"model":       c.cfg.LLMModel,
		"temperature": 0.2,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("op=ai.chat: %w", err)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt to avoid reusing consumed bodies.
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/chat/completions", bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.LLMRequestDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
		if err != nil {
			observability.LLMRequestsTotal.WithLabelValues("chat", "error").Inc()
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		observability.LLMRequestsTotal.WithLabelValues("chat", http.StatusText(resp.StatusCode)).Inc()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("llm rate limited", slog.String("model", c.cfg.LLMModel))
			return fmt.Errorf("op=ai.chat: %w", domain.ErrUpstreamRateLimit)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			snippet := string(bodyBytes)
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			slog.Warn("llm 4xx", slog.Int("status", resp.StatusCode), slog.String("body", snippet))
			return backoff.Permanent(fmt.Errorf("op=ai.chat: status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("op=ai.chat: status %d", resp.StatusCode)
		}
		return json.Unmarshal(bodyBytes, &out)
	}

	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInterval, multiplier := c.cfg.GetBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return "", fmt.Errorf("op=ai.chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("op=ai.chat: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}
