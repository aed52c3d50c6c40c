// Package github implements the GitHub REST and GraphQL client used by
// the profile scorer, including rotation across multiple credentials.
package github

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// Pool rotates credentials round-robin and tracks per-token quota as
// reported by the API. It is an owned, injectable resource so tests can
// drive it with fake clocks and quotas.
type Pool struct {
	mu    sync.Mutex
	toks  []*tokenState
	next  int
	now   func() time.Time
	sleep func(ctx domain.Context, d time.Duration) error
}

type tokenState struct {
	value string
	label string
	// remaining < 0 means unknown (not yet observed); treated as usable.
	remaining int
	reset     time.Time
}

// PoolOption customizes a Pool, mainly for tests.
type PoolOption func(*Pool)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) PoolOption {
	return func(p *Pool) { p.now = now }
}

// WithSleep replaces the blocking wait used when every credential is
// exhausted.
func WithSleep(sleep func(ctx domain.Context, d time.Duration) error) PoolOption {
	return func(p *Pool) { p.sleep = sleep }
}

// NewPool builds a pool over the given token values. An empty slice is
// allowed; Acquire then returns the empty token (unauthenticated calls).
func NewPool(tokens []string, opts ...PoolOption) *Pool {
	p := &Pool{
		now: time.Now,
		sleep: func(ctx domain.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
	for i, v := range tokens {
		p.toks = append(p.toks, &tokenState{
			value:     v,
			label:     fmt.Sprintf("token-%d", i+1),
			remaining: -1,
		})
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (t *tokenState) usable(now time.Time) bool {
	if t.remaining != 0 {
		return true
	}
	return !now.Before(t.reset)
}

// Acquire returns the next usable token value. When every credential is
// exhausted it blocks until the earliest reported reset time elapses
// rather than failing the caller.
func (p *Pool) Acquire(ctx domain.Context) (string, error) {
	if len(p.toks) == 0 {
		return "", nil
	}
	for {
		p.mu.Lock()
		now := p.now()
		for i := 0; i < len(p.toks); i++ {
			t := p.toks[(p.next+i)%len(p.toks)]
			if t.usable(now) {
				if t.remaining == 0 {
					// Reset window has passed; quota is fresh again.
					t.remaining = -1
				}
				p.next = (p.next + i + 1) % len(p.toks)
				p.mu.Unlock()
				return t.value, nil
			}
		}
		earliest := p.toks[0].reset
		for _, t := range p.toks[1:] {
			if t.reset.Before(earliest) {
				earliest = t.reset
			}
		}
		wait := earliest.Sub(now)
		p.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		observability.GitHubRateLimitWaits.Inc()
		slog.Warn("all github credentials exhausted, waiting for reset",
			slog.Duration("wait", wait),
			slog.Time("reset", earliest))
		if err := p.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("op=tokenpool.acquire: %w", err)
		}
	}
}

// Observe records the quota headers reported for a token.
func (p *Pool) Observe(token string, remaining int, reset time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.toks {
		if t.value == token {
			t.remaining = remaining
			if !reset.IsZero() {
				t.reset = reset
			}
			observability.GitHubTokenRemaining.WithLabelValues(t.label).Set(float64(remaining))
			return
		}
	}
}

// MarkLimited flags a token as exhausted after a 403/429 so the next
// Acquire rotates past it.
func (p *Pool) MarkLimited(token string, reset time.Time) {
	if reset.IsZero() {
		reset = p.now().Add(time.Minute)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.toks {
		if t.value == token {
			t.remaining = 0
			t.reset = reset
			observability.GitHubTokenRemaining.WithLabelValues(t.label).Set(0)
			return
		}
	}
}

// Status snapshots the pool quota for the rate-limit endpoint.
func (p *Pool) Status() domain.RateLimitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var st domain.RateLimitStatus
	for _, t := range p.toks {
		remaining := t.remaining
		if remaining < 0 {
			remaining = 0
		}
		st.Remaining += remaining
		st.Tokens = append(st.Tokens, domain.TokenQuota{
			Label:     t.label,
			Remaining: remaining,
			Reset:     t.reset,
		})
		if st.Reset.IsZero() || (!t.reset.IsZero() && t.reset.Before(st.Reset)) {
			st.Reset = t.reset
		}
	}
	return st
}

func (p *Pool) values() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.toks))
	for _, t := range p.toks {
		out = append(out, t.value)
	}
	return out
}
