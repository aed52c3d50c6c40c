package github

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

func TestAcquireRoundRobin(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})
	ctx := context.Background()

	var got []string
	for i := 0; i < 6; i++ {
		tok, err := p.Acquire(ctx)
		require.NoError(t, err)
		got = append(got, tok)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestAcquireSkipsLimitedToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewPool([]string{"a", "b"}, WithClock(func() time.Time { return now }))
	p.MarkLimited("a", now.Add(10*time.Minute))

	tok, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", tok)
}

func TestAcquireBlocksUntilEarliestReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration
	p := NewPool([]string{"a", "b"},
		WithClock(func() time.Time { return now }),
		WithSleep(func(_ domain.Context, d time.Duration) error {
			slept = append(slept, d)
			// Simulate the wall clock advancing past the reset.
			now = now.Add(d + time.Second)
			return nil
		}))
	p.MarkLimited("a", now.Add(5*time.Minute))
	p.MarkLimited("b", now.Add(2*time.Minute))

	tok, err := p.Acquire(context.Background())
	require.NoError(t, err)
	// b resets first, so the pool waits for b and hands it out.
	assert.Equal(t, "b", tok)
	require.Len(t, slept, 1)
	assert.Equal(t, 2*time.Minute, slept[0])
}

func TestAcquireEmptyPool(t *testing.T) {
	p := NewPool(nil)
	tok, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestStatusAggregates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewPool([]string{"a", "b"}, WithClock(func() time.Time { return now }))
	p.Observe("a", 120, now.Add(30*time.Minute))
	p.Observe("b", 7, now.Add(5*time.Minute))

	st := p.Status()
	assert.Equal(t, 127, st.Remaining)
	require.Len(t, st.Tokens, 2)
	assert.Equal(t, "token-1", st.Tokens[0].Label)
	assert.Equal(t, now.Add(5*time.Minute), st.Reset)
}
