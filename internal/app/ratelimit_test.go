package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBudget(t *testing.T) {
	l := NewRateLimiter(time.Second, 3)

	for i := 0; i < 3; i++ {
		require.True(t, l.Check("p1").Allowed, "check %d within budget", i)
	}
	res := l.Check("p1")
	require.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.RetryAfter, 1)

	// Other players keep their own windows.
	assert.True(t, l.Check("p2").Allowed)
}

func TestRateLimiterWindowRollover(t *testing.T) {
	l := NewRateLimiter(30*time.Millisecond, 1)

	require.True(t, l.Check("p1").Allowed)
	require.False(t, l.Check("p1").Allowed)

	time.Sleep(40 * time.Millisecond)
	assert.True(t, l.Check("p1").Allowed, "fresh window after rollover")
}

func TestRateLimiterResetRestoresBudget(t *testing.T) {
	l := NewRateLimiter(time.Minute, 2)

	require.True(t, l.Check("p1").Allowed)
	require.True(t, l.Check("p1").Allowed)
	require.False(t, l.Check("p1").Allowed)

	l.Reset("p1")
	for i := 0; i < 2; i++ {
		require.True(t, l.Check("p1").Allowed, "post-reset check %d", i)
	}
	assert.False(t, l.Check("p1").Allowed)
}

func TestRateLimiterSweep(t *testing.T) {
	l := NewRateLimiter(10*time.Millisecond, 1)
	l.Check("p1")

	l.sweep(time.Now().Add(100 * time.Millisecond))

	l.mu.Lock()
	_, present := l.windows["p1"]
	l.mu.Unlock()
	assert.False(t, present, "stale window swept")
}
