package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowLimiterDeniesOverBudget(t *testing.T) {
	limiter := NewWindowLimiter(2, time.Second)

	base := time.Unix(1700000000, 0)
	now := base
	limiter.SetClock(func() time.Time { return now })

	assert.True(t, limiter.Allow("k"))
	now = base.Add(10 * time.Millisecond)
	assert.True(t, limiter.Allow("k"))
	now = base.Add(20 * time.Millisecond)
	assert.False(t, limiter.Allow("k"))
}

func TestWindowLimiterRollsOver(t *testing.T) {
	limiter := NewWindowLimiter(2, time.Second)

	base := time.Unix(1700000000, 0)
	now := base
	limiter.SetClock(func() time.Time { return now })

	limiter.Allow("k")
	limiter.Allow("k")
	assert.False(t, limiter.Allow("k"))

	now = base.Add(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("k"))

	window, ok := limiter.Snapshot("k")
	require.True(t, ok)
	assert.Equal(t, 1, window.Count)
}

func TestWindowLimiterExactResetInstantStartsNewWindow(t *testing.T) {
	limiter := NewWindowLimiter(1, time.Second)

	base := time.Unix(1700000000, 0)
	now := base
	limiter.SetClock(func() time.Time { return now })

	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))

	now = base.Add(time.Second)
	assert.True(t, limiter.Allow("k"), "request exactly at the reset instant is accepted")
}

func TestWindowLimiterKeysIndependent(t *testing.T) {
	limiter := NewWindowLimiter(1, time.Second)

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
}

func TestWindowLimiterSweep(t *testing.T) {
	limiter := NewWindowLimiter(5, time.Second)

	base := time.Unix(1700000000, 0)
	now := base
	limiter.SetClock(func() time.Time { return now })

	limiter.Allow("a")
	limiter.Allow("b")
	assert.Equal(t, 2, limiter.Len())

	now = base.Add(2 * time.Second)
	removed := limiter.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, limiter.Len())
}
