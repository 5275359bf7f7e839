package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failingBreaker(t *testing.T, cfg BreakerConfig, failures int) *Breaker {
	t.Helper()
	b := NewBreaker(cfg)
	for i := 0; i < failures; i++ {
		_ = b.Execute(context.Background(), func() error { return errBoom })
	}
	return b
}

func TestBreakerOpensOnFailureStreak(t *testing.T) {
	cfg := DefaultBreakerConfig("duckduckgo")
	cfg.ConsecutiveTrip = 3
	b := failingBreaker(t, cfg, 3)

	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerOpensOnErrorRate(t *testing.T) {
	cfg := DefaultBreakerConfig("brave")
	cfg.TripErrorRate = 0.3
	cfg.MinSamples = 4
	cfg.ConsecutiveTrip = 100
	b := NewBreaker(cfg)

	// Alternate success/failure so the streak never trips, then let the
	// EMA cross the threshold.
	for i := 0; i < 12 && b.State() == StateClosed; i++ {
		call := func() error {
			if i%2 == 0 {
				return errBoom
			}
			return nil
		}
		_ = b.Execute(context.Background(), call)
	}

	assert.Equal(t, StateOpen, b.State())
	assert.GreaterOrEqual(t, b.ErrorRate(), 0.3)
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("google"))

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Less(t, b.ErrorRate(), 0.05)
}

func TestBreakerProbeRecovery(t *testing.T) {
	cfg := DefaultBreakerConfig("bing")
	cfg.ConsecutiveTrip = 1
	cfg.Cooldown = 10 * time.Millisecond
	cfg.ProbeQuota = 2
	b := failingBreaker(t, cfg, 1)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	// Successful probes up to the quota close the breaker and reset the EMA.
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.ErrorRate())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cfg := DefaultBreakerConfig("bing")
	cfg.ConsecutiveTrip = 1
	cfg.Cooldown = 10 * time.Millisecond
	b := failingBreaker(t, cfg, 1)

	time.Sleep(20 * time.Millisecond)

	_ = b.Execute(context.Background(), func() error { return errBoom })
	assert.Equal(t, StateOpen, b.State())

	// Freshly reopened: fails fast again until the cooldown passes.
	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerProbeQuotaExhausted(t *testing.T) {
	cfg := DefaultBreakerConfig("slow")
	cfg.ConsecutiveTrip = 1
	cfg.Cooldown = 10 * time.Millisecond
	cfg.ProbeQuota = 2
	b := failingBreaker(t, cfg, 1)

	time.Sleep(20 * time.Millisecond)

	// Fill the probe quota with two in-flight calls, then the next caller
	// is turned away until a probe resolves.
	release := make(chan struct{})
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- b.Execute(context.Background(), func() error {
				<-release
				return nil
			})
		}()
	}
	time.Sleep(50 * time.Millisecond)

	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrProbesExhausted)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCancelledContextNotScored(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("duckduckgo"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.ErrorRate(), "cancellation must not count against the provider")
}

func TestBreakerName(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("duckduckgo"))
	assert.Equal(t, "duckduckgo", b.Name())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
