// Package strategies provides the verification strategy implementations
// behind the engine's uniform Strategy contract.
package strategies

import (
	"sync"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

const (
	// responseWindow is the rolling sample count for response times.
	responseWindow = 100
	// errorRateAlpha is the smoothing factor of the error-rate EMA.
	errorRateAlpha = 0.1
	// staleAfter marks a strategy stale when no check ran within it.
	staleAfter = 5 * time.Minute
	// maxConsecutiveFailures flips availability off once reached.
	maxConsecutiveFailures = 5
)

// healthTracker maintains the rolling health statistics every strategy
// reports through the shared contract.
type healthTracker struct {
	mu                  sync.Mutex
	responseTimes       []time.Duration
	next                int
	filled              bool
	errorRate           float64
	consecutiveFailures int
	lastCheck           time.Time
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		responseTimes: make([]time.Duration, responseWindow),
	}
}

// record folds one call's duration and outcome into the rolling state.
func (h *healthTracker) record(duration time.Duration, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.responseTimes[h.next] = duration
	h.next = (h.next + 1) % responseWindow
	if h.next == 0 {
		h.filled = true
	}

	sample := 0.0
	if !success {
		sample = 1.0
		h.consecutiveFailures++
	} else {
		h.consecutiveFailures = 0
	}
	h.errorRate = errorRateAlpha*sample + (1-errorRateAlpha)*h.errorRate
	h.lastCheck = time.Now()
}

// available reports liveness: not failing consecutively and not stale.
// A tracker with no samples yet counts as available.
func (h *healthTracker) available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lastCheck.IsZero() {
		return true
	}
	if h.consecutiveFailures >= maxConsecutiveFailures {
		return false
	}
	return time.Since(h.lastCheck) < staleAfter
}

// snapshot returns the health view exposed via the strategy contract.
func (h *healthTracker) snapshot() verification.StrategyHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := h.next
	if h.filled {
		count = responseWindow
	}

	var sum time.Duration
	for i := 0; i < count; i++ {
		sum += h.responseTimes[i]
	}
	avgMs := 0.0
	if count > 0 {
		avgMs = float64(sum.Milliseconds()) / float64(count)
	}

	available := true
	if !h.lastCheck.IsZero() {
		available = h.consecutiveFailures < maxConsecutiveFailures && time.Since(h.lastCheck) < staleAfter
	}

	return verification.StrategyHealth{
		Available:      available,
		ResponseTimeMs: avgMs,
		ErrorRate:      h.errorRate,
	}
}
