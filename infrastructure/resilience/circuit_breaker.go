// Package resilience provides fault tolerance for outbound provider and
// crawler calls: a named circuit breaker driven by an error-rate EMA, and
// retry with backoff that honors server-supplied Retry-After hints.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
)

// errorRateAlpha is the EMA smoothing factor, matching the rolling health
// model the verification strategies report through their shared contract.
const errorRateAlpha = 0.1

// State represents breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Common errors
var (
	ErrBreakerOpen     = errors.New("provider circuit is open")
	ErrProbesExhausted = errors.New("provider probe quota exhausted")
)

// BreakerConfig tunes one named breaker. Name is the provider or domain
// class the breaker guards and labels its metrics.
type BreakerConfig struct {
	Name string
	// TripErrorRate opens the breaker once the EMA error rate reaches it,
	// provided MinSamples calls have been observed.
	TripErrorRate float64
	MinSamples    int
	// ConsecutiveTrip opens the breaker outright on a failure streak,
	// regardless of the EMA.
	ConsecutiveTrip int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// ProbeQuota is how many half-open probes may run, and how many must
	// succeed to close again.
	ProbeQuota int

	Logger  *logging.Logger
	Metrics *metrics.Metrics
	// Service labels metrics, e.g. "cross-reference" or "web-navigator".
	Service string
}

// DefaultBreakerConfig returns sensible defaults for a named provider.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:            name,
		TripErrorRate:   0.5,
		MinSamples:      5,
		ConsecutiveTrip: 5,
		Cooldown:        30 * time.Second,
		ProbeQuota:      3,
	}
}

// Breaker guards one outbound dependency. It trips on a sustained EMA
// error rate or a hard failure streak, cools down, then probes its way
// back to closed.
type Breaker struct {
	mu     sync.Mutex
	config BreakerConfig

	state           State
	errorRate       float64
	samples         int
	consecutive     int
	probesIssued    int
	probesSucceeded int
	openedAt        time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripErrorRate <= 0 || cfg.TripErrorRate > 1 {
		cfg.TripErrorRate = 0.5
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 5
	}
	if cfg.ConsecutiveTrip < 1 {
		cfg.ConsecutiveTrip = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeQuota < 1 {
		cfg.ProbeQuota = 3
	}
	if cfg.Service == "" {
		cfg.Service = "resilience"
	}
	return &Breaker{config: cfg, state: StateClosed}
}

// Name returns the dependency this breaker guards.
func (b *Breaker) Name() string { return b.config.Name }

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ErrorRate returns the current EMA error rate.
func (b *Breaker) ErrorRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errorRate
}

// Execute runs fn under the breaker. An open breaker fails fast with
// ErrBreakerOpen; a half-open breaker admits only the probe quota.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		// Cancellation says nothing about the provider; don't score it.
		return err
	}

	err := fn()
	b.observe(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return ErrBreakerOpen
		}
		b.setState(StateHalfOpen)
		b.probesIssued = 1
		return nil
	case StateHalfOpen:
		if b.probesIssued >= b.config.ProbeQuota {
			return ErrProbesExhausted
		}
		b.probesIssued++
	}
	return nil
}

// observe folds one call outcome into the EMA and drives transitions.
func (b *Breaker) observe(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sample := 0.0
	if !success {
		sample = 1.0
		b.consecutive++
	} else {
		b.consecutive = 0
	}
	b.errorRate = errorRateAlpha*sample + (1-errorRateAlpha)*b.errorRate
	b.samples++

	switch b.state {
	case StateClosed:
		tripped := b.consecutive >= b.config.ConsecutiveTrip ||
			(b.samples >= b.config.MinSamples && b.errorRate >= b.config.TripErrorRate)
		if tripped {
			b.openedAt = time.Now()
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		if !success {
			b.openedAt = time.Now()
			b.setState(StateOpen)
			return
		}
		b.probesSucceeded++
		if b.probesSucceeded >= b.config.ProbeQuota {
			b.errorRate = 0
			b.setState(StateClosed)
		}
	}
}

// setState transitions and emits. Caller holds the lock.
func (b *Breaker) setState(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if next != StateHalfOpen {
		b.probesIssued = 0
		b.probesSucceeded = 0
	}

	if b.config.Metrics != nil {
		b.config.Metrics.RecordBreakerTransition(
			b.config.Service, b.config.Name, prev.String(), next.String(), next == StateOpen)
	}
	if b.config.Logger != nil {
		b.config.Logger.WithFields(map[string]interface{}{
			"breaker":    b.config.Name,
			"from":       prev.String(),
			"to":         next.String(),
			"error_rate": b.errorRate,
		}).Warn("circuit breaker state change")
	}
}
