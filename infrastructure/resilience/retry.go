package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
)

// RetryableError wraps a failure that carries an explicit wait hint, such
// as a 429 response's Retry-After header. Retry waits the hint instead of
// its own backoff for that attempt.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err with a server-supplied wait hint.
func Retryable(err error, after time.Duration) *RetryableError {
	return &RetryableError{Err: err, After: after}
}

// RetryAfterHint extracts the wait hint from an error chain, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) && re.After > 0 {
		return re.After, true
	}
	return 0, false
}

// ParseRetryAfter reads a Retry-After header value, either delta-seconds
// or an HTTP date. Zero means no usable hint.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// RetryConfig configures retry behavior for one outbound dependency.
// Name labels the dependency in metrics; empty disables recording.
type RetryConfig struct {
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // 0-1, adds randomness

	Metrics *metrics.Metrics
	Service string
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Retry executes fn with exponential backoff. A failure carrying a
// Retry-After hint waits the hinted duration (capped at MaxDelay) instead
// of the backoff for that round. The waits are cancellable through ctx.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.Service == "" {
		cfg.Service = "resilience"
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 && cfg.Metrics != nil && cfg.Name != "" {
			cfg.Metrics.RecordRetryAttempt(cfg.Service, cfg.Name)
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		// An open breaker will not recover within a retry loop's horizon.
		if errors.Is(lastErr, ErrBreakerOpen) || errors.Is(lastErr, ErrProbesExhausted) {
			return lastErr
		}

		if attempt < cfg.MaxAttempts-1 {
			wait := addJitter(delay, cfg.Jitter)
			if hint, ok := RetryAfterHint(lastErr); ok {
				wait = hint
				if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
					wait = cfg.MaxDelay
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = nextDelay(delay, cfg)
		}
	}
	return lastErr
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*delta*2-delta)
}
