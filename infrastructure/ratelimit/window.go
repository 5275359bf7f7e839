package ratelimit

import (
	"sync"
	"time"
)

// Window holds the fixed-window state for a single key.
type Window struct {
	Count     int
	ResetTime time.Time
}

// WindowLimiter is a fixed-window limiter over an arbitrary key space,
// e.g. "tenant:user:operation". Each key's bucket is its own critical
// section; there is no cross-key coordination.
type WindowLimiter struct {
	mu          sync.Mutex
	windows     map[string]*Window
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewWindowLimiter creates a fixed-window limiter.
func NewWindowLimiter(maxRequests int, window time.Duration) *WindowLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		windows:     make(map[string]*Window),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// SetClock overrides the limiter's clock. Intended for tests.
func (l *WindowLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow records one request against key and reports whether it is within
// the window budget. On a fresh or rolled-over window the count resets to 1.
// A request landing exactly on the reset instant starts a new window.
func (l *WindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.ResetTime) {
		l.windows[key] = &Window{Count: 1, ResetTime: now.Add(l.window)}
		return true
	}

	w.Count++
	return w.Count <= l.maxRequests
}

// Snapshot returns the current count and reset time for key, if present.
func (l *WindowLimiter) Snapshot(key string) (Window, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// Sweep drops windows whose reset time has passed.
func (l *WindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.ResetTime) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
