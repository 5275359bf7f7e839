package verification

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/cache"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
)

const serviceName = "verification-engine"

// EngineConfig configures the verification engine.
type EngineConfig struct {
	MaxConcurrent  int
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	CacheTTL       time.Duration
	SweepInterval  time.Duration
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrent:  10,
		DefaultTimeout: 30 * time.Second,
		MaxTimeout:     2 * time.Minute,
		CacheTTL:       time.Hour,
		SweepInterval:  5 * time.Minute,
	}
}

// Engine orchestrates parallel verification strategies behind the uniform
// Strategy contract. It owns the result cache and the in-flight gate.
type Engine struct {
	config  EngineConfig
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu         sync.RWMutex
	strategies map[StrategyKind]Strategy

	gateMu   sync.Mutex
	inFlight int

	cache *cache.Cache
}

// NewEngine creates a verification engine. Strategies register afterwards
// via Register. metrics may be nil.
func NewEngine(cfg EngineConfig, logger *logging.Logger, m *metrics.Metrics) *Engine {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 10
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 2 * time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	return &Engine{
		config:     cfg,
		logger:     logger,
		metrics:    m,
		strategies: make(map[StrategyKind]Strategy),
		cache: cache.NewCache(cache.CacheConfig{
			DefaultTTL:      cfg.CacheTTL,
			MaxSize:         10000,
			CleanupInterval: cfg.SweepInterval,
		}),
	}
}

// Register adds a strategy implementation. The last registration for a
// kind wins.
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.Kind()] = s
}

// RegisteredKinds returns the kinds currently registered, in priority order.
func (e *Engine) RegisteredKinds() []StrategyKind {
	e.mu.RLock()
	defer e.mu.RUnlock()

	kinds := make([]StrategyKind, 0, len(e.strategies))
	for _, k := range StrategyPriority {
		if _, ok := e.strategies[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// InFlight returns the number of verifications currently executing.
func (e *Engine) InFlight() int {
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	return e.inFlight
}

// CacheSize returns the number of cached results.
func (e *Engine) CacheSize() int {
	return e.cache.Size()
}

// ClearCache drops all cached results.
func (e *Engine) ClearCache() {
	e.cache.InvalidateAll()
}

// Destroy stops the cache sweep and drops all cached state.
func (e *Engine) Destroy() {
	e.cache.Stop()
}

// Verify adjudicates a single request. Request-level failures (invalid
// request, saturated gate) return both an error-carrying Result and the
// typed error; strategy-level failures are absorbed into the aggregate and
// never surface as errors.
func (e *Engine) Verify(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	// Cache lookup before validation so repeat requests stay cheap.
	key := req.Fingerprint()
	if entry, ok := e.cache.GetEntry(key); ok {
		if cached, ok := entry.Value.(*Result); ok {
			if e.metrics != nil {
				e.metrics.VerificationCacheHits.Inc()
			}
			result := *cached
			result.ProcessingTimeMs = clampProcessingTime(time.Since(start))
			return &result, nil
		}
	}
	if e.metrics != nil {
		e.metrics.VerificationCacheMisses.Inc()
	}

	if err := validateRequest(req); err != nil {
		return errorResult(req, start, err), err
	}

	if !e.acquire() {
		err := errors.RateLimitExceeded(e.config.MaxConcurrent, "concurrent verifications")
		if e.metrics != nil {
			e.metrics.RateLimitExceeded.WithLabelValues(serviceName, "verify").Inc()
		}
		return errorResult(req, start, err), err
	}
	defer e.release()

	selected := e.selectStrategies(req)
	outcomes := e.executeParallel(ctx, req, selected)

	verdict, confidence, reasoning, supporting, contradicting := aggregate(outcomes)

	result := &Result{
		RequestID:             req.ID,
		Verdict:               verdict,
		Confidence:            confidence,
		Reasoning:             reasoning,
		SupportingEvidence:    supporting,
		ContradictoryEvidence: contradicting,
		StrategyOutcomes:      outcomes,
		ProcessingTimeMs:      clampProcessingTime(time.Since(start)),
	}

	ttl := e.config.CacheTTL
	if req.Priority == PriorityCritical {
		ttl *= 2
	}
	cached := *result
	e.cache.Set(key, &cached, ttl)

	if e.logger != nil {
		e.logger.LogVerification(ctx, req.ID, string(verdict), confidence, time.Since(start))
	}
	if e.metrics != nil {
		priority := req.Priority
		if priority == "" {
			priority = PriorityMedium
		}
		e.metrics.RecordVerification(serviceName, string(verdict), string(priority), time.Since(start))
	}

	return result, nil
}

// VerifyBatch processes requests in priority order, chunked by the
// concurrency cap. Chunks run sequentially; requests within a chunk run in
// parallel. Results preserve the sorted order.
func (e *Engine) VerifyBatch(ctx context.Context, requests []*Request) []*Result {
	sorted := make([]*Request, len(requests))
	copy(sorted, requests)
	// Stable so equal priorities keep submission order.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Priority.rank() > sorted[j-1].Priority.rank(); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	results := make([]*Result, len(sorted))
	chunkSize := e.config.MaxConcurrent

	for offset := 0; offset < len(sorted); offset += chunkSize {
		end := offset + chunkSize
		if end > len(sorted) {
			end = len(sorted)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				result, _ := e.Verify(ctx, sorted[idx])
				results[idx] = result
			}(i)
		}
		wg.Wait()
	}

	return results
}

// acquire reserves a slot in the concurrency gate, failing fast when the
// gate is saturated.
func (e *Engine) acquire() bool {
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	if e.inFlight >= e.config.MaxConcurrent {
		return false
	}
	e.inFlight++
	if e.metrics != nil {
		e.metrics.VerificationsInFlight.Inc()
	}
	return true
}

func (e *Engine) release() {
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	e.inFlight--
	if e.metrics != nil {
		e.metrics.VerificationsInFlight.Dec()
	}
}

// selectStrategies resolves the requested kinds to enabled implementations
// in the fixed priority order.
func (e *Engine) selectStrategies(req *Request) []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	requested := req.Strategies
	if len(requested) == 0 {
		requested = StrategyPriority
	}

	seen := make(map[StrategyKind]bool, len(requested))
	for _, k := range requested {
		seen[k] = true
	}

	selected := make([]Strategy, 0, len(requested))
	for _, k := range StrategyPriority {
		if !seen[k] {
			continue
		}
		s, ok := e.strategies[k]
		if !ok || !s.IsAvailable() {
			continue
		}
		selected = append(selected, s)
	}
	return selected
}

// executeParallel dispatches every selected strategy with its own timeout.
// A strategy that panics, errors, or times out yields an Unverified outcome;
// it never aborts the others.
func (e *Engine) executeParallel(ctx context.Context, req *Request, selected []Strategy) []StrategyOutcome {
	timeout := e.methodTimeout(req)

	outcomes := make([]StrategyOutcome, len(selected))
	var wg sync.WaitGroup
	for i, s := range selected {
		wg.Add(1)
		go func(idx int, strategy Strategy) {
			defer wg.Done()
			outcomes[idx] = e.executeOne(ctx, req, strategy, timeout)
		}(i, s)
	}
	wg.Wait()

	return outcomes
}

// methodTimeout computes the per-strategy timeout: the request's timeout
// when given, capped by the configured maximum.
func (e *Engine) methodTimeout(req *Request) time.Duration {
	timeout := e.config.DefaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if timeout > e.config.MaxTimeout {
		timeout = e.config.MaxTimeout
	}
	return timeout
}

// executeOne races one strategy against its timeout. The losing call is
// abandoned and its eventual result discarded.
func (e *Engine) executeOne(ctx context.Context, req *Request, strategy Strategy, timeout time.Duration) StrategyOutcome {
	start := time.Now()
	kind := strategy.Kind()

	type verifyResult struct {
		outcome *StrategyOutcome
		err     error
	}
	done := make(chan verifyResult, 1)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- verifyResult{err: fmt.Errorf("strategy panic: %v", r)}
			}
		}()
		outcome, err := strategy.Verify(callCtx, req)
		done <- verifyResult{outcome: outcome, err: err}
	}()

	var outcome StrategyOutcome
	select {
	case res := <-done:
		switch {
		case stderrors.Is(res.err, context.DeadlineExceeded):
			outcome = unverifiedOutcome(kind, "Operation timeout", start)
		case res.err != nil:
			outcome = unverifiedOutcome(kind, res.err.Error(), start)
		case res.outcome == nil:
			outcome = unverifiedOutcome(kind, "strategy returned no outcome", start)
		default:
			outcome = *res.outcome
			outcome.Strategy = kind
			outcome.Confidence = clampConfidence(outcome.Confidence)
			if outcome.ProcessingTimeMs < 1 {
				outcome.ProcessingTimeMs = clampProcessingTime(time.Since(start))
			}
		}
	case <-callCtx.Done():
		outcome = unverifiedOutcome(kind, "Operation timeout", start)
	}

	if e.metrics != nil {
		e.metrics.RecordStrategyOutcome(serviceName, string(kind), string(outcome.Verdict), time.Since(start))
	}
	return outcome
}

func unverifiedOutcome(kind StrategyKind, reason string, start time.Time) StrategyOutcome {
	return StrategyOutcome{
		Strategy:         kind,
		Verdict:          VerdictUnverified,
		Confidence:       0,
		Reasoning:        reason,
		ProcessingTimeMs: clampProcessingTime(time.Since(start)),
	}
}

// validateRequest enforces the request bounds before any work is spent.
func validateRequest(req *Request) error {
	if req == nil {
		return errors.InvalidRequest("request is nil")
	}
	if req.Content == "" {
		return errors.InvalidRequest("content is empty")
	}
	if utf8.RuneCountInString(req.Content) > MaxContentLength {
		return errors.InvalidRequest(fmt.Sprintf("content exceeds %d characters", MaxContentLength))
	}
	if req.Strategies != nil && len(req.Strategies) == 0 {
		return errors.InvalidRequest("requested strategy set is empty")
	}
	return nil
}

// errorResult builds the Result surface for a request-level failure.
func errorResult(req *Request, start time.Time, err error) *Result {
	id := ""
	if req != nil {
		id = req.ID
	}
	return &Result{
		RequestID:        id,
		Verdict:          VerdictError,
		Confidence:       0,
		Reasoning:        []string{err.Error()},
		ProcessingTimeMs: clampProcessingTime(time.Since(start)),
		Error:            err.Error(),
	}
}
