// Package metrics provides Prometheus metrics collection
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Verification metrics
	VerificationsTotal      *prometheus.CounterVec
	VerificationDuration    *prometheus.HistogramVec
	VerificationsInFlight   prometheus.Gauge
	StrategyOutcomesTotal   *prometheus.CounterVec
	StrategyDuration        *prometheus.HistogramVec
	VerificationCacheHits   prometheus.Counter
	VerificationCacheMisses prometheus.Counter

	// Crawler metrics
	PageFetchesTotal   *prometheus.CounterVec
	PageFetchDuration  *prometheus.HistogramVec
	PageFetchBytes     prometheus.Counter
	ContentCacheHits   prometheus.Counter
	ContentCacheMisses prometheus.Counter
	RateLimitWaits     *prometheus.CounterVec

	// Outbound resilience metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerOpen        *prometheus.GaugeVec
	RetryAttempts      *prometheus.CounterVec

	// Security metrics
	AuthAttemptsTotal *prometheus.CounterVec
	SecurityDenials   *prometheus.CounterVec
	AuditEventsTotal  *prometheus.CounterVec
	RateLimitExceeded *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifications_total",
				Help: "Total number of verification requests",
			},
			[]string{"service", "verdict", "priority"},
		),
		VerificationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verification_duration_seconds",
				Help:    "End-to-end verification duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"service"},
		),
		VerificationsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "verifications_in_flight",
				Help: "Current number of verifications being processed",
			},
		),
		StrategyOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategy_outcomes_total",
				Help: "Total number of per-strategy outcomes",
			},
			[]string{"service", "strategy", "verdict"},
		),
		StrategyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strategy_duration_seconds",
				Help:    "Per-strategy execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service", "strategy"},
		),
		VerificationCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verification_cache_hits_total",
				Help: "Total number of verification cache hits",
			},
		),
		VerificationCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verification_cache_misses_total",
				Help: "Total number of verification cache misses",
			},
		),

		PageFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "page_fetches_total",
				Help: "Total number of crawler page fetches",
			},
			[]string{"service", "status"},
		),
		PageFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "page_fetch_duration_seconds",
				Help:    "Crawler page fetch duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),
		PageFetchBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "page_fetch_bytes_total",
				Help: "Total bytes fetched by the crawler",
			},
		),
		ContentCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_cache_hits_total",
				Help: "Total number of content cache hits",
			},
		),
		ContentCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_cache_misses_total",
				Help: "Total number of content cache misses",
			},
		),
		RateLimitWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_waits_total",
				Help: "Total number of rate-limit waits by domain class",
			},
			[]string{"service", "scope"},
		),

		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"service", "name", "from", "to"},
		),
		BreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "breaker_open",
				Help: "Whether a named circuit breaker is currently open",
			},
			[]string{"service", "name"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retry_attempts_total",
				Help: "Total number of outbound call retry attempts",
			},
			[]string{"service", "name"},
		),

		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"service", "result"},
		),
		SecurityDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "security_denials_total",
				Help: "Total number of authorization denials",
			},
			[]string{"service", "reason"},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Total number of audit events recorded",
			},
			[]string{"service", "event_type", "result"},
		),
		RateLimitExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_exceeded_total",
				Help: "Total number of rate-limit rejections",
			},
			[]string{"service", "operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.VerificationsTotal,
			m.VerificationDuration,
			m.VerificationsInFlight,
			m.StrategyOutcomesTotal,
			m.StrategyDuration,
			m.VerificationCacheHits,
			m.VerificationCacheMisses,
			m.PageFetchesTotal,
			m.PageFetchDuration,
			m.PageFetchBytes,
			m.ContentCacheHits,
			m.ContentCacheMisses,
			m.RateLimitWaits,
			m.BreakerTransitions,
			m.BreakerOpen,
			m.RetryAttempts,
			m.AuthAttemptsTotal,
			m.SecurityDenials,
			m.AuditEventsTotal,
			m.RateLimitExceeded,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0").Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordVerification records a completed verification
func (m *Metrics) RecordVerification(service, verdict, priority string, duration time.Duration) {
	m.VerificationsTotal.WithLabelValues(service, verdict, priority).Inc()
	m.VerificationDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordStrategyOutcome records a per-strategy outcome
func (m *Metrics) RecordStrategyOutcome(service, strategy, verdict string, duration time.Duration) {
	m.StrategyOutcomesTotal.WithLabelValues(service, strategy, verdict).Inc()
	m.StrategyDuration.WithLabelValues(service, strategy).Observe(duration.Seconds())
}

// RecordPageFetch records a crawler fetch
func (m *Metrics) RecordPageFetch(service, status string, bytes int64, duration time.Duration) {
	m.PageFetchesTotal.WithLabelValues(service, status).Inc()
	m.PageFetchDuration.WithLabelValues(service).Observe(duration.Seconds())
	if bytes > 0 {
		m.PageFetchBytes.Add(float64(bytes))
	}
}

// RecordBreakerTransition records a circuit breaker state change
func (m *Metrics) RecordBreakerTransition(service, name, from, to string, open bool) {
	m.BreakerTransitions.WithLabelValues(service, name, from, to).Inc()
	state := 0.0
	if open {
		state = 1
	}
	m.BreakerOpen.WithLabelValues(service, name).Set(state)
}

// RecordRetryAttempt records one retry of an outbound call
func (m *Metrics) RecordRetryAttempt(service, name string) {
	m.RetryAttempts.WithLabelValues(service, name).Inc()
}

// RecordAuthAttempt records an authentication attempt
func (m *Metrics) RecordAuthAttempt(service string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.AuthAttemptsTotal.WithLabelValues(service, result).Inc()
}

// RecordAuditEvent records an audit event write
func (m *Metrics) RecordAuditEvent(service, eventType, result string) {
	m.AuditEventsTotal.WithLabelValues(service, eventType, result).Inc()
}

// UpdateUptime updates the service uptime
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests counter
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests counter
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}
