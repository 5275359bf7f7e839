package webnav

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
)

// HealthStatus grades the navigator's overall health.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// NavigatorHealth is the navigator's self-reported health snapshot.
type NavigatorHealth struct {
	Status            HealthStatus `json:"status"`
	ErrorRate         float64      `json:"error_rate"`
	AvgResponseTimeMs float64      `json:"avg_response_time_ms"`
	CacheEntries      int          `json:"cache_entries"`
	CacheBytes        int64        `json:"cache_bytes"`
}

// NavigatorConfig tunes the navigator facade.
type NavigatorConfig struct {
	Extraction         ExtractionConfig
	Limiter            DomainLimiterConfig
	Cache              ContentCacheConfig
	RobotsTTL          time.Duration
	ErrorRateThreshold float64
}

// Navigator composes the extractor, traverser, content cache, domain
// limiter, and robots cache behind one facade. It owns the content cache
// and the domain rate-limit table.
type Navigator struct {
	extractor *Extractor
	traverser *Traverser
	cache     *ContentCache
	limiter   *DomainLimiter
	robots    *RobotsCache
	logger    *logging.Logger

	errorThreshold float64

	healthMu      sync.Mutex
	errorRate     float64
	responseTimes []time.Duration
	nextSample    int
	filled        bool
	clientDown    bool
}

// NewNavigator wires the navigator. client, logger, and metrics may be nil.
func NewNavigator(cfg NavigatorConfig, client *http.Client, logger *logging.Logger, m *metrics.Metrics) *Navigator {
	robots := NewRobotsCache(client, cfg.Extraction.UserAgent, cfg.RobotsTTL)
	extractor := NewExtractor(client, robots, logger, m)
	cache := NewContentCache(cfg.Cache)
	limiter := NewDomainLimiter(cfg.Limiter)

	threshold := cfg.ErrorRateThreshold
	if threshold <= 0 {
		threshold = 0.1
	}

	return &Navigator{
		extractor:      extractor,
		traverser:      NewTraverser(extractor, limiter, cache, logger, cfg.Extraction),
		cache:          cache,
		limiter:        limiter,
		robots:         robots,
		logger:         logger,
		errorThreshold: threshold,
		responseTimes:  make([]time.Duration, 100),
	}
}

// Extract fetches a single page through the navigator's caches and limits.
func (n *Navigator) Extract(ctx context.Context, rawURL string, cfg ExtractionConfig) (*WebContent, error) {
	norm := NormalizeURL(rawURL)
	if cached, ok := n.cache.Get(norm); ok {
		return cached, nil
	}

	start := time.Now()
	content, err := n.extractor.Extract(ctx, rawURL, cfg)
	n.recordOutcome(time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	n.cache.Put(norm, content)
	return content, nil
}

// Traverse crawls from startURL.
func (n *Navigator) Traverse(ctx context.Context, startURL string, cfg TraversalConfig) (*TraversalResult, error) {
	start := time.Now()
	result, err := n.traverser.Traverse(ctx, startURL, cfg)
	n.recordOutcome(time.Since(start), err == nil)
	return result, err
}

// DomainState exposes the limiter state for a domain.
func (n *Navigator) DomainState(domain string) (DomainRateLimit, bool) {
	return n.limiter.Snapshot(domain)
}

// ClearCaches drops expired content entries and robots rules.
func (n *Navigator) ClearCaches() int {
	n.robots.Invalidate()
	return n.cache.Clear()
}

// SetClientDown marks the HTTP dependency unavailable for health reporting.
func (n *Navigator) SetClientDown(down bool) {
	n.healthMu.Lock()
	defer n.healthMu.Unlock()
	n.clientDown = down
}

func (n *Navigator) recordOutcome(duration time.Duration, success bool) {
	n.healthMu.Lock()
	defer n.healthMu.Unlock()

	n.responseTimes[n.nextSample] = duration
	n.nextSample = (n.nextSample + 1) % len(n.responseTimes)
	if n.nextSample == 0 {
		n.filled = true
	}

	sample := 0.0
	if !success {
		sample = 1.0
	}
	n.errorRate = 0.1*sample + 0.9*n.errorRate
}

// Health reports the navigator's health: unhealthy when a hard dependency
// is down, degraded when the error rate is over threshold.
func (n *Navigator) Health() NavigatorHealth {
	n.healthMu.Lock()
	errorRate := n.errorRate
	clientDown := n.clientDown

	count := n.nextSample
	if n.filled {
		count = len(n.responseTimes)
	}
	var sum time.Duration
	for i := 0; i < count; i++ {
		sum += n.responseTimes[i]
	}
	n.healthMu.Unlock()

	var avgMs float64
	if count > 0 {
		avgMs = float64(sum.Milliseconds()) / float64(count)
	}

	entries, bytes := n.cache.Stats()

	status := StatusHealthy
	switch {
	case clientDown:
		status = StatusUnhealthy
	case errorRate > n.errorThreshold:
		status = StatusDegraded
	}

	return NavigatorHealth{
		Status:            status,
		ErrorRate:         errorRate,
		AvgResponseTimeMs: avgMs,
		CacheEntries:      entries,
		CacheBytes:        bytes,
	}
}
