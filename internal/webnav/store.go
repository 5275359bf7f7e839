package webnav

import (
	"sync"
	"time"
)

// contentEntry is one cached page with its accounting.
type contentEntry struct {
	content      *WebContent
	createdAt    time.Time
	expiresAt    time.Time
	hitCount     int64
	lastAccessed time.Time
	sizeBytes    int64
}

// ContentCacheConfig tunes the URL-keyed content cache.
type ContentCacheConfig struct {
	TTL       time.Duration
	MaxSizeMB int
}

// ContentCache stores extracted pages keyed by normalized URL, with TTL
// expiry and LRU eviction once the byte budget is exceeded.
type ContentCache struct {
	mu        sync.Mutex
	entries   map[string]*contentEntry
	totalSize int64
	maxSize   int64
	ttl       time.Duration
}

// NewContentCache creates the cache.
func NewContentCache(cfg ContentCacheConfig) *ContentCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	return &ContentCache{
		entries: make(map[string]*contentEntry),
		maxSize: int64(cfg.MaxSizeMB) << 20,
		ttl:     cfg.TTL,
	}
}

// Get returns the cached page for url, updating hit accounting.
func (c *ContentCache) Get(url string) (*WebContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(url, entry)
		return nil, false
	}

	entry.hitCount++
	entry.lastAccessed = time.Now()
	return entry.content, true
}

// Put stores a page, evicting least-recently-used entries when over budget.
func (c *ContentCache) Put(url string, content *WebContent) {
	size := int64(len(content.Content) + len(content.HTML) + len(content.Title))

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[url]; ok {
		c.removeLocked(url, old)
	}

	now := time.Now()
	c.entries[url] = &contentEntry{
		content:      content,
		createdAt:    now,
		expiresAt:    now.Add(c.ttl),
		lastAccessed: now,
		sizeBytes:    size,
	}
	c.totalSize += size

	for c.totalSize > c.maxSize && len(c.entries) > 1 {
		c.evictOldestLocked()
	}
}

func (c *ContentCache) removeLocked(url string, entry *contentEntry) {
	delete(c.entries, url)
	c.totalSize -= entry.sizeBytes
}

func (c *ContentCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccessed.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccessed
		}
	}
	if oldestKey != "" {
		c.removeLocked(oldestKey, c.entries[oldestKey])
	}
}

// Clear drops expired entries. Returns dropped count.
func (c *ContentCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	dropped := 0
	for url, entry := range c.entries {
		if now.After(entry.expiresAt) {
			c.removeLocked(url, entry)
			dropped++
		}
	}
	return dropped
}

// Stats returns entry count and total bytes held.
func (c *ContentCache) Stats() (entries int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.totalSize
}

// DomainLimiterConfig tunes the per-domain rate limiter.
type DomainLimiterConfig struct {
	RequestsPerMinute int
	BackoffMultiplier float64
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// DefaultDomainLimiterConfig returns sensible defaults.
func DefaultDomainLimiterConfig() DomainLimiterConfig {
	return DomainLimiterConfig{
		RequestsPerMinute: 30,
		BackoffMultiplier: 2.0,
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Minute,
	}
}

type domainState struct {
	limit          DomainRateLimit
	currentBackoff time.Duration
}

// DomainLimiter tracks per-domain request budgets with multiplicative
// backoff on overflow. One mutex guards the state of every domain, so
// updates for different domains are serialized.
type DomainLimiter struct {
	mu     sync.Mutex
	states map[string]*domainState
	config DomainLimiterConfig
	now    func() time.Time
}

// NewDomainLimiter creates the limiter.
func NewDomainLimiter(cfg DomainLimiterConfig) *DomainLimiter {
	if cfg.RequestsPerMinute < 1 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return &DomainLimiter{
		states: make(map[string]*domainState),
		config: cfg,
		now:    time.Now,
	}
}

// SetClock overrides the limiter's clock. Intended for tests.
func (l *DomainLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Reserve records a request against domain. It returns zero when the
// request may proceed immediately, or the duration to wait before retrying.
func (l *DomainLimiter) Reserve(domain string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.states[domain]
	if !ok {
		state = &domainState{
			limit: DomainRateLimit{
				Domain:        domain,
				Status:        DomainOk,
				WindowResetAt: now.Add(time.Minute),
			},
			currentBackoff: l.config.InitialBackoff,
		}
		l.states[domain] = state
	}

	if state.limit.Status == DomainBlocked {
		return l.config.MaxBackoff
	}

	if !now.Before(state.limit.WindowResetAt) {
		state.limit.RequestsInWindow = 0
		state.limit.WindowResetAt = now.Add(time.Minute)
		if state.limit.Status == DomainThrottled && now.After(state.limit.BackoffUntil) {
			state.limit.Status = DomainOk
			state.currentBackoff = l.config.InitialBackoff
		}
	}

	if state.limit.Status == DomainThrottled && now.Before(state.limit.BackoffUntil) {
		return state.limit.BackoffUntil.Sub(now)
	}

	state.limit.RequestsInWindow++
	state.limit.LastRequestAt = now

	if state.limit.RequestsInWindow > l.config.RequestsPerMinute {
		state.limit.Status = DomainThrottled
		backoff := time.Duration(float64(state.currentBackoff) * l.config.BackoffMultiplier)
		if backoff > l.config.MaxBackoff {
			backoff = l.config.MaxBackoff
		}
		state.currentBackoff = backoff
		state.limit.BackoffUntil = now.Add(backoff)
		return backoff
	}

	return 0
}

// Block moves a domain to Blocked until Unblock.
func (l *DomainLimiter) Block(domain string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.states[domain]
	if !ok {
		state = &domainState{
			limit:          DomainRateLimit{Domain: domain},
			currentBackoff: l.config.InitialBackoff,
		}
		l.states[domain] = state
	}
	state.limit.Status = DomainBlocked
}

// Unblock returns a blocked domain to Ok.
func (l *DomainLimiter) Unblock(domain string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if state, ok := l.states[domain]; ok {
		state.limit.Status = DomainOk
		state.currentBackoff = l.config.InitialBackoff
		state.limit.BackoffUntil = time.Time{}
	}
}

// Snapshot returns the limiter state for domain, if tracked.
func (l *DomainLimiter) Snapshot(domain string) (DomainRateLimit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.states[domain]
	if !ok {
		return DomainRateLimit{}, false
	}
	return state.limit, true
}
