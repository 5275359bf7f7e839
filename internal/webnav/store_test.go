package webnav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainLimiterWindow(t *testing.T) {
	cfg := DefaultDomainLimiterConfig()
	cfg.RequestsPerMinute = 2
	limiter := NewDomainLimiter(cfg)

	now := time.Unix(1700000000, 0)
	limiter.SetClock(func() time.Time { return now })

	assert.Zero(t, limiter.Reserve("example.com"))
	assert.Zero(t, limiter.Reserve("example.com"))

	wait := limiter.Reserve("example.com")
	assert.Positive(t, wait, "third request in the window must back off")

	state, ok := limiter.Snapshot("example.com")
	require.True(t, ok)
	assert.Equal(t, DomainThrottled, state.Status)

	// Window rolls and backoff passes: domain returns to Ok.
	now = now.Add(6 * time.Minute)
	assert.Zero(t, limiter.Reserve("example.com"))
	state, _ = limiter.Snapshot("example.com")
	assert.Equal(t, DomainOk, state.Status)
	assert.Equal(t, 1, state.RequestsInWindow)
}

func TestDomainLimiterBackoffGrows(t *testing.T) {
	cfg := DefaultDomainLimiterConfig()
	cfg.RequestsPerMinute = 1
	cfg.InitialBackoff = time.Second
	cfg.BackoffMultiplier = 2
	cfg.MaxBackoff = 10 * time.Second
	limiter := NewDomainLimiter(cfg)

	now := time.Unix(1700000000, 0)
	limiter.SetClock(func() time.Time { return now })

	assert.Zero(t, limiter.Reserve("slow.example"))
	first := limiter.Reserve("slow.example")
	assert.Equal(t, 2*time.Second, first)
}

func TestDomainLimiterBlocked(t *testing.T) {
	limiter := NewDomainLimiter(DefaultDomainLimiterConfig())
	limiter.Block("bad.example")

	wait := limiter.Reserve("bad.example")
	assert.Positive(t, wait)

	state, _ := limiter.Snapshot("bad.example")
	assert.Equal(t, DomainBlocked, state.Status)

	limiter.Unblock("bad.example")
	assert.Zero(t, limiter.Reserve("bad.example"))
}

func TestDomainLimiterIndependentDomains(t *testing.T) {
	cfg := DefaultDomainLimiterConfig()
	cfg.RequestsPerMinute = 1
	limiter := NewDomainLimiter(cfg)

	assert.Zero(t, limiter.Reserve("a.example"))
	assert.Positive(t, limiter.Reserve("a.example"))
	assert.Zero(t, limiter.Reserve("b.example"), "domains must not share buckets")
}

func TestContentCacheHitAccounting(t *testing.T) {
	cache := NewContentCache(ContentCacheConfig{TTL: time.Hour, MaxSizeMB: 1})
	cache.Put("https://example.com/a", &WebContent{URL: "https://example.com/a", Content: "hello"})

	_, ok := cache.Get("https://example.com/a")
	require.True(t, ok)
	_, ok = cache.Get("https://example.com/a")
	require.True(t, ok)

	_, ok = cache.Get("https://example.com/missing")
	assert.False(t, ok)

	entries, bytes := cache.Stats()
	assert.Equal(t, 1, entries)
	assert.Positive(t, bytes)
}

func TestContentCacheLRUEviction(t *testing.T) {
	cache := NewContentCache(ContentCacheConfig{TTL: time.Hour, MaxSizeMB: 1})

	big := make([]byte, 600<<10)
	for i := range big {
		big[i] = 'x'
	}

	cache.Put("https://example.com/1", &WebContent{Content: string(big)})
	cache.Put("https://example.com/2", &WebContent{Content: string(big)})

	_, ok := cache.Get("https://example.com/1")
	assert.False(t, ok, "oldest entry must be evicted past the byte budget")
	_, ok = cache.Get("https://example.com/2")
	assert.True(t, ok)
}

func TestContentCacheClearDropsExpired(t *testing.T) {
	cache := NewContentCache(ContentCacheConfig{TTL: time.Millisecond, MaxSizeMB: 1})
	cache.Put("https://example.com/x", &WebContent{Content: "soon gone"})

	time.Sleep(5 * time.Millisecond)
	dropped := cache.Clear()
	assert.Equal(t, 1, dropped)

	entries, _ := cache.Stats()
	assert.Zero(t, entries)
}
