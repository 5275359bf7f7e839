package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg CacheConfig) *Cache {
	t.Helper()
	c := NewCache(cfg)
	t.Cleanup(c.Stop)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("key", "value", time.Minute)
	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("soon", "gone", 5*time.Millisecond)
	time.Sleep(15 * time.Millisecond)

	_, ok := c.Get("soon")
	assert.False(t, ok)
}

func TestCacheAccessAccounting(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("key", "value", time.Minute)

	entry, ok := c.GetEntry("key")
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.AccessCount)

	entry, ok = c.GetEntry("key")
	require.True(t, ok)
	assert.Equal(t, int64(2), entry.AccessCount)
	assert.False(t, entry.LastAccessed.IsZero())
}

func TestCacheCleanup(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("a", 1, 5*time.Millisecond)
	c.Set("b", 2, time.Minute)
	time.Sleep(15 * time.Millisecond)

	expired := c.Cleanup()
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, c.Size())
}

func TestCacheEvictsOverMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	c := newTestCache(t, cfg)

	c.Set("a", 1, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set("b", 2, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set("c", 3, time.Minute)

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok, "least recently touched entry is evicted")
}

func TestCacheStopDropsEntries(t *testing.T) {
	c := NewCache(DefaultConfig())
	c.Set("key", "value", time.Minute)

	c.Stop()
	assert.Zero(t, c.Size())
	// Stop is idempotent.
	c.Stop()
}
