package webnav

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// robotsRules holds the parsed Disallow prefixes for one origin. Only the
// wildcard user-agent group is honored; that is the subset the crawler
// advertises.
type robotsRules struct {
	disallow  []string
	fetchedAt time.Time
}

// RobotsCache fetches and caches robots.txt per origin. An origin is
// fetched at most once per TTL; fetch failures are treated as allow-all.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration

	mu    sync.Mutex
	rules map[string]*robotsRules
}

// NewRobotsCache creates the cache. client may be nil.
func NewRobotsCache(client *http.Client, userAgent string, ttl time.Duration) *RobotsCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		rules:     make(map[string]*robotsRules),
	}
}

// Allowed reports whether the crawler may fetch target under the origin's
// robots.txt rules.
func (c *RobotsCache) Allowed(ctx context.Context, target *url.URL) bool {
	rules := c.rulesFor(ctx, target)
	if rules == nil {
		return true
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	for _, prefix := range rules.disallow {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func (c *RobotsCache) rulesFor(ctx context.Context, target *url.URL) *robotsRules {
	origin := target.Scheme + "://" + target.Host

	c.mu.Lock()
	cached, ok := c.rules[origin]
	if ok && time.Since(cached.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	rules := c.fetch(ctx, origin)

	c.mu.Lock()
	c.rules[origin] = rules
	c.mu.Unlock()
	return rules
}

func (c *RobotsCache) fetch(ctx context.Context, origin string) *robotsRules {
	rules := &robotsRules{fetchedAt: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return rules
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return rules
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rules
	}

	rules.disallow = parseRobots(io.LimitReader(resp.Body, 512<<10))
	return rules
}

// parseRobots extracts the Disallow prefixes of every "User-agent: *" group.
func parseRobots(r io.Reader) []string {
	var disallow []string
	scanner := bufio.NewScanner(r)
	inWildcardGroup := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			inWildcardGroup = value == "*"
		case "disallow":
			if inWildcardGroup && value != "" {
				disallow = append(disallow, value)
			}
		}
	}
	return disallow
}

// Invalidate drops the cached rules for every origin.
func (c *RobotsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = make(map[string]*robotsRules)
}
