package webnav

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
)

// frontierItem is one URL queued for visiting.
type frontierItem struct {
	rawURL    string
	norm      string
	depth     int
	from      string
	linkText  string
	relevance float64
}

// Traverser walks a site graph through the extractor, cycle-safe and
// bounded by depth and page budgets.
type Traverser struct {
	extractor  *Extractor
	limiter    *DomainLimiter
	cache      *ContentCache
	logger     *logging.Logger
	extractCfg ExtractionConfig
}

// NewTraverser creates a traverser. limiter, cache, and logger may be nil.
func NewTraverser(extractor *Extractor, limiter *DomainLimiter, cache *ContentCache, logger *logging.Logger, extractCfg ExtractionConfig) *Traverser {
	return &Traverser{
		extractor:  extractor,
		limiter:    limiter,
		cache:      cache,
		logger:     logger,
		extractCfg: extractCfg,
	}
}

// traversalState carries the mutable crawl state behind one mutex.
type traversalState struct {
	mu                sync.Mutex
	cfg               TraversalConfig
	visited           map[string]bool
	nodes             map[string]*GraphNode
	edges             []GraphEdge
	pages             []*WebContent
	stats             TraversalStatistics
	depthDistribution map[int]int
	loadTimes         []time.Duration
	startHost         string
}

// NormalizeURL canonicalizes a URL for the visited set: lowercased host,
// fragment dropped, trailing slash stripped.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	normalized := parsed.String()
	if strings.HasSuffix(parsed.Path, "/") && parsed.Path != "/" {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// Traverse crawls from startURL under cfg. Cancellation returns the partial
// result accumulated so far; per-URL errors are recorded and never abort
// the crawl.
func (t *Traverser) Traverse(ctx context.Context, startURL string, cfg TraversalConfig) (*TraversalResult, error) {
	start := time.Now()

	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.MaxConcurrentRequests < 1 {
		cfg.MaxConcurrentRequests = 1
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyBFS
	}

	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Host == "" {
		return nil, apperrors.InvalidURL(startURL, "unparsable start URL")
	}

	state := &traversalState{
		cfg:               cfg,
		visited:           make(map[string]bool),
		nodes:             make(map[string]*GraphNode),
		depthDistribution: make(map[int]int),
		startHost:         strings.ToLower(parsed.Hostname()),
	}

	root := frontierItem{rawURL: startURL, norm: NormalizeURL(startURL), depth: 0, relevance: 1}

	switch cfg.Strategy {
	case StrategyDFS:
		t.traverseDFS(ctx, root, state)
	case StrategyRelevance:
		t.traverseRelevance(ctx, root, state)
	default:
		t.traverseBFS(ctx, root, state)
	}

	return t.buildResult(startURL, start, state), nil
}

// traverseBFS visits whole depth levels in order, requests within a level
// running in parallel up to the configured bound. All of depth d completes
// before any of depth d+1 starts.
func (t *Traverser) traverseBFS(ctx context.Context, root frontierItem, state *traversalState) {
	level := []frontierItem{root}

	for len(level) > 0 && ctx.Err() == nil {
		sem := make(chan struct{}, state.cfg.MaxConcurrentRequests)
		var wg sync.WaitGroup
		var nextMu sync.Mutex
		var next []frontierItem

		for _, item := range level {
			if ctx.Err() != nil {
				break
			}
			if !state.admit(item) {
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(it frontierItem) {
				defer wg.Done()
				defer func() { <-sem }()
				children := t.visit(ctx, it, state)
				nextMu.Lock()
				next = append(next, children...)
				nextMu.Unlock()
			}(item)
		}
		wg.Wait()

		level = next
	}
}

// traverseDFS explores each child subtree to completion before its next
// sibling, sequentially.
func (t *Traverser) traverseDFS(ctx context.Context, root frontierItem, state *traversalState) {
	var descend func(item frontierItem)
	descend = func(item frontierItem) {
		if ctx.Err() != nil {
			return
		}
		if !state.admit(item) {
			return
		}
		for _, child := range t.visit(ctx, item, state) {
			descend(child)
		}
	}
	descend(root)
}

// traverseRelevance always takes the highest-relevance frontier element
// next. No ordering guarantee beyond that.
func (t *Traverser) traverseRelevance(ctx context.Context, root frontierItem, state *traversalState) {
	frontier := []frontierItem{root}

	for len(frontier) > 0 && ctx.Err() == nil {
		sort.SliceStable(frontier, func(i, j int) bool {
			return frontier[i].relevance > frontier[j].relevance
		})
		item := frontier[0]
		frontier = frontier[1:]

		if !state.admit(item) {
			continue
		}
		frontier = append(frontier, t.visit(ctx, item, state)...)
	}
}

// admit claims an item for visiting: not yet visited, within budget, and
// passing the domain and pattern filters. Skips are recorded.
func (s *traversalState) admit(item frontierItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visited[item.norm] {
		return false
	}
	if len(s.visited) >= s.cfg.MaxPages {
		return false
	}
	if item.depth > s.cfg.MaxDepth {
		return false
	}

	parsed, err := url.Parse(item.rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())

	if reason := s.filterReason(host, item.rawURL); reason != "" {
		s.stats.PagesSkipped++
		s.nodes[item.norm] = &GraphNode{URL: item.norm, Depth: item.depth, Status: NodeSkipped, Error: reason}
		return false
	}

	// Claimed: mark visited now so concurrent workers cannot double-fetch.
	s.visited[item.norm] = true
	s.nodes[item.norm] = &GraphNode{URL: item.norm, Depth: item.depth, Status: NodePending}
	if item.from != "" {
		s.edges = append(s.edges, GraphEdge{From: item.from, To: item.norm, LinkText: item.linkText})
	}
	return true
}

func (s *traversalState) filterReason(host, rawURL string) string {
	for _, blocked := range s.cfg.BlockedDomains {
		if host == strings.ToLower(blocked) || strings.HasSuffix(host, "."+strings.ToLower(blocked)) {
			return "blocked domain"
		}
	}
	if len(s.cfg.AllowedDomains) > 0 {
		allowed := false
		for _, domain := range s.cfg.AllowedDomains {
			if host == strings.ToLower(domain) || strings.HasSuffix(host, "."+strings.ToLower(domain)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "domain not allowed"
		}
	}
	if s.cfg.SameDomainOnly && !s.cfg.FollowExternalLinks && host != s.startHost {
		return "external domain"
	}
	for _, pattern := range s.cfg.ExcludePatterns {
		if pattern != "" && strings.Contains(rawURL, pattern) {
			return "excluded pattern"
		}
	}
	if len(s.cfg.IncludePatterns) > 0 {
		matched := false
		for _, pattern := range s.cfg.IncludePatterns {
			if pattern != "" && strings.Contains(rawURL, pattern) {
				matched = true
				break
			}
		}
		if !matched {
			return "no include pattern matched"
		}
	}
	return ""
}

// visit fetches one admitted URL and returns its children for the frontier.
func (t *Traverser) visit(ctx context.Context, item frontierItem, state *traversalState) []frontierItem {
	parsed, err := url.Parse(item.rawURL)
	if err != nil {
		state.recordError(item, "unparsable URL")
		return nil
	}
	domain := strings.ToLower(parsed.Hostname())

	// Per-domain pacing: both the configured delay and the limiter's
	// backoff are cancellable waits.
	if t.limiter != nil {
		for {
			wait := t.limiter.Reserve(domain)
			if wait <= 0 {
				break
			}
			state.recordRateLimit()
			if !sleepCtx(ctx, wait) {
				state.recordError(item, "cancelled during backoff")
				return nil
			}
		}
	}
	if state.cfg.Delay > 0 {
		if !sleepCtx(ctx, state.cfg.Delay) {
			state.recordError(item, "cancelled during delay")
			return nil
		}
	}

	var content *WebContent
	if t.cache != nil {
		if cached, ok := t.cache.Get(item.norm); ok {
			content = cached
		}
	}

	fetchStart := time.Now()
	if content == nil {
		extractCfg := t.extractCfg
		extractCfg.RespectRobotsTxt = state.cfg.RespectRobotsTxt
		extractCfg.IncludeImages = state.cfg.ExtractImages

		content, err = t.extractor.Extract(ctx, item.rawURL, extractCfg)
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeRobotsDisallow) {
				state.recordSkip(item, "robots disallow")
			} else {
				state.recordError(item, err.Error())
			}
			return nil
		}
		if t.cache != nil {
			t.cache.Put(item.norm, content)
		}
	}

	if !contentTypeAllowed(content.ContentType, state.cfg.AllowedContentTypes) {
		state.recordSkip(item, "content type not allowed")
		return nil
	}

	state.recordVisit(item, content, time.Since(fetchStart))

	if item.depth >= state.cfg.MaxDepth {
		return nil
	}

	children := make([]frontierItem, 0, len(content.Links))
	for _, link := range content.Links {
		children = append(children, frontierItem{
			rawURL:    link.URL,
			norm:      NormalizeURL(link.URL),
			depth:     item.depth + 1,
			from:      item.norm,
			linkText:  link.Text,
			relevance: link.Relevance,
		})
	}
	return children
}

func (s *traversalState) recordVisit(item frontierItem, content *WebContent, loadTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages = append(s.pages, content)
	s.stats.PagesVisited++
	s.stats.TotalContentBytes += int64(len(content.Content))
	s.loadTimes = append(s.loadTimes, loadTime)
	s.depthDistribution[item.depth]++
	if item.depth > s.stats.MaxDepthReached {
		s.stats.MaxDepthReached = item.depth
	}
	if node, ok := s.nodes[item.norm]; ok {
		node.Status = NodeVisited
	}
}

func (s *traversalState) recordError(item frontierItem, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.ErrorsEncountered++
	if node, ok := s.nodes[item.norm]; ok {
		node.Status = NodeError
		node.Error = message
	}
}

func (s *traversalState) recordSkip(item frontierItem, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.PagesSkipped++
	if node, ok := s.nodes[item.norm]; ok {
		node.Status = NodeSkipped
		node.Error = reason
	}
}

func (s *traversalState) recordRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RateLimitEncounters++
}

func (t *Traverser) buildResult(startURL string, start time.Time, state *traversalState) *TraversalResult {
	state.mu.Lock()
	defer state.mu.Unlock()

	nodes := make([]GraphNode, 0, len(state.nodes))
	for _, node := range state.nodes {
		nodes = append(nodes, *node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].URL < nodes[j].URL
	})

	var avgLoad float64
	if len(state.loadTimes) > 0 {
		var total time.Duration
		for _, d := range state.loadTimes {
			total += d
		}
		avgLoad = float64(total.Milliseconds()) / float64(len(state.loadTimes))
	}

	elapsed := time.Since(start)
	state.stats.ProcessingTimeMs = elapsed.Milliseconds()
	state.stats.AvgPageLoadTimeMs = avgLoad

	return &TraversalResult{
		SessionID:         uuid.New().String(),
		StartURL:          startURL,
		Pages:             state.pages,
		Statistics:        state.stats,
		Nodes:             nodes,
		Edges:             state.edges,
		DepthDistribution: state.depthDistribution,
		MaxDepthReached:   state.stats.MaxDepthReached >= state.cfg.MaxDepth,
		PageLimitReached:  state.stats.PagesVisited >= state.cfg.MaxPages,
		CompletedAt:       time.Now().UTC(),
		TraversalTimeMs:   elapsed.Milliseconds(),
	}
}

// contentTypeAllowed matches the response content type against the
// configured allowlist. An empty allowlist admits everything.
func contentTypeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a != "" && strings.Contains(strings.ToLower(contentType), strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// sleepCtx waits d or until ctx is done. Returns false when cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
