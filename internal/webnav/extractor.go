package webnav

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	apperrors "github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/resilience"
)

const navServiceName = "web-navigator"

// Extractor fetches a single URL and produces sanitized WebContent.
type Extractor struct {
	client  *http.Client
	robots  *RobotsCache
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewExtractor creates an extractor. robots, logger, and metrics may be nil.
func NewExtractor(client *http.Client, robots *RobotsCache, logger *logging.Logger, m *metrics.Metrics) *Extractor {
	if client == nil {
		client = &http.Client{}
	}
	return &Extractor{
		client:  client,
		robots:  robots,
		logger:  logger,
		metrics: m,
	}
}

// Extract fetches and parses one page under cfg's limits. Failures map to
// the typed web navigation errors.
func (e *Extractor) Extract(ctx context.Context, rawURL string, cfg ExtractionConfig) (*WebContent, error) {
	start := time.Now()

	target, err := validateTargetURL(rawURL)
	if err != nil {
		return nil, err
	}

	if cfg.RespectRobotsTxt && e.robots != nil && !e.robots.Allowed(ctx, target) {
		return nil, apperrors.RobotsDisallow(rawURL)
	}

	body, resp, err := e.fetch(ctx, target, cfg)
	if e.logger != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		e.logger.LogCrawl(ctx, rawURL, status, int64(len(body)), time.Since(start), err)
	}
	if e.metrics != nil {
		status := "error"
		if err == nil {
			status = "ok"
		}
		e.metrics.RecordPageFetch(navServiceName, status, int64(len(body)), time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "HTML parse failed", 502, err)
	}

	content := e.buildContent(target, resp, doc, cfg)
	return content, nil
}

// validateTargetURL enforces the http/https scheme allowlist.
func validateTargetURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	lower := strings.ToLower(trimmed)
	for _, scheme := range []string{"javascript:", "data:", "vbscript:", "file:"} {
		if strings.HasPrefix(lower, scheme) {
			return nil, apperrors.MaliciousContent(rawURL, "forbidden URL scheme")
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return nil, apperrors.InvalidURL(rawURL, err.Error())
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, apperrors.InvalidURL(rawURL, "scheme must be http or https")
	}
	if target.Host == "" {
		return nil, apperrors.InvalidURL(rawURL, "missing host")
	}
	return target, nil
}

// fetch performs the bounded HTTP GET: timeout, redirect cap, and the
// content-length guard both before and after reading the body.
func (e *Extractor) fetch(ctx context.Context, target *url.URL, cfg ExtractionConfig) ([]byte, *http.Response, error) {
	client := *e.client
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	if !cfg.VerifySSL {
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- operator opt-in for test targets
		}
		client.Transport = transport
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, apperrors.InvalidURL(target.String(), err.Error())
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, nil, apperrors.DomainNotFound(target.Hostname(), err)
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, nil, apperrors.Timeout("page fetch")
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrCodeHTTPError, "request failed", 502, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := resilience.ParseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
				return nil, resp, resilience.Retryable(apperrors.RateLimitExceeded(0, retryAfter.String()), retryAfter)
			}
		}
		return nil, resp, apperrors.HTTPError(resp.StatusCode, target.String())
	}

	limit := cfg.MaxContentLength
	if limit <= 0 {
		limit = 10 << 20
	}
	if resp.ContentLength > limit {
		return nil, resp, apperrors.ContentTooLarge(target.String(), resp.ContentLength, limit)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, resp, apperrors.Timeout("body read")
		}
		return nil, resp, apperrors.Wrap(apperrors.ErrCodeHTTPError, "body read failed", 502, err)
	}
	if int64(len(body)) > limit {
		return nil, resp, apperrors.ContentTooLarge(target.String(), int64(len(body)), limit)
	}

	return body, resp, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// buildContent walks the parsed document into WebContent.
func (e *Extractor) buildContent(target *url.URL, resp *http.Response, doc *html.Node, cfg ExtractionConfig) *WebContent {
	walker := newDocWalker(target, cfg)
	walker.walk(doc)

	text := normalizeWhitespace(walker.text.String())
	hash := sha256.Sum256([]byte(text))

	content := &WebContent{
		ID:          uuid.New().String(),
		URL:         target.String(),
		Title:       walker.title,
		Content:     text,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		ContentHash: hex.EncodeToString(hash[:]),
		ExtractedAt: time.Now().UTC(),
	}

	if cfg.IncludeLinks {
		content.Links = walker.links
	}
	if cfg.IncludeImages {
		content.Images = walker.images
	}
	if cfg.IncludeMetadata {
		meta := walker.metadata
		meta.Title = walker.title
		meta.ContentLength = len(text)
		meta.LastModified = resp.Header.Get("Last-Modified")
		meta.Domain = target.Hostname()
		meta.IsSecure = target.Scheme == "https"
		content.Metadata = meta
	}
	if cfg.KeepHTML {
		content.HTML = walker.sanitized.String()
	}

	content.Quality = scoreQuality(text, walker.title, content.Links)
	return content
}

// scoreQuality grades content by length, readability, and link density.
func scoreQuality(text, title string, links []Link) ContentQuality {
	if len(text) == 0 {
		return QualityUnknown
	}

	score := 0
	if len(text) > 2000 {
		score += 2
	} else if len(text) > 500 {
		score++
	}
	if title != "" {
		score++
	}

	words := strings.Fields(text)
	if len(words) > 0 {
		var totalLen int
		for _, w := range words {
			totalLen += len(w)
		}
		avgWordLen := float64(totalLen) / float64(len(words))
		if avgWordLen > 3.5 && avgWordLen < 9 {
			score++
		}
	}

	// Pages that are mostly links read as navigation hubs, not content.
	if len(links) > 0 && len(words) > 0 && float64(len(links))/float64(len(words)) > 0.2 {
		score--
	}

	switch {
	case score >= 4:
		return QualityHigh
	case score >= 2:
		return QualityMedium
	default:
		return QualityLow
	}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
