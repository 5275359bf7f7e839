package webnav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Sample Article</title>
<meta name="description" content="A sample description">
<meta name="author" content="Jane Writer">
<meta property="og:title" content="Sample Article OG">
<script>alert("nope")</script>
</head>
<body>
<nav><a href="/home">Home</a></nav>
<article>
<h1>Sample Article</h1>
<p>This is the body text of the sample article with enough words to matter.</p>
<a href="/page2">Next page</a>
<a href="https://other.example/external">External reference</a>
<img src="/img/photo.jpg" alt="A photo" width="640" height="480">
</article>
<footer>Footer text</footer>
</body>
</html>`

func newTestExtractor(client *http.Client) *Extractor {
	return NewExtractor(client, nil, nil, nil)
}

func TestExtractParsesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	content, err := newTestExtractor(server.Client()).Extract(context.Background(), server.URL+"/article", cfg)
	require.NoError(t, err)

	assert.Equal(t, "Sample Article", content.Title)
	assert.Contains(t, content.Content, "body text of the sample article")
	assert.NotContains(t, content.Content, "alert", "script content must be stripped")
	assert.NotContains(t, content.Content, "Home", "nav must be stripped")
	assert.NotContains(t, content.Content, "Footer text", "footer must be stripped")

	assert.Equal(t, "A sample description", content.Metadata.Description)
	assert.Equal(t, "Jane Writer", content.Metadata.Author)
	assert.Equal(t, "en", content.Metadata.Language)
	assert.Equal(t, "Sample Article OG", content.Metadata.OpenGraph["og:title"])

	require.Len(t, content.Links, 2)
	internal, external := content.Links[0], content.Links[1]
	assert.True(t, internal.Internal)
	assert.False(t, external.Internal)

	require.Len(t, content.Images, 1)
	assert.Equal(t, 640, content.Images[0].Width)
	assert.Equal(t, "A photo", content.Images[0].Alt)

	assert.NotEmpty(t, content.ContentHash)
	assert.NotEqual(t, QualityUnknown, content.Quality)
}

func TestExtractContentHashStable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	extractor := newTestExtractor(server.Client())

	first, err := extractor.Extract(context.Background(), server.URL+"/a", cfg)
	require.NoError(t, err)
	second, err := extractor.Extract(context.Background(), server.URL+"/b", cfg)
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash, "identical content hashes identically")
}

func TestExtractRejectsForbiddenSchemes(t *testing.T) {
	extractor := newTestExtractor(nil)
	cfg := DefaultExtractionConfig()

	for _, rawURL := range []string{
		"javascript:alert(1)",
		"data:text/html,<b>x</b>",
		"ftp://example.com/file",
	} {
		_, err := extractor.Extract(context.Background(), rawURL, cfg)
		require.Error(t, err, rawURL)
	}
}

func TestExtractHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	_, err := newTestExtractor(server.Client()).Extract(context.Background(), server.URL, cfg)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeHTTPError))
}

func TestExtractContentTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("x", 4096) + "</body></html>"))
	}))
	defer server.Close()

	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	cfg.MaxContentLength = 1024
	_, err := newTestExtractor(server.Client()).Extract(context.Background(), server.URL, cfg)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContentTooLarge))
}

func TestExtractTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	cfg.Timeout = 50 * time.Millisecond
	_, err := newTestExtractor(server.Client()).Extract(context.Background(), server.URL, cfg)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout))
}

func TestExtractRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>open</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	robots := NewRobotsCache(server.Client(), "TestBot/1.0", time.Hour)
	extractor := NewExtractor(server.Client(), robots, nil, nil)
	cfg := DefaultExtractionConfig()

	_, err := extractor.Extract(context.Background(), server.URL+"/private/page", cfg)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRobotsDisallow))

	_, err = extractor.Extract(context.Background(), server.URL+"/public/page", cfg)
	require.NoError(t, err)
}

func TestSanitizedHTMLDropsEventHandlers(t *testing.T) {
	page := `<html><body><div onclick="evil()"><a href="javascript:evil()">x</a><p>safe text</p></div></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	cfg.KeepHTML = true
	content, err := newTestExtractor(server.Client()).Extract(context.Background(), server.URL, cfg)
	require.NoError(t, err)

	assert.NotContains(t, content.HTML, "onclick")
	assert.NotContains(t, content.HTML, "javascript:")
	assert.Contains(t, content.HTML, "safe text")
}

func TestParseRobots(t *testing.T) {
	rules := parseRobots(strings.NewReader(`
# comment
User-agent: special-bot
Disallow: /only-for-special

User-agent: *
Disallow: /admin
Disallow: /tmp/
`))
	assert.Equal(t, []string{"/admin", "/tmp/"}, rules)
}

func TestScoreQuality(t *testing.T) {
	longText := strings.Repeat("meaningful words in a sentence ", 100)
	assert.Equal(t, QualityHigh, scoreQuality(longText, "A Title", nil))
	assert.Equal(t, QualityUnknown, scoreQuality("", "", nil))

	short := scoreQuality("tiny", "", nil)
	assert.Equal(t, QualityLow, short)
}
