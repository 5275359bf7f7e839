package webnav

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkPage renders a minimal page linking to the given paths.
func linkPage(title string, links ...string) string {
	body := "<html><head><title>" + title + "</title></head><body><p>Content of " + title + " page with several words.</p>"
	for _, link := range links {
		body += fmt.Sprintf(`<a href="%s">link to %s</a>`, link, link)
	}
	return body + "</body></html>"
}

func newTestTraverser(client *http.Client) *Traverser {
	extractor := NewExtractor(client, nil, nil, nil)
	cfg := DefaultExtractionConfig()
	cfg.RespectRobotsTxt = false
	return NewTraverser(extractor, nil, nil, nil, cfg)
}

func TestTraverseCycleSafety(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linkPage("page1", "/page2")))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linkPage("page2", "/page1")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.MaxDepth = 3
	cfg.MaxPages = 10
	cfg.Delay = 0
	cfg.RespectRobotsTxt = false

	result, err := newTestTraverser(server.Client()).Traverse(context.Background(), server.URL+"/page1", cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Statistics.PagesVisited)
	assert.Equal(t, 1, result.Statistics.MaxDepthReached)
	assert.Equal(t, 0, result.Statistics.ErrorsEncountered)

	// Cycle safety: every node URL is unique and matches the visited count.
	seen := make(map[string]bool)
	visited := 0
	for _, node := range result.Nodes {
		assert.False(t, seen[node.URL], "duplicate node %s", node.URL)
		seen[node.URL] = true
		if node.Status == NodeVisited {
			visited++
		}
	}
	assert.Equal(t, result.Statistics.PagesVisited, visited)
	assert.False(t, result.MaxDepthReached)
	assert.False(t, result.PageLimitReached)
}

func TestTraverseDepthOne(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			_, _ = w.Write([]byte(linkPage("start", "/child1", "/child2")))
		case "/child1":
			_, _ = w.Write([]byte(linkPage("child1", "/grandchild")))
		default:
			_, _ = w.Write([]byte(linkPage(r.URL.Path)))
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.MaxDepth = 1
	cfg.MaxPages = 10
	cfg.Delay = 0
	cfg.RespectRobotsTxt = false

	result, err := newTestTraverser(server.Client()).Traverse(context.Background(), server.URL+"/start", cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Statistics.PagesVisited, "start plus its direct links only")
	assert.LessOrEqual(t, result.Statistics.MaxDepthReached, 1)
	for _, node := range result.Nodes {
		assert.NotEqual(t, "/grandchild", node.URL)
	}
}

func TestTraversePageLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Every page links to two fresh pages, unbounded.
		a := r.URL.Path + "a"
		b := r.URL.Path + "b"
		_, _ = w.Write([]byte(linkPage(r.URL.Path, a, b)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.MaxDepth = 10
	cfg.MaxPages = 5
	cfg.Delay = 0
	cfg.RespectRobotsTxt = false

	result, err := newTestTraverser(server.Client()).Traverse(context.Background(), server.URL+"/r", cfg)
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Statistics.PagesVisited, 5)
	assert.True(t, result.PageLimitReached)
	assert.LessOrEqual(t, result.Statistics.MaxDepthReached, cfg.MaxDepth)
}

func TestTraverseRecordsPerPageErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linkPage("start", "/broken", "/fine")))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/fine", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linkPage("fine")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.MaxDepth = 2
	cfg.MaxPages = 10
	cfg.Delay = 0
	cfg.RespectRobotsTxt = false

	result, err := newTestTraverser(server.Client()).Traverse(context.Background(), server.URL+"/start", cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Statistics.PagesVisited)
	assert.Equal(t, 1, result.Statistics.ErrorsEncountered)

	var errorNode *GraphNode
	for i := range result.Nodes {
		if result.Nodes[i].Status == NodeError {
			errorNode = &result.Nodes[i]
		}
	}
	require.NotNil(t, errorNode, "failed page must be recorded")
	assert.NotEmpty(t, errorNode.Error)
}

func TestTraverseExternalLinksSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linkPage("start", "https://external.example/else")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.MaxDepth = 2
	cfg.MaxPages = 10
	cfg.Delay = 0
	cfg.SameDomainOnly = true
	cfg.RespectRobotsTxt = false

	result, err := newTestTraverser(server.Client()).Traverse(context.Background(), server.URL+"/start", cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Statistics.PagesVisited)
	assert.Equal(t, 1, result.Statistics.PagesSkipped)
}

func TestTraverseCancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(linkPage(r.URL.Path, r.URL.Path+"x")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.MaxDepth = 50
	cfg.MaxPages = 1000
	cfg.Delay = 50 * time.Millisecond
	cfg.RespectRobotsTxt = false

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	result, err := newTestTraverser(server.Client()).Traverse(ctx, server.URL+"/r", cfg)
	require.NoError(t, err)

	assert.False(t, result.CompletedAt.IsZero())
	assert.Less(t, result.Statistics.PagesVisited, 1000)
}

func TestTraverseDFSOrder(t *testing.T) {
	var order []string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		order = append(order, r.URL.Path)
		switch r.URL.Path {
		case "/root":
			_, _ = w.Write([]byte(linkPage("root", "/a", "/b")))
		case "/a":
			_, _ = w.Write([]byte(linkPage("a", "/a1")))
		default:
			_, _ = w.Write([]byte(linkPage(r.URL.Path)))
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultTraversalConfig()
	cfg.Strategy = StrategyDFS
	cfg.MaxDepth = 3
	cfg.MaxPages = 10
	cfg.Delay = 0
	cfg.RespectRobotsTxt = false

	_, err := newTestTraverser(server.Client()).Traverse(context.Background(), server.URL+"/root", cfg)
	require.NoError(t, err)

	// The /a subtree completes before /b starts.
	require.Equal(t, []string{"/root", "/a", "/a1", "/b"}, order)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://Example.COM/Path/", want: "https://example.com/Path"},
		{in: "https://example.com/page#section", want: "https://example.com/page"},
		{in: "https://example.com/", want: "https://example.com/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}
