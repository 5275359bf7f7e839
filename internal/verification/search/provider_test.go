package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportsQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		snippet  string
		supports bool
	}{
		{
			name:     "high overlap supports",
			query:    "Earth orbits the Sun yearly",
			snippet:  "The Earth orbits the Sun once per year",
			supports: true,
		},
		{
			name:     "no overlap does not support",
			query:    "Earth orbits the Sun",
			snippet:  "Bananas contain potassium",
			supports: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			supports, confidence := supportsQuery(tt.query, "", tt.snippet)
			assert.Equal(t, tt.supports, supports)
			assert.GreaterOrEqual(t, confidence, 0.0)
			assert.LessOrEqual(t, confidence, 1.0)
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world 42", normalizeText("  Hello,   WORLD! 42 "))
	assert.Equal(t, "", normalizeText("!!!"))
}

func TestSignificantTerms(t *testing.T) {
	terms := significantTerms("The Earth orbits the Sun")
	assert.Equal(t, []string{"earth", "orbits", "sun"}, terms)
}

func TestMockProviderDeterministic(t *testing.T) {
	mock := NewMockProvider()

	first, err := mock.Search(context.Background(), "some claim")
	require.NoError(t, err)
	second, err := mock.Search(context.Background(), "some claim")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)

	other, err := mock.Search(context.Background(), "a different claim")
	require.NoError(t, err)
	assert.NotEqual(t, first[0].URL, other[0].URL)
}

func TestDuckDuckGoProviderParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Heading": "Earth",
			"AbstractText": "Earth orbits the Sun once a year",
			"AbstractURL": "https://en.wikipedia.org/wiki/Earth",
			"RelatedTopics": [
				{"Text": "Solar System overview", "FirstURL": "https://example.com/solar"},
				{"Text": "", "FirstURL": "https://example.com/empty"}
			]
		}`))
	}))
	defer server.Close()

	provider := NewDuckDuckGoProvider(server.Client())
	provider.baseURL = server.URL

	refs, err := provider.Search(context.Background(), "Earth orbits the Sun")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "https://en.wikipedia.org/wiki/Earth", refs[0].URL)
	assert.True(t, refs[0].Supports)
	assert.Equal(t, "https://example.com/solar", refs[1].URL)
}

func TestBraveProviderSendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("X-Subscription-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"url":"https://a.example/1","title":"One","description":"first result"},
			{"url":"https://a.example/2","title":"Two","description":"second result"}
		]}}`))
	}))
	defer server.Close()

	provider := NewBraveProvider(server.Client(), "secret-token")
	provider.baseURL = server.URL

	refs, err := provider.Search(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestGoogleProviderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	provider := NewGoogleProvider(server.Client(), "key", "cx")
	provider.baseURL = server.URL

	_, err := provider.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestBingProviderParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bing-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"webPages":{"value":[
			{"url":"https://b.example/1","name":"Result","snippet":"a snippet"}
		]}}`))
	}))
	defer server.Close()

	provider := NewBingProvider(server.Client(), "bing-key")
	provider.baseURL = server.URL

	refs, err := provider.Search(context.Background(), "query words")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://b.example/1", refs[0].URL)
}
