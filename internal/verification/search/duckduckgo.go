package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/httputil"
)

// DuckDuckGoProvider queries the DuckDuckGo Instant Answers API. No API key
// is required.
type DuckDuckGoProvider struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGoProvider creates the adapter. client may be nil.
func NewDuckDuckGoProvider(client *http.Client) *DuckDuckGoProvider {
	return &DuckDuckGoProvider{
		client:  httputil.CopyHTTPClientWithTimeout(client, DefaultTimeout, false),
		baseURL: "https://api.duckduckgo.com",
	}
}

func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

// Search queries the instant-answer endpoint and normalizes the abstract
// plus related topics.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string) ([]Reference, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var refs []Reference

	abstract := gjson.GetBytes(body, "AbstractText").String()
	abstractURL := gjson.GetBytes(body, "AbstractURL").String()
	if abstract != "" && abstractURL != "" {
		supports, overlap := supportsQuery(query, gjson.GetBytes(body, "Heading").String(), abstract)
		refs = append(refs, Reference{
			URL:        abstractURL,
			Title:      gjson.GetBytes(body, "Heading").String(),
			Snippet:    abstract,
			Quality:    0.8,
			Supports:   supports,
			Confidence: overlap,
		})
	}

	gjson.GetBytes(body, "RelatedTopics").ForEach(func(_, topic gjson.Result) bool {
		text := topic.Get("Text").String()
		firstURL := topic.Get("FirstURL").String()
		if text == "" || firstURL == "" {
			return true
		}
		supports, overlap := supportsQuery(query, "", text)
		refs = append(refs, Reference{
			URL:        firstURL,
			Title:      text,
			Snippet:    text,
			Quality:    0.6,
			Supports:   supports,
			Confidence: overlap,
		})
		return len(refs) < 10
	})

	return refs, nil
}

var _ Provider = (*DuckDuckGoProvider)(nil)
