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

// BingProvider queries the Bing Web Search API. Requires a subscription key
// sent via the Ocp-Apim-Subscription-Key header.
type BingProvider struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewBingProvider creates the adapter. client may be nil.
func NewBingProvider(client *http.Client, apiKey string) *BingProvider {
	return &BingProvider{
		client:  httputil.CopyHTTPClientWithTimeout(client, DefaultTimeout, false),
		apiKey:  apiKey,
		baseURL: "https://api.bing.microsoft.com/v7.0/search",
	}
}

func (p *BingProvider) Name() string { return "bing" }

func (p *BingProvider) Search(ctx context.Context, query string) ([]Reference, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s&count=10", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var refs []Reference
	gjson.GetBytes(body, "webPages.value").ForEach(func(_, item gjson.Result) bool {
		link := item.Get("url").String()
		title := item.Get("name").String()
		snippet := item.Get("snippet").String()
		if link == "" {
			return true
		}
		supports, overlap := supportsQuery(query, title, snippet)
		refs = append(refs, Reference{
			URL:        link,
			Title:      title,
			Snippet:    snippet,
			Quality:    0.7,
			Supports:   supports,
			Confidence: overlap,
		})
		return len(refs) < 10
	})

	return refs, nil
}

var _ Provider = (*BingProvider)(nil)
