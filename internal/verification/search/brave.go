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

// BraveProvider queries the Brave Search API. Requires an API key sent via
// the X-Subscription-Token header.
type BraveProvider struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewBraveProvider creates the adapter. client may be nil.
func NewBraveProvider(client *http.Client, apiKey string) *BraveProvider {
	return &BraveProvider{
		client:  httputil.CopyHTTPClientWithTimeout(client, DefaultTimeout, false),
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
	}
}

func (p *BraveProvider) Name() string { return "brave" }

func (p *BraveProvider) Search(ctx context.Context, query string) ([]Reference, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s&count=10", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var refs []Reference
	gjson.GetBytes(body, "web.results").ForEach(func(_, item gjson.Result) bool {
		resultURL := item.Get("url").String()
		title := item.Get("title").String()
		description := item.Get("description").String()
		if resultURL == "" {
			return true
		}
		supports, overlap := supportsQuery(query, title, description)
		refs = append(refs, Reference{
			URL:        resultURL,
			Title:      title,
			Snippet:    description,
			Quality:    0.7,
			Supports:   supports,
			Confidence: overlap,
		})
		return len(refs) < 10
	})

	return refs, nil
}

var _ Provider = (*BraveProvider)(nil)
