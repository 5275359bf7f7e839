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

// GoogleProvider queries the Google Custom Search JSON API. Requires an API
// key and a search engine ID.
type GoogleProvider struct {
	client   *http.Client
	apiKey   string
	engineID string
	baseURL  string
}

// NewGoogleProvider creates the adapter. client may be nil.
func NewGoogleProvider(client *http.Client, apiKey, engineID string) *GoogleProvider {
	return &GoogleProvider{
		client:   httputil.CopyHTTPClientWithTimeout(client, DefaultTimeout, false),
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  "https://www.googleapis.com/customsearch/v1",
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Search(ctx context.Context, query string) ([]Reference, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?key=%s&cx=%s&q=%s",
		p.baseURL, url.QueryEscape(p.apiKey), url.QueryEscape(p.engineID), url.QueryEscape(query))
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
		return nil, fmt.Errorf("google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var refs []Reference
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		link := item.Get("link").String()
		title := item.Get("title").String()
		snippet := item.Get("snippet").String()
		if link == "" {
			return true
		}
		supports, overlap := supportsQuery(query, title, snippet)
		refs = append(refs, Reference{
			URL:        link,
			Title:      title,
			Snippet:    snippet,
			Quality:    0.75,
			Supports:   supports,
			Confidence: overlap,
		})
		return len(refs) < 10
	})

	return refs, nil
}

var _ Provider = (*GoogleProvider)(nil)
