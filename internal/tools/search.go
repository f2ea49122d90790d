package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
)

const defaultSerpURL = "https://serpapi.com/search"

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchClient queries a SERP-style web search API.
type SearchClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSearchClient(apiKey string) *SearchClient {
	return &SearchClient{
		apiKey:  apiKey,
		baseURL: defaultSerpURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search runs a query and returns up to count results.
func (s *SearchClient) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if s.apiKey == "" {
		return nil, fault.New(fault.KindConfig,
			"web search needs SERP_API_KEY (config api_keys.serp)")
	}
	if count <= 0 || count > 10 {
		count = 5
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("api_key", s.apiKey)
	q.Set("num", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "build search request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "search request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fault.New(fault.KindConfig, "search API rejected credentials (HTTP %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fault.New(fault.KindTransient, "search API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "read search response")
	}
	var parsed serpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "decode search response")
	}
	if parsed.Error != "" {
		return nil, fault.New(fault.KindProtocol, "search API error: %s", parsed.Error)
	}

	results := make([]SearchResult, 0, count)
	for _, r := range parsed.OrganicResults {
		results = append(results, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
		if len(results) >= count {
			break
		}
	}
	return results, nil
}

// RegisterSearchTool exposes web_search.
func RegisterSearchTool(r *Registry, sc *SearchClient) error {
	return r.Register(Spec{
		Name:        "web_search",
		Description: "Search the web and return titles, links and snippets.",
		Kind:        KindLocal,
		Params: map[string]ParamSpec{
			"query": {Type: "string", Required: true, Description: "Search query"},
			"count": {Type: "integer", Description: "Number of results, 1-10 (default 5)"},
		},
		Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
			count, _ := argInt64(args, "count")
			results, err := sc.Search(ctx, argString(args, "query"), int(count))
			if err != nil {
				return nil, err
			}
			return &envelope.Result{Payload: map[string]any{"results": results, "count": len(results)}}, nil
		},
	})
}
