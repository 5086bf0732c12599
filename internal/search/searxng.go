package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// SearxNG queries a self-hosted SearxNG instance over its JSON API.
// The instance must have the json format enabled in its settings.
type SearxNG struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewSearxNG creates the provider. Search.BaseURL is the instance root,
// e.g. "https://searx.example.org".
func NewSearxNG(cfg *config.Config, logger *slog.Logger) *SearxNG {
	return &SearxNG{
		baseURL: strings.TrimRight(cfg.Search.BaseURL, "/"),
		apiKey:  cfg.Search.APIKey,
		client: &http.Client{
			Timeout: cfg.Fetcher.RequestTimeout,
		},
		logger: logger.With("component", "search_searxng"),
	}
}

// Name implements Provider.
func (s *SearxNG) Name() string { return "searxng" }

// Search implements Provider.
func (s *SearxNG) Search(ctx context.Context, query string, limit int) ([]types.SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &types.SearchError{Provider: s.Name(), Query: query, Err: err}
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &types.SearchError{Provider: s.Name(), Query: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.SearchError{
			Provider: s.Name(),
			Query:    query,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var payload struct {
		Results []struct {
			URL     string `json:"url"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &types.SearchError{Provider: s.Name(), Query: query, Err: fmt.Errorf("decode response: %w", err)}
	}

	var hits []types.SearchHit
	for _, r := range payload.Results {
		if limit > 0 && len(hits) >= limit {
			break
		}
		if r.URL == "" {
			continue
		}
		hits = append(hits, types.SearchHit{
			URL:     r.URL,
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(r.Content),
			Rank:    len(hits) + 1,
		})
	}

	s.logger.Debug("search complete", "query", query, "hits", len(hits))
	return hits, nil
}
