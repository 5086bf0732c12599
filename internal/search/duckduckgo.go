package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

const defaultDuckDuckGoBase = "https://html.duckduckgo.com"

// DuckDuckGo scrapes the HTML (no-JS) endpoint of DuckDuckGo. It needs no
// API key, which makes it the default provider.
type DuckDuckGo struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// NewDuckDuckGo creates the provider. Search.BaseURL overrides the public
// endpoint, which is how tests point it at a local server.
func NewDuckDuckGo(cfg *config.Config, logger *slog.Logger) *DuckDuckGo {
	base := cfg.Search.BaseURL
	if base == "" {
		base = defaultDuckDuckGoBase
	}
	return &DuckDuckGo{
		baseURL:   strings.TrimRight(base, "/"),
		userAgent: cfg.Fetcher.UserAgent,
		client: &http.Client{
			Timeout: cfg.Fetcher.RequestTimeout,
		},
		logger: logger.With("component", "search_duckduckgo"),
	}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements Provider.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]types.SearchHit, error) {
	endpoint := d.baseURL + "/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, &types.SearchError{Provider: d.Name(), Query: query, Err: err}
	}
	// The HTML endpoint serves a captcha to the default Go user agent.
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &types.SearchError{Provider: d.Name(), Query: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &types.SearchError{
			Provider: d.Name(),
			Query:    query,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, &types.SearchError{Provider: d.Name(), Query: query, Err: err}
	}

	hits := d.parseResults(doc, limit)
	d.logger.Debug("search complete", "query", query, "hits", len(hits))
	return hits, nil
}

// parseResults walks the result blocks of the HTML endpoint. Ads carry a
// result--ad class on the enclosing div and are skipped.
func (d *DuckDuckGo) parseResults(doc *html.Node, limit int) []types.SearchHit {
	nodes, err := htmlquery.QueryAll(doc, "//div[contains(@class,'result__body')]")
	if err != nil {
		return nil
	}

	var hits []types.SearchHit
	for _, node := range nodes {
		if limit > 0 && len(hits) >= limit {
			break
		}
		if ancestorHasClass(node, "result--ad") {
			continue
		}

		link, err := htmlquery.Query(node, ".//a[contains(@class,'result__a')]")
		if err != nil || link == nil {
			continue
		}
		target := decodeRedirect(htmlquery.SelectAttr(link, "href"))
		if target == "" {
			continue
		}

		hit := types.SearchHit{
			URL:   target,
			Title: strings.TrimSpace(htmlquery.InnerText(link)),
			Rank:  len(hits) + 1,
		}
		if snippet, err := htmlquery.Query(node, ".//*[contains(@class,'result__snippet')]"); err == nil && snippet != nil {
			hit.Snippet = strings.TrimSpace(htmlquery.InnerText(snippet))
		}
		hits = append(hits, hit)
	}
	return hits
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=... redirect links and
// normalizes scheme-relative hrefs. Returns "" for links it cannot use.
func decodeRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func ancestorHasClass(node *html.Node, class string) bool {
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, class) {
				return true
			}
		}
	}
	return false
}
