// Package extractor turns a fetched HTML body into a Page: title, visible
// text, and resolved outlinks.
package extractor

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/DeepStalk/internal/types"
	"github.com/IshaanNene/DeepStalk/internal/urlutil"
)

// maxTextBytes caps the extracted text of a single page. Pages rarely get
// near it after boilerplate removal; it bounds scorer and synthesizer work.
const maxTextBytes = 1_000_000

// boilerplateSelector matches elements whose text is navigation chrome
// rather than content.
const boilerplateSelector = "script, style, noscript, template, nav, footer, header, aside"

// Extractor parses fetched pages with goquery.
type Extractor struct {
	logger *slog.Logger
}

// New creates an extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// Extract builds a Page from a successful fetch. The page keeps the task's
// normalized URL as its identity; outlinks resolve against the final URL so
// redirected pages produce correct absolute links.
func (e *Extractor) Extract(task *types.CrawlTask, outcome *types.FetchOutcome) (*types.Page, error) {
	if len(outcome.Body) == 0 {
		return nil, &types.ExtractError{URL: outcome.URL, Err: types.ErrEmptyResponse}
	}

	doc, err := outcome.Document()
	if err != nil {
		return nil, &types.ExtractError{URL: outcome.URL, Err: err}
	}

	base := task.URL
	if outcome.FinalURL != "" {
		if parsed, err := url.Parse(outcome.FinalURL); err == nil {
			base = parsed
		}
	}

	page := &types.Page{
		URL:          task.URLString(),
		Level:        task.Level,
		ParentURL:    task.ParentURL,
		Rank:         task.Rank,
		Snippet:      task.Snippet,
		Title:        collapseWhitespace(doc.Find("title").First().Text()),
		Text:         e.extractText(doc),
		Outlinks:     e.extractOutlinks(doc, base),
		FetchElapsed: outcome.Elapsed,
	}

	e.logger.Debug("extracted page",
		"url", page.URL,
		"title", page.Title,
		"text_len", len(page.Text),
		"outlinks", len(page.Outlinks),
	)

	return page, nil
}

// extractText returns the visible text of the body with boilerplate
// elements removed and whitespace collapsed. HTML comments never appear:
// goquery's Text() only walks text nodes.
func (e *Extractor) extractText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find(boilerplateSelector).Remove()

	text := collapseWhitespace(body.Text())
	if len(text) > maxTextBytes {
		text = truncateUTF8(text, maxTextBytes)
	}
	return text
}

// extractOutlinks finds all usable <a href> links, resolved against base
// and normalized. Order follows document order; duplicates keep the first
// occurrence's anchor text.
func (e *Extractor) extractOutlinks(doc *goquery.Document, base *url.URL) []types.Outlink {
	seen := make(map[string]bool)
	var links []types.Outlink

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}

		// Skip anchors, javascript:, mailto:, tel:, data:
		href = strings.TrimSpace(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "data:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		normalized, err := urlutil.Normalize(base.ResolveReference(parsed).String())
		if err != nil {
			return
		}
		if seen[normalized] {
			return
		}
		seen[normalized] = true

		links = append(links, types.Outlink{
			URL:    normalized,
			Anchor: collapseWhitespace(sel.Text()),
		})
	})

	return links
}

// collapseWhitespace trims and folds all whitespace runs into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateUTF8 cuts s at no more than n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
