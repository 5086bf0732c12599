package types

import (
	"net/url"
	"time"
)

// Outlink is one anchor extracted from a page, resolved and normalized.
type Outlink struct {
	URL    string
	Anchor string
}

// Page is the extracted content of one successfully fetched URL. Pages are
// produced once and never mutated after they join the result.
type Page struct {
	// URL is the normalized URL the page was admitted under.
	URL string

	// Level is 1 for search hits, 2 for pages reached via outlinks.
	Level int

	// ParentURL is the Level 1 page this one was linked from (Level 2 only).
	ParentURL string

	// Rank is the origin search-hit position (inherited by Level 2 pages).
	Rank int

	// Snippet is the originating search-result snippet, if any.
	Snippet string

	// Title is the trimmed document title, or "" when absent.
	Title string

	// Text is the visible page text with boilerplate stripped and whitespace
	// collapsed, truncated to the extractor's content cap.
	Text string

	// Outlinks are the deduped absolute links found on the page.
	Outlinks []Outlink

	// FetchElapsed is how long the successful fetch took.
	FetchElapsed time.Duration
}

// Host returns the host of the page URL, or "" if it cannot be parsed.
func (p *Page) Host() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Excerpt returns the first n bytes of the page text, cut at a rune boundary.
func (p *Page) Excerpt(n int) string {
	if len(p.Text) <= n {
		return p.Text
	}
	cut := n
	for cut > 0 && p.Text[cut]&0xC0 == 0x80 {
		cut--
	}
	return p.Text[:cut]
}

// ScoredPage is a Page with its lexical relevance attached.
type ScoredPage struct {
	*Page

	// Relevance is the bounded score in [0, 1].
	Relevance float64

	// TermHits counts occurrences per query term (body plus title).
	TermHits map[string]int
}
