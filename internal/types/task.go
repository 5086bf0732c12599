package types

import (
	"fmt"
	"net/url"
	"time"
)

// SearchHit is a single result from the search provider.
type SearchHit struct {
	URL     string `json:"url" bson:"url"`
	Title   string `json:"title" bson:"title"`
	Snippet string `json:"snippet" bson:"snippet"`
	Rank    int    `json:"rank" bson:"rank"`
}

// CrawlTask is one unit of work for the fetch workers. Level 1 tasks come
// straight from search hits; Level 2 tasks are outlinks selected from a
// Level 1 page. Tasks are created by the planner, consumed by the fetcher,
// and discarded after the fetch is terminal.
type CrawlTask struct {
	// URL is the normalized target URL.
	URL *url.URL

	// Level is the BFS depth: 1 for search hits, 2 for their outlinks.
	Level int

	// ParentURL is the Level 1 page this task was discovered on (Level 2 only).
	ParentURL string

	// Snippet is the originating search-result snippet (Level 1 only).
	Snippet string

	// Rank is the origin search-hit position (1-based). Level 2 tasks inherit
	// their parent's rank for ordering purposes.
	Rank int

	// RetryCount tracks how many times this task has been re-queued.
	RetryCount int

	// CreatedAt is when this task was admitted to the frontier.
	CreatedAt time.Time
}

// NewCrawlTask creates a task for an already-normalized URL.
func NewCrawlTask(normalizedURL string, level, rank int) (*CrawlTask, error) {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", normalizedURL, err)
	}
	return &CrawlTask{
		URL:       u,
		Level:     level,
		Rank:      rank,
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string form of the task URL.
func (t *CrawlTask) URLString() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.String()
}

// Host returns the host (including any non-default port) of the task URL.
// Distinct ports are distinct authorities for politeness purposes.
func (t *CrawlTask) Host() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.Host
}
