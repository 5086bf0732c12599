package types

import "time"

// Level1Page is the wire form of a crawled search hit.
type Level1Page struct {
	URL            string  `json:"url" bson:"url"`
	Title          string  `json:"title" bson:"title"`
	TextExcerpt    string  `json:"text_excerpt" bson:"text_excerpt"`
	OutlinksCount  int     `json:"outlinks_count" bson:"outlinks_count"`
	Relevance      float64 `json:"relevance" bson:"relevance"`
	FetchElapsedMS int64   `json:"fetch_elapsed_ms" bson:"fetch_elapsed_ms"`
}

// Level2Page is the wire form of a page reached through a Level 1 outlink.
type Level2Page struct {
	URL            string  `json:"url" bson:"url"`
	ParentURL      string  `json:"parent_url" bson:"parent_url"`
	Title          string  `json:"title" bson:"title"`
	TextExcerpt    string  `json:"text_excerpt" bson:"text_excerpt"`
	Relevance      float64 `json:"relevance" bson:"relevance"`
	FetchElapsedMS int64   `json:"fetch_elapsed_ms" bson:"fetch_elapsed_ms"`
}

// Failure records one URL that was admitted but produced no page.
type Failure struct {
	URL       string `json:"url" bson:"url"`
	Level     int    `json:"level" bson:"level"`
	Status    string `json:"status" bson:"status"`
	HTTPCode  int    `json:"http_code,omitempty" bson:"http_code,omitempty"`
	ErrorKind string `json:"error_kind" bson:"error_kind"`
}

// ResearchResult is the final output of a research run: everything the JSON
// emitter, the archive backends, and the PDF report consume.
type ResearchResult struct {
	Query          string    `json:"query" bson:"query"`
	StartedAt      time.Time `json:"started_at" bson:"started_at"`
	FinishedAt     time.Time `json:"finished_at" bson:"finished_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds" bson:"elapsed_seconds"`

	InitialHits []SearchHit  `json:"initial_hits" bson:"initial_hits"`
	Level1Pages []Level1Page `json:"level1_pages" bson:"level1_pages"`
	Level2Pages []Level2Page `json:"level2_pages" bson:"level2_pages"`

	Summary     string   `json:"summary" bson:"summary"`
	KeyFindings []string `json:"key_findings" bson:"key_findings"`

	TotalPagesCrawled    int `json:"total_pages_crawled" bson:"total_pages_crawled"`
	TotalLinksDiscovered int `json:"total_links_discovered" bson:"total_links_discovered"`

	Failures []Failure `json:"failures" bson:"failures"`
}

// ExcerptLength is how much page text the wire shape carries per page.
const ExcerptLength = 500
