// Package synthesizer turns the scored pages of a finished crawl into a
// summary paragraph and a ranked list of key findings, and assembles the
// final ResearchResult.
package synthesizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/scorer"
	"github.com/IshaanNene/DeepStalk/internal/types"
	"github.com/IshaanNene/DeepStalk/internal/urlutil"
)

const (
	// topPagesForSummary is how many of the best pages contribute text
	// windows to the summary paragraph.
	topPagesForSummary = 5

	// sentencesPerPage caps how many query-term sentences one page may
	// contribute to the summary.
	sentencesPerPage = 3

	// summaryMaxChars bounds the deterministic summary paragraph.
	summaryMaxChars = 1500

	// maxFindings caps the key-findings list.
	maxFindings = 10

	// minFindingSentence skips fragments too short to stand alone as a
	// finding bullet.
	minFindingSentence = 30
)

// Summarizer produces a summary and findings from the top scored pages.
// An LLM-backed implementation can be plugged in; when it is absent or
// fails, the deterministic synthesis below is used.
type Summarizer interface {
	Summarize(ctx context.Context, query string, pages []*types.ScoredPage) (summary string, findings []string, err error)
}

// Input carries everything a finished run hands to Compose.
type Input struct {
	Query      *types.Query
	Hits       []types.SearchHit
	Level1     []*types.ScoredPage
	Level2     []*types.ScoredPage
	Failures   []types.Failure
	StartedAt  time.Time
	FinishedAt time.Time
	TotalLinks int
	SearchErr  error
}

// Synthesizer assembles ResearchResults.
type Synthesizer struct {
	logger     *slog.Logger
	summarizer Summarizer
}

// New creates a Synthesizer without an LLM seat.
func New(logger *slog.Logger) *Synthesizer {
	return &Synthesizer{logger: logger.With("component", "synthesizer")}
}

// SetSummarizer attaches an optional LLM summarizer.
func (s *Synthesizer) SetSummarizer(sum Summarizer) {
	s.summarizer = sum
}

// Compose sorts the pages, builds summary and key findings, and returns
// the assembled result. The page slices are sorted in place.
func (s *Synthesizer) Compose(ctx context.Context, in *Input) *types.ResearchResult {
	scorer.SortPages(in.Level1)
	scorer.SortPages(in.Level2)

	result := &types.ResearchResult{
		Query:                in.Query.Raw,
		StartedAt:            in.StartedAt,
		FinishedAt:           in.FinishedAt,
		ElapsedSeconds:       in.FinishedAt.Sub(in.StartedAt).Seconds(),
		InitialHits:          in.Hits,
		Level1Pages:          level1Entries(in.Level1),
		Level2Pages:          level2Entries(in.Level2),
		KeyFindings:          []string{},
		TotalPagesCrawled:    len(in.Level1) + len(in.Level2),
		TotalLinksDiscovered: in.TotalLinks,
		Failures:             in.Failures,
	}
	if result.InitialHits == nil {
		result.InitialHits = []types.SearchHit{}
	}
	if result.Failures == nil {
		result.Failures = []types.Failure{}
	}

	if in.SearchErr != nil {
		result.KeyFindings = []string{fmt.Sprintf("search-failure: %v", in.SearchErr)}
		return result
	}

	combined := make([]*types.ScoredPage, 0, len(in.Level1)+len(in.Level2))
	combined = append(combined, in.Level1...)
	combined = append(combined, in.Level2...)
	scorer.SortPages(combined)

	lead := leadSentence(in.Query.Raw, result.TotalPagesCrawled, countDomains(combined))

	if result.TotalPagesCrawled == 0 {
		result.Summary = lead + " No pages could be retrieved."
		return result
	}

	if s.summarizer != nil {
		top := combined
		if len(top) > topPagesForSummary {
			top = top[:topPagesForSummary]
		}
		aiSummary, aiFindings, err := s.summarizer.Summarize(ctx, in.Query.Raw, top)
		if err != nil {
			s.logger.Warn("ai summarization failed, falling back to deterministic synthesis", "error", err)
		} else if strings.TrimSpace(aiSummary) != "" {
			result.Summary = lead + " " + strings.TrimSpace(aiSummary)
			if len(aiFindings) > maxFindings {
				aiFindings = aiFindings[:maxFindings]
			}
			if len(aiFindings) > 0 {
				result.KeyFindings = aiFindings
			} else {
				result.KeyFindings = s.buildFindings(in.Query, combined)
			}
			return result
		}
	}

	result.Summary = s.buildSummary(in.Query, lead, combined)
	result.KeyFindings = s.buildFindings(in.Query, combined)
	return result
}

func leadSentence(query string, totalPages, domains int) string {
	return fmt.Sprintf("Research on '%s' surveyed %d pages across %d domains.", query, totalPages, domains)
}

// buildSummary appends up to sentencesPerPage query-term sentences from
// each of the top pages to the lead sentence, deduplicating sentences
// case-insensitively and stopping near the character budget.
func (s *Synthesizer) buildSummary(q *types.Query, lead string, combined []*types.ScoredPage) string {
	var b strings.Builder
	b.WriteString(lead)

	seen := make(map[string]struct{})
	top := combined
	if len(top) > topPagesForSummary {
		top = top[:topPagesForSummary]
	}
	for _, page := range top {
		taken := 0
		for _, sent := range SplitSentences(page.Text) {
			if taken >= sentencesPerPage {
				break
			}
			if !q.ContainsTerm(sent) || isBoilerplateSentence(sent) {
				continue
			}
			key := strings.ToLower(sent)
			if _, dup := seen[key]; dup {
				continue
			}
			if b.Len()+1+len(sent) > summaryMaxChars {
				return b.String()
			}
			seen[key] = struct{}{}
			b.WriteString(" ")
			b.WriteString(sent)
			taken++
		}
	}
	return b.String()
}

// buildFindings emits one bullet per page in scored order, deduplicated
// by host, skipping pages with no text.
func (s *Synthesizer) buildFindings(q *types.Query, combined []*types.ScoredPage) []string {
	findings := make([]string, 0, maxFindings)
	seenHosts := make(map[string]struct{})
	for _, page := range combined {
		if len(findings) >= maxFindings {
			break
		}
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		host := page.Host()
		if _, dup := seenHosts[host]; dup {
			continue
		}
		seenHosts[host] = struct{}{}

		label := page.Title
		if label == "" {
			label = host
		}
		findings = append(findings, fmt.Sprintf("%s — %s (%s)", label, findingSentence(q, page), page.URL))
	}
	return findings
}

// findingSentence picks the first substantial sentence mentioning a query
// term, falling back to the search snippet and then the first sentence.
func findingSentence(q *types.Query, page *types.ScoredPage) string {
	sentences := SplitSentences(page.Text)
	for _, sent := range sentences {
		if len(sent) < minFindingSentence || isBoilerplateSentence(sent) {
			continue
		}
		if q.ContainsTerm(sent) {
			return sent
		}
	}
	if page.Snippet != "" {
		return page.Snippet
	}
	if len(sentences) > 0 {
		return sentences[0]
	}
	return ""
}

func countDomains(pages []*types.ScoredPage) int {
	domains := make(map[string]struct{})
	for _, p := range pages {
		if d := urlutil.RegistrableDomain(p.Host()); d != "" {
			domains[d] = struct{}{}
		}
	}
	return len(domains)
}

func level1Entries(pages []*types.ScoredPage) []types.Level1Page {
	out := make([]types.Level1Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, types.Level1Page{
			URL:            p.URL,
			Title:          p.Title,
			TextExcerpt:    p.Excerpt(types.ExcerptLength),
			OutlinksCount:  len(p.Outlinks),
			Relevance:      p.Relevance,
			FetchElapsedMS: p.FetchElapsed.Milliseconds(),
		})
	}
	return out
}

func level2Entries(pages []*types.ScoredPage) []types.Level2Page {
	out := make([]types.Level2Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, types.Level2Page{
			URL:            p.URL,
			ParentURL:      p.ParentURL,
			Title:          p.Title,
			TextExcerpt:    p.Excerpt(types.ExcerptLength),
			Relevance:      p.Relevance,
			FetchElapsedMS: p.FetchElapsed.Milliseconds(),
		})
	}
	return out
}
