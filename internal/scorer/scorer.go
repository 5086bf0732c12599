// Package scorer assigns each crawled page a deterministic lexical
// relevance in [0,1]. No model calls, no randomness: the same query and
// page always produce the same score, which keeps result ordering stable.
package scorer

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/IshaanNene/DeepStalk/internal/types"
)

// Weights of the three scoring components. Coverage dominates: a page
// mentioning every query term beats one repeating a single term.
const (
	coverageWeight = 0.5
	densityWeight  = 0.3
	titleWeight    = 0.2
)

// densityWindow is the text length, in bytes, over which one term
// occurrence counts as full density.
const densityWindow = 500

// Scorer computes relevance scores.
type Scorer struct {
	logger *slog.Logger
}

// New creates a scorer.
func New(logger *slog.Logger) *Scorer {
	return &Scorer{
		logger: logger.With("component", "scorer"),
	}
}

// Score computes the relevance of a page for a query:
//
//	relevance = clamp(0, 1, 0.5*C + 0.3*D + 0.2*B)
//
// where C is the fraction of query terms present anywhere in the page,
// D is body occurrences normalized by text length, and B is title
// occurrences normalized by term count. Matching is case-insensitive
// substring matching.
func (s *Scorer) Score(query *types.Query, page *types.Page) *types.ScoredPage {
	title := strings.ToLower(page.Title)
	text := strings.ToLower(page.Text)

	termHits := make(map[string]int, len(query.Terms))
	var matched, bodyHits, titleHits int
	for _, term := range query.Terms {
		inBody := strings.Count(text, term)
		inTitle := strings.Count(title, term)
		termHits[term] = inBody + inTitle
		if inBody+inTitle > 0 {
			matched++
		}
		bodyHits += inBody
		titleHits += inTitle
	}

	scored := &types.ScoredPage{Page: page, TermHits: termHits}
	nTerms := len(query.Terms)
	if nTerms == 0 {
		return scored
	}

	coverage := float64(matched) / float64(nTerms)
	density := math.Min(1, float64(bodyHits)/math.Max(1, float64(len(text))/densityWindow))
	boost := math.Min(1, float64(titleHits)/float64(nTerms))

	scored.Relevance = clamp01(coverageWeight*coverage + densityWeight*density + titleWeight*boost)
	s.logger.Debug("scored page",
		"url", page.URL,
		"relevance", scored.Relevance,
		"terms_matched", matched,
		"body_hits", bodyHits,
		"title_hits", titleHits,
	)
	return scored
}

// SortPages orders pages for presentation: relevance descending, then
// level ascending, then rank ascending, then URL. The full chain makes
// the order total, so equal-relevance pages cannot flip between runs.
func SortPages(pages []*types.ScoredPage) {
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.URL < b.URL
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
