package types

import "strings"

// stopWords are dropped during query tokenization. Matching is lexical, so
// filler words only dilute coverage.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "it": {}, "its": {}, "as": {}, "from": {},
	"about": {}, "into": {}, "than": {}, "then": {}, "so": {}, "if": {},
	"not": {}, "no": {}, "what": {}, "which": {}, "who": {}, "whom": {},
	"how": {}, "when": {}, "where": {}, "why": {},
}

// Query is a research query plus its tokenized terms.
// Terms are lowercased, stop-word-filtered, and deduped, preserving the order
// of first occurrence so downstream iteration stays deterministic.
type Query struct {
	Raw   string
	Terms []string
}

// NewQuery tokenizes a raw query string.
func NewQuery(raw string) *Query {
	q := &Query{Raw: strings.TrimSpace(raw)}

	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(q.Raw)) {
		tok = strings.Trim(tok, `.,;:!?"'()[]{}<>`)
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		q.Terms = append(q.Terms, tok)
	}
	return q
}

// ContainsTerm reports whether any query term appears in s (case-insensitive).
func (q *Query) ContainsTerm(s string) bool {
	if len(q.Terms) == 0 {
		return false
	}
	lower := strings.ToLower(s)
	for _, term := range q.Terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
