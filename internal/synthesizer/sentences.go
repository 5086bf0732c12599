package synthesizer

import "strings"

// boilerplateMarkers flags sentences that are site chrome rather than
// content. Element-level chrome (nav, footer, header) is already removed
// by the extractor, so only phrase-level markers are needed here.
var boilerplateMarkers = []string{
	"copyright",
	"all rights reserved",
	"privacy policy",
	"terms of service",
	"cookie policy",
	"subscribe",
	"sign up",
	"log in",
	"newsletter",
}

// SplitSentences splits collapsed page text into sentences. A sentence
// ends at a run of '.', '!' or '?' followed by a space or the end of the
// text, so decimals and dotted abbreviations inside a token survive.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	i := 0
	for i < len(text) {
		if !isTerminator(text[i]) {
			i++
			continue
		}
		j := i
		for j < len(text) && isTerminator(text[j]) {
			j++
		}
		if j < len(text) && text[j] != ' ' {
			i = j
			continue
		}
		if s := strings.TrimSpace(text[start:j]); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isBoilerplateSentence(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
