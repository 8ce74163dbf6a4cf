// Package compress implements extractive context compression: keep the
// sentences most relevant to the query until the token target fits.
// This is linear heuristic scoring, not summarization; the output is
// always a subset of the input sentences in their original order.
package compress

import (
	"regexp"
	"sort"
	"strings"

	"github.com/samlabs/sam-go/budget"
)

// Compressor scores and selects sentences.
type Compressor struct {
	// MinKeep is the number of sentences always retained when the
	// input has at least that many. Defaults to 1.
	MinKeep int
}

// New returns a compressor with defaults.
func New() *Compressor {
	return &Compressor{MinKeep: 1}
}

var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// Compress reduces text toward targetTokens, preferring sentences that
// share keywords with the query. Satisfies budget.Compressor.
func (c *Compressor) Compress(text, query string, targetTokens int, est budget.Estimator) string {
	if targetTokens <= 0 {
		return ""
	}
	if est.Estimate(text) <= targetTokens {
		return text
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return text // nothing to drop at sentence granularity
	}

	queryTerms := keywords(query)

	type scored struct {
		index int
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		ranked = append(ranked, scored{
			index: i,
			text:  s,
			score: scoreSentence(s, i, len(sentences), queryTerms),
		})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	minKeep := c.MinKeep
	if minKeep < 1 {
		minKeep = 1
	}

	// Greedily keep top-scoring sentences while the running estimate
	// fits, then restore original order.
	kept := make([]scored, 0, len(ranked))
	used := 0
	for _, s := range ranked {
		cost := est.Estimate(s.text)
		if used+cost > targetTokens && len(kept) >= minKeep {
			continue
		}
		kept = append(kept, s)
		used += cost
		if used >= targetTokens {
			break
		}
	}

	sort.Slice(kept, func(a, b int) bool { return kept[a].index < kept[b].index })

	parts := make([]string, len(kept))
	for i, s := range kept {
		parts[i] = s.text
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// splitSentences breaks text on sentence punctuation and newlines.
func splitSentences(text string) []string {
	raw := sentenceRe.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// scoreSentence is the linear relevance heuristic: query-term overlap
// dominates, earlier sentences get a position bonus, very short
// fragments are penalized.
func scoreSentence(s string, index, total int, queryTerms map[string]struct{}) float64 {
	var score float64

	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if _, ok := queryTerms[w]; ok {
			score += 1.0
		}
	}

	// Position bonus: leading sentences usually carry the topic.
	if total > 1 {
		score += 0.5 * (1.0 - float64(index)/float64(total))
	}

	if len(strings.Fields(s)) < 3 {
		score -= 0.5
	}

	return score
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "is": {}, "it": {}, "for": {}, "with": {}, "that": {},
	"this": {}, "what": {}, "how": {}, "do": {}, "does": {}, "can": {},
	"you": {}, "i": {}, "my": {}, "me": {},
}

// keywords lowercases the query and drops stopwords.
func keywords(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w == "" {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		terms[w] = struct{}{}
	}
	return terms
}
