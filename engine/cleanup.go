package engine

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// stopTokens are substrings small local models leak into output.
// Output is cut at the first occurrence of any of them.
var stopTokens = []string{
	"<|endoftext|>",
	"<|im_end|>",
	"<|im_start|>",
	"</s>",
	"<|user|>",
	"<|assistant|>",
	"[END]",
}

// phraseLoopRe catches a short phrase repeated three or more times in a
// row ("the answer is the answer is the answer is"). Needs a
// backreference, hence regexp2 instead of stdlib RE2. Repeats must be
// whole words separated by real whitespace, so "hahaha" never matches
// against its own substring.
var phraseLoopRe = regexp2.MustCompile(`\b(\S+(?:[ \t]+\S+){0,6})(?:[ \t]+\1\b){2,}`, regexp2.None)

// lineRepeatLimit is how many identical lines are tolerated before the
// output is considered stuck in a loop.
const lineRepeatLimit = 3

// CleanOutput strips stop tokens and truncates repetition loops.
// Returns the cleaned text and whether repetition was found.
func CleanOutput(raw string) (string, bool) {
	text := raw
	for _, tok := range stopTokens {
		if i := strings.Index(text, tok); i >= 0 {
			text = text[:i]
		}
	}
	text = strings.TrimSpace(text)
	return TruncateRepetition(text)
}

// TruncateRepetition detects repeated lines and repeated short phrases
// and cuts the text at the point the loop starts. Idempotent: running
// it on already-truncated text returns the same text with found=false.
func TruncateRepetition(text string) (string, bool) {
	out, found := truncateRepeatedLines(text)
	out2, found2 := truncateRepeatedPhrase(out)
	return out2, found || found2
}

// truncateRepeatedLines keeps at most lineRepeatLimit-1 copies of any
// non-trivial line, cutting everything from the offending repeat on.
func truncateRepeatedLines(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	counts := make(map[string]int)

	for i, line := range lines {
		key := strings.TrimSpace(line)
		if len(key) < 3 {
			continue // blank/trivial lines repeat legitimately
		}
		counts[key]++
		if counts[key] >= lineRepeatLimit {
			kept := strings.Join(lines[:i], "\n")
			return strings.TrimRight(kept, "\n "), true
		}
	}
	return text, false
}

// truncateRepeatedPhrase cuts a consecutive phrase loop down to its
// first occurrence.
func truncateRepeatedPhrase(text string) (string, bool) {
	m, err := phraseLoopRe.FindStringMatch(text)
	if err != nil || m == nil {
		return text, false
	}

	phrase := m.GroupByNumber(1).String()
	cut := m.Index + len(phrase)
	return strings.TrimSpace(text[:cut]), true
}
