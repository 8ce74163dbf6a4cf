package engine

import (
	"regexp"
	"strings"
)

// Confidence heuristics. These are cheap textual proxies, not
// calibration: the feedback store's bin stats track how well they hold
// up against user ratings.

const (
	confidenceBase     = 0.5
	escalationCutoff   = 0.45
	uncertaintyPenalty = 0.15
	codeFenceBonus     = 0.10
)

var uncertaintyRe = regexp.MustCompile(`(?i)\b(i'?m not sure|i don'?t know|i cannot|i can'?t (?:tell|say|determine)|it'?s unclear|as an ai)\b`)

var refusalRe = regexp.MustCompile(`(?i)^(i (?:can'?t|cannot|won'?t|am unable to)|sorry,? (?:i|but)|i'?m sorry)`)

// EstimateConfidence scores a cleaned response in [0,1].
func EstimateConfidence(text string) float64 {
	score := confidenceBase

	if strings.Contains(text, "```") {
		score += codeFenceBonus
	}
	if uncertaintyRe.MatchString(text) {
		score -= uncertaintyPenalty
	}

	// Length buckets: near-empty answers are suspect, a few sentences
	// is the sweet spot for a small model.
	switch words := len(strings.Fields(text)); {
	case words < 5:
		score -= 0.20
	case words < 20:
		score -= 0.05
	case words <= 150:
		score += 0.10
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// IsRefusal reports whether the response opens with a refusal phrase.
func IsRefusal(text string) bool {
	return refusalRe.MatchString(strings.TrimSpace(text))
}

// ShouldEscalate is the verdict for re-asking a bigger model: fires on
// repetition, low confidence, or an outright refusal.
func ShouldEscalate(text string, confidence float64, repetitionFound bool) bool {
	if repetitionFound {
		return true
	}
	if confidence < escalationCutoff {
		return true
	}
	return IsRefusal(text)
}
