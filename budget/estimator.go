package budget

import (
	"math"
	"strings"
)

// Estimator approximates token counts for budget accounting.
//
// The default WordEstimator is deliberately not a real tokenizer: the
// budget invariants (allocated text never estimates above its slice)
// are defined against whichever estimator the manager was built with,
// so a cheap heuristic is consistent as long as it is used everywhere.
type Estimator interface {
	Estimate(text string) int
}

// WordEstimator counts words and applies a constant multiplier.
// English text averages roughly 1.3 tokens per word on small-model
// tokenizers.
type WordEstimator struct {
	// Multiplier defaults to 1.3 when zero.
	Multiplier float64
}

func (e WordEstimator) multiplier() float64 {
	if e.Multiplier <= 0 {
		return 1.3
	}
	return e.Multiplier
}

func (e WordEstimator) Estimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * e.multiplier()))
}
