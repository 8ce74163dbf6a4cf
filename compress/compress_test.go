package compress

import (
	"strings"
	"testing"

	"github.com/samlabs/sam-go/budget"
)

func TestCompressShortTextUnchanged(t *testing.T) {
	c := New()
	text := "The kettle is on. Tea in five minutes."
	got := c.Compress(text, "tea", 100, budget.WordEstimator{})
	if got != text {
		t.Errorf("short text modified: %q", got)
	}
}

func TestCompressKeepsQueryRelevantSentences(t *testing.T) {
	c := New()
	est := budget.WordEstimator{}

	text := "The weather was cloudy all week with occasional light rain showers. " +
		"Groceries were delivered on Tuesday without any problems at all. " +
		"Your dentist appointment is scheduled for Friday at three in the afternoon. " +
		"The neighbor's cat visited the garden twice and chased some birds around."

	got := c.Compress(text, "when is my dentist appointment", 15, est)

	if !strings.Contains(got, "dentist") {
		t.Errorf("compressed output dropped the relevant sentence: %q", got)
	}
	if est.Estimate(got) >= est.Estimate(text) {
		t.Errorf("compression did not reduce estimate: %d -> %d",
			est.Estimate(text), est.Estimate(got))
	}
}

func TestCompressPreservesOriginalOrder(t *testing.T) {
	c := New()
	est := budget.WordEstimator{}

	text := "Alpha note about the project deadline approaching fast. " +
		"Filler sentence with nothing useful inside it whatsoever. " +
		"Omega note about the project deadline slipping again."

	got := c.Compress(text, "project deadline", 20, est)

	alphaIdx := strings.Index(got, "Alpha")
	omegaIdx := strings.Index(got, "Omega")
	if alphaIdx >= 0 && omegaIdx >= 0 && alphaIdx > omegaIdx {
		t.Errorf("sentence order not preserved: %q", got)
	}
}

func TestCompressZeroTarget(t *testing.T) {
	c := New()
	if got := c.Compress("anything at all", "q", 0, budget.WordEstimator{}); got != "" {
		t.Errorf("zero target returned %q, want empty", got)
	}
}

func TestCompressSingleSentencePassthrough(t *testing.T) {
	c := New()
	text := strings.Repeat("word ", 50)
	// One giant "sentence": nothing to drop at sentence granularity,
	// the budget allocator truncates afterwards.
	got := c.Compress(text, "word", 5, budget.WordEstimator{})
	if got != text {
		t.Errorf("single sentence should pass through, got %q", got)
	}
}
