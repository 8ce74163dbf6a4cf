package budget

import (
	"strings"
	"testing"
)

func TestWordEstimator(t *testing.T) {
	est := WordEstimator{}

	if got := est.Estimate(""); got != 0 {
		t.Errorf("empty estimate = %d, want 0", got)
	}
	// 2 words * 1.3 = 2.6, ceil = 3.
	if got := est.Estimate("hello world"); got != 3 {
		t.Errorf("estimate = %d, want 3", got)
	}
	if got := est.Estimate("  spaced   out   words  "); got != 4 {
		t.Errorf("estimate = %d, want 4", got)
	}
}

func TestBudgetForSplits(t *testing.T) {
	m := NewManager()

	for key, total := range map[string]int{"1.5b": 256, "3b": 512} {
		b := m.BudgetFor(key)
		if b.Total != total {
			t.Errorf("%s total = %d, want %d", key, b.Total, total)
		}
		sum := b.System + b.Context + b.Query + b.Generation
		if sum != total {
			t.Errorf("%s slices sum to %d, want %d", key, sum, total)
		}
		for name, slice := range map[string]int{
			"system": b.System, "context": b.Context,
			"query": b.Query, "generation": b.Generation,
		} {
			if slice <= 0 {
				t.Errorf("%s %s slice = %d, want > 0", key, name, slice)
			}
		}
	}
}

func TestBudgetForUnknownKey(t *testing.T) {
	m := NewManager()
	if b := m.BudgetFor("70b"); b.Total != 256 {
		t.Errorf("unknown key total = %d, want smallest (256)", b.Total)
	}
}

// The core invariant: no returned fragment ever estimates above its
// slice budget under the manager's own estimator.
func TestAllocateNeverExceedsBudget(t *testing.T) {
	m := NewManager()
	est := m.Estimator()

	long := strings.Repeat("resource aware generation pipeline keeps small machines responsive. ", 80)

	for _, key := range []string{"1.5b", "3b"} {
		alloc := m.Allocate(key, long, long, long)
		b := alloc.Budget

		if got := est.Estimate(alloc.System); got > b.System {
			t.Errorf("%s system estimate %d > budget %d", key, got, b.System)
		}
		if got := est.Estimate(alloc.Context); got > b.Context {
			t.Errorf("%s context estimate %d > budget %d", key, got, b.Context)
		}
		if got := est.Estimate(alloc.Query); got > b.Query {
			t.Errorf("%s query estimate %d > budget %d", key, got, b.Query)
		}
	}
}

func TestAllocateShortTextUntouched(t *testing.T) {
	m := NewManager()

	alloc := m.Allocate("3b", "be helpful", "user likes tea", "what should I drink?")
	if alloc.System != "be helpful" || alloc.Context != "user likes tea" || alloc.Query != "what should I drink?" {
		t.Errorf("short fragments were modified: %+v", alloc)
	}
	if alloc.Compressed {
		t.Error("Compressed set without overflow")
	}
}

func TestFitAddsEllipsis(t *testing.T) {
	m := NewManager()

	long := strings.Repeat("word ", 300)
	alloc := m.Allocate("1.5b", long, "", "")
	if !strings.HasSuffix(alloc.System, "...") {
		t.Errorf("truncated system slice missing ellipsis: %q", alloc.System[len(alloc.System)-20:])
	}
}

type recordingCompressor struct {
	called bool
	target int
}

func (r *recordingCompressor) Compress(text, query string, targetTokens int, est Estimator) string {
	r.called = true
	r.target = targetTokens
	// Return something that still fits.
	return "compressed context"
}

func TestAllocateDelegatesContextCompression(t *testing.T) {
	rc := &recordingCompressor{}
	m := NewManager(WithCompressor(rc))

	long := strings.Repeat("context sentence overflowing the slice. ", 60)
	alloc := m.Allocate("1.5b", "", long, "what happened?")

	if !rc.called {
		t.Fatal("compressor was not invoked for overflowing context")
	}
	if rc.target != alloc.Budget.Context {
		t.Errorf("compressor target = %d, want context budget %d", rc.target, alloc.Budget.Context)
	}
	if !alloc.Compressed {
		t.Error("Compressed flag not set")
	}
	if alloc.Context != "compressed context" {
		t.Errorf("context = %q", alloc.Context)
	}
}
