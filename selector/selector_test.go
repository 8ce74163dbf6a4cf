package selector

import (
	"strings"
	"testing"

	"github.com/samlabs/sam-go/resource"
)

func TestSelectContextCutoff(t *testing.T) {
	s := New(nil)

	// Context beyond the 3b limit forces the small model regardless of
	// how complex the query looks.
	d := s.Select("explain and refactor this code step by step", 300, 0, resource.LevelGood)
	if d.ModelKey != "1.5b" {
		t.Errorf("ModelKey = %q, want 1.5b", d.ModelKey)
	}
	if d.Reason != "context_exceeds_3b_limit" {
		t.Errorf("Reason = %q, want context_exceeds_3b_limit", d.Reason)
	}
}

func TestSelectMemoryPressure(t *testing.T) {
	s := New(nil)

	for _, lvl := range []resource.Level{resource.LevelCritical, resource.LevelLow} {
		d := s.Select("explain why the compiler rejects this code", 50, 0, lvl)
		if d.ModelKey != "1.5b" {
			t.Errorf("level %v: ModelKey = %q, want 1.5b", lvl, d.ModelKey)
		}
		if d.Reason != "memory_pressure" {
			t.Errorf("level %v: Reason = %q, want memory_pressure", lvl, d.Reason)
		}
	}
}

func TestSelectComplexQueryPicksLarge(t *testing.T) {
	s := New(nil)

	d := s.Select("explain why this code fails and refactor the function", 50, 0, resource.LevelGood)
	if d.ModelKey != "3b" {
		t.Errorf("ModelKey = %q, want 3b (factors: %v)", d.ModelKey, d.Factors)
	}
	if !strings.Contains(d.Reason, "code_task") || !strings.Contains(d.Reason, "reasoning") {
		t.Errorf("Reason = %q, want joined signal names", d.Reason)
	}
}

func TestSelectCasualChatPicksSmall(t *testing.T) {
	s := New(nil)

	d := s.Select("hey, good morning!", 0, 0, resource.LevelGood)
	if d.ModelKey != "1.5b" {
		t.Errorf("ModelKey = %q, want 1.5b", d.ModelKey)
	}
	if !strings.Contains(d.Reason, "casual_chat") {
		t.Errorf("Reason = %q, want casual_chat signal", d.Reason)
	}
}

func TestSelectConfidenceRequirementTipsLarge(t *testing.T) {
	s := New(nil)

	// A borderline query: one 0.30 signal. Below the 0.5 threshold on
	// its own, above it with the high-confidence bump.
	q := "debug this"
	if d := s.Select(q, 0, 0, resource.LevelGood); d.ModelKey != "1.5b" {
		t.Fatalf("baseline pick = %q, want 1.5b", d.ModelKey)
	}
	if d := s.Select(q, 0, 0.9, resource.LevelGood); d.ModelKey != "3b" {
		t.Errorf("high-confidence pick = %q, want 3b", d.ModelKey)
	}
}

func TestSelectConfidenceBounds(t *testing.T) {
	s := New(nil)

	queries := []string{
		"hi",
		"explain why the scheduler starves writers and refactor the locking code step by step",
		"what time is it",
	}
	for _, q := range queries {
		d := s.Select(q, 0, 0, resource.LevelGood)
		if d.Confidence < 0 || d.Confidence > 1 {
			t.Errorf("confidence %f out of [0,1] for %q", d.Confidence, q)
		}
	}
}

func TestStatsLargeRatio(t *testing.T) {
	s := New(nil)

	s.Select("hi", 0, 0, resource.LevelGood)                                                         // small
	s.Select("explain why this code breaks and refactor the function", 0, 0, resource.LevelGood)     // large
	s.Select("explain why this script fails, then debug and compare options", 0, 0, resource.LevelGood) // large

	st := s.Stats()
	if st.Total != 3 {
		t.Fatalf("Total = %d, want 3", st.Total)
	}
	if st.LargePicks != 2 {
		t.Errorf("LargePicks = %d, want 2 (history: %+v)", st.LargePicks, st)
	}
}

func TestHistoryCapped(t *testing.T) {
	cfg := *DefaultConfig
	cfg.HistorySize = 10
	s := New(&cfg)

	for i := 0; i < 50; i++ {
		s.Select("hello", 0, 0, resource.LevelGood)
	}
	if st := s.Stats(); st.Total != 10 {
		t.Errorf("history length = %d, want 10", st.Total)
	}
}
