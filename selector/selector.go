// Package selector picks a model tier per request. Selection is pure
// heuristic scoring: hard resource cutoffs first, then a weighted sum
// over regex-detected query signals. Weights are product-tuned
// constants, kept as configuration rather than derived.
package selector

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samlabs/sam-go/resource"
)

// Decision is an ephemeral record of one model choice. Appended to an
// in-memory history used only for ratio stats.
type Decision struct {
	ID         string
	ModelKey   string
	Reason     string
	Confidence float64
	Factors    map[string]float64
	At         time.Time
}

// Config holds the selection cutoffs and signal weights.
type Config struct {
	// Context3BLimit is the hard context-token cutoff above which the
	// large model is never attempted.
	Context3BLimit int

	// LargeThreshold is the score at which "3b" wins.
	LargeThreshold float64

	// HistorySize caps the in-memory decision list.
	HistorySize int
}

// DefaultConfig mirrors the original tuning.
var DefaultConfig = &Config{
	Context3BLimit: 256,
	LargeThreshold: 0.5,
	HistorySize:    256,
}

// signal is one weighted query feature.
type signal struct {
	name   string
	re     *regexp.Regexp
	weight float64
}

var querySignals = []signal{
	{"code_task", regexp.MustCompile(`(?i)\b(code|function|implement|debug|refactor|compile|script|regex)\b`), 0.30},
	{"multi_step", regexp.MustCompile(`(?i)\b(step by step|first\b.*\bthen|after that|finally)\b`), 0.20},
	{"reasoning", regexp.MustCompile(`(?i)\b(why|explain|analy[sz]e|compare|reason about|trade-?offs?)\b`), 0.25},
	{"math", regexp.MustCompile(`\d+\s*[+\-*/^=]\s*\d+`), 0.20},
	{"casual_chat", regexp.MustCompile(`(?i)^(hi|hello|hey|thanks|thank you|ok|okay|good (morning|night))\b`), -0.40},
}

// Selector chooses between the two LLM tiers.
type Selector struct {
	mu      sync.Mutex
	cfg     Config
	history []Decision
}

// New creates a selector. nil config means DefaultConfig.
func New(cfg *Config) *Selector {
	if cfg == nil {
		cfg = DefaultConfig
	}
	return &Selector{cfg: *cfg}
}

// Select picks a model key for the query.
//
// Hard cutoffs apply first: context beyond the 3b limit or a resource
// level at or below low force the small model regardless of signals.
// Otherwise the weighted signal sum decides, and the reason string is
// the joined names of the matched signals.
func (s *Selector) Select(query string, contextTokens int, confidenceRequired float64, level resource.Level) Decision {
	d := Decision{
		ID:      uuid.New().String(),
		At:      time.Now(),
		Factors: map[string]float64{},
	}

	switch {
	case contextTokens > s.cfg.Context3BLimit:
		d.ModelKey = "1.5b"
		d.Reason = "context_exceeds_3b_limit"
		d.Confidence = 1.0
		d.Factors["context_tokens"] = float64(contextTokens)
	case level <= resource.LevelLow:
		d.ModelKey = "1.5b"
		d.Reason = "memory_pressure"
		d.Confidence = 0.9
		d.Factors["resource_level"] = float64(level)
	default:
		d = s.scoreSignals(d, query, confidenceRequired)
	}

	s.record(d)
	return d
}

func (s *Selector) scoreSignals(d Decision, query string, confidenceRequired float64) Decision {
	var score float64
	var matched []string

	for _, sig := range querySignals {
		if sig.re.MatchString(query) {
			score += sig.weight
			matched = append(matched, sig.name)
			d.Factors[sig.name] = sig.weight
		}
	}

	// Long queries tend to need the larger model even without an
	// explicit task signal.
	words := len(strings.Fields(query))
	switch {
	case words > 40:
		score += 0.20
		matched = append(matched, "long_query")
		d.Factors["long_query"] = 0.20
	case words > 15:
		score += 0.10
		matched = append(matched, "medium_query")
		d.Factors["medium_query"] = 0.10
	}

	if confidenceRequired >= 0.7 {
		score += 0.20
		matched = append(matched, "high_confidence_required")
		d.Factors["high_confidence_required"] = 0.20
	}

	d.Factors["score"] = score

	if score >= s.cfg.LargeThreshold {
		d.ModelKey = "3b"
	} else {
		d.ModelKey = "1.5b"
	}

	if len(matched) > 0 {
		d.Reason = strings.Join(matched, "+")
	} else {
		d.Reason = "no_signals_default_small"
	}

	// Distance from the threshold is how sure we are.
	d.Confidence = 0.5 + math.Min(0.5, math.Abs(score-s.cfg.LargeThreshold))
	return d
}

func (s *Selector) record(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, d)
	if limit := s.cfg.HistorySize; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
}

// SelectionStats summarizes decision history.
type SelectionStats struct {
	Total      int
	LargePicks int
	LargeRatio float64
}

// Stats returns the large-model pick ratio over retained history.
func (s *Selector) Stats() SelectionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SelectionStats{Total: len(s.history)}
	for _, d := range s.history {
		if d.ModelKey == "3b" {
			st.LargePicks++
		}
	}
	if st.Total > 0 {
		st.LargeRatio = float64(st.LargePicks) / float64(st.Total)
	}
	return st
}
