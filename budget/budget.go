// Package budget splits a model's fixed token total into prompt slices
// and trims text to fit. Allocation is best-effort and never fails:
// overflow is truncated (or compressed, for the context slice), not
// rejected.
package budget

import (
	"log"
	"strings"
)

// Budget is the per-call split of a model's token total. Created fresh
// for every generation; it has no identity beyond the call.
type Budget struct {
	Total      int
	System     int
	Context    int
	Query      int
	Generation int
}

// Ratios are the static slice percentages. They must sum to at most 1;
// generation absorbs rounding remainder.
type Ratios struct {
	System  float64
	Context float64
	Query   float64
}

// DefaultRatios match the original tuning: generation keeps 25%.
var DefaultRatios = Ratios{System: 0.25, Context: 0.35, Query: 0.15}

// DefaultTotals are the fixed budgets per model key.
var DefaultTotals = map[string]int{
	"1.5b": 256,
	"3b":   512,
}

// Compressor reduces context text toward a token target before the
// allocator falls back to plain truncation. compress.Compressor
// satisfies this.
type Compressor interface {
	Compress(text, query string, targetTokens int, est Estimator) string
}

// Manager computes budgets and fits text into them.
type Manager struct {
	totals map[string]int
	ratios Ratios
	est    Estimator
	comp   Compressor
}

// Option configures the manager.
type Option func(*Manager)

// WithEstimator replaces the default word-count estimator.
func WithEstimator(est Estimator) Option {
	return func(m *Manager) { m.est = est }
}

// WithCompressor sets the context-slice compressor.
func WithCompressor(c Compressor) Option {
	return func(m *Manager) { m.comp = c }
}

// WithTotals replaces the per-model token totals.
func WithTotals(totals map[string]int) Option {
	return func(m *Manager) { m.totals = totals }
}

// NewManager creates a budget manager with default totals and ratios.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		totals: DefaultTotals,
		ratios: DefaultRatios,
		est:    WordEstimator{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Estimator returns the manager's active estimator.
func (m *Manager) Estimator() Estimator {
	return m.est
}

// BudgetFor computes the slice split for a model key. Unknown keys get
// the smallest configured total, which is the conservative choice.
func (m *Manager) BudgetFor(modelKey string) Budget {
	total, ok := m.totals[modelKey]
	if !ok {
		total = m.smallestTotal()
		log.Printf("[BUDGET] Unknown model key %q, assuming smallest total %d", modelKey, total)
	}

	b := Budget{
		Total:   total,
		System:  int(float64(total) * m.ratios.System),
		Context: int(float64(total) * m.ratios.Context),
		Query:   int(float64(total) * m.ratios.Query),
	}
	b.Generation = total - b.System - b.Context - b.Query
	return b
}

func (m *Manager) smallestTotal() int {
	smallest := 0
	for _, t := range m.totals {
		if smallest == 0 || t < smallest {
			smallest = t
		}
	}
	if smallest == 0 {
		smallest = 256
	}
	return smallest
}

// Allocation carries the slice budgets plus the adjusted text fragments.
type Allocation struct {
	Budget  Budget
	System  string
	Context string
	Query   string

	// Compressed reports that the context slice went through the
	// compressor rather than plain truncation.
	Compressed bool
}

// Allocate fits the three prompt fragments into the model's budget.
// System and query overflow is word-boundary truncated with an
// ellipsis. Context overflow is handed to the compressor first, then
// truncated if still over. Always returns a usable allocation.
func (m *Manager) Allocate(modelKey, system, context, query string) Allocation {
	b := m.BudgetFor(modelKey)
	out := Allocation{Budget: b}

	out.System = m.fit(system, b.System)
	out.Query = m.fit(query, b.Query)

	ctx := context
	if m.est.Estimate(ctx) > b.Context {
		if m.comp != nil {
			ctx = m.comp.Compress(ctx, query, b.Context, m.est)
			out.Compressed = true
		}
		ctx = m.fit(ctx, b.Context)
	}
	out.Context = ctx

	return out
}

// fit trims text at word boundaries until it estimates within the
// budget, appending an ellipsis when anything was dropped.
func (m *Manager) fit(text string, budget int) string {
	if m.est.Estimate(text) <= budget {
		return text
	}
	if budget <= 0 {
		return ""
	}

	words := strings.Fields(text)
	for n := len(words) - 1; n > 0; n-- {
		candidate := strings.Join(words[:n], " ") + "..."
		if m.est.Estimate(candidate) <= budget {
			return candidate
		}
	}
	return ""
}
