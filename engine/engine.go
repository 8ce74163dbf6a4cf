// Package engine runs the generation pipeline: retrieve, select,
// budget, gate, load, generate, clean, score, escalate. Every step that
// can fail degrades the result instead of erroring at the user-facing
// boundary.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/samlabs/sam-go/budget"
	"github.com/samlabs/sam-go/core"
	"github.com/samlabs/sam-go/resource"
	"github.com/samlabs/sam-go/selector"
)

// DefaultSystemPrompt is SAM's persona when the request does not bring
// its own.
const DefaultSystemPrompt = "You are SAM, a personal assistant running entirely on this machine. Be concise, direct, and honest about uncertainty."

// apologyText is the degraded response when resources refuse the work.
const apologyText = "I need a moment — the system is under memory pressure right now. Please try again shortly."

// MemoryProvider is the retrieval surface the engine needs. memory
// implementations satisfy it; nil means no memory.
type MemoryProvider interface {
	Retrieve(ctx context.Context, sessionID, query string) (string, error)
	RecordExchange(ctx context.Context, sessionID, userMessage, assistantReply, moodTag string) error
}

// MoodProvider supplies a tone hint for the system prompt.
type MoodProvider interface {
	ToneHint() string
}

// Engine wires the pipeline together. All collaborators are injected;
// there is no package-level instance.
type Engine struct {
	backend   Backend
	res       *resource.Manager
	budget    *budget.Manager
	sel       *selector.Selector
	vsel      *selector.VisionSelector
	memory    MemoryProvider
	mood      MoodProvider
	escalator Escalator

	timeout      time.Duration
	systemPrompt string

	profiles       []core.ModelProfile
	visionProfiles []core.ModelProfile

	slotMu sync.Mutex
	slots  map[string]*ModelSlot
}

// Option configures the engine.
type Option func(*Engine)

// WithBudget replaces the default budget manager.
func WithBudget(b *budget.Manager) Option {
	return func(e *Engine) { e.budget = b }
}

// WithSelector replaces the default model selector.
func WithSelector(s *selector.Selector) Option {
	return func(e *Engine) { e.sel = s }
}

// WithMemory configures the engine with a memory provider.
func WithMemory(m MemoryProvider) Option {
	return func(e *Engine) { e.memory = m }
}

// WithMood configures the engine with a mood provider.
func WithMood(m MoodProvider) Option {
	return func(e *Engine) { e.mood = m }
}

// WithEscalator enables remote escalation.
func WithEscalator(esc Escalator) Option {
	return func(e *Engine) { e.escalator = esc }
}

// WithTimeout bounds one backend generation. Default 60s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithSystemPrompt replaces the default persona prompt.
func WithSystemPrompt(p string) Option {
	return func(e *Engine) { e.systemPrompt = p }
}

// WithProfiles replaces the LLM tier list.
func WithProfiles(profiles []core.ModelProfile) Option {
	return func(e *Engine) { e.profiles = profiles }
}

// WithVisionProfiles replaces the vision tier list.
func WithVisionProfiles(profiles []core.ModelProfile) Option {
	return func(e *Engine) { e.visionProfiles = profiles }
}

// New creates an engine over a backend and a resource gate.
func New(backend Backend, res *resource.Manager, opts ...Option) *Engine {
	e := &Engine{
		backend:        backend,
		res:            res,
		budget:         budget.NewManager(),
		sel:            selector.New(nil),
		vsel:           selector.NewVisionSelector(),
		timeout:        60 * time.Second,
		systemPrompt:   DefaultSystemPrompt,
		profiles:       core.DefaultProfiles,
		visionProfiles: core.DefaultVisionProfiles,
		slots:          map[string]*ModelSlot{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate runs one request through the full pipeline. The returned
// result is always usable text; resource refusals and backend failures
// come back as degraded results with a nil error. Errors are reserved
// for invalid requests and context cancellation.
func (e *Engine) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResult, error) {
	start := time.Now()
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	// PHASE 0: retrieve. A failed retrieval degrades to no context.
	ctxText := req.Context
	if ctxText == "" && e.memory != nil {
		retrieved, err := e.memory.Retrieve(ctx, req.SessionID, req.Query)
		if err != nil {
			log.Printf("[ENGINE] Memory retrieval failed, continuing without context: %v", err)
		} else {
			ctxText = retrieved
		}
	}

	system := e.systemPrompt
	if req.SystemPrompt != "" {
		system = req.SystemPrompt
	}
	if e.mood != nil {
		if tone := e.mood.ToneHint(); tone != "" {
			system += "\nTone: " + tone
		}
	}

	// PHASE 1: select and budget.
	level := e.res.CurrentLevel()
	ctxTokens := e.budget.Estimator().Estimate(ctxText)
	decision := e.sel.Select(req.Query, ctxTokens, req.ConfidenceRequired, level)
	log.Printf("[ENGINE] Selected %s (%s) at level %s", decision.ModelKey, decision.Reason, level)

	alloc := e.budget.Allocate(decision.ModelKey, system, ctxText, req.Query)

	// PHASE 2: admission. Refusal is an answer, not an error.
	if ok, reason := e.res.CanPerformHeavyOp(); !ok {
		log.Printf("[ENGINE] Heavy op refused: %s", reason)
		return &core.GenerationResult{
			Text:       apologyText,
			ModelKey:   decision.ModelKey,
			Reason:     reason,
			Degraded:   true,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	// PHASE 3: load and generate under the gate.
	profile, ok := core.ProfileByKey(e.profiles, decision.ModelKey)
	if !ok {
		return nil, fmt.Errorf("no profile for model key %q", decision.ModelKey)
	}

	raw, usedProfile, genErr := e.generateWithFallback(ctx, profile, alloc, decision.ModelKey)
	if genErr != nil {
		if ctx.Err() != nil {
			return nil, genErr
		}
		log.Printf("[ENGINE] Generation failed on all tiers: %v", genErr)
		return &core.GenerationResult{
			Text:       "I ran into a problem answering that. Please try again.",
			ModelKey:   usedProfile.Key,
			Reason:     "backend_failure",
			Degraded:   true,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	// PHASE 4: clean, score, escalate.
	cleaned, repetition := CleanOutput(raw)
	confidence := EstimateConfidence(cleaned)
	escalate := ShouldEscalate(cleaned, confidence, repetition)

	result := &core.GenerationResult{
		Text:            cleaned,
		ModelKey:        usedProfile.Key,
		Reason:          decision.Reason,
		Confidence:      confidence,
		RepetitionFound: repetition,
		Escalate:        escalate,
		TokensUsed: core.TokenUsage{
			Prompt:    alloc.Budget.Total - alloc.Budget.Generation,
			Generated: e.budget.Estimator().Estimate(cleaned),
		},
	}

	if escalate && req.AllowEscalation && e.escalator != nil {
		remote, err := e.escalator.Escalate(ctx, req.Query, ctxText, system)
		if err != nil {
			log.Printf("[ENGINE] Escalation failed, keeping local answer: %v", err)
		} else {
			result.Text = remote
			result.ModelKey = "remote"
			result.Reason = "escalated:" + result.Reason
			result.Escalate = false
			result.Confidence = 0.9
		}
	}

	// PHASE 5: record the exchange. Failures only log.
	if e.memory != nil && !result.Degraded {
		tone := ""
		if e.mood != nil {
			tone = e.mood.ToneHint()
		}
		if err := e.memory.RecordExchange(ctx, req.SessionID, req.Query, result.Text, tone); err != nil {
			log.Printf("[ENGINE] Failed to record exchange: %v", err)
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// VisionRequest is one image task.
type VisionRequest struct {
	SessionID string
	Task      string

	// ImagePath is passed through to the backend in the prompt; local
	// vision backends resolve it themselves.
	ImagePath string
}

// GenerateVision routes an image task through the vision tiers. At
// critical memory the task is refused with a degraded result.
func (e *Engine) GenerateVision(ctx context.Context, req *VisionRequest) (*core.GenerationResult, error) {
	start := time.Now()
	if req == nil || strings.TrimSpace(req.Task) == "" {
		return nil, fmt.Errorf("empty vision task")
	}

	level := e.res.CurrentLevel()
	decision := e.vsel.Select(req.Task, level)
	if decision.ModelKey == "" {
		log.Printf("[ENGINE] Vision refused: %s", decision.Reason)
		return &core.GenerationResult{
			Text:       apologyText,
			Reason:     decision.Reason,
			Degraded:   true,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}
	log.Printf("[ENGINE] Vision tier %s (%s) at level %s", decision.ModelKey, decision.Reason, level)

	profile, ok := core.ProfileByKey(e.visionProfiles, decision.ModelKey)
	if !ok {
		return nil, fmt.Errorf("no vision profile for key %q", decision.ModelKey)
	}

	prompt := fmt.Sprintf("[image: %s]\n%s", req.ImagePath, req.Task)
	var raw string
	err := e.res.ExecuteWithLimits(ctx, e.timeout, func(ctx context.Context) error {
		if err := e.ensureLoaded(ctx, profile); err != nil {
			return err
		}
		var genErr error
		raw, genErr = e.backend.Generate(ctx, profile, prompt, profile.TotalTokens)
		return genErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Printf("[ENGINE] Vision generation failed: %v", err)
		return &core.GenerationResult{
			Text:       "I couldn't process that image right now.",
			ModelKey:   profile.Key,
			Reason:     "backend_failure",
			Degraded:   true,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	cleaned, repetition := CleanOutput(raw)
	return &core.GenerationResult{
		Text:            cleaned,
		ModelKey:        profile.Key,
		Reason:          decision.Reason,
		Confidence:      EstimateConfidence(cleaned),
		RepetitionFound: repetition,
		DurationMs:      time.Since(start).Milliseconds(),
	}, nil
}

// generateWithFallback tries the selected tier, then the other LLM tier
// on load failure. Both run under the heavy-op gate with the timeout.
func (e *Engine) generateWithFallback(ctx context.Context, profile core.ModelProfile, alloc budget.Allocation, selectedKey string) (string, core.ModelProfile, error) {
	raw, err := e.generateOn(ctx, profile, alloc)
	if err == nil || ctx.Err() != nil {
		return raw, profile, err
	}

	fallback, ok := e.otherTier(selectedKey)
	if !ok {
		return "", profile, err
	}
	log.Printf("[ENGINE] Tier %s failed (%v), falling back to %s", profile.Key, err, fallback.Key)

	// Re-slice the budget for the fallback's token total.
	alloc = e.budget.Allocate(fallback.Key, alloc.System, alloc.Context, alloc.Query)
	raw, err2 := e.generateOn(ctx, fallback, alloc)
	if err2 != nil {
		return "", fallback, fmt.Errorf("both tiers failed: %v; %w", err, err2)
	}
	return raw, fallback, nil
}

func (e *Engine) generateOn(ctx context.Context, profile core.ModelProfile, alloc budget.Allocation) (string, error) {
	var raw string
	err := e.res.ExecuteWithLimits(ctx, e.timeout, func(ctx context.Context) error {
		if err := e.ensureLoaded(ctx, profile); err != nil {
			return err
		}
		var genErr error
		raw, genErr = e.backend.Generate(ctx, profile, buildPrompt(alloc), alloc.Budget.Generation)
		return genErr
	})
	return raw, err
}

// otherTier returns the LLM profile that is not key, when there is one.
func (e *Engine) otherTier(key string) (core.ModelProfile, bool) {
	for _, p := range e.profiles {
		if p.Key != key {
			return p, true
		}
	}
	return core.ModelProfile{}, false
}

// buildPrompt assembles the budgeted fragments into the backend prompt.
func buildPrompt(alloc budget.Allocation) string {
	var b strings.Builder
	b.WriteString(alloc.System)
	if alloc.Context != "" {
		b.WriteString("\n\nRelevant context:\n")
		b.WriteString(alloc.Context)
	}
	b.WriteString("\n\nUser: ")
	b.WriteString(alloc.Query)
	b.WriteString("\nAssistant:")
	return b.String()
}

// slot returns the state machine for a model key, creating it on first
// use.
func (e *Engine) slot(key string) *ModelSlot {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	s, ok := e.slots[key]
	if !ok {
		s = NewModelSlot()
		e.slots[key] = s
	}
	return s
}

// ensureLoaded drives the slot to Loaded, waiting out transitions owned
// by other goroutines and retrying lost races.
func (e *Engine) ensureLoaded(ctx context.Context, profile core.ModelProfile) error {
	s := e.slot(profile.Key)
	for {
		state, err := s.WaitSettled(ctx)
		if err != nil {
			return err
		}

		switch state {
		case SlotLoaded:
			s.Touch()
			return nil
		case SlotUnloaded:
			if err := s.BeginLoad(); err != nil {
				continue // another goroutine won the transition
			}
			loadErr := e.backend.Load(ctx, profile)
			s.FinishLoad(loadErr == nil)
			if loadErr != nil {
				return fmt.Errorf("load %s: %w", profile.Key, loadErr)
			}
			log.Printf("[ENGINE] Loaded model %s (%.1f GB)", profile.Key, profile.RAMRequiredGB)
			return nil
		}
	}
}

// unloadSlot releases a loaded model. A slot mid-transition or already
// unloaded is left alone.
func (e *Engine) unloadSlot(ctx context.Context, profile core.ModelProfile) {
	s := e.slot(profile.Key)
	if err := s.BeginUnload(); err != nil {
		return
	}
	if err := e.backend.Unload(ctx, profile); err != nil {
		log.Printf("[ENGINE] Unload %s failed: %v", profile.Key, err)
	}
	s.FinishUnload()
	log.Printf("[ENGINE] Unloaded model %s", profile.Key)
}

// SlotStates snapshots residency per model key, for stats and tests.
func (e *Engine) SlotStates() map[string]SlotState {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	out := make(map[string]SlotState, len(e.slots))
	for k, s := range e.slots {
		out[k] = s.State()
	}
	return out
}
