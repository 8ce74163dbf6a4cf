package core

// ModelProfile describes one locally servable model tier.
// Profiles are static configuration: the selector picks between them,
// the engine loads and unloads them, the budget manager reads their
// token totals.
type ModelProfile struct {
	// Key identifies the tier ("1.5b", "3b", or a vision tier key).
	Key string

	// Params is the parameter count in billions, informational only.
	Params float64

	// RAMRequiredGB is the approximate resident size when loaded.
	RAMRequiredGB float64

	// TotalTokens is the full prompt+generation token budget for this tier.
	TotalTokens int

	// Vision marks image-capable tiers.
	Vision bool
}

// GenerationRequest is a single ask routed through the pipeline.
type GenerationRequest struct {
	// SessionID groups requests from one conversation.
	SessionID string

	// Query is the user's message.
	Query string

	// Context is retrieved memory/document text, may be empty.
	Context string

	// SystemPrompt overrides the default persona prompt when non-empty.
	SystemPrompt string

	// ConfidenceRequired raises the selector's bar for picking the
	// small model. Zero means no requirement.
	ConfidenceRequired float64

	// AllowEscalation permits sending the query to a remote model when
	// the local answer fails quality checks.
	AllowEscalation bool
}

// TokenUsage tracks token consumption for one generation.
type TokenUsage struct {
	Prompt    int
	Generated int
}

// GenerationResult is the pipeline's answer. It is always valid text:
// resource refusals and backend failures surface as degraded results,
// never as errors.
type GenerationResult struct {
	Text       string
	ModelKey   string
	Reason     string
	Confidence float64

	// RepetitionFound reports that the cleanup pass truncated the output.
	RepetitionFound bool

	// Escalate flags the result for a bigger/remote model.
	Escalate bool

	// Degraded marks apology/fallback responses produced without a
	// successful local generation.
	Degraded bool

	TokensUsed TokenUsage
	DurationMs int64
}

// DefaultProfiles are the two LLM tiers SAM serves on an 8GB machine.
var DefaultProfiles = []ModelProfile{
	{Key: "1.5b", Params: 1.5, RAMRequiredGB: 1.2, TotalTokens: 256},
	{Key: "3b", Params: 3.0, RAMRequiredGB: 2.4, TotalTokens: 512},
}

// DefaultVisionProfiles are the four vision tiers, smallest first.
var DefaultVisionProfiles = []ModelProfile{
	{Key: "ocr-tiny", Params: 0.2, RAMRequiredGB: 0.4, TotalTokens: 128, Vision: true},
	{Key: "caption-small", Params: 0.5, RAMRequiredGB: 0.9, TotalTokens: 128, Vision: true},
	{Key: "vqa-base", Params: 1.6, RAMRequiredGB: 1.8, TotalTokens: 256, Vision: true},
	{Key: "vqa-large", Params: 3.8, RAMRequiredGB: 3.6, TotalTokens: 256, Vision: true},
}

// ProfileByKey looks up a profile in a list.
func ProfileByKey(profiles []ModelProfile, key string) (ModelProfile, bool) {
	for _, p := range profiles {
		if p.Key == key {
			return p, true
		}
	}
	return ModelProfile{}, false
}
