package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// SimpleManager is the SDK-provided Manager implementation: vector
// similarity search over stored exchanges with basic filtering.
//
// Production deployments can swap in a custom Manager with fact
// extraction, contradiction resolution, or tiered storage; the engine
// only sees the Manager interface.
type SimpleManager struct {
	store    Store
	embedder Embedder // Internal: the engine never sees this
	config   *Config
}

// NewSimpleManager creates a new SimpleManager. nil config means
// DefaultConfig.
func NewSimpleManager(store Store, embedder Embedder, config *Config) *SimpleManager {
	if config == nil {
		config = DefaultConfig
	}
	if config.RetrievalLimit <= 0 {
		config.RetrievalLimit = DefaultConfig.RetrievalLimit
	}
	if config.MaxContextChars <= 0 {
		config.MaxContextChars = DefaultConfig.MaxContextChars
	}
	return &SimpleManager{
		store:    store,
		embedder: embedder,
		config:   config,
	}
}

// Retrieve finds relevant exchanges and returns a formatted string.
func (m *SimpleManager) Retrieve(ctx context.Context, userID string, query string) (string, error) {
	if !m.config.Enabled {
		return "", nil
	}

	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	memories, err := m.store.Query(ctx, userID, embedding, m.config.RetrievalLimit)
	if err != nil {
		return "", fmt.Errorf("query store: %w", err)
	}

	log.Printf("[MEMORY] Retrieved %d memories for query: %q", len(memories), truncateLog(query, 50))
	if len(memories) == 0 {
		return "", nil
	}

	return m.formatMemories(memories, userID, query), nil
}

// RecordExchange stores one exchange. Trivial exchanges are filtered
// out; filtering is not an error.
func (m *SimpleManager) RecordExchange(ctx context.Context, userID, userMessage, assistantReply, moodTag string) error {
	if !m.config.Enabled {
		return nil
	}

	if !worthStoring(userMessage, assistantReply) {
		log.Printf("[MEMORY] Exchange too trivial to store: %q", truncateLog(userMessage, 50))
		return nil
	}

	mem := NewExchangeMemory(userID, "", userMessage, assistantReply, moodTag)

	embedding, err := m.embedder.Embed(ctx, mem.FormatForEmbedding())
	if err != nil {
		return fmt.Errorf("embed exchange: %w", err)
	}
	mem.SetEmbedding(embedding)

	if err := m.store.Store(ctx, mem); err != nil {
		return fmt.Errorf("store exchange: %w", err)
	}

	log.Printf("[MEMORY] Stored exchange for user=%s: %q", userID, truncateLog(userMessage, 50))
	return nil
}

// formatMemories renders retrieved memories into one structured block.
func (m *SimpleManager) formatMemories(memories []Memory, userID string, query string) string {
	var parts []string
	parts = append(parts, "=== RELEVANT PAST EXCHANGES ===\n")

	maxLengthPerMemory := m.config.MaxContextChars / len(memories)
	if maxLengthPerMemory < 100 {
		maxLengthPerMemory = 100
	}

	for i, mem := range memories {
		formatted := mem.Format(FormatContext{
			UserID:    userID,
			Query:     query,
			MaxLength: maxLengthPerMemory,
		})
		parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, formatted))
	}

	return strings.Join(parts, "\n")
}

// worthStoring filters out exchanges with no recall value: bare
// greetings, acknowledgments, and other sub-sentence noise.
func worthStoring(userMessage, assistantReply string) bool {
	userWords := len(strings.Fields(userMessage))
	replyWords := len(strings.Fields(assistantReply))

	if userWords < 3 && replyWords < 8 {
		return false
	}
	return true
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Config holds SimpleManager configuration.
type Config struct {
	// Enabled toggles the memory system on/off.
	Enabled bool

	// RetrievalLimit is how many exchanges one retrieval may return.
	RetrievalLimit int

	// MinSimilarity is the minimum similarity for retrieval [0.0-1.0].
	// Tiny local models (all-MiniLM-L6-v2) produce lower scores than
	// hosted embedders; keep this permissive.
	MinSimilarity float64

	// MaxContextChars caps the formatted retrieval block. The token
	// budget upstream trims further if needed.
	MaxContextChars int
}

// DefaultConfig returns sensible defaults for local use.
var DefaultConfig = &Config{
	Enabled:         true,
	RetrievalLimit:  10,
	MinSimilarity:   0.35,
	MaxContextChars: 2000,
}
