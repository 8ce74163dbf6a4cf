package memory

import (
	"context"
	"time"
)

// Memory is the core interface for stored memories. The SDK ships
// ExchangeMemory; user-defined types (semantic facts, shortcuts) plug
// in the same way.
//
// Each memory type controls its own:
//   - Content structure (fields, data)
//   - Formatting for prompt injection (Format method)
//   - Metadata schema
type Memory interface {
	// Identity & ownership
	ID() string
	OwnerID() string // User ID (empty = global memory)
	SessionID() string
	Type() string // Memory type identifier (e.g., "exchange")

	// Content & metadata
	Content() interface{}
	Metadata() map[string]interface{}

	CreatedAt() time.Time

	// Operations
	Format(ctx FormatContext) string // Formats this memory for prompt injection
	Embedding() []float32
	SetEmbedding([]float32)
}

// FormatContext provides context for memory formatting. Format
// implementations can truncate to MaxLength and emphasize parts
// relevant to Query.
type FormatContext struct {
	UserID    string
	Query     string
	MaxLength int // Max characters for this memory's output
}

// Manager orchestrates memory operations. This is the interface the
// engine uses: it decides WHEN to retrieve and record, the Manager
// decides HOW.
type Manager interface {
	// Retrieve finds relevant memories for the query and returns a
	// formatted string ready for prompt injection. Empty string means
	// nothing relevant.
	Retrieve(ctx context.Context, userID string, query string) (string, error)

	// RecordExchange stores one conversational exchange. Trivial
	// exchanges may be filtered out; that is not an error.
	RecordExchange(ctx context.Context, userID, userMessage, assistantReply, moodTag string) error
}

// Store is the vector storage backend interface.
// Implementations: ChromemStore (local), pgvector (production).
type Store interface {
	// Store saves a memory. The embedding must be set before calling.
	Store(ctx context.Context, mem Memory) error

	// Query retrieves memories by vector similarity, highest first.
	Query(ctx context.Context, userID string, embedding []float32, limit int) ([]Memory, error)

	// Get retrieves a specific memory by ID and owner.
	Get(ctx context.Context, ownerID string, memoryID string) (Memory, error)

	// Delete removes a memory permanently.
	Delete(ctx context.Context, ownerID string, memoryID string) error

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: MockEmbedder (testing), ONNXEmbedder (local,
// build-tagged), CachedEmbedder (wraps any of them).
//
// Embedder is an implementation detail of Manager; the engine never
// touches it directly.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}
