package memory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ExchangeMemory stores one conversational exchange: what the user
// said, what the assistant answered, and the mood it was answered in.
// This is the SDK-provided implementation of the Memory interface.
type ExchangeMemory struct {
	id        string
	ownerID   string
	sessionID string
	createdAt time.Time
	embedding []float32
	metadata  map[string]interface{}

	UserMessage    string
	AssistantReply string
	MoodTag        string
}

// NewExchangeMemory creates an ExchangeMemory for a fresh exchange.
func NewExchangeMemory(ownerID, sessionID, userMessage, assistantReply, moodTag string) *ExchangeMemory {
	return &ExchangeMemory{
		id:        uuid.New().String(),
		ownerID:   ownerID,
		sessionID: sessionID,
		createdAt: time.Now(),
		metadata: map[string]interface{}{
			"mood": moodTag,
		},
		UserMessage:    userMessage,
		AssistantReply: assistantReply,
		MoodTag:        moodTag,
	}
}

// NewExchangeMemoryFromStorage rebuilds an ExchangeMemory from stored
// data. Used by Store implementations when deserializing.
func NewExchangeMemoryFromStorage(
	id string,
	ownerID string,
	sessionID string,
	createdAt time.Time,
	embedding []float32,
	userMessage string,
	assistantReply string,
	moodTag string,
	metadata map[string]interface{},
) *ExchangeMemory {
	return &ExchangeMemory{
		id:             id,
		ownerID:        ownerID,
		sessionID:      sessionID,
		createdAt:      createdAt,
		embedding:      embedding,
		metadata:       metadata,
		UserMessage:    userMessage,
		AssistantReply: assistantReply,
		MoodTag:        moodTag,
	}
}

// Memory interface implementation

func (e *ExchangeMemory) ID() string {
	return e.id
}

func (e *ExchangeMemory) OwnerID() string {
	return e.ownerID
}

func (e *ExchangeMemory) SessionID() string {
	return e.sessionID
}

func (e *ExchangeMemory) Type() string {
	return "exchange"
}

func (e *ExchangeMemory) Content() interface{} {
	return map[string]interface{}{
		"user_message":    e.UserMessage,
		"assistant_reply": e.AssistantReply,
		"mood":            e.MoodTag,
	}
}

func (e *ExchangeMemory) Metadata() map[string]interface{} {
	return e.metadata
}

func (e *ExchangeMemory) CreatedAt() time.Time {
	return e.createdAt
}

func (e *ExchangeMemory) Embedding() []float32 {
	return e.embedding
}

func (e *ExchangeMemory) SetEmbedding(emb []float32) {
	e.embedding = emb
}

// Format renders the exchange for prompt injection. The user side gets
// priority: a remembered question is worth little without what was
// asked.
func (e *ExchangeMemory) Format(ctx FormatContext) string {
	var parts []string

	user := truncate(e.UserMessage, ctx.MaxLength/3)
	parts = append(parts, fmt.Sprintf("User said: %q", user))

	if e.AssistantReply != "" {
		reply := truncate(e.AssistantReply, ctx.MaxLength/2)
		parts = append(parts, fmt.Sprintf("  You answered: %q", reply))
	}

	return strings.Join(parts, "\n")
}

// FormatForEmbedding returns the text representation used to embed the
// exchange. Both sides go in: either can carry the recallable fact.
func (e *ExchangeMemory) FormatForEmbedding() string {
	return fmt.Sprintf("User: %s\nAssistant: %s", e.UserMessage, e.AssistantReply)
}

// truncate cuts a string to at most maxLen bytes, adding "..." when
// anything was dropped. The cut backs up to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
