// Package chromem backs the memory store with chromem-go, a pure Go
// embedded vector database. Everything lives in process memory.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/samlabs/sam-go/memory"
)

// ChromemStore wraps chromem-go for vector storage. Each user gets
// their own collection for namespace isolation.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates a new chromem-based store.
func New() (*ChromemStore, error) {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[userID]
	s.mu.RUnlock()

	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock
	if col, exists := s.collections[userID]; exists {
		return col, nil
	}

	collectionName := fmt.Sprintf("user_%s", userID)
	if userID == "" {
		collectionName = "global"
	}

	col, err := s.db.CreateCollection(
		collectionName,
		nil, // no custom embedding func (we provide embeddings)
		nil, // no custom distance func (default cosine)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[userID] = col
	return col, nil
}

// Store saves a memory with its embedding.
func (s *ChromemStore) Store(ctx context.Context, mem memory.Memory) error {
	col, err := s.getOrCreateCollection(mem.OwnerID())
	if err != nil {
		return err
	}

	log.Printf("[CHROMEM] Storing memory: id=%s, owner=%s, type=%s",
		mem.ID(), mem.OwnerID(), mem.Type())

	stored, err := serializeMemory(mem)
	if err != nil {
		return fmt.Errorf("serialize memory: %w", err)
	}

	doc := chromem.Document{
		ID:        mem.ID(),
		Content:   stored.ContentJSON,
		Embedding: mem.Embedding(),
		Metadata:  stored.Metadata,
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query retrieves memories by vector similarity.
func (s *ChromemStore) Query(ctx context.Context, userID string, embedding []float32, limit int) ([]memory.Memory, error) {
	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return nil, err
	}

	where := map[string]string{
		"owner_id": userID,
	}

	// chromem-go requires nResults <= collection size; retry with
	// smaller limits until the query fits.
	var results []chromem.Result
	for currentLimit := limit; currentLimit >= 1; currentLimit-- {
		var err error
		results, err = col.QueryEmbedding(ctx, embedding, currentLimit, where, nil)
		if err == nil {
			break
		}

		if isInsufficientDocsError(err) {
			if currentLimit == 1 {
				return nil, nil // collection is empty
			}
			continue
		}

		return nil, fmt.Errorf("chromem query: %w", err)
	}

	var memories []memory.Memory
	for i, result := range results {
		mem, err := deserializeMemory(result)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		memories = append(memories, mem)
	}

	log.Printf("[CHROMEM] Returning %d memories for owner=%s", len(memories), userID)
	return memories, nil
}

// Get retrieves a specific memory by ID and owner. chromem-go has no
// direct get-by-ID; use Query instead.
func (s *ChromemStore) Get(ctx context.Context, ownerID string, memoryID string) (memory.Memory, error) {
	return nil, fmt.Errorf("Get not supported in chromem store (use Query instead)")
}

// Delete removes a memory. chromem-go does not expose delete by ID in
// the current API; for local use this is acceptable.
func (s *ChromemStore) Delete(ctx context.Context, ownerID string, memoryID string) error {
	log.Printf("[CHROMEM] Delete not supported (chromem-go limitation)")
	return nil
}

// Close releases resources. chromem-go keeps everything in memory.
func (s *ChromemStore) Close() error {
	return nil
}

// StoredMemory is the serialized storage format.
type StoredMemory struct {
	Type        string
	ContentJSON string
	Metadata    map[string]string
}

func serializeMemory(mem memory.Memory) (*StoredMemory, error) {
	contentBytes, err := json.Marshal(mem.Content())
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	metadata := map[string]string{
		"type":       mem.Type(),
		"owner_id":   mem.OwnerID(),
		"session_id": mem.SessionID(),
		"created_at": mem.CreatedAt().Format(time.RFC3339),
	}

	for k, v := range mem.Metadata() {
		if str, ok := v.(string); ok {
			metadata[k] = str
		} else if bytes, err := json.Marshal(v); err == nil {
			metadata[k] = string(bytes)
		}
	}

	return &StoredMemory{
		Type:        mem.Type(),
		ContentJSON: string(contentBytes),
		Metadata:    metadata,
	}, nil
}

func deserializeMemory(result chromem.Result) (memory.Memory, error) {
	switch memType := result.Metadata["type"]; memType {
	case "exchange":
		return deserializeExchangeMemory(result)
	default:
		return nil, fmt.Errorf("unknown memory type: %s", memType)
	}
}

func deserializeExchangeMemory(result chromem.Result) (*memory.ExchangeMemory, error) {
	var content map[string]interface{}
	if err := json.Unmarshal([]byte(result.Content), &content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}

	userMessage, _ := content["user_message"].(string)
	assistantReply, _ := content["assistant_reply"].(string)
	moodTag, _ := content["mood"].(string)

	createdAt, _ := time.Parse(time.RFC3339, result.Metadata["created_at"])

	metadata := make(map[string]interface{})
	for k, v := range result.Metadata {
		if k != "type" && k != "owner_id" && k != "session_id" && k != "created_at" {
			metadata[k] = v
		}
	}

	return memory.NewExchangeMemoryFromStorage(
		result.ID,
		result.Metadata["owner_id"],
		result.Metadata["session_id"],
		createdAt,
		result.Embedding,
		userMessage,
		assistantReply,
		moodTag,
		metadata,
	), nil
}

// isInsufficientDocsError reports whether the query failed only because
// the collection holds fewer documents than requested.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
