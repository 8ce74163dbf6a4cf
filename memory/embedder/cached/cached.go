// Package cached wraps any Embedder with an in-process ristretto cache.
// Embedding the same text twice is common (repeated queries, recorded
// exchanges re-retrieved) and local ONNX inference is the slowest step
// in retrieval.
package cached

import (
	"context"
	"fmt"
	"log"

	"github.com/dgraph-io/ristretto"

	"github.com/samlabs/sam-go/memory"
)

// CachedEmbedder memoizes Embed calls keyed by the exact input text.
type CachedEmbedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// Config sizes the cache.
type Config struct {
	// MaxCostBytes bounds total cached embedding bytes.
	MaxCostBytes int64

	// NumCounters is ristretto's frequency sketch size; roughly 10x the
	// expected number of cached items.
	NumCounters int64
}

// DefaultConfig caches about 16 MB of embeddings.
var DefaultConfig = &Config{
	MaxCostBytes: 16 << 20,
	NumCounters:  100_000,
}

// New wraps an embedder with a cache. nil config means DefaultConfig.
func New(inner memory.Embedder, cfg *Config) (*CachedEmbedder, error) {
	if cfg == nil {
		cfg = DefaultConfig
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when the text was seen before,
// otherwise delegates and caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return emb, nil
		}
	}

	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if !c.cache.Set(text, emb, int64(len(emb)*4)) {
		log.Printf("[EMBED-CACHE] Cache rejected entry (%d bytes)", len(emb)*4)
	}
	return emb, nil
}

// Dimensions delegates to the wrapped embedder.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close releases the cache.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
