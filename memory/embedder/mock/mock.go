// Package mock provides a deterministic embedder for tests: no model
// files, no runtime, same vector for the same text every time.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder generates hash-seeded pseudo-random embeddings. There is
// no semantic similarity between related texts; identical texts map to
// identical vectors, which is enough for store and manager tests.
type MockEmbedder struct {
	dimensions int
}

// New creates a mock embedder with all-MiniLM-L6-v2's dimensions, so it
// can stand in for the ONNX embedder without reconfiguring stores.
func New() *MockEmbedder {
	return &MockEmbedder{dimensions: 384}
}

// Embed creates a deterministic embedding from the text hash.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	embedding := make([]float32, m.dimensions)
	seed := h.Sum64()
	for i := range embedding {
		// LCG stepped from the hash, mapped into [-1, 1].
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
