package cached

import (
	"context"
	"testing"
)

// countingEmbedder tracks how many times Embed actually runs.
type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	emb := make([]float32, 8)
	for i := range emb {
		emb[i] = float32(len(text) + i)
	}
	return emb, nil
}

func (e *countingEmbedder) Dimensions() int { return 8 }

func TestCachedEmbedderMemoizes(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := New(inner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	first, err := c.Embed(ctx, "remember my dentist appointment")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// ristretto admits entries asynchronously; Wait drains the buffers
	// so the second call can observe the cached entry.
	c.cache.Wait()

	second, err := c.Embed(ctx, "remember my dentist appointment")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner embedder called %d times, want 1", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestCachedEmbedderDistinctTexts(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := New(inner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Embed(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(ctx, "beta"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("inner embedder called %d times, want 2", inner.calls)
	}
}

func TestCachedEmbedderDimensions(t *testing.T) {
	c, err := New(&countingEmbedder{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions = %d, want 8", c.Dimensions())
	}
}
