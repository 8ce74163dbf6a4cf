package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samlabs/sam-go/core"
)

// Backend is the capability interface for a local model runtime
// (MLX, llama.cpp, ...). Availability is decided at construction, not
// probed at call time: a backend that cannot serve a profile returns an
// error from Load and the engine falls back to the other tier.
type Backend interface {
	// Load makes the profile resident. Idempotent loads are allowed
	// but the engine never issues them: slot state gates the calls.
	Load(ctx context.Context, profile core.ModelProfile) error

	// Unload releases the profile's memory.
	Unload(ctx context.Context, profile core.ModelProfile) error

	// Generate produces up to maxTokens of completion text.
	Generate(ctx context.Context, profile core.ModelProfile, prompt string, maxTokens int) (string, error)
}

// StubBackend is a deterministic in-process backend for tests and the
// CLI demo. It echoes a canned response per model key, or a generic
// acknowledgment.
type StubBackend struct {
	mu sync.Mutex

	// Responses maps model key to canned output.
	Responses map[string]string

	// LoadErr injects a load failure per model key.
	LoadErr map[string]error

	// LoadDelay simulates model-load latency.
	LoadDelay time.Duration

	// Loaded tracks resident profiles, for assertions.
	Loaded map[string]bool

	// Calls counts Generate invocations per model key.
	Calls map[string]int
}

// NewStubBackend creates an empty stub.
func NewStubBackend() *StubBackend {
	return &StubBackend{
		Responses: map[string]string{},
		LoadErr:   map[string]error{},
		Loaded:    map[string]bool{},
		Calls:     map[string]int{},
	}
}

func (b *StubBackend) Load(ctx context.Context, profile core.ModelProfile) error {
	if b.LoadDelay > 0 {
		select {
		case <-time.After(b.LoadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.LoadErr[profile.Key]; err != nil {
		return fmt.Errorf("load %s: %w", profile.Key, err)
	}
	b.Loaded[profile.Key] = true
	return nil
}

func (b *StubBackend) Unload(ctx context.Context, profile core.ModelProfile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.Loaded, profile.Key)
	return nil
}

func (b *StubBackend) Generate(ctx context.Context, profile core.ModelProfile, prompt string, maxTokens int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls[profile.Key]++
	if !b.Loaded[profile.Key] {
		return "", fmt.Errorf("model %s not loaded", profile.Key)
	}
	if resp, ok := b.Responses[profile.Key]; ok {
		return resp, nil
	}

	// Generic deterministic output keyed on the prompt tail.
	tail := prompt
	if i := strings.LastIndex(prompt, "\n"); i >= 0 {
		tail = prompt[i+1:]
	}
	return fmt.Sprintf("(%s) I looked into: %s", profile.Key, strings.TrimSpace(tail)), nil
}

// IsLoaded reports residency for assertions.
func (b *StubBackend) IsLoaded(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Loaded[key]
}
