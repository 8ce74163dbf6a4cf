package resource

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Manager gates heavy operations (model loads and generations) behind
// free-RAM checks, a cooldown window, and a concurrency limit.
//
// There is no process-wide singleton: construct one Manager and pass it
// to the engine and selectors explicitly.
type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg        Config
	configPath string
	sampler    Sampler

	inFlight    int
	lastOpEnded time.Time

	// Counters for Stats.
	acquired uint64
	refused  uint64
}

// NewManager creates a manager. A nil config means DefaultConfig; a nil
// sampler means the OS sampler. configPath is optional; when set,
// UpdateConfig rewrites it.
func NewManager(cfg *Config, sampler Sampler, configPath string) (*Manager, error) {
	if cfg == nil {
		c := *DefaultConfig
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = NewOSSampler()
	}

	m := &Manager{
		cfg:        *cfg,
		configPath: configPath,
		sampler:    sampler,
	}
	m.cond = sync.NewCond(&m.mu)
	return m, nil
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig replaces the configuration and rewrites the config file
// wholesale when the manager was constructed with a path.
func (m *Manager) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	path := m.configPath
	m.mu.Unlock()

	// Capacity may have increased; wake waiters so they re-check.
	m.cond.Broadcast()

	if path == "" {
		return nil
	}
	return cfg.Save(path)
}

// FreeGB samples available memory, substituting the conservative
// fallback on sampler failure. It never returns an error.
func (m *Manager) FreeGB() float64 {
	free, err := m.sampler.FreeGB()
	if err != nil {
		log.Printf("[RESOURCE] Memory sample failed, assuming %.1f GB free: %v", FallbackFreeGB, err)
		return FallbackFreeGB
	}
	return free
}

// CurrentLevel samples memory and buckets it against the thresholds.
func (m *Manager) CurrentLevel() Level {
	free := m.FreeGB()
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()
	return LevelForFree(free, &cfg)
}

// CanPerformHeavyOp reports whether a heavy operation would be admitted
// right now, with a user-presentable reason when not. It does not
// reserve a slot; call Acquire to actually hold one.
func (m *Manager) CanPerformHeavyOp() (bool, string) {
	free := m.FreeGB()

	m.mu.Lock()
	defer m.mu.Unlock()

	if LevelForFree(free, &m.cfg) == LevelCritical {
		m.refused++
		return false, fmt.Sprintf("memory critically low: %.2f GB free, deferring heavy work", free)
	}

	if !m.lastOpEnded.IsZero() {
		if since := time.Since(m.lastOpEnded); since < m.cfg.Cooldown() {
			m.refused++
			return false, fmt.Sprintf("cooling down after last heavy operation (%.1fs remaining)",
				(m.cfg.Cooldown() - since).Seconds())
		}
	}

	if m.inFlight >= m.cfg.MaxConcurrentHeavyOps {
		m.refused++
		return false, fmt.Sprintf("all %d heavy operation slots busy", m.cfg.MaxConcurrentHeavyOps)
	}

	return true, "ok"
}

// HeavyOp is a held concurrency slot. Release must be called exactly
// once; it is safe to call more than once.
type HeavyOp struct {
	m        *Manager
	released bool
	relMu    sync.Mutex
}

// Release frees the slot, stamps the cooldown clock, and wakes waiters.
func (op *HeavyOp) Release() {
	op.relMu.Lock()
	if op.released {
		op.relMu.Unlock()
		return
	}
	op.released = true
	op.relMu.Unlock()

	op.m.mu.Lock()
	op.m.inFlight--
	op.m.lastOpEnded = time.Now()
	op.m.mu.Unlock()
	op.m.cond.Broadcast()
}

// Acquire blocks until a heavy-op slot is free or ctx is done. Waiters
// are woken on release rather than polling. Acquire does not apply the
// level/cooldown admission checks; those belong to CanPerformHeavyOp so
// that callers can fall back to a smaller model instead of queueing.
func (m *Manager) Acquire(ctx context.Context) (*HeavyOp, error) {
	// Wake waiters when ctx is canceled. The watcher takes the mutex
	// before broadcasting so the signal cannot fall between a waiter's
	// ctx check and its cond.Wait.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		case <-done:
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.inFlight >= m.cfg.MaxConcurrentHeavyOps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.cond.Wait()
	}

	m.inFlight++
	m.acquired++
	return &HeavyOp{m: m}, nil
}

// ExecuteWithLimits runs fn under the heavy-op gate with a wall-clock
// timeout. The timeout is cooperative: fn receives the deadline context
// and is expected to honor it, but ExecuteWithLimits returns as soon as
// the deadline passes either way.
func (m *Manager) ExecuteWithLimits(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op, err := m.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire heavy-op slot: %w", err)
	}
	defer op.Release()

	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("heavy operation timed out: %w", ctx.Err())
	}
}

// Stats is a snapshot of gate counters.
type Stats struct {
	Acquired uint64
	Refused  uint64
	InFlight int
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Acquired: m.acquired, Refused: m.refused, InFlight: m.inFlight}
}
