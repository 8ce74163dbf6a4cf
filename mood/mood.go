// Package mood keeps a lightweight affect model for the assistant's
// tone. It is presentation only: mood never changes what the assistant
// does, just how answers are phrased via a tone hint in the system
// prompt.
package mood

import (
	"log"
	"math"
	"sync"
	"time"
)

// Event is an observed interaction signal.
type Event string

const (
	EventPraise      Event = "praise"
	EventFrustration Event = "frustration"
	EventTaskSuccess Event = "task_success"
	EventTaskFailure Event = "task_failure"
	EventLongSilence Event = "long_silence"
)

// delta is the fixed (valence, energy) shift per event.
var deltas = map[Event][2]float64{
	EventPraise:      {+0.30, +0.15},
	EventFrustration: {-0.35, +0.10},
	EventTaskSuccess: {+0.15, +0.05},
	EventTaskFailure: {-0.20, -0.10},
	EventLongSilence: {-0.05, -0.20},
}

// State is a mood snapshot. Both axes live in [-1, 1]; zero is the
// neutral baseline both decay toward.
type State struct {
	Valence float64 // negative..positive
	Energy  float64 // flat..animated
	At      time.Time
}

// Config tunes the simulation.
type Config struct {
	// HalfLife is how long a full-strength mood takes to halve.
	HalfLife time.Duration
}

// DefaultConfig halves mood every 30 minutes.
var DefaultConfig = &Config{HalfLife: 30 * time.Minute}

// Simulator tracks mood under an RWMutex. The clock is injectable for
// tests.
type Simulator struct {
	mu      sync.RWMutex
	valence float64
	energy  float64
	updated time.Time

	halfLife time.Duration
	now      func() time.Time
}

// Option configures the simulator.
type Option func(*Simulator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// New creates a neutral simulator. nil config means DefaultConfig.
func New(cfg *Config, opts ...Option) *Simulator {
	if cfg == nil {
		cfg = DefaultConfig
	}
	s := &Simulator{
		halfLife: cfg.HalfLife,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updated = s.now()
	return s
}

// Observe applies an event's fixed deltas on top of the decayed state.
// Unknown events are ignored.
func (s *Simulator) Observe(ev Event) {
	d, ok := deltas[ev]
	if !ok {
		log.Printf("[MOOD] Unknown event %q ignored", ev)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.decayLocked()
	s.valence = clamp(s.valence + d[0])
	s.energy = clamp(s.energy + d[1])
}

// Snapshot returns the current decayed state.
func (s *Simulator) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decayLocked()
	return State{Valence: s.valence, Energy: s.energy, At: s.updated}
}

// ToneHint renders the mood as a short phrase for the system prompt.
// Near-neutral mood returns an empty hint so the prompt stays clean.
func (s *Simulator) ToneHint() string {
	st := s.Snapshot()

	switch {
	case st.Valence > 0.3 && st.Energy > 0.2:
		return "upbeat and enthusiastic"
	case st.Valence > 0.3:
		return "warm and relaxed"
	case st.Valence < -0.3 && st.Energy > 0.2:
		return "careful and conciliatory"
	case st.Valence < -0.3:
		return "subdued, keep answers brief"
	case st.Energy < -0.3:
		return "calm and quiet"
	default:
		return ""
	}
}

// decayLocked applies exponential decay toward the neutral baseline for
// the time elapsed since the last update. Caller holds mu.
func (s *Simulator) decayLocked() {
	now := s.now()
	elapsed := now.Sub(s.updated)
	s.updated = now
	if elapsed <= 0 || s.halfLife <= 0 {
		return
	}

	factor := math.Pow(0.5, elapsed.Seconds()/s.halfLife.Seconds())
	s.valence *= factor
	s.energy *= factor
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
