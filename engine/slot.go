package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SlotState is the residency state of one model slot. Transitions only
// happen through ModelSlot methods:
//
//	Unloaded -> Loading -> Loaded -> Unloading -> Unloaded
//
// A failed load returns Loading -> Unloaded.
type SlotState int

const (
	SlotUnloaded SlotState = iota
	SlotLoading
	SlotLoaded
	SlotUnloading
)

func (s SlotState) String() string {
	switch s {
	case SlotUnloaded:
		return "unloaded"
	case SlotLoading:
		return "loading"
	case SlotLoaded:
		return "loaded"
	case SlotUnloading:
		return "unloading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ModelSlot tracks residency and last use for one model profile.
// It replaces ad hoc shared mutable state with an explicit state
// machine; the unload planner and the generate path both re-check
// state under the slot lock before acting.
type ModelSlot struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    SlotState
	lastUsed time.Time
}

// NewModelSlot starts unloaded.
func NewModelSlot() *ModelSlot {
	s := &ModelSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// State returns the current state.
func (s *ModelSlot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastUsed returns the last Touch timestamp.
func (s *ModelSlot) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Touch stamps use time. Only meaningful while loaded.
func (s *ModelSlot) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
}

// BeginLoad transitions Unloaded -> Loading. Returns an error if the
// slot is in any other state.
func (s *ModelSlot) BeginLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SlotUnloaded {
		return fmt.Errorf("cannot load from state %s", s.state)
	}
	s.state = SlotLoading
	return nil
}

// FinishLoad completes a load: Loaded on success, back to Unloaded on
// failure. Wakes anyone waiting for the slot to settle.
func (s *ModelSlot) FinishLoad(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SlotLoading {
		return // tolerated: a racing FinishUnload already settled us
	}
	if ok {
		s.state = SlotLoaded
		s.lastUsed = time.Now()
	} else {
		s.state = SlotUnloaded
	}
	s.cond.Broadcast()
}

// BeginUnload transitions Loaded -> Unloading.
func (s *ModelSlot) BeginUnload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SlotLoaded {
		return fmt.Errorf("cannot unload from state %s", s.state)
	}
	s.state = SlotUnloading
	return nil
}

// FinishUnload completes an unload.
func (s *ModelSlot) FinishUnload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SlotUnloading {
		return
	}
	s.state = SlotUnloaded
	s.cond.Broadcast()
}

// WaitSettled blocks while the slot is mid-transition (Loading or
// Unloading) and returns the settled state. Honors ctx cancellation.
func (s *ModelSlot) WaitSettled(ctx context.Context) (SlotState, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == SlotLoading || s.state == SlotUnloading {
		if err := ctx.Err(); err != nil {
			return s.state, err
		}
		s.cond.Wait()
	}
	return s.state, nil
}
