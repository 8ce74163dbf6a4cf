package engine

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/samlabs/sam-go/core"
)

// PlannerConfig tunes the background unload loop.
type PlannerConfig struct {
	// Interval between planning passes.
	Interval time.Duration

	// VisionIdleTTL unloads a vision model left idle this long.
	VisionIdleTTL time.Duration
}

// DefaultPlannerConfig checks every 15s and evicts vision models after
// two idle minutes.
var DefaultPlannerConfig = &PlannerConfig{
	Interval:      15 * time.Second,
	VisionIdleTTL: 120 * time.Second,
}

// UnloadPlanner frees memory in the background: idle vision models go
// first, then on memory pressure everything loaded goes, least recently
// used first. Slot state is re-checked under the slot lock at unload
// time, so the planner never races a load or unload already in flight.
// A loaded slot whose backend is mid-generation can still be evicted
// under pressure; LRU ordering makes it the last candidate, and the
// next request simply reloads it.
type UnloadPlanner struct {
	engine *Engine
	cfg    PlannerConfig
	cancel context.CancelFunc
	done   chan struct{}
}

// NewUnloadPlanner creates a planner over an engine. nil config means
// DefaultPlannerConfig.
func NewUnloadPlanner(e *Engine, cfg *PlannerConfig) *UnloadPlanner {
	if cfg == nil {
		cfg = DefaultPlannerConfig
	}
	return &UnloadPlanner{engine: e, cfg: *cfg}
}

// Start launches the planning loop. Stop with Stop.
func (p *UnloadPlanner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runOnce(ctx)
			}
		}
	}()
}

// Stop terminates the loop and waits for the current pass to finish.
func (p *UnloadPlanner) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// runOnce does one planning pass: TTL eviction for vision tiers, then a
// pressure pass over everything when free memory drops below the
// moderate threshold.
func (p *UnloadPlanner) runOnce(ctx context.Context) {
	now := time.Now()
	e := p.engine

	for _, profile := range e.visionProfiles {
		s := e.slot(profile.Key)
		if s.State() != SlotLoaded {
			continue
		}
		if idle := now.Sub(s.LastUsed()); idle > p.cfg.VisionIdleTTL {
			log.Printf("[PLANNER] Vision model %s idle %.0fs, unloading", profile.Key, idle.Seconds())
			e.unloadSlot(ctx, profile)
		}
	}

	free := e.res.FreeGB()
	if free >= e.res.Config().MemoryModerateGB {
		return
	}
	log.Printf("[PLANNER] Memory pressure (%.2f GB free), unloading idle models", free)

	for _, profile := range p.byLastUsed() {
		s := e.slot(profile.Key)
		if s.State() != SlotLoaded {
			continue
		}
		e.unloadSlot(ctx, profile)
		if e.res.FreeGB() >= e.res.Config().MemoryModerateGB {
			return
		}
	}
}

// byLastUsed returns all profiles, least recently used first, so the
// pressure pass evicts the stalest model before the one the user is
// probably about to hit again.
func (p *UnloadPlanner) byLastUsed() []core.ModelProfile {
	e := p.engine

	type use struct {
		profile  core.ModelProfile
		lastUsed time.Time
	}
	all := make([]use, 0, len(e.visionProfiles)+len(e.profiles))
	for _, profile := range e.visionProfiles {
		all = append(all, use{profile, e.slot(profile.Key).LastUsed()})
	}
	for _, profile := range e.profiles {
		all = append(all, use{profile, e.slot(profile.Key).LastUsed()})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastUsed.Before(all[j].lastUsed) })

	out := make([]core.ModelProfile, len(all))
	for i, u := range all {
		out[i] = u.profile
	}
	return out
}
