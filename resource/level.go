package resource

import "fmt"

// Level buckets free RAM into a coarse health signal. Levels are ordered:
// comparisons like level <= LevelLow are meaningful.
type Level int

const (
	// LevelCritical means heavy operations are refused outright.
	LevelCritical Level = iota

	// LevelLow forces the smallest model tier.
	LevelLow

	// LevelModerate allows normal operation; the unload planner starts
	// evicting idle models below the moderate threshold.
	LevelModerate

	// LevelGood means no resource constraints apply.
	LevelGood
)

func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "critical"
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelGood:
		return "good"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// LevelForFree buckets a free-RAM reading against config thresholds.
//
// Bucketing:
//
//	free <  critical            -> LevelCritical
//	free <  low                 -> LevelLow
//	free <  good                -> LevelModerate
//	free >= good                -> LevelGood
//
// The moderate threshold does not shift the level; it is the pressure
// trigger for the unload planner (see engine.UnloadPlanner).
func LevelForFree(freeGB float64, cfg *Config) Level {
	switch {
	case freeGB < cfg.MemoryCriticalGB:
		return LevelCritical
	case freeGB < cfg.MemoryLowGB:
		return LevelLow
	case freeGB < cfg.MemoryGoodGB:
		return LevelModerate
	default:
		return LevelGood
	}
}
