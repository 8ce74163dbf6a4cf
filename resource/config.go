package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds the static resource thresholds. Values are loaded from a
// JSON file at manager construction and rewritten wholesale by
// Manager.UpdateConfig; nothing else mutates them.
type Config struct {
	// Free-RAM cutoffs in GB. Must be strictly increasing.
	MemoryCriticalGB float64 `json:"memory_critical_gb"`
	MemoryLowGB      float64 `json:"memory_low_gb"`
	MemoryModerateGB float64 `json:"memory_moderate_gb"`
	MemoryGoodGB     float64 `json:"memory_good_gb"`

	// MaxConcurrentHeavyOps caps simultaneous model load/generate work.
	MaxConcurrentHeavyOps int `json:"max_concurrent_heavy_ops"`

	// HeavyOpCooldownSecs is the refusal window after a heavy op ends.
	HeavyOpCooldownSecs float64 `json:"heavy_op_cooldown_secs"`
}

// DefaultConfig matches the tuning for an 8GB machine.
var DefaultConfig = &Config{
	MemoryCriticalGB:      0.2,
	MemoryLowGB:           1.0,
	MemoryModerateGB:      2.0,
	MemoryGoodGB:          4.0,
	MaxConcurrentHeavyOps: 1,
	HeavyOpCooldownSecs:   5,
}

// Cooldown returns the cooldown window as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.HeavyOpCooldownSecs * float64(time.Second))
}

// Validate checks threshold ordering and basic sanity.
func (c *Config) Validate() error {
	if !(c.MemoryCriticalGB < c.MemoryLowGB &&
		c.MemoryLowGB < c.MemoryModerateGB &&
		c.MemoryModerateGB < c.MemoryGoodGB) {
		return fmt.Errorf("memory thresholds must be strictly increasing: %.2f/%.2f/%.2f/%.2f",
			c.MemoryCriticalGB, c.MemoryLowGB, c.MemoryModerateGB, c.MemoryGoodGB)
	}
	if c.MaxConcurrentHeavyOps < 1 {
		return fmt.Errorf("max_concurrent_heavy_ops must be >= 1")
	}
	if c.HeavyOpCooldownSecs < 0 {
		return fmt.Errorf("heavy_op_cooldown_secs must not be negative")
	}
	return nil
}

// LoadConfig reads threshold overrides from a JSON file. A missing file
// is not an error: defaults apply. Unknown fields are ignored.
func LoadConfig(path string) (*Config, error) {
	cfg := *DefaultConfig

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save rewrites the config file wholesale.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
