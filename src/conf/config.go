package conf

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables of a single interpreter state. The zero value is
// not useful, start from Default.
type Config struct {
	// InitialStackSize is the number of value slots allocated at startup.
	InitialStackSize int `toml:"initial_stack_size"`
	// MaxStackSize bounds stack growth.
	MaxStackSize int `toml:"max_stack_size"`
	// MaxCallDepth bounds the number of active call frames.
	MaxCallDepth int `toml:"max_call_depth"`
	// GC configures the generational collector.
	GC GCConfig `toml:"gc"`
	// Warn enables warnings printed by the warn function.
	Warn bool `toml:"warn"`
}

// GCConfig configures the generational collector.
type GCConfig struct {
	// Disabled turns off automatic collection, collectgarbage still works.
	Disabled bool `toml:"disabled"`
	// Gen0Threshold is the young generation size that triggers a minor collection.
	Gen0Threshold int `toml:"gen0_threshold"`
	// Gen1Threshold is the middle generation size that widens a collection.
	Gen1Threshold int `toml:"gen1_threshold"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		InitialStackSize: INITIALSTACKSIZE,
		MaxStackSize:     MAXSTACKSIZE,
		MaxCallDepth:     MAXCALLDEPTH,
		GC: GCConfig{
			Gen0Threshold: GCGEN0THRESHOLD,
			Gen1Threshold: GCGEN1THRESHOLD,
		},
	}
}

// Load reads a toml file on top of the defaults. Keys the config does not
// know about are reported as an error so that typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.validate(meta)
}

// Parse is Load for an in memory document.
func Parse(data string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.validate(meta)
}

func (cfg Config) validate(meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
	}
	switch {
	case cfg.InitialStackSize <= 0:
		return fmt.Errorf("config: initial_stack_size must be positive, got %d", cfg.InitialStackSize)
	case cfg.MaxStackSize < cfg.InitialStackSize:
		return fmt.Errorf("config: max_stack_size %d is below initial_stack_size %d", cfg.MaxStackSize, cfg.InitialStackSize)
	case cfg.MaxCallDepth <= 0:
		return fmt.Errorf("config: max_call_depth must be positive, got %d", cfg.MaxCallDepth)
	case cfg.GC.Gen0Threshold <= 0 || cfg.GC.Gen1Threshold <= 0:
		return fmt.Errorf("config: gc thresholds must be positive")
	}
	return nil
}
