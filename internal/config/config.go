// Package config handles configuration loading and management for corefuzz.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the global configuration for a corefuzz run.
type Config struct {
	Target     TargetConfig     `yaml:"target"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Mutator    MutatorConfig    `yaml:"mutator"`
	Aggression AggressionConfig `yaml:"aggression"`
	Output     OutputConfig     `yaml:"output"`
}

// TargetConfig describes the binary under test and how input reaches it.
type TargetConfig struct {
	Path           string        `yaml:"path"`
	Args           []string      `yaml:"args"`
	Mode           string        `yaml:"mode"` // "stdin" or "file"
	Timeout        time.Duration `yaml:"timeout"`
	WorkDir        string        `yaml:"workdir"`
	BitmapSize     int           `yaml:"bitmap_size"`
	MaxExecsPerSec float64       `yaml:"max_execs_per_sec"` // 0 disables the throttle
}

// SchedulerConfig tunes corpus admission, selection and energy decay.
type SchedulerConfig struct {
	FavoredCapacity   int           `yaml:"favored_capacity"`
	FavoredTTL        time.Duration `yaml:"favored_ttl"`
	FavoredReselectTTL int          `yaml:"favored_reselect_ttl"`
	ExploreFraction   float64       `yaml:"explore_fraction"`
	ExploreFractionStagnant float64 `yaml:"explore_fraction_stagnant"`
	FavoredSelectProb float64       `yaml:"favored_select_prob"`
	MaintenanceEvery  int           `yaml:"maintenance_every"`
	StagnationWindow  time.Duration `yaml:"stagnation_window"`
	StagnationGrowth  float64       `yaml:"stagnation_growth"`
}

// MutatorConfig tunes the mutation pipeline's composite/havoc behavior.
type MutatorConfig struct {
	DictPath              string  `yaml:"dict_path"`
	InterestingExtrasPath string  `yaml:"interesting_extras_path"`
	SpecializedProb       float64 `yaml:"specialized_prob"`
	SlowSpecializedProb   float64 `yaml:"slow_specialized_prob"`
	CompositeMinCalls     int     `yaml:"composite_min_calls"`
	CompositeMaxCalls     int     `yaml:"composite_max_calls"`
	VariantsPerCall       int     `yaml:"variants_per_call"`
	ParseCacheCapacity    int     `yaml:"parse_cache_capacity"`
}

// AggressionConfig tunes the stagnation-driven aggression manager.
type AggressionConfig struct {
	Cooldown    time.Duration `yaml:"cooldown"`
	MinDuration time.Duration `yaml:"min_duration"`
	Scale       float64       `yaml:"scale"`
}

// OutputConfig controls artifact/report destinations and the reporter thread.
type OutputConfig struct {
	Dir              string        `yaml:"dir"`
	StatusInterval   time.Duration `yaml:"status_interval"`
	EnableTUI        bool          `yaml:"enable_tui"`
	EnableWeb        bool          `yaml:"enable_web"`
	WebAddr          string        `yaml:"web_addr"`
	Verbose          bool          `yaml:"verbose"`
	NoveltyThreshold int           `yaml:"novelty_threshold"` // min novelty to save a monitor_artifacts sample
}

// DefaultConfig returns the built-in defaults, overridden by any YAML file
// and then by tuning environment variables at load time.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Mode:           "stdin",
			Timeout:        2 * time.Second,
			BitmapSize:     16384,
			MaxExecsPerSec: 0,
		},
		Scheduler: SchedulerConfig{
			FavoredCapacity:         20,
			FavoredTTL:              30 * time.Second,
			FavoredReselectTTL:      8,
			ExploreFraction:         0.15,
			ExploreFractionStagnant: 0.30,
			FavoredSelectProb:       0.65,
			MaintenanceEvery:        200,
			StagnationWindow:        10 * time.Second,
			StagnationGrowth:        0.01,
		},
		Mutator: MutatorConfig{
			SpecializedProb:     0.7,
			SlowSpecializedProb: 0.3,
			CompositeMinCalls:   1,
			CompositeMaxCalls:   4,
			VariantsPerCall:     8,
			ParseCacheCapacity:  1000,
		},
		Aggression: AggressionConfig{
			Cooldown:    60 * time.Second,
			MinDuration: 15 * time.Second,
			Scale:       2.0,
		},
		Output: OutputConfig{
			Dir:              "out",
			StatusInterval:   5 * time.Second,
			EnableTUI:        true,
			EnableWeb:        false,
			WebAddr:          ":8090",
			NoveltyThreshold: 1,
		},
	}
}

// Load reads a YAML overlay (when path is non-empty) on top of the defaults,
// then applies environment-variable overrides for the tuning knobs that
// spec.md's design notes call out as global mutable state re-read live.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides re-reads the tuning environment variables into cfg. Load
// calls it once; nothing in the scheduler or the main loop calls it during a
// run, so edits to these variables after Load do not reach a running fuzzer.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("COREFUZZ_EXPLORE_FRACTION"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scheduler.ExploreFraction = f
		}
	}
	if v, ok := os.LookupEnv("COREFUZZ_EXPLORE_FRACTION_STAGNANT"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scheduler.ExploreFractionStagnant = f
		}
	}
	if v, ok := os.LookupEnv("COREFUZZ_SPECIALIZED_PROB"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Mutator.SpecializedProb = f
		}
	}
	if v, ok := os.LookupEnv("COREFUZZ_STAGNATION_GROWTH"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scheduler.StagnationGrowth = f
		}
	}
	if v, ok := os.LookupEnv("COREFUZZ_AGGRESSION_SCALE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Aggression.Scale = f
		}
	}
}

// RefreshTuning re-applies environment overrides onto an already-loaded
// config. No caller in this repository invokes it: the CLI copies config
// values into the scheduler and engine.Config once at startup.
func RefreshTuning(cfg *Config) {
	applyEnvOverrides(cfg)
}
