// Package config loads the microprobe configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds harness and command settings.
type Config struct {
	Harness HarnessConfig `yaml:"harness"`
	Bench   BenchConfig   `yaml:"bench"`
	Verify  VerifyConfig  `yaml:"verify"`
}

// HarnessConfig controls guest execution.
type HarnessConfig struct {
	MaxInsn uint64 `yaml:"max_insn"` // instruction budget per call, 0 = unlimited
	Entry   string `yaml:"entry"`    // preferred entry symbol for info output
}

// BenchConfig controls the bench command.
type BenchConfig struct {
	Iterations int     `yaml:"iterations"`
	Seed       float64 `yaml:"seed"` // seed for the math loop probe
}

// VerifyConfig controls the verify command.
type VerifyConfig struct {
	Tolerance float64  `yaml:"tolerance"` // float comparison tolerance
	Probes    []string `yaml:"probes"`    // restrict to these probes, empty = all
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Harness: HarnessConfig{
			MaxInsn: 20_000_000,
		},
		Bench: BenchConfig{
			Iterations: 10,
			Seed:       5.0,
		},
		Verify: VerifyConfig{
			Tolerance: 1e-4,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Verify.Tolerance <= 0 {
		return cfg, fmt.Errorf("verify.tolerance must be positive, got %v", cfg.Verify.Tolerance)
	}
	if cfg.Bench.Iterations <= 0 {
		return cfg, fmt.Errorf("bench.iterations must be positive, got %d", cfg.Bench.Iterations)
	}

	return cfg, nil
}
