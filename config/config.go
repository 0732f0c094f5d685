// Package config loads the daemon configuration file.
//
// The file is YAML; all durations are whole seconds, matching the
// options the statistics engine understands. A missing file is not an
// error — defaults apply.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tally/registry"
)

// Config is the daemon configuration.
type Config struct {
	// Level is the statistics verbosity threshold.
	Level int `yaml:"level"`
	// LogFreq is the publish cadence in seconds; 0 disables publishing
	// but not pruning.
	LogFreq int `yaml:"log-freq"`
	// Lifetime is the dynamic-counter expiration horizon in seconds.
	Lifetime int `yaml:"lifetime"`
	// Socket is the control socket path.
	Socket string `yaml:"socket,omitempty"`
	// LogLevel selects the daemon's own log verbosity.
	LogLevel string `yaml:"log-level,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Level:    0,
		LogFreq:  int(registry.DefaultLogFreq / time.Second),
		Lifetime: int(registry.DefaultLifetime / time.Second),
		LogLevel: "info",
	}
}

// Load reads the config file at path. A missing file yields Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot honor.
func (c Config) Validate() error {
	if c.Level < 0 {
		return fmt.Errorf("level must be nonnegative, got %d", c.Level)
	}
	if c.LogFreq < 0 {
		return fmt.Errorf("log-freq must be nonnegative, got %d", c.LogFreq)
	}
	if c.Lifetime <= 0 {
		return fmt.Errorf("lifetime must be positive, got %d", c.Lifetime)
	}
	return nil
}

// Options converts the config into registry options.
func (c Config) Options() registry.Options {
	return registry.Options{
		Level:    c.Level,
		LogFreq:  time.Duration(c.LogFreq) * time.Second,
		Lifetime: time.Duration(c.Lifetime) * time.Second,
	}
}
