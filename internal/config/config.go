// Package config loads the runtime configuration of the tale binary.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// TALE_* environment variables. Command-line flags are applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/tale/internal/logging"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TALE_"

// Config holds every tunable of the engine and its servers.
type Config struct {
	Countdown       int           `yaml:"countdown" env:"COUNTDOWN"`
	TickInterval    time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	TransitionDelay time.Duration `yaml:"transition_delay" env:"TRANSITION_DELAY"`
	FailEvery       int           `yaml:"fail_every" env:"FAIL_EVERY"`
	Story           string        `yaml:"story" env:"STORY"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	HTTPAddr         string        `yaml:"http_addr" env:"HTTP_ADDR"`
	MetricsAddr      string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	MaxSessions      int           `yaml:"max_sessions" env:"MAX_SESSIONS"`
	SessionRetention time.Duration `yaml:"session_retention" env:"SESSION_RETENTION"`

	Redis Redis `yaml:"redis" envPrefix:"REDIS_"`
}

// Redis configures the optional event journal.
type Redis struct {
	Addr   string        `yaml:"addr" env:"ADDR"`
	Prefix string        `yaml:"prefix" env:"PREFIX"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Countdown:        10,
		TickInterval:     time.Second,
		TransitionDelay:  time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
		HTTPAddr:         ":8080",
		MaxSessions:      1000,
		SessionRetention: 10 * time.Minute,
		Redis: Redis{
			Prefix: "tale:",
			TTL:    24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when empty) and the environment. environ replaces the process environment
// when not nil.
func Load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Countdown <= 0 {
		errs = append(errs, fmt.Errorf("countdown must be positive, got %d", c.Countdown))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	if c.TransitionDelay < 0 {
		errs = append(errs, fmt.Errorf("transition_delay must not be negative, got %s", c.TransitionDelay))
	}
	if c.FailEvery < 0 {
		errs = append(errs, fmt.Errorf("fail_every must not be negative, got %d", c.FailEvery))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("max_sessions must not be negative, got %d", c.MaxSessions))
	}
	return errors.Join(errs...)
}
