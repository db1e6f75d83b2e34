// Package config loads and validates the SDK configuration from defaults,
// optional YAML files, and environment variables (highest priority).
package config

import "time"

// Config is the root SDK configuration.
type Config struct {
	App   AppConfig   `koanf:"app"`
	API   APIConfig   `koanf:"api"`
	Retry RetryConfig `koanf:"retry"`
	Log   LogConfig   `koanf:"log"`
}

// AppConfig identifies the consuming application and its environment.
type AppConfig struct {
	Name string `koanf:"name" validate:"required"`
	Env  string `koanf:"env"`
}

// APIConfig describes the backend origin and transport deadline.
type APIConfig struct {
	// BaseURL is the API origin. Outside development it must be HTTPS.
	BaseURL string `koanf:"base_url" validate:"required,url"`
	// Timeout is the per-call deadline before a request counts as a
	// network failure.
	Timeout time.Duration `koanf:"timeout"`
}

// RetryConfig shapes the transient-failure backoff curve.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	Multiplier  float64       `koanf:"multiplier"`
	Jitter      bool          `koanf:"jitter"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}
