package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var validate = validator.New()

// Validate checks structural rules (via validator tags) and the semantic
// rules the tags cannot express: HTTPS enforcement outside development,
// positive timings, and a sane backoff curve.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation: %w", err)
	}

	validEnvs := []string{EnvDevelopment, EnvStaging, EnvProduction}
	if !slices.Contains(validEnvs, cfg.App.Env) {
		return fmt.Errorf("invalid environment: %s (must be one of: %s)",
			cfg.App.Env, strings.Join(validEnvs, ", "))
	}

	if err := validateAPI(&cfg.API, cfg.App.Env); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if err := validateRetry(&cfg.Retry); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}

	return nil
}

func validateAPI(cfg *APIConfig, env string) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Plain HTTP is tolerated in development only (local backends)
	if u.Scheme != "https" && env != EnvDevelopment {
		return fmt.Errorf("base URL must be HTTPS, got scheme %q", u.Scheme)
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func validateRetry(cfg *RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative")
	}

	if cfg.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive")
	}

	if cfg.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1")
	}

	return nil
}
