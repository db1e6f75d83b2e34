package config

import (
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "coursebook-client", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, "https://api.coursebook.app", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromProviderOverridesDefaults(t *testing.T) {
	raw := []byte(`
api:
  base_url: https://staging.coursebook.app
  timeout: 10s
retry:
  max_attempts: 5
  base_delay: 500ms
  multiplier: 1.5
  jitter: true
log:
  level: debug
`)

	cfg, err := LoadFromProvider(rawbytes.Provider(raw), yaml.Parser())
	require.NoError(t, err)

	assert.Equal(t, "https://staging.coursebook.app", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 1.5, cfg.Retry.Multiplier)
	assert.True(t, cfg.Retry.Jitter)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, "coursebook-client", cfg.App.Name)
}

func TestLoadFromProviderRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "http base url outside development",
			raw: `
app:
  env: production
api:
  base_url: http://api.coursebook.app
`,
		},
		{
			name: "zero timeout",
			raw: `
api:
  timeout: 0s
`,
		},
		{
			name: "negative max attempts",
			raw: `
retry:
  max_attempts: -1
`,
		},
		{
			name: "multiplier below one",
			raw: `
retry:
  multiplier: 0.5
`,
		},
		{
			name: "unknown environment",
			raw: `
app:
  env: sandbox
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromProvider(rawbytes.Provider([]byte(tt.raw)), yaml.Parser())
			assert.Error(t, err)
		})
	}
}
