package logger

import "strings"

// DefaultMaskValue replaces credential values in log output.
const DefaultMaskValue = "***"

// FilterConfig controls which field names are treated as credentials.
type FilterConfig struct {
	// SensitiveFields contains field names (case-insensitive substring match)
	// whose values are masked in logs.
	SensitiveFields []string
	// MaskValue replaces sensitive data (default: "***").
	MaskValue string
}

// DefaultFilterConfig covers the credential material this SDK handles:
// bearer tokens, refresh tokens, and raw Authorization headers.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password",
			"secret", "api_key", "apikey",
			"token", "access_token", "accesstoken",
			"refresh_token", "refreshtoken",
			"auth", "authorization",
			"credential", "credentials",
		},
		MaskValue: DefaultMaskValue,
	}
}

// CredentialFilter masks credential fields before they reach log output.
type CredentialFilter struct {
	config *FilterConfig
}

// NewCredentialFilter creates a filter with the given configuration,
// falling back to defaults for nil or incomplete config.
func NewCredentialFilter(config *FilterConfig) *CredentialFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &CredentialFilter{config: config}
}

// FilterString masks the value when the key names a credential field.
func (f *CredentialFilter) FilterString(key, value string) string {
	if f.isSensitiveField(key) && value != "" {
		return f.config.MaskValue
	}
	return value
}

// FilterValue masks credential entries inside string maps and scalar strings.
// Other value types pass through unchanged.
func (f *CredentialFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	switch v := value.(type) {
	case string:
		return v
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = f.FilterString(k, val)
		}
		return out
	case map[string]any:
		return f.FilterFields(v)
	default:
		return value
	}
}

// FilterFields returns a copy of fields with credential values masked.
func (f *CredentialFilter) FilterFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = f.FilterValue(k, v)
	}
	return out
}

func (f *CredentialFilter) isSensitiveField(key string) bool {
	lower := strings.ToLower(key)
	for _, field := range f.config.SensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}
