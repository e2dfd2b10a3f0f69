// internal/common/config/config.go
package config

import (
	"strings"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Inference     InferenceConfig     `mapstructure:"inference"`
	EHR           EHRConfig           `mapstructure:"ehr"`
	Anonymization AnonymizationConfig `mapstructure:"anonymization"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

func (c ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Millisecond
}

func (c ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Millisecond
}

func (c ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Millisecond
}

// InferenceConfig holds the connection settings for the confidential-computing
// hosted model endpoint (OpenAI-compatible chat completions API).
type InferenceConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	Timeout       int     `mapstructure:"timeout"`         // milliseconds, per call
	MaxRetries    int     `mapstructure:"max_retries"`     // transient failures only
	MaxInputChars int     `mapstructure:"max_input_chars"` // reject-over-truncate bound
}

// GetTimeout returns the per-call inference deadline.
func (c InferenceConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// EHRConfig holds the connection settings for the Simplex EHR system.
type EHRConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	TenantPath string `mapstructure:"tenant_path"`
	LocationID string `mapstructure:"location_id"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds, per call
	MaxRetries int    `mapstructure:"max_retries"`
}

// GetTimeout returns the per-call EHR deadline.
func (c EHRConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetAPIBaseURL joins the base URL and tenant path the way the Simplex API
// expects them.
func (c EHRConfig) GetAPIBaseURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	tenant := strings.Trim(c.TenantPath, "/")
	if tenant == "" {
		return base
	}
	return base + "/" + tenant
}

// AnonymizationConfig holds the orchestration policy knobs.
type AnonymizationConfig struct {
	MaxConcurrentInference int      `mapstructure:"max_concurrent_inference"`
	RequestTimeout         int      `mapstructure:"request_timeout"` // milliseconds, end to end
	TextFields             []string `mapstructure:"text_fields"`     // allow-list of free-text record fields
	RedactionPlaceholder   string   `mapstructure:"redaction_placeholder"`
}

// GetRequestTimeout returns the end-to-end request deadline.
func (c AnonymizationConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
