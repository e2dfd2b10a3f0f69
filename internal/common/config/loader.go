// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultTextFields is the allow-list of free-text fields in a Simplex
// patient-visit-history record. Only these fields are submitted for
// anonymization; structured codes and identifiers pass through untouched.
var DefaultTextFields = []string{
	"Past_MH",
	"Past_Surgical_MH",
	"Other_Family_MH",
	"Med_Fam_Social_History_Note",
	"Patient_Visit_Registration_Note",
}

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like LLM_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (for running from different directories)
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found in any location, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Expand ${VAR} placeholders left in string config values
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "yma-anonymizer"
	}
	if cfg.App.Environment == "" {
		if env := os.Getenv("APP_ENVIRONMENT"); env != "" {
			cfg.App.Environment = env
		} else {
			cfg.App.Environment = "development"
		}
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 60000
	}
	if cfg.Inference.MaxRetries == 0 {
		cfg.Inference.MaxRetries = 3
	}
	if cfg.Inference.MaxInputChars == 0 {
		cfg.Inference.MaxInputChars = 24000
	}
	if cfg.Inference.Temperature == 0 {
		cfg.Inference.Temperature = 0.7
	}
	if cfg.EHR.Timeout == 0 {
		cfg.EHR.Timeout = 30000
	}
	if cfg.EHR.MaxRetries == 0 {
		cfg.EHR.MaxRetries = 3
	}
	if cfg.Anonymization.MaxConcurrentInference == 0 {
		cfg.Anonymization.MaxConcurrentInference = 4
	}
	if cfg.Anonymization.RequestTimeout == 0 {
		cfg.Anonymization.RequestTimeout = 120000
	}
	if len(cfg.Anonymization.TextFields) == 0 {
		cfg.Anonymization.TextFields = append([]string(nil), DefaultTextFields...)
	}
	if cfg.Anonymization.RedactionPlaceholder == "" {
		cfg.Anonymization.RedactionPlaceholder = "[REDACTED]"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Direct override if config values are still empty after expansion. Env names
// follow the LLM_* / SIMPLEX_* convention of the deployment environment.
func overrideEmptyConfig(cfg *Config) {
	// Inference endpoint
	if cfg.Inference.BaseURL == "" {
		if val := os.Getenv("LLM_BASE_URL"); val != "" {
			cfg.Inference.BaseURL = val
		}
	}
	if cfg.Inference.APIKey == "" {
		if val := os.Getenv("LLM_API_KEY"); val != "" {
			cfg.Inference.APIKey = val
		}
	}
	if cfg.Inference.Model == "" {
		if val := os.Getenv("LLM_MODEL"); val != "" {
			cfg.Inference.Model = val
		}
	}

	// Simplex EHR
	if cfg.EHR.BaseURL == "" {
		if val := os.Getenv("SIMPLEX_BASE_URL"); val != "" {
			cfg.EHR.BaseURL = val
		}
	}
	if cfg.EHR.TenantPath == "" {
		if val := os.Getenv("SIMPLEX_TENANT_PATH"); val != "" {
			cfg.EHR.TenantPath = val
		}
	}
	if cfg.EHR.LocationID == "" {
		if val := os.Getenv("SIMPLEX_LOCATION_ID"); val != "" {
			cfg.EHR.LocationID = val
		}
	}
	if cfg.EHR.APIKey == "" {
		if val := os.Getenv("SIMPLEX_API_KEY"); val != "" {
			cfg.EHR.APIKey = val
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required (or LLM_BASE_URL)")
	}
	if cfg.EHR.BaseURL == "" {
		return fmt.Errorf("ehr.base_url is required (or SIMPLEX_BASE_URL)")
	}
	if cfg.Inference.MaxRetries < 0 {
		return fmt.Errorf("inference.max_retries must not be negative")
	}
	if cfg.Anonymization.MaxConcurrentInference < 1 {
		return fmt.Errorf("anonymization.max_concurrent_inference must be at least 1")
	}
	if len(cfg.Anonymization.TextFields) == 0 {
		return fmt.Errorf("anonymization.text_fields must not be empty")
	}
	return nil
}
