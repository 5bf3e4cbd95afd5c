// Package config loads the quiettime configuration file and applies
// environment overrides on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"quiettime/internal/prefilter"
)

// Config holds all quiettime configuration.
type Config struct {
	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Generation provider
	LLM LLMConfig `yaml:"llm"`

	// Moderation provider
	Moderation ModerationConfig `yaml:"moderation"`

	// Rate limits
	Limits LimitsConfig `yaml:"limits"`

	// Text pre-filter
	PreFilter prefilter.Config `yaml:"prefilter"`

	// SQLite storage
	Storage StorageConfig `yaml:"storage"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`  // structured output instead of console
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	// Provider selects the backend: "gemini" calls the model API
	// directly, "callable" goes through the remote proxy.
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ModerationConfig configures the content-safety classifier.
type ModerationConfig struct {
	Model           string  `yaml:"model"`
	BlockThreshold  float64 `yaml:"block_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold"`
}

// LimitsConfig configures the generation quota.
type LimitsConfig struct {
	DailyMax     int `yaml:"daily_max"`
	MinViableLen int `yaml:"min_viable_len"`
}

// StorageConfig configures the local database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "30s",
		},
		Moderation: ModerationConfig{
			Model:           "gemini-2.0-flash",
			BlockThreshold:  0.8,
			ReviewThreshold: 0.5,
		},
		Limits: LimitsConfig{
			DailyMax:     3,
			MinViableLen: 2,
		},
		PreFilter: prefilter.DefaultConfig(),
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".quiettime", "quiettime.db"),
		},
	}
}

// Load reads configuration from a YAML file. A missing file is not an
// error: defaults are returned, with environment overrides still applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Environment
// values win over file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("QT_GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("QT_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("QT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if debug := os.Getenv("QT_DEBUG"); debug == "1" || debug == "true" {
		c.Logging.Level = "debug"
	}
}
