// Package config loads runtime settings from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every runtime setting.
type Config struct {
	Model            string  `mapstructure:"model"`
	APIKey           string  `mapstructure:"api_key"`
	MaxSteps         int     `mapstructure:"max_steps"`
	Temperature      float32 `mapstructure:"temperature"`
	ReserveTokens    int     `mapstructure:"reserve_tokens"`
	MaxResponseBytes int     `mapstructure:"max_response_bytes"`
	ServerAddr       string  `mapstructure:"server_addr"`
	SandboxImage     string  `mapstructure:"sandbox_image"`
	TraceDir         string  `mapstructure:"trace_dir"`
	FileAccess       bool    `mapstructure:"file_access"`

	// RejectDuplicateTools makes registry setup fail on tool name
	// collisions instead of overwriting.
	RejectDuplicateTools bool `mapstructure:"reject_duplicate_tools"`
}

// Load reads settings with the precedence env > file > defaults.
// Environment variables use the OODA_ prefix (OODA_MODEL, OODA_API_KEY,
// ...); GEMINI_API_KEY is honored as a fallback for the API key. path
// may be empty to skip the config file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("model", "gemini-2.5-flash")
	v.SetDefault("api_key", "")
	v.SetDefault("max_steps", 10)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("reserve_tokens", 256)
	v.SetDefault("max_response_bytes", 2048)
	v.SetDefault("server_addr", ":8088")
	v.SetDefault("sandbox_image", "ooda-sandbox:latest")
	v.SetDefault("trace_dir", "")
	v.SetDefault("file_access", false)
	v.SetDefault("reject_duplicate_tools", false)

	v.SetEnvPrefix("OODA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.ReserveTokens < 0 {
		return fmt.Errorf("reserve_tokens must not be negative, got %d", c.ReserveTokens)
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max_response_bytes must be positive, got %d", c.MaxResponseBytes)
	}
	return nil
}
