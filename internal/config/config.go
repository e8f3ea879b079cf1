// Package config provides configuration loading for counselsim.
//
// Configuration comes from a YAML file overridden by COUNSELSIM_* environment
// variables, with hardcoded defaults underneath. Every section is one level
// deep so the environment mapping stays mechanical:
//
//	COUNSELSIM_SERVER_HTTP_PORT   -> server.http_port
//	COUNSELSIM_GATEWAY_BASE_URL   -> gateway.base_url
//	COUNSELSIM_LOGGING_LEVEL      -> logging.level
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete counselsim configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Gateway GatewayConfig `koanf:"gateway"`
	Session SessionConfig `koanf:"session"`
	Convert ConvertConfig `koanf:"convert"`
	Cases   CasesConfig   `koanf:"cases"`
	Prompts PromptsConfig `koanf:"prompts"`
	Index   IndexConfig   `koanf:"index"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Encoding string `koanf:"encoding"`
}

// GatewayConfig holds the completion-endpoint client configuration.
type GatewayConfig struct {
	Provider          string   `koanf:"provider"`
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	Model             string   `koanf:"model"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
	Burst             int      `koanf:"burst"`
	ScrubOutbound     bool     `koanf:"scrub_outbound"`
}

// SessionConfig holds dialogue defaults.
type SessionConfig struct {
	Temperature float64 `koanf:"temperature"`
	MaxTurns    int     `koanf:"max_turns"`
}

// ConvertConfig holds conversion defaults.
type ConvertConfig struct {
	MaxRetries       int     `koanf:"max_retries"`
	Temperature      float64 `koanf:"temperature"`
	SystemPromptPath string  `koanf:"system_prompt_path"`
}

// CasesConfig points at the case-record document.
type CasesConfig struct {
	Path string `koanf:"path"`
}

// PromptsConfig holds prompt-template override settings.
type PromptsConfig struct {
	Dir   string `koanf:"dir"`
	Watch bool   `koanf:"watch"`
}

// IndexConfig holds case-index settings. Embedding fields stay flat so the
// env mapping covers them.
type IndexConfig struct {
	Enabled          bool   `koanf:"enabled"`
	Path             string `koanf:"path"`
	Collection       string `koanf:"collection"`
	EmbeddingBaseURL string `koanf:"embedding_base_url"`
	EmbeddingModel   string `koanf:"embedding_model"`
	EmbeddingAPIKey  Secret `koanf:"embedding_api_key"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8754
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}

	if cfg.Gateway.Provider == "" {
		cfg.Gateway.Provider = "openai"
	}
	if cfg.Gateway.Model == "" {
		cfg.Gateway.Model = "gpt-4o-mini"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = Duration(60 * time.Second)
	}
	if cfg.Gateway.RequestsPerSecond == 0 {
		cfg.Gateway.RequestsPerSecond = 2
	}
	if cfg.Gateway.Burst == 0 {
		cfg.Gateway.Burst = 4
	}

	if cfg.Session.Temperature == 0 {
		cfg.Session.Temperature = 0.7
	}
	if cfg.Session.MaxTurns == 0 {
		cfg.Session.MaxTurns = 20
	}

	if cfg.Convert.MaxRetries == 0 {
		cfg.Convert.MaxRetries = 2
	}

	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "cases"
	}
	if cfg.Index.EmbeddingModel == "" {
		cfg.Index.EmbeddingModel = "text-embedding-3-small"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging encoding: %q (must be json or console)", c.Logging.Encoding)
	}

	switch c.Gateway.Provider {
	case "openai", "stub":
	default:
		return fmt.Errorf("unknown gateway provider: %q", c.Gateway.Provider)
	}
	if c.Session.Temperature < 0 || c.Session.Temperature > 2 {
		return fmt.Errorf("session temperature out of range: %v", c.Session.Temperature)
	}
	if c.Convert.Temperature < 0 || c.Convert.Temperature > 2 {
		return fmt.Errorf("convert temperature out of range: %v", c.Convert.Temperature)
	}
	if c.Convert.MaxRetries < 0 {
		return errors.New("convert max_retries must be non-negative")
	}
	if c.Session.MaxTurns < 1 {
		return errors.New("session max_turns must be at least 1")
	}
	return nil
}
