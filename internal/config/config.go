// Package config provides YAML-based configuration loading for Parley.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Parley configuration, loaded from config.yaml.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DB          DBConfig          `yaml:"db"`
	LLM         LLMConfig         `yaml:"llm"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Notify      NotifyConfig      `yaml:"notify"`
	Auth        AuthConfig        `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LLMConfig selects and tunes the message-generation backend.
// API keys are not stored here; they come from the environment
// (OPENROUTER_API_KEY, GEMINI_API_KEY).
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "openrouter", "gemini", or "stub"
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// NegotiationConfig bounds the round orchestrator.
type NegotiationConfig struct {
	MaxRounds      int `yaml:"max_rounds"`
	TurnDelayMS    int `yaml:"turn_delay_ms"`
	MaxIdleMinutes int `yaml:"max_idle_minutes"`
}

// NotifyConfig holds settlement-announcement targets. All are optional.
type NotifyConfig struct {
	SlackWebhookURL     string `yaml:"slack_webhook_url"`
	DiscordWebhookID    string `yaml:"discord_webhook_id"`
	DiscordWebhookToken string `yaml:"discord_webhook_token"`
}

// AuthConfig holds token settings. The signing secret comes from the
// PARLEY_JWT_SECRET environment variable.
type AuthConfig struct {
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied, used when no config
// file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" {
		c.DB.Database = "parley"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openrouter"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "meta-llama/llama-3.2-3b-instruct:free"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.8
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 30
	}
	if c.Negotiation.MaxRounds == 0 {
		c.Negotiation.MaxRounds = 3
	}
	if c.Negotiation.TurnDelayMS == 0 {
		c.Negotiation.TurnDelayMS = 1000
	}
	if c.Negotiation.MaxIdleMinutes == 0 {
		c.Negotiation.MaxIdleMinutes = 240
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 24 * 60
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.LLM.Provider {
	case "openrouter", "gemini", "stub":
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not one of openrouter, gemini, stub", c.LLM.Provider))
	}
	if c.Negotiation.MaxRounds < 1 {
		errs = append(errs, "negotiation.max_rounds must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port out of range")
	}
	if (c.Notify.DiscordWebhookID == "") != (c.Notify.DiscordWebhookToken == "") {
		errs = append(errs, "notify.discord_webhook_id and notify.discord_webhook_token must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
