package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/ayra/internal/whatsapp"
)

// Config represents the main Ayra configuration. It is assembled once at
// process start and passed to each component by construction.
type Config struct {
	// WhatsApp holds the inbound/outbound channel configuration
	WhatsApp WhatsAppConfig `json:"whatsapp" mapstructure:"whatsapp"`

	// Assistant holds the remote conversation service configuration
	Assistant AssistantConfig `json:"assistant" mapstructure:"assistant"`

	// Server holds the webhook HTTP server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Store holds the durable state configuration
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Replies holds the reply catalog configuration
	Replies RepliesConfig `json:"replies" mapstructure:"replies"`

	// Retention holds the delivery ledger retention configuration
	Retention RetentionConfig `json:"retention" mapstructure:"retention"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// WhatsAppConfig holds Meta Cloud API channel configuration
type WhatsAppConfig struct {
	AccessToken   string `json:"access_token" mapstructure:"access_token"`
	PhoneNumberID string `json:"phone_number_id" mapstructure:"phone_number_id"`
	VerifyToken   string `json:"verify_token" mapstructure:"verify_token"`
	AppSecret     string `json:"app_secret" mapstructure:"app_secret"`
	GraphBaseURL  string `json:"graph_base_url" mapstructure:"graph_base_url"`
}

// AssistantConfig holds remote conversation service configuration
type AssistantConfig struct {
	APIKey      string `json:"api_key" mapstructure:"api_key"`
	AssistantID string `json:"assistant_id" mapstructure:"assistant_id"`
	BaseURL     string `json:"base_url" mapstructure:"base_url"`

	// PollIntervalMs is the run status poll cadence
	PollIntervalMs int `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`

	// RunTimeoutMs is the wall-clock budget for awaiting a run
	RunTimeoutMs int `json:"run_timeout_ms" mapstructure:"run_timeout_ms"`
}

// ServerConfig holds webhook HTTP server configuration
type ServerConfig struct {
	Host        string `json:"host" mapstructure:"host"`
	Port        int    `json:"port" mapstructure:"port"`
	WebhookPath string `json:"webhook_path" mapstructure:"webhook_path"`

	// Workers is the concurrency of the inbound processing lane
	Workers int `json:"workers" mapstructure:"workers"`
}

// StoreConfig holds durable state configuration
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// RepliesConfig holds reply catalog configuration
type RepliesConfig struct {
	// OverridePath points to an optional JSON file with per-language
	// reply templates. Watched and reloaded on change when set.
	OverridePath string `json:"override_path" mapstructure:"override_path"`
}

// RetentionConfig holds delivery ledger retention configuration
type RetentionConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Schedule is a cron expression; empty means daily at 04:00
	Schedule string `json:"schedule" mapstructure:"schedule"`

	// MaxAgeDays is the age past which delivery records are pruned
	MaxAgeDays int `json:"max_age_days" mapstructure:"max_age_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// PollInterval returns the poll cadence as a duration
func (c AssistantConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RunTimeout returns the await budget as a duration
func (c AssistantConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMs) * time.Millisecond
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		WhatsApp: WhatsAppConfig{
			GraphBaseURL: whatsapp.DefaultGraphBaseURL,
		},
		Assistant: AssistantConfig{
			PollIntervalMs: 500,
			RunTimeoutMs:   25000,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			WebhookPath: "/webhook",
			Workers:     8,
		},
		Retention: RetentionConfig{
			Enabled:    false,
			Schedule:   "0 4 * * *",
			MaxAgeDays: 30,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WhatsApp.AccessToken == "" {
		return fmt.Errorf("whatsapp access token is required")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp phone number id is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		return fmt.Errorf("whatsapp verify token is required")
	}
	if c.Assistant.APIKey == "" {
		return fmt.Errorf("assistant api key is required")
	}
	if c.Assistant.AssistantID == "" {
		return fmt.Errorf("assistant id is required")
	}
	if c.Assistant.PollIntervalMs <= 0 {
		return fmt.Errorf("assistant poll interval must be positive")
	}
	if c.Assistant.RunTimeoutMs <= 0 {
		return fmt.Errorf("assistant run timeout must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server workers must be positive")
	}
	if c.Retention.Enabled && c.Retention.MaxAgeDays <= 0 {
		return fmt.Errorf("retention max age must be positive when retention is enabled")
	}
	return nil
}
