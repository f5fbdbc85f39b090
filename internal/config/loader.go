package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment
func (l *Loader) Load() (*Config, error) {
	// Determine config path
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".ayra", "ayra.json")
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// Read environment variables (AYRA_WHATSAPP_ACCESS_TOKEN etc.)
	v.SetEnvPrefix("AYRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct on top of defaults
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment overrides for the secrets that are commonly not on disk
	bindEnvOverrides(v, cfg)

	// Set data directory if not specified
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".ayra")
	}

	// Set store path if not specified
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.DataDir, "ayra.db")
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "ayra.log")
	}

	return cfg, nil
}

// bindEnvOverrides applies environment values for keys viper's Unmarshal
// does not pick up when the config file omits the section entirely.
func bindEnvOverrides(v *viper.Viper, cfg *Config) {
	if s := v.GetString("whatsapp_access_token"); s != "" {
		cfg.WhatsApp.AccessToken = s
	}
	if s := v.GetString("whatsapp_verify_token"); s != "" {
		cfg.WhatsApp.VerifyToken = s
	}
	if s := v.GetString("whatsapp_app_secret"); s != "" {
		cfg.WhatsApp.AppSecret = s
	}
	if s := v.GetString("whatsapp_phone_number_id"); s != "" {
		cfg.WhatsApp.PhoneNumberID = s
	}
	if s := v.GetString("assistant_api_key"); s != "" {
		cfg.Assistant.APIKey = s
	}
	if s := v.GetString("assistant_id"); s != "" {
		cfg.Assistant.AssistantID = s
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ayra", "ayra.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
