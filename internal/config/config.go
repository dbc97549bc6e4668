// Package config loads and watches the zapflow configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the merged zapflow configuration.
type Config struct {
	Log       LogConfig       `json:"log"`
	Router    RouterConfig    `json:"router"`
	State     StateConfig     `json:"state"`
	Plugins   PluginsConfig   `json:"plugins"`
	SendQueue SendQueueConfig `json:"sendQueue"`
	Channels  ChannelsConfig  `json:"channels"`
}

type LogConfig struct {
	Level      string `json:"level"`      // debug|info|warn|error
	ShowCaller bool   `json:"showCaller"`
}

type RouterConfig struct {
	Prefix string `json:"prefix"` // Command prefix
}

type StateConfig struct {
	File                string  `json:"file"`                // State snapshot path
	MaxAgeHours         float64 `json:"maxAgeHours"`         // Flows inactive longer are swept
	SaveIntervalMinutes int     `json:"saveIntervalMinutes"` // Snapshot cadence
}

type PluginsConfig struct {
	// Enabled empty means all discovered plugins are enabled unless
	// individually disabled.
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
}

type SendQueueConfig struct {
	MinGapMs int `json:"minGapMs"` // Minimum ms between sends to one recipient
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
}

type WhatsAppConfig struct {
	Enabled  bool   `json:"enabled"`
	Database string `json:"database"` // whatsmeow sqlite store path
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
}

// DataDir returns the zapflow data directory (~/.zapflow).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zapflow")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "zapflow.json")
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Router: RouterConfig{
			Prefix: "!",
		},
		State: StateConfig{
			File:                filepath.Join(DataDir(), "states.json"),
			MaxAgeHours:         24,
			SaveIntervalMinutes: 5,
		},
		SendQueue: SendQueueConfig{
			MinGapMs: 750,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:  true,
				Database: filepath.Join(DataDir(), "whatsapp.db"),
			},
		},
	}
}

// Load reads the config file at path, overlaying it on the defaults. A
// missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save writes the config atomically (temp file + rename).
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
