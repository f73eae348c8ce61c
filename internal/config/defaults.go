package config

import (
	"os"
	"path/filepath"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30,
		},
		Player: PlayerConfig{
			MpvPath: "mpv",
			Volume:  50,
		},
		Notify: NotifyConfig{
			DurationMS: 3000,
		},
		Server: ServerConfig{
			Listen:  "127.0.0.1:3000",
			WebRoot: "web",
		},
		TUI: TUIConfig{
			Theme:           "auto",
			RefreshInterval: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// API
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = d.API.Timeout
	}

	// Player
	if c.Player.MpvPath == "" {
		c.Player.MpvPath = d.Player.MpvPath
	}
	if c.Player.Volume == 0 {
		c.Player.Volume = d.Player.Volume
	}

	// Notify
	if c.Notify.DurationMS == 0 {
		c.Notify.DurationMS = d.Notify.DurationMS
	}

	// Server
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.WebRoot == "" {
		c.Server.WebRoot = d.Server.WebRoot
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// StorageDir returns the directory holding the session file and cookie jar.
// An empty storage.dir resolves to ~/.config/cadence.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cadence"), nil
}
