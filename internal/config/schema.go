package config

// Config is the root configuration structure.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Player  PlayerConfig  `toml:"player"`
	Notify  NotifyConfig  `toml:"notify"`
	Server  ServerConfig  `toml:"server"`
	TUI     TUIConfig     `toml:"tui"`
	Log     LogConfig     `toml:"log"`

	// Path is the file the config was read from, if any.
	Path string `toml:"-"`
}

// APIConfig holds remote music service settings.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout int    `toml:"timeout"` // seconds
}

// StorageConfig holds local session storage settings.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// PlayerConfig holds media player settings.
type PlayerConfig struct {
	MpvPath string `toml:"mpv_path"`
	Volume  int    `toml:"volume"`
	Shuffle bool   `toml:"shuffle"`
	Repeat  bool   `toml:"repeat"`
}

// NotifyConfig holds transient notice settings.
type NotifyConfig struct {
	DurationMS int `toml:"duration_ms"`
}

// ServerConfig holds settings for the gateway started by `cadence serve`.
type ServerConfig struct {
	Listen  string `toml:"listen"`
	WebRoot string `toml:"web_root"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string `toml:"theme"`
	RefreshInterval int    `toml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
