package config

import "time"

// StoreDriver selects the snapshot storage backend.
type StoreDriver string

const (
	StoreMemory StoreDriver = "memory"
	StoreFile   StoreDriver = "file"
	StoreSQLite StoreDriver = "sqlite"
)

// Config is the top-level printkit configuration, corresponding to printkit.yml.
type Config struct {
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Store     StoreConfig     `yaml:"store" koanf:"store"`
	Browser   BrowserConfig   `yaml:"browser" koanf:"browser"`
	Session   SessionConfig   `yaml:"session" koanf:"session"`
	Upload    UploadConfig    `yaml:"upload" koanf:"upload"`
	Templates TemplatesConfig `yaml:"templates" koanf:"templates"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr" koanf:"addr"`
	CORSOrigins []string `yaml:"cors_origins" koanf:"cors_origins"`
	// BaseURL prefixes share links. Empty derives it from the request.
	BaseURL string `yaml:"base_url" koanf:"base_url"`
}

// StoreConfig selects where snapshots are persisted.
type StoreConfig struct {
	Driver StoreDriver `yaml:"driver" koanf:"driver"`
	// Path is a directory for the file driver and a database file for sqlite.
	Path string `yaml:"path" koanf:"path"`
}

// BrowserConfig controls the headless Chrome used for PNG, JPEG and PDF.
type BrowserConfig struct {
	ChromePath   string        `yaml:"chrome_path" koanf:"chrome_path"`
	NoSandbox    bool          `yaml:"no_sandbox" koanf:"no_sandbox"`
	AutoDownload bool          `yaml:"auto_download" koanf:"auto_download"`
	Timeout      time.Duration `yaml:"timeout" koanf:"timeout"`
	// Disabled serves only the formats that need no browser.
	Disabled bool `yaml:"disabled" koanf:"disabled"`
}

// SessionConfig holds per-session behavior.
type SessionConfig struct {
	Debounce time.Duration `yaml:"debounce" koanf:"debounce"`
	Autosave time.Duration `yaml:"autosave" koanf:"autosave"`
}

// UploadConfig limits uploads.
type UploadConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes" koanf:"max_image_bytes"`
}

// TemplatesConfig points at override templates.
type TemplatesConfig struct {
	Dir   string `yaml:"dir" koanf:"dir"`
	Watch bool   `yaml:"watch" koanf:"watch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
}
