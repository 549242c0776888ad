// Package config loads the printkit service configuration from a YAML
// file and PRINTKIT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
	yamlv3 "gopkg.in/yaml.v3"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/kv"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by
// a double underscore: PRINTKIT_SERVER__ADDR sets server.addr.
const EnvPrefix = "PRINTKIT_"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			CORSOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Driver: StoreMemory,
		},
		Browser: BrowserConfig{
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Debounce: 150 * time.Millisecond,
			Autosave: 5 * time.Second,
		},
		Upload: UploadConfig{
			MaxImageBytes: printkit.DefaultMaxImageBytes,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validDrivers = map[StoreDriver]bool{
	StoreMemory: true,
	StoreFile:   true,
	StoreSQLite: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !validDrivers[c.Store.Driver] {
		return fmt.Errorf("invalid store.driver %q: must be one of memory, file, sqlite", c.Store.Driver)
	}
	if c.Store.Driver != StoreMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
	}
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser.timeout must be non-negative")
	}
	if c.Session.Debounce < 0 || c.Session.Autosave < 0 {
		return fmt.Errorf("session durations must be non-negative")
	}
	if c.Upload.MaxImageBytes <= 0 {
		return fmt.Errorf("upload.max_image_bytes must be positive")
	}
	if c.Templates.Watch && c.Templates.Dir == "" {
		return fmt.Errorf("templates.watch needs templates.dir")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// OpenStore opens the configured snapshot store.
func (c StoreConfig) OpenStore() (kv.Store, error) {
	switch c.Driver {
	case StoreMemory, "":
		return kv.NewMemory(), nil
	case StoreFile:
		s, err := kv.OpenFile(c.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreSQLite:
		s, err := kv.OpenSQLite(c.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", c.Driver)
}

// Options returns the converter options for the browser settings.
func (c BrowserConfig) Options() []printkit.Option {
	opts := []printkit.Option{printkit.WithTimeout(c.Timeout)}
	if c.ChromePath != "" {
		opts = append(opts, printkit.WithChromePath(c.ChromePath))
	}
	if c.NoSandbox {
		opts = append(opts, printkit.WithNoSandbox())
	}
	if c.AutoDownload {
		opts = append(opts, printkit.WithAutoDownload())
	}
	return opts
}
