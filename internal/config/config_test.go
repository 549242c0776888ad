package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, int64(2<<20), cfg.Upload.MaxImageBytes)
	require.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printkit.yml")

	original := Default()
	original.Server.Addr = ":9000"
	original.Server.CORSOrigins = []string{"https://a.example", "https://b.example"}
	original.Store = StoreConfig{Driver: StoreSQLite, Path: "data.db"}
	original.Session.Debounce = 300 * time.Millisecond
	original.Templates = TemplatesConfig{Dir: "templates", Watch: true}

	require.NoError(t, original.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRINTKIT_SERVER__ADDR", ":7070")
	t.Setenv("PRINTKIT_STORE__DRIVER", "file")
	t.Setenv("PRINTKIT_STORE__PATH", "/var/lib/printkit")
	t.Setenv("PRINTKIT_SESSION__AUTOSAVE", "1m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, StoreFile, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/printkit", cfg.Store.Path)
	assert.Equal(t, time.Minute, cfg.Session.Autosave)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"file without path", func(c *Config) { c.Store.Driver = StoreFile }},
		{"negative timeout", func(c *Config) { c.Browser.Timeout = -time.Second }},
		{"negative debounce", func(c *Config) { c.Session.Debounce = -1 }},
		{"zero upload cap", func(c *Config) { c.Upload.MaxImageBytes = 0 }},
		{"watch without dir", func(c *Config) { c.Templates.Watch = true }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, sc := range []StoreConfig{
		{Driver: StoreMemory},
		{Driver: StoreFile, Path: filepath.Join(dir, "files")},
		{Driver: StoreSQLite, Path: filepath.Join(dir, "kv.db")},
	} {
		t.Run(string(sc.Driver), func(t *testing.T) {
			s, err := sc.OpenStore()
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}
	_, err := StoreConfig{Driver: "redis"}.OpenStore()
	assert.Error(t, err)
}

func TestBrowserOptions(t *testing.T) {
	assert.Len(t, BrowserConfig{}.Options(), 1)
	assert.Len(t, BrowserConfig{ChromePath: "/usr/bin/chromium", NoSandbox: true, AutoDownload: true}.Options(), 4)
}

func TestWizardAnswersApply(t *testing.T) {
	cfg := Default()
	wizardAnswers{
		Addr:      "0.0.0.0:9000",
		Driver:    StoreSQLite,
		StorePath: "data/snap.db",
		Browser:   1,
		Templates: "overrides",
	}.apply(cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "data/snap.db", cfg.Store.Path)
	assert.True(t, cfg.Browser.AutoDownload)
	assert.False(t, cfg.Browser.Disabled)
	assert.True(t, cfg.Templates.Watch)

	wizardAnswers{Addr: "127.0.0.1:8080", Driver: StoreMemory, StorePath: "ignored", Browser: 2}.apply(cfg)
	assert.Empty(t, cfg.Store.Path)
	assert.True(t, cfg.Browser.Disabled)
	assert.False(t, cfg.Templates.Watch)
}

func TestWizardHelpers(t *testing.T) {
	assert.NoError(t, validateAddr("127.0.0.1:8080"))
	assert.NoError(t, validateAddr(":8080"))
	assert.Error(t, validateAddr("localhost"))
	assert.Equal(t, filepath.Join(".printkit", "snapshots.db"), defaultStorePath(StoreSQLite))
	assert.Equal(t, filepath.Join(".printkit", "snapshots"), defaultStorePath(StoreFile))
}
