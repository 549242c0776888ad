package printkit

import (
	"time"

	"go.uber.org/zap"
)

// converterConfig holds internal configuration for a Converter.
type converterConfig struct {
	chromePath     string
	timeout        time.Duration
	noSandbox      bool
	headless       string
	autoDownload   bool
	viewportWidth  int64
	viewportHeight int64
	logger         *zap.Logger
}

func defaultConfig() converterConfig {
	return converterConfig{
		timeout:        30 * time.Second,
		headless:       "new",
		viewportWidth:  1280,
		viewportHeight: 1024,
		logger:         zap.NewNop(),
	}
}

// Option configures a [Converter].
type Option func(*converterConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *converterConfig) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration for a single conversion or capture.
// Defaults to 30 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *converterConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *converterConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload downloads a compatible Chromium when no Chrome path is
// configured. The binary is cached for later runs.
func WithAutoDownload() Option {
	return func(c *converterConfig) {
		c.autoDownload = true
	}
}

// WithViewport sets the browser window size used for screenshots.
// Defaults to 1280x1024.
func WithViewport(width, height int64) Option {
	return func(c *converterConfig) {
		if width > 0 && height > 0 {
			c.viewportWidth, c.viewportHeight = width, height
		}
	}
}

// WithLogger sets the logger used for browser lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(c *converterConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
