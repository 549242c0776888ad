package printkit

import (
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// browserPath picks the Chrome executable: the configured path, then a
// local install, then (with auto download) a cached Chromium fetched by
// the rod launcher into ~/.cache/rod/browser. An empty result lets
// chromedp search its default locations.
func (c *converterConfig) browserPath() (string, error) {
	if c.chromePath != "" {
		if _, err := os.Stat(c.chromePath); err != nil {
			return "", fmt.Errorf("printkit: chrome path: %w", err)
		}
		return c.chromePath, nil
	}
	if !c.autoDownload {
		return "", nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	c.logger.Info("downloading chromium")
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("printkit: downloading browser: %w", err)
	}
	c.logger.Info("chromium ready", zap.String("path", path))
	return path, nil
}

// allocatorOptions are the Chrome flags for a headless print worker.
func (c *converterConfig) allocatorOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.WindowSize(int(c.viewportWidth), int(c.viewportHeight)),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if c.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}
