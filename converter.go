package printkit

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Rasterizer turns a standalone HTML document into pixels or pages.
// [*Converter] is the headless Chrome implementation.
type Rasterizer interface {
	// PrintPDF prints html to a PDF using the given page geometry.
	PrintPDF(ctx context.Context, html string, pg *PageConfig) ([]byte, error)
	// Capture renders html and returns a PNG screenshot.
	Capture(ctx context.Context, html string, opts CaptureOptions) ([]byte, error)
}

// CaptureOptions controls a screenshot.
type CaptureOptions struct {
	// Selector limits the capture to the first matching element.
	// Empty captures the full page.
	Selector string
	// Scale is the device scale factor. Defaults to 1; 2 doubles the
	// pixel density for print-quality images.
	Scale float64
}

// Converter renders HTML documents with a headless browser.
//
// A Converter manages a headless browser instance that is reused across
// multiple conversions for performance. It is safe for concurrent use;
// every job runs in its own tab.
//
// Call [Converter.Close] when the Converter is no longer needed to release
// browser resources.
type Converter struct {
	cfg           converterConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var _ Rasterizer = (*Converter)(nil)

// NewConverter creates a Converter with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Converter.Close] when finished.
func NewConverter(opts ...Option) (*Converter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	execPath, err := cfg.browserPath()
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), cfg.allocatorOptions(execPath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("printkit: starting browser: %w", err)
	}
	cfg.logger.Debug("browser started", zap.String("chrome", execPath))

	return &Converter{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases all resources held by the Converter, including the
// browser process. Close is idempotent.
func (c *Converter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	c.cfg.logger.Debug("browser stopped")
	return nil
}

// PrintPDF implements [Rasterizer].
func (c *Converter) PrintPDF(ctx context.Context, html string, pg *PageConfig) ([]byte, error) {
	var buf []byte
	err := c.withHTML(ctx, html, func(tabCtx context.Context, target string) error {
		return chromedp.Run(tabCtx,
			chromedp.Navigate(target),
			chromedp.WaitReady("body", chromedp.ByQuery),
			printAction(pg, &buf),
		)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Capture implements [Rasterizer].
func (c *Converter) Capture(ctx context.Context, html string, opts CaptureOptions) ([]byte, error) {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	var buf []byte
	err := c.withHTML(ctx, html, func(tabCtx context.Context, target string) error {
		actions := []chromedp.Action{
			chromedp.EmulateViewport(c.cfg.viewportWidth, c.cfg.viewportHeight, chromedp.EmulateScale(scale)),
			chromedp.Navigate(target),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
		if opts.Selector != "" {
			actions = append(actions, chromedp.Screenshot(opts.Selector, &buf, chromedp.ByQuery))
		} else {
			actions = append(actions, chromedp.FullScreenshot(&buf, 100))
		}
		return chromedp.Run(tabCtx, actions...)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ConvertHTML converts an HTML string to a PDF artifact named filename.
// If pg is nil, [DefaultPageConfig] values are used.
func (c *Converter) ConvertHTML(ctx context.Context, html, filename string, pg *PageConfig) (*Artifact, error) {
	buf, err := c.PrintPDF(ctx, html, pg)
	if err != nil {
		return nil, err
	}
	return NewArtifact(PDF, filename, buf), nil
}

// ConvertURL converts the web page at rawURL to a PDF artifact.
// If pg is nil, [DefaultPageConfig] values are used.
func (c *Converter) ConvertURL(ctx context.Context, rawURL string, pg *PageConfig) (*Artifact, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("printkit: invalid URL %q: %w", rawURL, err)
	}
	buf, err := c.printTarget(ctx, rawURL, pg)
	if err != nil {
		return nil, err
	}
	return NewArtifact(PDF, Filename(u.Host, []string{u.Host, u.Path}, PDF), buf), nil
}

// ConvertFile converts a local HTML file to a PDF artifact.
// If pg is nil, [DefaultPageConfig] values are used.
func (c *Converter) ConvertFile(ctx context.Context, path string, pg *PageConfig) (*Artifact, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("printkit: resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("printkit: %w", err)
	}

	buf, err := c.printTarget(ctx, "file://"+abs, pg)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(abs)
	return NewArtifact(PDF, strings.TrimSuffix(name, filepath.Ext(name))+PDF.Ext(), buf), nil
}

// printTarget navigates a fresh tab to target and prints it.
func (c *Converter) printTarget(ctx context.Context, target string, pg *PageConfig) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, func(tabCtx context.Context) error {
		return chromedp.Run(tabCtx,
			chromedp.Navigate(target),
			chromedp.WaitReady("body", chromedp.ByQuery),
			printAction(pg, &buf),
		)
	}); err != nil {
		return nil, err
	}
	return buf, nil
}

// withHTML writes html to a temporary file and runs fn in a fresh tab
// with the file's URL.
func (c *Converter) withHTML(ctx context.Context, html string, fn func(tabCtx context.Context, target string) error) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	f, err := os.CreateTemp("", "printkit-*.html")
	if err != nil {
		return fmt.Errorf("printkit: creating temp file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return fmt.Errorf("printkit: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("printkit: closing temp file: %w", err)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return fmt.Errorf("printkit: resolving path: %w", err)
	}
	return c.run(ctx, func(tabCtx context.Context) error {
		return fn(tabCtx, "file://"+abs)
	})
}

// run opens a tab bound to ctx and the configured timeout.
func (c *Converter) run(ctx context.Context, fn func(tabCtx context.Context) error) error {
	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()

	// Stop the tab when the caller's context ends.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	if err := fn(tabCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("printkit: rendering aborted: %w", context.Cause(ctx))
		}
		return fmt.Errorf("printkit: rendering failed: %w", err)
	}
	return nil
}

func printAction(pg *PageConfig, buf *[]byte) chromedp.Action {
	resolved := pg.resolved()
	width, height := resolved.paperDimensions()
	marginTop, marginRight, marginBottom, marginLeft := resolved.marginInches()

	return chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.PrintToPDF().
			WithPaperWidth(width).
			WithPaperHeight(height).
			WithMarginTop(marginTop).
			WithMarginRight(marginRight).
			WithMarginBottom(marginBottom).
			WithMarginLeft(marginLeft).
			WithScale(resolved.Scale).
			WithPrintBackground(resolved.PrintBackground).
			WithPreferCSSPageSize(resolved.PreferCSSPageSize).
			WithDisplayHeaderFooter(resolved.DisplayHeaderFooter)

		if resolved.HeaderTemplate != "" {
			params = params.WithHeaderTemplate(resolved.HeaderTemplate)
		}
		if resolved.FooterTemplate != "" {
			params = params.WithFooterTemplate(resolved.FooterTemplate)
		}

		var err error
		*buf, _, err = params.Do(ctx)
		return err
	})
}

func (c *Converter) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}
