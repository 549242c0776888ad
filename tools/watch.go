package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TemplateExt is the suffix of override templates: "<tool>.html.tmpl".
const TemplateExt = ".html.tmpl"

// LoadDir replaces the templates of registered tools with the files
// under dir, searched recursively, so overrides may be grouped in
// sub-directories. Files naming unknown tools are skipped. It returns the
// tools updated, in path order.
func LoadDir(dir string, reg *Registry) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("tools: reading %s: %w", dir, err)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*"+TemplateExt, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("tools: reading %s: %w", dir, err)
	}
	sort.Strings(matches)
	var (
		loaded []string
		errs   []error
	)
	for _, m := range matches {
		name, _ := toolOf(m)
		if err := loadFile(filepath.Join(dir, filepath.FromSlash(m)), name, reg); err != nil {
			if errors.Is(err, ErrUnknownTool) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, name)
	}
	return loaded, errors.Join(errs...)
}

// templateDirs returns dir and every directory below it.
func templateDirs(dir string) ([]string, error) {
	dirs := []string{dir}
	err := doublestar.GlobWalk(os.DirFS(dir), "**", func(path string, d fs.DirEntry) error {
		if d.IsDir() && path != "." {
			dirs = append(dirs, filepath.Join(dir, filepath.FromSlash(path)))
		}
		return nil
	})
	return dirs, err
}

func toolOf(file string) (string, bool) {
	base := filepath.Base(file)
	if !strings.HasSuffix(base, TemplateExt) {
		return "", false
	}
	return strings.TrimSuffix(base, TemplateExt), true
}

func loadFile(path, tool string, reg *Registry) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tools: reading %s: %w", path, err)
	}
	return reg.SetTemplate(tool, string(src))
}

// watchSettle is how long a file must stay quiet before it is reloaded,
// so editors that write in several steps trigger one reload.
const watchSettle = 200 * time.Millisecond

// Watch reloads override templates in dir as they change until ctx is
// done. A template that fails to parse is logged and the previous one
// stays active. Removing a file keeps the last loaded template.
func Watch(ctx context.Context, dir string, reg *Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tools: creating watcher: %w", err)
	}
	defer w.Close()
	dirs, err := templateDirs(dir)
	if err != nil {
		return fmt.Errorf("tools: watching %s: %w", dir, err)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("tools: watching %s: %w", d, err)
		}
	}
	logger.Info("watching templates", zap.String("dir", dir))

	pending := make(map[string]time.Time)
	tick := time.NewTicker(watchSettle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						logger.Warn("template watcher error", zap.String("dir", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if _, ok := toolOf(ev.Name); ok {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("template watcher error", zap.Error(err))

		case now := <-tick.C:
			for path, at := range pending {
				if now.Sub(at) < watchSettle {
					continue
				}
				delete(pending, path)
				tool, _ := toolOf(path)
				if err := loadFile(path, tool, reg); err != nil {
					if !errors.Is(err, os.ErrNotExist) {
						logger.Warn("template reload failed", zap.String("tool", tool), zap.Error(err))
					}
					continue
				}
				logger.Info("template reloaded", zap.String("tool", tool))
			}
		}
	}
}
