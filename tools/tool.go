// Package tools defines the built-in document tools and the registry that
// serves them.
package tools

import (
	"errors"
	"fmt"
	"html/template"
	"sort"
	"sync"

	"go.uber.org/zap"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/kv"
)

// ErrUnknownTool is returned when a registry has no tool of that name.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Tool is one document tool: its fields, template and export settings.
type Tool struct {
	Name        string
	Title       string
	Description string

	Schema   *printkit.Schema
	Template string
	Funcs    template.FuncMap

	// Lang and Dir are the document language and text direction.
	Lang string
	Dir  string

	// FilenameFields build export filenames, e.g. company and job title.
	FilenameFields []string

	Page     *printkit.PageConfig
	Selector string
	Limits   printkit.ImageLimits

	// Version is the schema version stamped on saved snapshots, and
	// Migrations upgrade older ones.
	Version    int
	Migrations map[int]printkit.Migration
}

// Renderer parses the tool template.
func (t *Tool) Renderer() (*printkit.TemplateRenderer, error) {
	return printkit.NewTemplateRenderer(t.Schema, printkit.TemplateConfig{
		Name:  t.Name,
		Title: t.Title,
		Lang:  t.Lang,
		Dir:   t.Dir,
		Funcs: t.Funcs,
	}, t.Template)
}

// Persister returns a persister for the tool's snapshots under name.
func (t *Tool) Persister(store kv.Store, name string, logger *zap.Logger) *printkit.Persister {
	opts := []printkit.PersistOption{
		printkit.WithVersion(t.Version),
		printkit.WithPersistLogger(logger),
	}
	for from, m := range t.Migrations {
		opts = append(opts, printkit.WithMigration(from, m))
	}
	return printkit.NewPersister(store, t.Schema, name, opts...)
}

// ImageLimits returns the tool's upload limits, with maxBytes as the size
// cap when the tool sets none.
func (t *Tool) ImageLimits(maxBytes int64) printkit.ImageLimits {
	lim := t.Limits
	if lim.MaxBytes <= 0 {
		lim.MaxBytes = maxBytes
	}
	return lim
}

// NewSession opens a session of the tool. opts are applied after the
// tool's own settings and may override them.
func (t *Tool) NewSession(opts ...printkit.SessionOption) (*printkit.Session, error) {
	r, err := t.Renderer()
	if err != nil {
		return nil, err
	}
	base := []printkit.SessionOption{
		printkit.WithTitle(t.Title),
		printkit.WithFilenameFields(t.FilenameFields...),
		printkit.WithImageLimits(t.Limits),
		printkit.WithPage(t.Page),
		printkit.WithSelector(t.Selector),
	}
	return printkit.NewSession(t.Schema, r, append(base, opts...)...)
}

// Registry is a concurrency-safe set of tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns a registry holding tools.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a tool after checking that its template parses.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" || t.Schema == nil {
		return fmt.Errorf("tools: tool needs a name and a schema")
	}
	if _, err := t.Renderer(); err != nil {
		return err
	}
	r.mu.Lock()
	r.tools[t.Name] = t
	r.mu.Unlock()
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t, nil
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tools returns the tools sorted by name.
func (r *Registry) Tools() []*Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SetTemplate replaces the template of a registered tool. The registry is
// unchanged if src does not parse. Sessions already open keep the
// template they started with.
func (r *Registry) SetTemplate(name, src string) error {
	t, err := r.Lookup(name)
	if err != nil {
		return err
	}
	next := *t
	next.Template = src
	return r.Register(&next)
}
