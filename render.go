package printkit

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

// Preview is the rendered form of one snapshot: a standalone HTML document
// whose printable area is the element with id "preview".
type Preview struct {
	Tool     string
	Revision uint64
	HTML     string
}

// Text returns the visible text of the preview with whitespace collapsed.
func (p Preview) Text() string {
	return htmlText(p.HTML)
}

// Renderer maps a snapshot to a preview. Implementations must be pure:
// rendering the same snapshot twice yields the same HTML.
type Renderer interface {
	Render(snap Snapshot) (Preview, error)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(Snapshot) (Preview, error)

// Render calls f(snap).
func (f RendererFunc) Render(snap Snapshot) (Preview, error) { return f(snap) }

// TemplateConfig describes the page shell around a tool template.
type TemplateConfig struct {
	Name  string
	Title string
	Lang  string // defaults to "en"
	Dir   string // "ltr" (default) or "rtl"

	// Funcs are made available to the template in addition to the built-ins.
	Funcs template.FuncMap
}

// TemplateRenderer renders a snapshot through an html/template.
//
// The tool template must define two blocks, "style" (CSS) and "body"
// (markup). Inside them the dot is a view over the snapshot with the
// methods Field, Value, Has, List, Lines, Image, Markdown, Rich and Color.
type TemplateRenderer struct {
	cfg    TemplateConfig
	schema *Schema
	tmpl   *template.Template
}

const shellTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
*{box-sizing:border-box}
body{margin:0;padding:24px;background:#f3f4f6;font-family:system-ui,-apple-system,"Segoe UI",Roboto,sans-serif}
#preview{margin:0 auto;background:#fff}
.placeholder{color:#9ca3af}
{{template "style" .}}
</style>
</head>
<body>
<div id="preview" class="tool-{{.Tool}}">
{{template "body" .}}
</div>
</body>
</html>
`

// NewTemplateRenderer parses src and returns a renderer for schema.
func NewTemplateRenderer(schema *Schema, cfg TemplateConfig, src string) (*TemplateRenderer, error) {
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Dir == "" {
		cfg.Dir = "ltr"
	}
	if cfg.Name == "" {
		cfg.Name = schema.Name
	}
	if cfg.Title == "" {
		cfg.Title = cfg.Name
	}

	funcs := builtinFuncs()
	for k, v := range cfg.Funcs {
		funcs[k] = v
	}

	t, err := template.New("shell").Funcs(funcs).Parse(shellTemplate)
	if err != nil {
		return nil, fmt.Errorf("printkit: parsing shell: %w", err)
	}
	if _, err := t.New(cfg.Name).Parse(src); err != nil {
		return nil, fmt.Errorf("printkit: parsing template %s: %w", cfg.Name, err)
	}
	for _, block := range []string{"style", "body"} {
		if t.Lookup(block) == nil {
			return nil, fmt.Errorf("printkit: template %s does not define %q", cfg.Name, block)
		}
	}
	return &TemplateRenderer{cfg: cfg, schema: schema, tmpl: t}, nil
}

// Render executes the template against snap.
func (r *TemplateRenderer) Render(snap Snapshot) (Preview, error) {
	var buf bytes.Buffer
	v := &view{
		Tool:   r.cfg.Name,
		Title:  r.cfg.Title,
		Lang:   r.cfg.Lang,
		Dir:    r.cfg.Dir,
		snap:   snap,
		schema: r.schema,
	}
	if err := r.tmpl.ExecuteTemplate(&buf, "shell", v); err != nil {
		return Preview{}, fmt.Errorf("printkit: rendering %s: %w", r.cfg.Name, err)
	}
	return Preview{Tool: r.cfg.Name, Revision: snap.Revision(), HTML: buf.String()}, nil
}

// view is the template dot.
type view struct {
	Tool  string
	Title string
	Lang  string
	Dir   string

	snap   Snapshot
	schema *Schema
}

// Field returns the value, or the field's placeholder when the value is blank.
func (v *view) Field(name string) string {
	if s := v.snap.String(name); !isBlank(s) {
		return s
	}
	return v.Placeholder(name)
}

// Placeholder returns the declared placeholder, falling back to the label.
func (v *view) Placeholder(name string) string {
	f, ok := v.schema.Field(name)
	if !ok {
		return ""
	}
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return f.Label
}

// Empty reports whether the field would render its placeholder.
func (v *view) Empty(name string) bool {
	return isBlank(v.snap.String(name)) && len(v.snap.List(name)) == 0
}

func (v *view) Value(name string) string { return v.snap.String(name) }

func (v *view) Has(name string) bool { return !v.Empty(name) }

func (v *view) List(name string) []Record {
	rows := v.snap.List(name)
	if rows == nil {
		return []Record{}
	}
	return rows
}

// Lines splits a multiline field into non-empty trimmed lines.
func (v *view) Lines(name string) []string {
	var out []string
	for _, l := range strings.Split(v.snap.String(name), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Image returns the data URI of an image field or an SVG placeholder.
func (v *view) Image(name string) template.URL {
	s := v.snap.String(name)
	if strings.HasPrefix(s, "data:image/") && !strings.HasPrefix(s, "data:image/svg") {
		return template.URL(s)
	}
	return template.URL(placeholderImage(v.Placeholder(name)))
}

func (v *view) Markdown(name string) template.HTML {
	src := v.snap.String(name)
	if isBlank(src) {
		return template.HTML(`<p class="placeholder">` + template.HTMLEscapeString(v.Placeholder(name)) + `</p>`)
	}
	return renderMarkdown(src)
}

func (v *view) Rich(name string) template.HTML {
	src := v.snap.String(name)
	if isBlank(src) {
		return template.HTML(`<p class="placeholder">` + template.HTMLEscapeString(v.Placeholder(name)) + `</p>`)
	}
	return template.HTML(richPolicy.Sanitize(src))
}

var cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\([0-9.,\s%]+\)|hsla?\([0-9.,\s%deg]+\))$`)

// Color returns a CSS-safe color value. Invalid values fall back to the
// field default, then to black.
func (v *view) Color(name string) template.CSS {
	if s := strings.TrimSpace(v.snap.String(name)); cssColor.MatchString(s) {
		return template.CSS(s)
	}
	if f, ok := v.schema.Field(name); ok {
		if d, _ := f.Default.(string); cssColor.MatchString(d) {
			return template.CSS(d)
		}
	}
	return template.CSS("#000000")
}

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	richPolicy = bluemonday.UGCPolicy()
)

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(richPolicy.Sanitize(buf.String()))
}

func placeholderImage(label string) string {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="120" viewBox="0 0 120 120">` +
		`<rect width="120" height="120" fill="#e5e7eb"/>` +
		`<text x="60" y="66" font-family="sans-serif" font-size="14" fill="#6b7280" text-anchor="middle">` +
		template.HTMLEscapeString(label) + `</text></svg>`
	return "data:image/svg+xml;charset=utf-8," + strings.NewReplacer(
		"%", "%25", "#", "%23", "<", "%3C", ">", "%3E", `"`, "%22", " ", "%20",
	).Replace(svg)
}

func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"title":    titleCase,
		"initials": initials,
		"join":     strings.Join,
		"add":      func(a, b int) int { return a + b },
		"cell": func(r Record, col string) string {
			return r[col]
		},
		"default": func(fallback, s string) string {
			if isBlank(s) {
				return fallback
			}
			return s
		},
		"md": func(s string) template.HTML { return renderMarkdown(s) },
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// initials returns the upper-cased first letters of up to three words.
func initials(s string) string {
	var out []rune
	for _, w := range strings.Fields(s) {
		r, _ := utf8.DecodeRuneInString(w)
		out = append(out, unicode.ToUpper(r))
		if len(out) == 3 {
			break
		}
	}
	return string(out)
}

// htmlText walks an HTML document and returns its visible text.
func htmlText(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "title":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}
