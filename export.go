package printkit

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Format is an export file format.
type Format string

// Supported export formats.
const (
	PNG      Format = "png"
	JPEG     Format = "jpeg"
	PDF      Format = "pdf"
	DOC      Format = "doc"
	DOCX     Format = "docx"
	CSV      Format = "csv"
	JSON     Format = "json"
	SVG      Format = "svg"
	Markdown Format = "md"
)

type formatInfo struct {
	mime string
	ext  string
}

var formats = map[Format]formatInfo{
	PNG:      {"image/png", ".png"},
	JPEG:     {"image/jpeg", ".jpg"},
	PDF:      {"application/pdf", ".pdf"},
	DOC:      {"application/msword", ".doc"},
	DOCX:     {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
	CSV:      {"text/csv; charset=utf-8", ".csv"},
	JSON:     {"application/json", ".json"},
	SVG:      {"image/svg+xml", ".svg"},
	Markdown: {"text/markdown; charset=utf-8", ".md"},
}

// ParseFormat maps a user supplied name or extension ("PDF", ".jpg") to a Format.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	switch s {
	case "jpg":
		s = "jpeg"
	case "markdown":
		s = "md"
	}
	f := Format(s)
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// Formats lists every known format.
func Formats() []Format {
	return []Format{PNG, JPEG, PDF, DOC, DOCX, CSV, JSON, SVG, Markdown}
}

// MIME returns the media type of the format.
func (f Format) MIME() string {
	return formats[f].mime
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	return formats[f].ext
}

func (f Format) String() string { return string(f) }

// Job is everything an [Exporter] needs to produce one artifact. It is
// built from a single snapshot, so exporters never see live state.
type Job struct {
	Tool     string
	Title    string
	Schema   *Schema
	Snapshot Snapshot
	Preview  Preview
	Format   Format
	Page     *PageConfig
	Selector string
	Filename string
}

// Exporter produces an artifact for a job.
type Exporter interface {
	Export(ctx context.Context, job Job) (*Artifact, error)
}

// ExporterFunc adapts a function to [Exporter].
type ExporterFunc func(ctx context.Context, job Job) (*Artifact, error)

// Export calls f(ctx, job).
func (f ExporterFunc) Export(ctx context.Context, job Job) (*Artifact, error) { return f(ctx, job) }

// Exporters maps formats to their exporters.
type Exporters map[Format]Exporter

// NewExporters returns the exporters that need no browser (DOC, DOCX,
// CSV, JSON, SVG, Markdown) plus, when r is non-nil, the browser-backed
// PNG, JPEG and PDF exporters.
func NewExporters(r Rasterizer, opts ...RasterOption) Exporters {
	e := Exporters{
		DOC:      ExporterFunc(exportDOC),
		DOCX:     ExporterFunc(exportDOCX),
		CSV:      ExporterFunc(exportCSV),
		JSON:     ExporterFunc(exportJSON),
		SVG:      ExporterFunc(exportSVG),
		Markdown: ExporterFunc(exportMarkdown),
	}
	if r != nil {
		rx := newRasterExporter(r, opts...)
		e[PNG] = rx
		e[JPEG] = rx
		e[PDF] = rx
	}
	return e
}

// Export looks up the exporter for job.Format and runs it. Any failure is
// returned as an [*ExportError].
func (e Exporters) Export(ctx context.Context, job Job) (*Artifact, error) {
	x, ok := e[job.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, job.Format)
	}
	if job.Filename == "" {
		job.Filename = Filename(job.Tool, nil, job.Format)
	}
	a, err := x.Export(ctx, job)
	if err != nil {
		return nil, &ExportError{Format: job.Format, Err: err}
	}
	if a == nil || a.Len() == 0 {
		return nil, &ExportError{Format: job.Format, Err: fmt.Errorf("empty output")}
	}
	return a, nil
}

// Filename builds a deterministic download name from field values,
// e.g. "acme-backend-engineer-2024-05-01.pdf". Empty parts are skipped;
// with no usable part the fallback is used.
func Filename(fallback string, parts []string, f Format) string {
	var slugs []string
	for _, p := range parts {
		if s := slug(p); s != "" {
			slugs = append(slugs, s)
		}
	}
	name := strings.Join(slugs, "-")
	if name == "" {
		name = slug(fallback)
	}
	if name == "" {
		name = "document"
	}
	if r := []rune(name); len(r) > 120 {
		name = strings.TrimRight(string(r[:120]), "-")
	}
	return name + f.Ext()
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
