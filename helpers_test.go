package printkit

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// cardSchema is a small document used across the package tests.
func cardSchema() *Schema {
	return NewSchema("card",
		FieldSpec{Name: "name", Label: "Name", Placeholder: "Full Name", Required: true},
		FieldSpec{Name: "idNumber", Label: "ID", Placeholder: "ID Number", Required: true},
		FieldSpec{Name: "position", Label: "Position", Placeholder: "Position"},
		FieldSpec{Name: "bio", Label: "Bio", Kind: KindMarkdown},
		FieldSpec{Name: "notes", Label: "Notes", Kind: KindRichText},
		FieldSpec{Name: "photo", Label: "Photo", Kind: KindImage},
		FieldSpec{Name: "accent", Label: "Accent", Kind: KindColor, Default: "#1d4ed8"},
		FieldSpec{Name: "rows", Label: "Rows", Kind: KindList, Columns: []string{"time", "activity"},
			Default: []Record{{"time": "08:00", "activity": "Assembly"}}},
	)
}

const cardTemplate = `{{define "style"}}.card{border-color:{{.Color "accent"}}}{{end}}
{{define "body"}}<div class="card">
<h1>{{.Field "name"}}</h1>
<p class="id">{{.Field "idNumber"}}</p>
<p class="position">{{.Field "position"}}</p>
<img src="{{.Image "photo"}}" alt="photo">
<div class="bio">{{.Markdown "bio"}}</div>
<div class="notes">{{.Rich "notes"}}</div>
<table>{{range .List "rows"}}<tr><td>{{cell . "time"}}</td><td>{{cell . "activity"}}</td></tr>{{end}}</table>
</div>{{end}}`

func newCardRenderer(t testing.TB) *TemplateRenderer {
	t.Helper()
	r, err := NewTemplateRenderer(cardSchema(), TemplateConfig{Title: "ID Card"}, cardTemplate)
	require.NoError(t, err)
	return r
}

func newCardSession(t testing.TB, opts ...SessionOption) *Session {
	t.Helper()
	r := newCardRenderer(t)
	s, err := NewSession(r.schema, r, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeRasterizer returns canned output instead of driving a browser.
type fakeRasterizer struct {
	prints   atomic.Int32
	captures atomic.Int32
}

func (f *fakeRasterizer) PrintPDF(ctx context.Context, html string, pg *PageConfig) ([]byte, error) {
	f.prints.Add(1)
	return []byte("%PDF-1.7\n% fake\n"), nil
}

func (f *fakeRasterizer) Capture(ctx context.Context, html string, opts CaptureOptions) ([]byte, error) {
	f.captures.Add(1)
	return testPNG(40, 20), nil
}

// blockingExporter waits until released or its context ends.
type blockingExporter struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingExporter() *blockingExporter {
	return &blockingExporter{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingExporter) Export(ctx context.Context, job Job) (*Artifact, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return NewArtifact(job.Format, job.Filename, []byte(job.Snapshot.String("name"))), nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func testPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
