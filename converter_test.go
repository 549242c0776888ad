package printkit_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	printkit "github.com/porticus-lab/go-printkit"
)

// chromeAvailable reports whether a Chrome/Chromium executable is in PATH.
func chromeAvailable() bool {
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func skipIfNoChrome(t *testing.T) {
	t.Helper()
	if !chromeAvailable() {
		t.Skip("skipping: Chrome/Chromium not found in PATH")
	}
}

func newTestConverter(t *testing.T) *printkit.Converter {
	t.Helper()
	skipIfNoChrome(t)
	c, err := printkit.NewConverter(printkit.WithNoSandbox())
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// isPDF checks whether data starts with the PDF magic number.
func isPDF(data []byte) bool {
	return len(data) > 4 && string(data[:5]) == "%PDF-"
}

func TestConvertHTML_Basic(t *testing.T) {
	c := newTestConverter(t)

	a, err := c.ConvertHTML(context.Background(), "<h1>Hello World</h1>", "hello.pdf", nil)
	if err != nil {
		t.Fatalf("ConvertHTML: %v", err)
	}
	if !isPDF(a.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
	if a.Len() < 100 {
		t.Errorf("PDF unexpectedly small: %d bytes", a.Len())
	}
	if a.Filename != "hello.pdf" || a.MIME() != "application/pdf" {
		t.Errorf("artifact = %q %q, want hello.pdf application/pdf", a.Filename, a.MIME())
	}
}

func TestConvertHTML_WithPageConfig(t *testing.T) {
	c := newTestConverter(t)

	page := &printkit.PageConfig{
		Size:            printkit.Letter,
		Orientation:     printkit.Landscape,
		Margin:          printkit.UniformMargin(2.0),
		Scale:           1.0,
		PrintBackground: true,
	}

	html := `<!DOCTYPE html>
<html>
<head><style>
  body { background: #f0f0f0; font-family: sans-serif; }
  .container { display: flex; gap: 1rem; padding: 2rem; }
  .card { background: white; border-radius: 8px; padding: 1rem; flex: 1; }
</style></head>
<body>
  <div class="container">
    <div class="card"><h2>Card 1</h2><p>Modern CSS with flexbox</p></div>
    <div class="card"><h2>Card 2</h2><p>Shadows and border-radius</p></div>
  </div>
</body>
</html>`

	a, err := c.ConvertHTML(context.Background(), html, "cards.pdf", page)
	if err != nil {
		t.Fatalf("ConvertHTML: %v", err)
	}
	if !isPDF(a.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
}

func TestConvertFile(t *testing.T) {
	c := newTestConverter(t)

	path := filepath.Join(t.TempDir(), "notice.html")
	if err := os.WriteFile(path, []byte("<h1>From File</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := c.ConvertFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if !isPDF(a.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
	if a.Filename != "notice.pdf" {
		t.Errorf("Filename = %q, want notice.pdf", a.Filename)
	}
}

func TestConvertFile_NotFound(t *testing.T) {
	c := newTestConverter(t)

	_, err := c.ConvertFile(context.Background(), "/nonexistent/file.html", nil)
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestConvertURL(t *testing.T) {
	c := newTestConverter(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<h1>Served page</h1>"))
	}))
	defer srv.Close()

	a, err := c.ConvertURL(context.Background(), srv.URL+"/jobs/open", nil)
	if err != nil {
		t.Fatalf("ConvertURL: %v", err)
	}
	if !isPDF(a.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
}

func TestConvertURL_InvalidURL(t *testing.T) {
	c := newTestConverter(t)

	_, err := c.ConvertURL(context.Background(), "not a url", nil)
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestCapture_Selector(t *testing.T) {
	c := newTestConverter(t)

	html := `<body style="margin:0"><div class="card" style="width:200px;height:100px;background:#1d4ed8"></div></body>`
	data, err := c.Capture(context.Background(), html, printkit.CaptureOptions{Selector: ".card", Scale: 2})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("capture is not a PNG: %v", err)
	}
	if cfg.Width != 400 || cfg.Height != 200 {
		t.Errorf("capture = %dx%d, want 400x200 at scale 2", cfg.Width, cfg.Height)
	}
}

func TestConverter_CloseIdempotent(t *testing.T) {
	skipIfNoChrome(t)

	c, err := printkit.NewConverter(printkit.WithNoSandbox())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConverter_UsedAfterClose(t *testing.T) {
	skipIfNoChrome(t)

	c, err := printkit.NewConverter(printkit.WithNoSandbox())
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	_, err = c.ConvertHTML(context.Background(), "<p>test</p>", "test.pdf", nil)
	if !errors.Is(err, printkit.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAllPageSizes(t *testing.T) {
	c := newTestConverter(t)

	sizes := []struct {
		name string
		size printkit.PageSize
	}{
		{"A3", printkit.A3},
		{"A4", printkit.A4},
		{"A5", printkit.A5},
		{"A6", printkit.A6},
		{"Letter", printkit.Letter},
		{"Legal", printkit.Legal},
		{"Tabloid", printkit.Tabloid},
		{"CR80", printkit.CR80},
	}

	for _, s := range sizes {
		t.Run(s.name, func(t *testing.T) {
			a, err := c.ConvertHTML(context.Background(), "<p>"+s.name+"</p>", s.name+".pdf", &printkit.PageConfig{
				Size:            s.size,
				Margin:          printkit.UniformMargin(0.2),
				Scale:           1.0,
				PrintBackground: true,
			})
			if err != nil {
				t.Fatalf("ConvertHTML(%s): %v", s.name, err)
			}
			if !isPDF(a.Bytes()) {
				t.Fatalf("%s: output is not a valid PDF", s.name)
			}
		})
	}
}

func TestExportersWithBrowser(t *testing.T) {
	c := newTestConverter(t)

	schema := printkit.NewSchema("badge", printkit.FieldSpec{Name: "name", Required: true})
	r, err := printkit.NewTemplateRenderer(schema, printkit.TemplateConfig{},
		`{{define "style"}}.badge{width:300px;height:180px}{{end}}{{define "body"}}<div class="badge">{{.Field "name"}}</div>{{end}}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, mode := range []printkit.PDFMode{printkit.PDFPrint, printkit.PDFRaster} {
		s, err := printkit.NewSession(schema, r,
			printkit.WithExporters(printkit.NewExporters(c, printkit.WithPDFMode(mode))),
			printkit.WithSelector(".badge"),
		)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetField("name", "Ada Lovelace"); err != nil {
			t.Fatal(err)
		}
		for _, f := range []printkit.Format{printkit.PDF, printkit.PNG, printkit.JPEG} {
			a, err := s.Export(context.Background(), f)
			if err != nil {
				t.Fatalf("Export(%s): %v", f, err)
			}
			if a.MIME() != f.MIME() || a.Len() == 0 {
				t.Errorf("Export(%s) = %s, %d bytes", f, a.MIME(), a.Len())
			}
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExtractText_FromPrintedPDF(t *testing.T) {
	c := newTestConverter(t)

	a, err := c.ConvertHTML(context.Background(), "<p>Quarterly summary</p>", "summary.pdf", nil)
	if err != nil {
		t.Fatalf("ConvertHTML: %v", err)
	}
	text, err := printkit.ExtractText(a.Filename, a.Bytes())
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(strings.Join(strings.Fields(text), ""), "Quarterlysummary") {
		t.Errorf("extracted text = %q, want it to contain the paragraph", text)
	}
}
