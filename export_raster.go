package printkit

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
)

// PDFMode selects how PDF exports are produced.
type PDFMode int

const (
	// PDFPrint uses the browser's print engine: selectable text, vector output.
	PDFPrint PDFMode = iota
	// PDFRaster captures the preview as an image and places it on a page,
	// matching the on-screen layout pixel for pixel.
	PDFRaster
)

type rasterConfig struct {
	jpegQuality int
	scale       float64
	pdfMode     PDFMode
}

// RasterOption configures the browser-backed exporters.
type RasterOption func(*rasterConfig)

// WithJPEGQuality sets JPEG quality in [1, 100]. Defaults to 92.
func WithJPEGQuality(q int) RasterOption {
	return func(c *rasterConfig) {
		if q >= 1 && q <= 100 {
			c.jpegQuality = q
		}
	}
}

// WithCaptureScale sets the device scale factor of image captures.
// Defaults to 2.
func WithCaptureScale(s float64) RasterOption {
	return func(c *rasterConfig) {
		if s > 0 {
			c.scale = s
		}
	}
}

// WithPDFMode selects the PDF production mode. Defaults to [PDFPrint].
func WithPDFMode(m PDFMode) RasterOption {
	return func(c *rasterConfig) {
		c.pdfMode = m
	}
}

type rasterExporter struct {
	r   Rasterizer
	cfg rasterConfig
}

func newRasterExporter(r Rasterizer, opts ...RasterOption) *rasterExporter {
	cfg := rasterConfig{jpegQuality: 92, scale: 2}
	for _, o := range opts {
		o(&cfg)
	}
	return &rasterExporter{r: r, cfg: cfg}
}

func (x *rasterExporter) Export(ctx context.Context, job Job) (*Artifact, error) {
	if job.Preview.HTML == "" {
		return nil, fmt.Errorf("no preview to export")
	}
	selector := job.Selector
	if selector == "" {
		selector = "#preview"
	}

	switch job.Format {
	case PDF:
		if x.cfg.pdfMode == PDFPrint {
			data, err := x.r.PrintPDF(ctx, job.Preview.HTML, job.Page)
			if err != nil {
				return nil, err
			}
			return NewArtifact(PDF, job.Filename, data), nil
		}
		shot, err := x.r.Capture(ctx, job.Preview.HTML, CaptureOptions{Selector: selector, Scale: x.cfg.scale})
		if err != nil {
			return nil, err
		}
		data, err := imagesToPDF(job.Page, shot)
		if err != nil {
			return nil, err
		}
		return NewArtifact(PDF, job.Filename, data), nil

	case PNG, JPEG:
		shot, err := x.r.Capture(ctx, job.Preview.HTML, CaptureOptions{Selector: selector, Scale: x.cfg.scale})
		if err != nil {
			return nil, err
		}
		if job.Format == PNG {
			return NewArtifact(PNG, job.Filename, shot), nil
		}
		data, err := pngToJPEG(shot, x.cfg.jpegQuality)
		if err != nil {
			return nil, err
		}
		return NewArtifact(JPEG, job.Filename, data), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, job.Format)
}

// imagesToPDF places each image on its own page of the configured paper size.
func imagesToPDF(pg *PageConfig, imgs ...[]byte) ([]byte, error) {
	readers := make([]io.Reader, len(imgs))
	for i, img := range imgs {
		readers[i] = bytes.NewReader(img)
	}

	w, h := pg.pointDimensions()
	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: w, Height: h}

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, imp, nil); err != nil {
		return nil, fmt.Errorf("assembling pdf: %w", err)
	}
	return out.Bytes(), nil
}

// pngToJPEG flattens transparency onto white and re-encodes as JPEG.
func pngToJPEG(data []byte, quality int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return out.Bytes(), nil
}
