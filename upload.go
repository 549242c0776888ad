package printkit

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/fumiama/imgsz"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImageBytes is the upload cap used when a tool sets none.
const DefaultMaxImageBytes = 2 << 20

// DefaultMaxImagePixels caps the decoded size of an upload, 50 megapixels
// when a tool sets no limit. A small file can declare a huge canvas, so
// this is checked from the header before any pixels are decoded.
const DefaultMaxImagePixels = 50_000_000

// ImageLimits constrains an uploaded image.
type ImageLimits struct {
	// MaxBytes caps the encoded upload size. Zero means DefaultMaxImageBytes.
	MaxBytes int64
	// MaxWidth and MaxHeight downscale larger images, keeping the aspect
	// ratio. Zero leaves that dimension unbounded.
	MaxWidth  int
	MaxHeight int
	// MaxPixels caps width x height as declared by the image header.
	// Zero means DefaultMaxImagePixels.
	MaxPixels int64
}

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// DecodeImage validates an uploaded image and returns it as a data URI.
// Oversized or non-image input is rejected with [ErrImageTooLarge] or
// [ErrUnsupportedImage].
func DecodeImage(data []byte, lim ImageLimits) (string, error) {
	max := lim.MaxBytes
	if max <= 0 {
		max = DefaultMaxImageBytes
	}
	if int64(len(data)) > max {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(data), max)
	}
	mime := http.DetectContentType(data)
	if !imageTypes[mime] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}
	w, h, err := imageSize(data)
	if err != nil {
		return "", err
	}
	maxPixels := lim.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	if int64(w)*int64(h) > maxPixels {
		return "", fmt.Errorf("%w: %dx%d pixels, limit %d", ErrImageTooLarge, w, h, maxPixels)
	}

	if needsResize(w, h, lim) {
		data, mime, err = resizeImage(data, lim)
		if err != nil {
			return "", err
		}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ResizeImage scales an image data URI to fit within maxWidth x maxHeight.
// Images already small enough are returned unchanged.
func ResizeImage(uri string, maxWidth, maxHeight int) (string, error) {
	data, ok := decodeDataURI(uri)
	if !ok {
		return "", fmt.Errorf("%w: not a base64 data URI", ErrUnsupportedImage)
	}
	return DecodeImage(data, ImageLimits{MaxBytes: int64(len(data)), MaxWidth: maxWidth, MaxHeight: maxHeight})
}

// imageSize reads the dimensions from the image header.
func imageSize(data []byte) (int, int, error) {
	if sz, _, err := imgsz.DecodeSize(bytes.NewReader(data)); err == nil && sz.Width > 0 && sz.Height > 0 {
		return int(sz.Width), int(sz.Height), nil
	}
	// imgsz does not know every codec registered with image.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: unreadable image header", ErrUnsupportedImage)
	}
	return cfg.Width, cfg.Height, nil
}

func needsResize(w, h int, lim ImageLimits) bool {
	return (lim.MaxWidth > 0 && w > lim.MaxWidth) || (lim.MaxHeight > 0 && h > lim.MaxHeight)
}

func fitWithin(w, h int, lim ImageLimits) (int, int) {
	scale := 1.0
	if lim.MaxWidth > 0 && w > lim.MaxWidth {
		scale = float64(lim.MaxWidth) / float64(w)
	}
	if lim.MaxHeight > 0 && float64(h)*scale > float64(lim.MaxHeight) {
		scale = float64(lim.MaxHeight) / float64(h)
	}
	nw, nh := int(float64(w)*scale+0.5), int(float64(h)*scale+0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// resizeImage downscales with Catmull-Rom. JPEG input stays JPEG; other
// formats are re-encoded as PNG to keep transparency.
func resizeImage(data []byte, lim ImageLimits) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), lim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", fmt.Errorf("printkit: encoding jpeg: %w", err)
		}
		return out.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&out, dst); err != nil {
		return nil, "", fmt.Errorf("printkit: encoding png: %w", err)
	}
	return out.Bytes(), "image/png", nil
}
