package printkit

import (
	"fmt"
	"sort"
	"strings"
)

// PageSize is a sheet of paper in centimeters, Width across and Height
// down as printed in [Portrait]; [Landscape] swaps them. The ISO and US
// sizes are declared tall, CR80 wide, as ID cards are laid out.
type PageSize struct {
	Width  float64
	Height float64
}

// Paper sizes used by the built-in tools. CR80 is the ID-1 card format
// used for ID and badge cards.
var (
	A3      = PageSize{Width: 29.7, Height: 42.0}
	A4      = PageSize{Width: 21.0, Height: 29.7}
	A5      = PageSize{Width: 14.8, Height: 21.0}
	A6      = PageSize{Width: 10.5, Height: 14.8}
	Letter  = PageSize{Width: 21.59, Height: 27.94}
	Legal   = PageSize{Width: 21.59, Height: 35.56}
	Tabloid = PageSize{Width: 27.94, Height: 43.18}
	CR80    = PageSize{Width: 8.56, Height: 5.398}
)

var pageSizes = map[string]PageSize{
	"a3":      A3,
	"a4":      A4,
	"a5":      A5,
	"a6":      A6,
	"letter":  Letter,
	"legal":   Legal,
	"tabloid": Tabloid,
	"cr80":    CR80,
}

// ParsePageSize looks up a paper size by name ("A4", "letter", "cr80").
func ParsePageSize(name string) (PageSize, error) {
	s, ok := pageSizes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PageSize{}, fmt.Errorf("printkit: unknown paper size %q (want one of %s)",
			name, strings.Join(PageSizeNames(), ", "))
	}
	return s, nil
}

// PageSizeNames lists the names [ParsePageSize] accepts, sorted.
func PageSizeNames() []string {
	names := make([]string, 0, len(pageSizes))
	for n := range pageSizes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Name returns the lower-case name of a known size, or "WxHcm".
func (s PageSize) Name() string {
	for n, v := range pageSizes {
		if v == s {
			return n
		}
	}
	return fmt.Sprintf("%gx%gcm", s.Width, s.Height)
}

// Orientation is portrait or landscape.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// Margin holds page margins in centimeters.
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargin returns the same margin on every side.
func UniformMargin(cm float64) Margin {
	return Margin{Top: cm, Right: cm, Bottom: cm, Left: cm}
}

// PageConfig is the page geometry of PDF, raster PDF and SVG exports.
//
// Zero fields take the defaults of [DefaultPageConfig]; a nil
// *PageConfig is the default page.
type PageConfig struct {
	Size        PageSize
	Orientation Orientation
	Margin      Margin

	// Scale of the rendering, between 0.1 and 2.0.
	Scale float64

	// PrintBackground prints background colors and images. It is kept
	// as given, so callers building a PageConfig by hand get false.
	PrintBackground bool

	// DisplayHeaderFooter enables HeaderTemplate and FooterTemplate,
	// Chrome print templates that may use the classes date, title, url,
	// pageNumber and totalPages.
	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string

	// PreferCSSPageSize lets an @page rule in the document win over Size.
	PreferCSSPageSize bool
}

// DefaultPageConfig is A4 portrait with 1 cm margins, scale 1 and
// backgrounds printed.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:            A4,
		Orientation:     Portrait,
		Margin:          UniformMargin(1.0),
		Scale:           1.0,
		PrintBackground: true,
	}
}

func (p *PageConfig) resolved() PageConfig {
	def := DefaultPageConfig()
	if p == nil {
		return def
	}
	out := *p
	if out.Size == (PageSize{}) {
		out.Size = def.Size
	}
	if out.Margin == (Margin{}) {
		out.Margin = def.Margin
	}
	if out.Scale <= 0 {
		out.Scale = def.Scale
	}
	return out
}

const (
	cmPerInch     = 2.54
	pointsPerInch = 72
	cssPxPerInch  = 96
)

func cmToInches(cm float64) float64 {
	return cm / cmPerInch
}

// paperDimensions is the oriented sheet in inches.
func (p *PageConfig) paperDimensions() (width, height float64) {
	r := p.resolved()
	width, height = cmToInches(r.Size.Width), cmToInches(r.Size.Height)
	if r.Orientation == Landscape {
		width, height = height, width
	}
	return width, height
}

func (p *PageConfig) marginInches() (top, right, bottom, left float64) {
	m := p.resolved().Margin
	return cmToInches(m.Top), cmToInches(m.Right), cmToInches(m.Bottom), cmToInches(m.Left)
}

// pointDimensions is the oriented sheet in PDF points.
func (p *PageConfig) pointDimensions() (width, height float64) {
	width, height = p.paperDimensions()
	return width * pointsPerInch, height * pointsPerInch
}

// pixelSize is the oriented sheet in CSS pixels, rounded.
func (p *PageConfig) pixelSize() (width, height int) {
	w, h := p.paperDimensions()
	return int(w*cssPxPerInch + 0.5), int(h*cssPxPerInch + 0.5)
}
