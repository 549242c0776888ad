// Package printkit turns structured form input into a live HTML preview and
// exports it as an image, PDF, or office document.
//
// Every document tool is built from the same pieces:
//
//   - a [Schema] declaring the fields and their defaults
//   - a [Renderer] mapping an immutable [Snapshot] to a standalone HTML [Preview]
//   - [Exporters] producing an [Artifact] for each [Format]
//   - an optional [Persister] storing snapshots in a key-value store
//
// A [Session] ties them together and is the single source of truth for
// one open document:
//
//	schema := printkit.NewSchema("badge",
//	    printkit.FieldSpec{Name: "name", Label: "Name", Required: true},
//	)
//	r, err := printkit.NewTemplateRenderer(schema, printkit.TemplateConfig{}, src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := printkit.NewSession(schema, r)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	s.SetField("name", "Ada Lovelace")
//	p, _ := s.Preview()
//
// # Exports
//
// DOC, DOCX, CSV, JSON, SVG and Markdown are produced without a browser.
// PNG, JPEG and PDF need a [Rasterizer]; [Converter] drives a headless
// Chrome through the DevTools Protocol and reuses one browser process:
//
//	c, err := printkit.NewConverter(printkit.WithNoSandbox())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	s, err := printkit.NewSession(schema, r,
//	    printkit.WithExporters(printkit.NewExporters(c)),
//	    printkit.WithPage(&printkit.PageConfig{Size: printkit.A4}),
//	)
//	a, err := s.Export(ctx, printkit.PDF)
//	a.WriteToFile("badge.pdf", 0o644)
//
// Use [PageConfig] to control paper size, orientation, margins, and scale.
// The Converter also prints arbitrary pages with [Converter.ConvertHTML],
// [Converter.ConvertURL] and [Converter.ConvertFile].
//
// # Requirements
//
// Browser-backed formats require Chrome or Chromium. The Converter searches
// standard locations; use [WithChromePath] to point at a binary or
// [WithAutoDownload] to fetch one. In Docker or CI environments running as
// root, use [WithNoSandbox].
package printkit
