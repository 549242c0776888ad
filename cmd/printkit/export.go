package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/internal/config"
)

var (
	exportFormats []string
	exportOutDir  string
	exportRaster  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <tool>",
	Short: "Export a document to one or more file formats",
	Example: `  printkit export idcard --set name="Jane Doe" --set idNumber=EMP-1 --format pdf,png
  printkit export roster --share 'https://example.com/share/roster?d=...' --format docx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		formats := make([]printkit.Format, 0, len(exportFormats))
		needBrowser := false
		for _, s := range exportFormats {
			f, err := printkit.ParseFormat(s)
			if err != nil {
				return err
			}
			switch f {
			case printkit.PDF, printkit.PNG, printkit.JPEG:
				needBrowser = true
			}
			formats = append(formats, f)
		}

		exporters, closeBrowser, err := newExporters(cfg, logger, needBrowser)
		if err != nil {
			return err
		}
		defer closeBrowser()

		reg, err := registry(cfg, logger)
		if err != nil {
			return err
		}
		tool, err := reg.Lookup(args[0])
		if err != nil {
			return err
		}
		base, err := openDocument(cfg, reg, tool.Name, printkit.WithSessionLogger(logger))
		if err != nil {
			return err
		}
		snap := base.Snapshot()
		base.Close()

		if err := os.MkdirAll(exportOutDir, 0o755); err != nil {
			return err
		}

		bar := progressbar.NewOptions(len(formats),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Exporting"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetVisibility(len(formats) > 1 && os.Getenv("CI") == ""),
		)
		defer bar.Finish()

		// A session runs one export at a time, so each format gets its own
		// session over the same snapshot.
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for _, f := range formats {
			g.Go(func() error {
				sess, err := tool.NewSession(
					printkit.WithSessionLogger(logger),
					printkit.WithExporters(exporters),
				)
				if err != nil {
					return err
				}
				defer sess.Close()
				if err := sess.Replace(snap); err != nil {
					return err
				}
				a, err := sess.Export(ctx, f)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				path := filepath.Join(exportOutDir, a.Filename)
				if err := a.WriteToFile(path, 0o644); err != nil {
					return err
				}
				bar.Describe(string(f))
				_ = bar.Add(1)
				logger.Debug("exported", zap.String("path", path), zap.Int("bytes", a.Len()))
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", path, a.Len())
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	addFieldFlags(exportCmd)
	exportCmd.Flags().StringSliceVarP(&exportFormats, "format", "f", []string{"pdf"},
		"formats: "+strings.Join(formatNames(), ", "))
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", ".", "output directory")
	exportCmd.Flags().BoolVar(&exportRaster, "raster-pdf", false, "build PDFs from a screenshot instead of the print engine")
	rootCmd.AddCommand(exportCmd)
}

// newExporters returns the exporter set for the configured browser. The
// returned func closes the browser, if one was started.
func newExporters(cfg *config.Config, logger *zap.Logger, needBrowser bool) (printkit.Exporters, func(), error) {
	if !needBrowser || cfg.Browser.Disabled {
		if needBrowser {
			return nil, nil, fmt.Errorf("browser formats requested but browser.disabled is set")
		}
		return printkit.NewExporters(nil), func() {}, nil
	}
	opts := append(cfg.Browser.Options(), printkit.WithLogger(logger))
	conv, err := printkit.NewConverter(opts...)
	if err != nil {
		return nil, nil, err
	}
	var rasterOpts []printkit.RasterOption
	if exportRaster {
		rasterOpts = append(rasterOpts, printkit.WithPDFMode(printkit.PDFRaster))
	}
	return printkit.NewExporters(conv, rasterOpts...), func() { conv.Close() }, nil
}

func formatNames() []string {
	var names []string
	for _, f := range printkit.Formats() {
		names = append(names, f.String())
	}
	return names
}
