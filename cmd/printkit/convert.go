package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	printkit "github.com/porticus-lab/go-printkit"
)

var (
	convertOut       string
	convertPaper     string
	convertLandscape bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.html|url>",
	Short: "Print an HTML file or web page to PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		pg, err := pageFromFlags()
		if err != nil {
			return err
		}

		opts := append(cfg.Browser.Options(), printkit.WithLogger(logger))
		conv, err := printkit.NewConverter(opts...)
		if err != nil {
			return err
		}
		defer conv.Close()

		src := args[0]
		var a *printkit.Artifact
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			a, err = conv.ConvertURL(cmd.Context(), src, pg)
		} else {
			a, err = conv.ConvertFile(cmd.Context(), src, pg)
		}
		if err != nil {
			return err
		}

		out := convertOut
		if out == "" {
			out = a.Filename
		}
		if err := a.WriteToFile(out, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", out, a.Len())
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output file (default: derived from the input)")
	convertCmd.Flags().StringVar(&convertPaper, "paper", "a4", "paper size: "+strings.Join(printkit.PageSizeNames(), ", "))
	convertCmd.Flags().BoolVar(&convertLandscape, "landscape", false, "landscape orientation")
	rootCmd.AddCommand(convertCmd)
}

func pageFromFlags() (*printkit.PageConfig, error) {
	size, err := printkit.ParsePageSize(convertPaper)
	if err != nil {
		return nil, err
	}
	pg := printkit.DefaultPageConfig()
	pg.Size = size
	if convertLandscape {
		pg.Orientation = printkit.Landscape
	}
	return &pg, nil
}
