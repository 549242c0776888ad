package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	printkit "github.com/porticus-lab/go-printkit"
)

var (
	renderOut      string
	renderTerminal bool
	renderWidth    int
)

var renderCmd = &cobra.Command{
	Use:   "render <tool>",
	Short: "Render a document preview as HTML",
	Long: `Render fills the tool's template from the field flags and writes the
preview HTML. With --terminal the preview is converted to Markdown and
printed with terminal styling instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		reg, err := registry(cfg, logger)
		if err != nil {
			return err
		}
		sess, err := openDocument(cfg, reg, args[0], printkit.WithSessionLogger(logger))
		if err != nil {
			return err
		}
		defer sess.Close()

		p, err := sess.Preview()
		if err != nil {
			return err
		}
		if !renderTerminal {
			if renderOut == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), p.HTML)
				return err
			}
			return os.WriteFile(renderOut, []byte(p.HTML), 0o644)
		}

		// The Markdown exporter needs no browser and skips required-field
		// checks when called directly.
		md, err := printkit.NewExporters(nil).Export(cmd.Context(), printkit.Job{
			Tool:     sess.Tool(),
			Schema:   sess.Schema(),
			Snapshot: sess.Snapshot(),
			Preview:  p,
			Format:   printkit.Markdown,
		})
		if err != nil {
			return err
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(renderWidth),
		)
		if err != nil {
			return fmt.Errorf("creating terminal renderer: %w", err)
		}
		out, err := r.Render(string(md.Bytes()))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	addFieldFlags(renderCmd)
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "write HTML to a file instead of stdout")
	renderCmd.Flags().BoolVarP(&renderTerminal, "terminal", "t", false, "print a styled text preview")
	renderCmd.Flags().IntVar(&renderWidth, "width", 80, "word wrap width for --terminal")
	rootCmd.AddCommand(renderCmd)
}
