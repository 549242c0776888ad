package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/internal/config"
	"github.com/porticus-lab/go-printkit/tools"
)

var (
	setFlags   []string
	imageFlags []string
	fileFlags  []string
	shareFlag  string
)

// addFieldFlags registers the flags that fill a document.
func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&setFlags, "set", nil, "set a field, name=value (repeatable)")
	cmd.Flags().StringArrayVar(&imageFlags, "image", nil, "load an image field, name=path (repeatable)")
	cmd.Flags().StringArrayVar(&fileFlags, "import", nil, "import a text field from a document, name=path (repeatable)")
	cmd.Flags().StringVar(&shareFlag, "share", "", "start from a share link or encoded snapshot")
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available document tools",
	Args:  cobra.NoArgs,
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
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTITLE\tFIELDS")
		for _, t := range reg.Tools() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Title, strings.Join(t.Schema.Names(), ", "))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

// registry returns the built-in tools with any template overrides from
// the configured directory applied.
func registry(cfg *config.Config, logger *zap.Logger) (*tools.Registry, error) {
	reg := tools.Default()
	if cfg.Templates.Dir == "" {
		return reg, nil
	}
	loaded, err := tools.LoadDir(cfg.Templates.Dir, reg)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	if len(loaded) > 0 {
		logger.Info("templates loaded", zap.Strings("tools", loaded))
	}
	return reg, nil
}

// openDocument starts a session for the named tool and applies the field
// flags in order: share, --set, --image, --import. Uploads are capped by
// upload.max_image_bytes unless the tool sets its own limit.
func openDocument(cfg *config.Config, reg *tools.Registry, name string, opts ...printkit.SessionOption) (*printkit.Session, error) {
	tool, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	opts = append([]printkit.SessionOption{
		printkit.WithImageLimits(tool.ImageLimits(cfg.Upload.MaxImageBytes)),
	}, opts...)
	sess, err := tool.NewSession(opts...)
	if err != nil {
		return nil, err
	}
	if err := fillDocument(sess, tool); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func fillDocument(sess *printkit.Session, tool *tools.Tool) error {
	if shareFlag != "" {
		snap, err := printkit.DecodeShare(tool.Schema, shareParam(shareFlag))
		if err != nil {
			return err
		}
		if err := sess.Replace(snap); err != nil {
			return err
		}
	}

	values := make(map[string]any, len(setFlags))
	for _, kv := range setFlags {
		name, value, err := splitPair("--set", kv)
		if err != nil {
			return err
		}
		values[name] = strings.ReplaceAll(value, `\n`, "\n")
	}
	if len(values) > 0 {
		if err := sess.SetFields(values); err != nil {
			return err
		}
	}

	for _, kv := range imageFlags {
		name, path, err := splitPair("--image", kv)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := sess.SetImage(name, data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	for _, kv := range fileFlags {
		name, path, err := splitPair("--import", kv)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := sess.ImportText(name, filepath.Base(path), data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func splitPair(flag, s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%s %q: want name=value", flag, s)
	}
	return name, value, nil
}

// shareParam accepts either a full share URL or the bare encoded value.
func shareParam(s string) string {
	if u, err := url.Parse(s); err == nil && u.RawQuery != "" {
		if v := u.Query().Get(printkit.ShareParam); v != "" {
			return v
		}
	}
	return s
}
