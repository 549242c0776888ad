package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/porticus-lab/go-printkit/internal/server"
	"github.com/porticus-lab/go-printkit/tools"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document editing server",
	Long: `Serve exposes the tools over HTTP: sessions with live websocket
previews, image uploads, text imports, exports, saved drafts and share
links.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		store, err := cfg.Store.OpenStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		exporters, closeBrowser, err := newExporters(cfg, logger, !cfg.Browser.Disabled)
		if err != nil {
			return fmt.Errorf("starting browser: %w", err)
		}
		defer closeBrowser()

		reg, err := registry(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Templates.Watch {
			go func() {
				if err := tools.Watch(ctx, cfg.Templates.Dir, reg, logger); err != nil {
					logger.Error("template watcher stopped", zap.Error(err))
				}
			}()
		}

		srv := server.New(server.Config{
			CORSOrigins:   cfg.Server.CORSOrigins,
			BaseURL:       cfg.Server.BaseURL,
			Debounce:      cfg.Session.Debounce,
			Autosave:      cfg.Session.Autosave,
			MaxImageBytes: cfg.Upload.MaxImageBytes,
		}, reg, store, exporters, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe(cfg.Server.Addr) }()

		select {
		case err := <-errCh:
			srv.Close()
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
