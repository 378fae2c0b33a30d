package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pl-listing/lister/internal/handlers"
	"github.com/pl-listing/lister/internal/results"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the batch classification API",
		Long: `Starts the Lister HTTP API on the specified port.

Upload product photos to POST /api/batches and follow progress on
GET /api/batches/{id}. Batches are processed one at a time in the
order they were submitted.`,
		Example: `  # Start server on default port 8888
  lister serve

  # Start server on custom port
  lister serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			classifier, err := cfg.NewClassifier()
			if err != nil {
				return err
			}
			categories, err := cfg.Categories()
			if err != nil {
				return err
			}

			handler := handlers.New(cfg.Normalizer(), classifier,
				results.NewProjector(categories, cfg.Marketplace),
				handlers.WithDelay(cfg.Delay),
				handlers.WithMaxFiles(cfg.Images.MaxFiles),
				handlers.WithMaxFileBytes(cfg.Images.MaxFileBytes),
				handlers.WithMaxUploadBytes(cfg.MaxUploadBytes),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handler.Work(ctx)

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: handler.Routes(),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Lister API available", "addr", addr, "url", "http://localhost"+addr, "provider", cfg.Provider, "model", cfg.ModelName())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
