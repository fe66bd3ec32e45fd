package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/matsen/reviewsearch/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer search queries over HTTP",
	Long: `Load the vector store once and serve queries until interrupted.

Endpoints:
  GET /search?q=<query>&k=<n>     nearest reviews to a query
  GET /reviews/{id}/similar?k=<n> nearest reviews to an indexed review
  GET /healthz                    vector store info`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine := mustLoadEngine(ctx)

	srv := server.New(serveAddr, engine, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", serveAddr, "reviews", engine.Info().Reviews)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			exitWithError(ExitError, "server: %v", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		exitWithError(ExitError, "shutdown: %v", err)
	}
	return nil
}
