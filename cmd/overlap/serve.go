package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the comparison HTTP API",
		Long: `Serve exposes the comparisons over HTTP:

  GET  /health
  GET  /metrics
  POST /v1/compare                 {"users": ["alice", "bob"]}
  POST /v1/compare/playlists       {"caller_id": "alice", "playlists": [...], "mode": "exact"}
  GET  /v1/playlists/:id/creators  ?caller_id=alice&limit=10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := cmd.Flags().GetString("addr")
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				gin.SetMode(gin.ReleaseMode)

				srv := &http.Server{
					Addr:         addr,
					Handler:      newRouter(NewHandler(a.service)),
					ReadTimeout:  a.cfg.Server.ReadTimeout,
					WriteTimeout: a.cfg.Server.WriteTimeout,
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				return runServer(ctx, srv)
			})
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")

	return cmd
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
