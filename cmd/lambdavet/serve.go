package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpx "github.com/HERMES-SOC/swsoc-processing-lambda/internal/http"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook-driven validation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := buildWiring(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.docker.Ping(ctx); err != nil {
				return err
			}
			if w.cfg.WebhookSecret == "" {
				w.log.Warn("no webhook secret configured, signature verification disabled")
			}

			router := httpx.New(w.log, w.service, w.runs, w.cfg.WebhookSecret)
			srv := &http.Server{
				Addr:              w.cfg.Addr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errorCh := make(chan error, 1)
			go func() {
				w.log.Info("validation server starting", "addr", w.cfg.Addr)
				errorCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					w.log.Error("graceful shutdown failed", "error", err)
				}
				w.log.Info("validation server stopped")
				return nil
			case err := <-errorCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
		},
	}
}
