package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdeck/faqbot/api"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	addr := api.DefaultAddr
	if len(os.Args) > 2 {
		addr = os.Args[2]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	logger := slog.Default()
	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/v1/*",
		"health", "/healthz, /readyz",
	)

	srv := api.NewServer(api.ServerConfig{
		Pipeline: a.Pipeline,
		Recorder: a.Retriever,
		Pool:     a.DBPool,
		Logger:   logger,
	})

	if err := srv.Run(ctx, addr); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
