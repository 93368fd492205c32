// Package main runs the room engine as a standalone WebSocket server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/config"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/domain"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/logging"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/ports/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	hub := ws.NewHub(logger)
	coordinator := app.NewCoordinator(
		domain.NewStore(),
		hub,
		logger,
		app.WithSettings(cfg.CoordinatorSettings()),
	)
	defer coordinator.Close()

	go coordinator.RunJanitor(ctx, cfg.PurgeInterval, cfg.RoomMaxAge)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           ws.NewServer(coordinator, hub, cfg.VoiceService(), logger, cfg.ClientURL).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown.
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
