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

	"github.com/pauljones0/rental-watch-bot/internal/app"
	"github.com/pauljones0/rental-watch-bot/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting rental watch bot server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("Critical error initializing components", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	a.LogStartup()

	srv := app.NewServer(ctx, a.Processor, a.Metrics)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.PollInterval > 0 {
		srv.StartPolling(ctx, cfg.PollInterval)
	} else {
		slog.Info("Internal polling disabled, waiting for /process-listings triggers")
	}

	go func() {
		<-ctx.Done()
		slog.Info("Received signal, shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	srv.Wait()
	slog.Info("Server stopped.")
}
