// Command oneshot runs a single watch cycle, for cron and other external schedulers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pauljones0/rental-watch-bot/internal/app"
	"github.com/pauljones0/rental-watch-bot/internal/config"
	"github.com/pauljones0/rental-watch-bot/internal/processor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		return 1
	}
	app.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("Critical error initializing components", "error", err)
		return 1
	}
	defer a.Close()
	a.LogStartup()

	summary, err := app.RunCycle(ctx, a.Processor)
	slog.Info("Cycle finished", "new", summary.New(), "tracked", summary.TotalTracked, "duration", summary.Duration)
	return exitCode(err)
}

// exitCode maps a cycle error to a process status. A failed fetch is a
// no-op cycle and exits 0.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, processor.ErrFetchFailed):
		return 0
	case errors.Is(err, processor.ErrDeliveryFailed), errors.Is(err, processor.ErrCommitFailed):
		return 2
	default:
		return 1
	}
}
