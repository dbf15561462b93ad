// Package app wires configuration into a ready-to-run listing processor.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pauljones0/rental-watch-bot/internal/ai"
	"github.com/pauljones0/rental-watch-bot/internal/config"
	"github.com/pauljones0/rental-watch-bot/internal/metrics"
	"github.com/pauljones0/rental-watch-bot/internal/notifier"
	"github.com/pauljones0/rental-watch-bot/internal/processor"
	"github.com/pauljones0/rental-watch-bot/internal/scraper"
	"github.com/pauljones0/rental-watch-bot/internal/storage"
)

type App struct {
	Config    *config.Config
	Processor *processor.ListingProcessor
	Metrics   *metrics.Metrics

	closers []func()
}

// Build constructs every component selected by cfg.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	n, err := notifier.New(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := scraper.NewFetcher(cfg)
	if bf, ok := fetcher.(*scraper.BrowserFetcher); ok {
		a.closers = append(a.closers, bf.Close)
	}
	src := scraper.New(cfg, fetcher)

	opts := []processor.Option{processor.WithMetrics(a.Metrics)}
	aiClient, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Warn("AI title cleanup disabled", "error", err)
	} else if aiClient != nil {
		opts = append(opts, processor.WithEnricher(aiClient))
	}

	a.Processor = processor.New(store, n, src, cfg, opts...)
	return a, nil
}

func (a *App) newStore(ctx context.Context) (processor.SeenStore, error) {
	switch a.Config.StateBackend {
	case "firestore":
		s, err := storage.NewFirestoreStore(ctx, a.Config.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initializing Firestore store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	case "postgres":
		s, err := storage.NewPostgresStore(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initializing Postgres store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return storage.NewFileStore(a.Config.SeenFile), nil
	}
}

// Close releases store connections and the browser, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// LogStartup prints the effective settings once at boot.
func (a *App) LogStartup() {
	cfg := a.Config
	slog.Info("Rental watch bot configured",
		"search_url", cfg.SearchURL,
		"pages", cfg.MaxPages,
		"min_price", cfg.MinPrice,
		"max_price", cfg.MaxPrice,
		"price_filter", cfg.PriceFilterEnabled,
		"poll_interval", cfg.PollInterval,
		"notifier", cfg.Notifier,
		"state_backend", cfg.StateBackend,
		"fetch_mode", cfg.FetchMode,
		"ai_titles", cfg.GeminiAPIKey != "",
	)
}

// SetupLogging installs the default slog handler for LOG_LEVEL and LOG_FORMAT.
func SetupLogging(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
