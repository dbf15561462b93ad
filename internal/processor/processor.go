package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/rental-watch-bot/internal/config"
	"github.com/pauljones0/rental-watch-bot/internal/metrics"
	"github.com/pauljones0/rental-watch-bot/internal/models"
	"github.com/pauljones0/rental-watch-bot/internal/storage"
)

var (
	ErrFetchFailed      = errors.New("fetch failed")
	ErrStateUnavailable = errors.New("seen set unavailable")
	ErrDeliveryFailed   = errors.New("delivery failed")
	ErrCommitFailed     = errors.New("commit failed")
	ErrCycleInProgress  = errors.New("cycle already in progress")
)

type Processor interface {
	ProcessListings(ctx context.Context) (Summary, error)
}

// Summary describes one completed (or aborted) cycle.
type Summary struct {
	Selection
	FetchFailed  bool
	Delivered    bool
	TotalTracked int
	Duration     time.Duration
}

type ListingProcessor struct {
	source   ListingSource
	store    SeenStore
	notifier Notifier
	enricher TitleEnricher
	metrics  *metrics.Metrics
	config   *config.Config

	mu sync.Mutex
}

// Option customises a ListingProcessor.
type Option func(*ListingProcessor)

// WithEnricher enables display title cleanup for new listings.
func WithEnricher(e TitleEnricher) Option {
	return func(p *ListingProcessor) { p.enricher = e }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *ListingProcessor) { p.metrics = m }
}

func New(store SeenStore, n Notifier, src ListingSource, cfg *config.Config, opts ...Option) *ListingProcessor {
	p := &ListingProcessor{
		source:   src,
		store:    store,
		notifier: n,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessListings runs one fetch, select, notify, commit cycle. Identifiers
// are committed only after the notifier confirms delivery.
func (p *ListingProcessor) ProcessListings(ctx context.Context) (Summary, error) {
	if !p.mu.TryLock() {
		return Summary{}, ErrCycleInProgress
	}
	defer p.mu.Unlock()

	start := time.Now()
	summary, err := p.runCycle(ctx)
	summary.Duration = time.Since(start)
	p.metrics.ObserveCycle(summary.Duration)
	return summary, err
}

func (p *ListingProcessor) runCycle(ctx context.Context) (Summary, error) {
	var summary Summary

	listings, err := p.source.FetchListings(ctx)
	if err != nil {
		slog.Warn("Fetch failed, skipping cycle", "error", err)
		p.metrics.IncCycle(metrics.OutcomeFetchFailed)
		summary.FetchFailed = true
		return summary, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	p.metrics.AddFetched(len(listings))
	slog.Info("Fetched listings", "count", len(listings))

	seen, err := p.store.Load(ctx)
	if err != nil {
		slog.Error("Failed to load seen set, skipping cycle", "error", err)
		p.metrics.IncCycle(metrics.OutcomeStateFailed)
		return summary, fmt.Errorf("%w: %w", ErrStateUnavailable, err)
	}

	rng := p.config.PriceRange()
	summary.Selection = SelectNewWithStats(listings, seen, rng)
	summary.TotalTracked = seen.Len()
	p.recordSkips(summary.Selection)
	p.metrics.SetSeenSetSize(seen.Len())

	slog.Info("Selected new listings",
		"total", summary.Total,
		"new", summary.New(),
		"seen", summary.AlreadySeen,
		"duplicate", summary.Duplicate,
		"out_of_range", summary.OutOfRange,
		"invalid", summary.Invalid,
	)

	if summary.New() == 0 {
		p.metrics.IncCycle(metrics.OutcomeNothingNew)
		return summary, nil
	}

	batch := models.Batch{
		Listings:     p.enrich(ctx, summary.Listings),
		TotalTracked: seen.Len() + summary.New(),
		SearchLabel:  p.config.SearchLabel(),
	}

	if err := p.notifier.Notify(ctx, batch); err != nil {
		slog.Error("Notification failed, new listings stay uncommitted", "count", summary.New(), "error", err)
		p.metrics.IncNotification("error")
		p.metrics.IncCycle(metrics.OutcomeNotifyFailed)
		return summary, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	summary.Delivered = true
	p.metrics.IncNotification("ok")
	p.metrics.AddNew(summary.New())

	merged, err := storage.MergeAndSave(ctx, p.store, seen, summary.Identifiers)
	if err != nil {
		slog.Error("Delivered listings could not be committed, they may be sent again", "count", summary.New(), "error", err)
		p.metrics.IncCycle(metrics.OutcomeCommitFailed)
		return summary, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	summary.TotalTracked = merged.Len()
	p.metrics.SetSeenSetSize(merged.Len())
	p.metrics.IncCycle(metrics.OutcomeNew)

	slog.Info("Finished processing", "new", summary.New(), "tracked", summary.TotalTracked)
	return summary, nil
}

// enrich returns copies of listings with CleanTitle set where the enricher
// succeeds. Identifiers are never touched.
func (p *ListingProcessor) enrich(ctx context.Context, listings []models.Listing) []models.Listing {
	out := make([]models.Listing, len(listings))
	copy(out, listings)
	if p.enricher == nil {
		return out
	}
	for i := range out {
		title, err := p.enricher.CleanTitle(ctx, out[i])
		if err != nil {
			slog.Warn("Title enrichment failed, using scraped title", "url", out[i].URL, "error", err)
			continue
		}
		out[i].CleanTitle = title
	}
	return out
}

func (p *ListingProcessor) recordSkips(sel Selection) {
	p.metrics.AddSkipped("invalid", sel.Invalid)
	p.metrics.AddSkipped("seen", sel.AlreadySeen)
	p.metrics.AddSkipped("duplicate", sel.Duplicate)
	p.metrics.AddSkipped("out_of_range", sel.OutOfRange)
}
