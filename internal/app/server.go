package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pauljones0/rental-watch-bot/internal/metrics"
	"github.com/pauljones0/rental-watch-bot/internal/processor"
)

const cycleTimeout = 4 * time.Minute

type Server struct {
	processor processor.Processor
	metrics   *metrics.Metrics
	// background is the parent context for cycles triggered over HTTP.
	background context.Context
	// cycles tracks running cycles so shutdown can wait before closing stores.
	cycles sync.WaitGroup
}

func NewServer(ctx context.Context, p processor.Processor, m *metrics.Metrics) *Server {
	return &Server{processor: p, metrics: m, background: ctx}
}

// Router exposes the trigger, health and metrics endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/process-listings", s.ProcessListingsHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// ProcessListingsHandler starts a cycle in the background and returns 202.
func (s *Server) ProcessListingsHandler(w http.ResponseWriter, r *http.Request) {
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Panic in ProcessListings", "panic", rec)
			}
		}()
		RunCycle(s.background, s.processor)
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Listing processing started.")
}

// StartPolling runs PollLoop in the background until ctx is done.
func (s *Server) StartPolling(ctx context.Context, interval time.Duration) {
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		PollLoop(ctx, s.processor, interval)
	}()
}

// Wait blocks until every triggered cycle and the poll loop have returned.
func (s *Server) Wait() {
	s.cycles.Wait()
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// RunCycle runs one cycle with a bounded timeout and logs its outcome.
func RunCycle(ctx context.Context, p processor.Processor) (processor.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	summary, err := p.ProcessListings(ctx)
	switch {
	case err == nil:
	case errors.Is(err, processor.ErrCycleInProgress):
		slog.Info("Previous cycle still running, skipping trigger")
	case errors.Is(err, processor.ErrFetchFailed):
		slog.Warn("Cycle skipped, listing source unavailable", "error", err)
	default:
		slog.Error("Error processing listings", "error", err)
	}
	return summary, err
}

// PollLoop runs a cycle immediately and then every interval until ctx is done.
func PollLoop(ctx context.Context, p processor.Processor, interval time.Duration) {
	RunCycle(ctx, p)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunCycle(ctx, p)
		}
	}
}
