package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Cycle outcomes used as the "outcome" label of rental_cycles_total.
const (
	OutcomeNew          = "new"
	OutcomeNothingNew   = "nothing_new"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomeStateFailed  = "state_failed"
	OutcomeNotifyFailed = "notify_failed"
	OutcomeCommitFailed = "commit_failed"
)

// Metrics bundles the Prometheus collectors for the watcher.
type Metrics struct {
	Registry         *prometheus.Registry
	CyclesTotal      *prometheus.CounterVec
	FetchedTotal     prometheus.Counter
	NewTotal         prometheus.Counter
	SkippedTotal     *prometheus.CounterVec
	NotificationsTot *prometheus.CounterVec
	SeenSetSize      prometheus.Gauge
	CycleDuration    prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_cycles_total",
			Help: "Watch cycles by outcome.",
		},
		[]string{"outcome"},
	)
	fetched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_listings_fetched_total",
		Help: "Listings returned by the listing source.",
	})
	newListings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_listings_new_total",
		Help: "Listings selected as new and delivered.",
	})
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_listings_skipped_total",
			Help: "Listings dropped by the dedup and price filter, by reason.",
		},
		[]string{"reason"},
	)
	notifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_notifications_total",
			Help: "Notification batches by result.",
		},
		[]string{"result"},
	)
	seenSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rental_seen_set_size",
		Help: "Number of listing identifiers in the committed seen set.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rental_cycle_duration_seconds",
		Help:    "Wall time of a full watch cycle.",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(
		cycles, fetched, newListings, skipped, notifications, seenSize, duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:         registry,
		CyclesTotal:      cycles,
		FetchedTotal:     fetched,
		NewTotal:         newListings,
		SkippedTotal:     skipped,
		NotificationsTot: notifications,
		SeenSetSize:      seenSize,
		CycleDuration:    duration,
	}
}

func (m *Metrics) IncCycle(outcome string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddFetched(n int) {
	if m == nil {
		return
	}
	m.FetchedTotal.Add(float64(n))
}

func (m *Metrics) AddNew(n int) {
	if m == nil {
		return
	}
	m.NewTotal.Add(float64(n))
}

// AddSkipped records n listings dropped for reason. Zero counts are ignored.
func (m *Metrics) AddSkipped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) IncNotification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTot.WithLabelValues(result).Inc()
}

func (m *Metrics) SetSeenSetSize(n int) {
	if m == nil {
		return
	}
	m.SeenSetSize.Set(float64(n))
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}
