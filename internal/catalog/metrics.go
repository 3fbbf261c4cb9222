package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks sync and reconciliation outcomes.
type Metrics struct {
	// Per-movie sync outcomes by list kind: inserted, existing, skipped
	SyncedMovies *prometheus.CounterVec

	// Page fetches by list kind and status: ok, error
	SyncPages *prometheus.CounterVec

	// Ranking entries by outcome: matched, unmatched, failed
	ReconcileEntries *prometheus.CounterVec

	ReconcileLatency prometheus.Histogram
}

// NewMetrics registers the catalog metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncedMovies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesocial_catalog_synced_movies_total",
			Help: "Movies processed by catalog sync by list kind and outcome",
		}, []string{"kind", "outcome"}),

		SyncPages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesocial_catalog_sync_pages_total",
			Help: "Listing pages fetched by catalog sync by list kind and status",
		}, []string{"kind", "status"}),

		ReconcileEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesocial_catalog_reconcile_entries_total",
			Help: "Daily ranking entries processed by reconciliation by outcome",
		}, []string{"outcome"}),

		ReconcileLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cinesocial_catalog_reconcile_duration_seconds",
			Help:    "Duration of a full daily ranking reconciliation",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) movie(kind, outcome string) {
	if m != nil {
		m.SyncedMovies.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) page(kind, status string) {
	if m != nil {
		m.SyncPages.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) entry(outcome string) {
	if m != nil {
		m.ReconcileEntries.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) reconcileTook(d time.Duration) {
	if m != nil {
		m.ReconcileLatency.Observe(d.Seconds())
	}
}
