// Package metrics exposes Prometheus instrumentation for the screening
// pipeline. All collectors live on a private registry so tests can run
// side by side without duplicate registration panics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	screenings      prometheus.Counter
	screeningErrors prometheus.Counter
	typologyMatches *prometheus.CounterVec
	duration        prometheus.Histogram
	riskScores      prometheus.Histogram
	cacheHits       prometheus.Counter
	reportsArchived prometheus.Counter
}

// NewCollector creates a collector with every instrument registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		screenings: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_screenings_total",
			Help: "Total number of completed screening runs",
		}),
		screeningErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_screening_errors_total",
			Help: "Total number of screening runs rejected or failed",
		}),
		typologyMatches: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_typology_matches_total",
			Help: "Typology matches emitted, by typology",
		}, []string{"typology"}),
		duration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_screening_duration_seconds",
			Help:    "Wall time of one screening run",
			Buckets: prometheus.DefBuckets,
		}),
		riskScores: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_risk_score_distribution",
			Help:    "Distribution of blended risk scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		cacheHits: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_report_cache_hits_total",
			Help: "Screenings answered from the report cache",
		}),
		reportsArchived: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_reports_archived_total",
			Help: "Reports persisted to the archive",
		}),
	}
}

// RecordScreening observes one completed run.
func (c *Collector) RecordScreening(elapsed time.Duration, report *domain.ScreeningReport) {
	c.screenings.Inc()
	c.duration.Observe(elapsed.Seconds())
	c.riskScores.Observe(report.Risk.RiskScore)
	for _, m := range report.TypologyMatches {
		c.typologyMatches.WithLabelValues(string(m.Typology)).Inc()
	}
}

// RecordError counts a rejected or failed screening.
func (c *Collector) RecordError() {
	c.screeningErrors.Inc()
}

// RecordCacheHit counts a screening served from the report cache.
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordArchived counts a report written to the archive.
func (c *Collector) RecordArchived() {
	c.reportsArchived.Inc()
}

// Handler serves the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
