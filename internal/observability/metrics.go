package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rainarea"

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh pipeline.
type Metrics struct {
	// Fetch metrics.
	FetchAttempts *prometheus.CounterVec   // labels: mirror, outcome={success,not_found,timeout,content_type,decode,upstream,breaker_open}
	FetchDuration *prometheus.HistogramVec // labels: mirror
	BreakerState  *prometheus.GaugeVec     // labels: mirror; 0 closed, 1 half-open, 2 open

	// Refresh metrics.
	RefreshRuns       *prometheus.CounterVec // labels: outcome={updated,unchanged,failed}
	TicksSkipped      prometheus.Counter
	FallbackDepth     prometheus.Histogram
	VectorizeDuration prometheus.Histogram
	CurrentSlot       prometheus.Gauge
	Coverage          *prometheus.GaugeVec // labels: scope={all,region}
	PolygonCount      prometheus.Gauge

	// Historical lookups.
	HistoryCache *prometheus.CounterVec // labels: result={hit,miss,rejected}

	SnapshotsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Radar image download attempts by mirror and outcome.",
		}, []string{"mirror", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Radar image request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"mirror"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mirror_breaker_state",
			Help:      "Circuit breaker state per mirror (0 closed, 1 half-open, 2 open).",
		}, []string{"mirror"}),
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Refresh ticks by outcome.",
		}, []string{"outcome"}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_ticks_skipped_total",
			Help:      "Ticks dropped because the previous refresh was still running.",
		}),
		FallbackDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_fallback_depth",
			Help:      "How many slots back the served snapshot was found.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 10, 24},
		}),
		VectorizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vectorize_duration_seconds",
			Help:      "Duration of raster classification and polygon union.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		CurrentSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_slot",
			Help:      "Slot ID (yyyymmddHHMM) of the cached snapshot.",
		}),
		Coverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_percent",
			Help:      "Rain coverage of the cached snapshot.",
		}, []string{"scope"}),
		PolygonCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polygons",
			Help:      "Polygons in the cached snapshot across all color layers.",
		}),
		HistoryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_cache_total",
			Help:      "Historical snapshot lookups by result.",
		}, []string{"result"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshot events written to Kafka.",
		}),
	}

	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchDuration,
		m.BreakerState,
		m.RefreshRuns,
		m.TicksSkipped,
		m.FallbackDepth,
		m.VectorizeDuration,
		m.CurrentSlot,
		m.Coverage,
		m.PolygonCount,
		m.HistoryCache,
		m.SnapshotsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchAttempts:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_attempts_total"}, []string{"mirror", "outcome"}),
		FetchDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}, []string{"mirror"}),
		BreakerState:       prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "mirror_breaker_state"}, []string{"mirror"}),
		RefreshRuns:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "refresh_runs_total"}, []string{"outcome"}),
		TicksSkipped:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "refresh_ticks_skipped_total"}),
		FallbackDepth:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "refresh_fallback_depth"}),
		VectorizeDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "vectorize_duration_seconds"}),
		CurrentSlot:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "current_slot"}),
		Coverage:           prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "coverage_percent"}, []string{"scope"}),
		PolygonCount:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "polygons"}),
		HistoryCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "history_cache_total"}, []string{"result"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "snapshots_published_total"}),
	}
}
