package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for engine self-monitoring.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// View metrics
	ViewBuildDuration *prometheus.HistogramVec
	ViewCyclesTotal   *prometheus.CounterVec
	ViewSizeBytes     *prometheus.HistogramVec
	WorkerState       *prometheus.GaugeVec

	// Orchestration API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	DegradedCallsTotal *prometheus.CounterVec
	MetricsAPIDuration prometheus.Histogram
	ClusterReachable   prometheus.Gauge

	// Parsing metrics
	ParseWarningsTotal *prometheus.CounterVec

	// Registry metrics
	ProfilesLoaded       *prometheus.GaugeVec
	ContextSwitchesTotal *prometheus.CounterVec

	// Notification metrics
	NotificationsPublishedTotal *prometheus.CounterVec
	NotificationsDroppedTotal   prometheus.Counter

	// Compression metrics
	CompressionRatio    prometheus.Gauge
	CompressionDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	sizeBuckets := prometheus.ExponentialBuckets(256, 4, 10)

	m := &Metrics{
		Registry: reg,

		ViewBuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kubesight_view_build_duration_seconds",
			Help:    "Duration of view snapshot builds in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		ViewCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubesight_view_cycles_total",
			Help: "Total number of refresh cycles by outcome.",
		}, []string{"view", "status"}),
		ViewSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kubesight_view_size_bytes",
			Help:    "Size of served view payloads in bytes.",
			Buckets: sizeBuckets,
		}, []string{"encoding"}),
		WorkerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kubesight_worker_state",
			Help: "Current worker state (1 = active, 0 = inactive).",
		}, []string{"view", "state"}),

		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubesight_api_requests_total",
			Help: "Total number of orchestration API requests by method and status class.",
		}, []string{"method", "code"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kubesight_api_request_duration_seconds",
			Help:    "Duration of orchestration API requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		DegradedCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubesight_degraded_calls_total",
			Help: "Total number of facade calls that degraded to a default result.",
		}, []string{"op", "code"}),
		MetricsAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubesight_metrics_api_duration_seconds",
			Help:    "Duration of metrics API calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		ClusterReachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kubesight_cluster_reachable",
			Help: "Result of the last connectivity probe (1 = reachable).",
		}),

		ParseWarningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubesight_parse_warnings_total",
			Help: "Total number of quantity strings that could not be parsed.",
		}, []string{"kind"}),

		ProfilesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kubesight_profiles_loaded",
			Help: "Number of connection profiles currently known, by kind.",
		}, []string{"kind"}),
		ContextSwitchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubesight_context_switches_total",
			Help: "Total number of context switch attempts.",
		}, []string{"status"}),

		NotificationsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubesight_notifications_published_total",
			Help: "Total number of change notifications published.",
		}, []string{"type"}),
		NotificationsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kubesight_notifications_dropped_total",
			Help: "Total number of notifications dropped for slow subscribers.",
		}),

		CompressionRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kubesight_compression_ratio",
			Help: "Last view compression ratio (compressed/original).",
		}),
		CompressionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubesight_compression_duration_seconds",
			Help:    "Duration of view compression in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ViewBuildDuration,
		m.ViewCyclesTotal,
		m.ViewSizeBytes,
		m.WorkerState,
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.DegradedCallsTotal,
		m.MetricsAPIDuration,
		m.ClusterReachable,
		m.ParseWarningsTotal,
		m.ProfilesLoaded,
		m.ContextSwitchesTotal,
		m.NotificationsPublishedTotal,
		m.NotificationsDroppedTotal,
		m.CompressionRatio,
		m.CompressionDuration,
	)

	return m
}
