package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rpp_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// stages and the read API.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage
	StageErrors     *prometheus.CounterVec   // labels: stage

	// Fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: class, outcome={success,upstream_error}
	FetchDuration *prometheus.HistogramVec // labels: class

	// Load metrics.
	RecordsParsed   *prometheus.CounterVec // labels: class, result={ok,malformed,invalid_value,sentinel}
	EntitiesDropped *prometheus.CounterVec // labels: class, reason={no_composite,unmapped_geo}
	RowsLoaded      *prometheus.CounterVec // labels: table

	// Export and publish metrics.
	ExportRows       *prometheus.CounterVec // labels: table
	ExportFiles      prometheus.Counter
	BundlesPublished *prometheus.CounterVec // labels: target={s3,kafka}

	// Read API metrics.
	SearchRequests *prometheus.CounterVec   // labels: result={short,hit,miss}
	QueryDuration  *prometheus.HistogramVec // labels: route
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Pipeline stages that ended in a fatal error.",
		}, []string{"stage"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "BEA API requests by entity class and outcome.",
		}, []string{"class", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_request_duration_seconds",
			Help:      "BEA API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"class"}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Raw records parsed by entity class and result.",
		}, []string{"class", "result"}),
		EntitiesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_dropped_total",
			Help:      "Entities excluded from the store by class and reason.",
		}, []string{"class", "reason"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows inserted into the build store by table.",
		}, []string{"table"}),
		ExportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_rows_total",
			Help:      "Rows written to bundle files by table.",
		}, []string{"table"}),
		ExportFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_files_total",
			Help:      "Bundle files written.",
		}),
		BundlesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_published_total",
			Help:      "Bundles published by target.",
		}, []string{"target"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by result={short,hit,miss}.",
		}, []string{"result"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Read API handler duration by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"route"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.LastSuccess,
		m.StageDuration,
		m.StageErrors,
		m.FetchRequests,
		m.FetchDuration,
		m.RecordsParsed,
		m.EntitiesDropped,
		m.RowsLoaded,
		m.ExportRows,
		m.ExportFiles,
		m.BundlesPublished,
		m.SearchRequests,
		m.QueryDuration,
	}
}
