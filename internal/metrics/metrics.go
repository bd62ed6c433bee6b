package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Database Metrics
	// ==========================================================================
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// ==========================================================================
	// Ingest Metrics
	// ==========================================================================
	IngestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "Total number of raw inventory rows ingested",
		},
		[]string{"location", "outcome"}, // outcome: upserted (the only value ingest records)
	)

	IngestBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_duration_seconds",
			Help:    "Time to ingest one manifest batch",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	ActiveManifestSwitchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "active_manifest_switches_total",
			Help: "Total number of import manifest activations",
		},
	)

	// ==========================================================================
	// Order Resolver Metrics
	// ==========================================================================
	CAOResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cao_resolutions_total",
			Help: "Total number of VIN classification decisions made by the resolver",
		},
		[]string{"dealership", "action", "reason"},
	)

	CAOResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cao_resolution_duration_seconds",
			Help:    "Time to resolve one dealership's full candidate list",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"dealership", "mode"},
	)

	VINLogAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vin_log_appends_total",
			Help: "Total number of VIN log rows appended",
		},
		[]string{"dealership", "order_type"},
	)

	// ==========================================================================
	// Emitter Metrics
	// ==========================================================================
	EmitRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emit_runs_total",
			Help: "Total number of order runs emitted",
		},
		[]string{"dealership", "status"},
	)

	EmitQRGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emit_qr_generated_total",
			Help: "Total number of QR code artifacts generated",
		},
		[]string{"dealership"},
	)

	// ==========================================================================
	// Scraper Orchestrator Metrics
	// ==========================================================================
	ScraperAdapterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_adapter_duration_seconds",
			Help:    "Time for one scraper adapter to complete",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"adapter", "success"},
	)

	ScraperSessionVehiclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_session_vehicles_total",
			Help: "Total number of vehicles observed across scraper sessions",
		},
		[]string{"adapter", "data_class"},
	)

	ScraperWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_workers_active",
			Help: "Number of currently active scraper adapter workers",
		},
	)

	// ==========================================================================
	// Queue Processor Metrics
	// ==========================================================================
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_processor_depth",
			Help: "Current depth of the order queue",
		},
	)

	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_total",
			Help: "Total number of queued order jobs processed",
		},
		[]string{"status"},
	)

	// ==========================================================================
	// Realtime Broker Metrics
	// ==========================================================================
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active scraper-session SSE connections",
		},
	)

	SSESubscribersPerSession = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sse_subscribers_per_session",
			Help:    "Number of SSE subscribers per scraper session when broadcasting",
			Buckets: []float64{1, 2, 5, 10, 25, 50},
		},
	)

	// ==========================================================================
	// Vehicle Metrics
	// ==========================================================================
	VehiclesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vehicles_total",
			Help: "Total number of normalized vehicle rows by location",
		},
		[]string{"location"},
	)

	// ==========================================================================
	// External API Metrics
	// ==========================================================================
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_calls_total",
			Help: "Total external API calls",
		},
		[]string{"service", "endpoint", "status"},
	)

	ExternalAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_api_latency_seconds",
			Help:    "External API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "endpoint"},
	)
)

