package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// HTTPBuckets for request handling latencies
	HTTPBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	// ProbeBuckets for local SQLite version probes
	ProbeBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1}

	// PublishBuckets for external sink round trips
	PublishBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
)

// Change Detection Metrics
var (
	// ProbeCyclesTotal counts probe cycles by project and result (changed, unchanged, skipped, failed)
	ProbeCyclesTotal CounterVec = noopCounterVec{}

	// ProbeDurationSeconds measures version probe latency
	ProbeDurationSeconds Histogram = NoopStat{}

	// ChangeEventsTotal counts emitted change events by project and kind
	ChangeEventsTotal CounterVec = noopCounterVec{}
)

// Broadcast Metrics
var (
	// Subscribers tracks currently registered push subscribers
	Subscribers Gauge = NoopStat{}

	// BroadcastsTotal counts broadcast fan-outs
	BroadcastsTotal Counter = NoopStat{}

	// DroppedEventsTotal counts events discarded from full subscriber queues
	DroppedEventsTotal Counter = NoopStat{}

	// KeepAlivesTotal counts keep-alive frames written to push connections
	KeepAlivesTotal Counter = NoopStat{}

	// PushDisconnectsTotal counts push connections closed by reason (client, write_error, shutdown)
	PushDisconnectsTotal CounterVec = noopCounterVec{}
)

// Sink Metrics
var (
	// SinkPublishTotal counts sink publishes by sink name and result (success, failed, filtered)
	SinkPublishTotal CounterVec = noopCounterVec{}

	// SinkPublishSeconds measures sink publish latency by sink name
	SinkPublishSeconds HistogramVec = noopHistogramVec{}

	// SinkRetriesTotal counts publish retry attempts by sink name
	SinkRetriesTotal CounterVec = noopCounterVec{}
)

// HTTP Metrics
var (
	// HTTPRequestsTotal counts requests by route and status class
	HTTPRequestsTotal CounterVec = noopCounterVec{}

	// HTTPRequestSeconds measures request handling latency by route
	HTTPRequestSeconds HistogramVec = noopHistogramVec{}
)

// Project Metrics (updated by the stats collector)
var (
	// ProjectSamples tracks live samples per open project
	ProjectSamples GaugeVec = noopGaugeVec{}

	// ProjectDataPoints tracks recorded parameter values per open project
	ProjectDataPoints GaugeVec = noopGaugeVec{}

	// OpenProjects tracks the number of open project stores
	OpenProjects Gauge = NoopStat{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	// Change Detection Metrics
	ProbeCyclesTotal = NewCounterVec(
		"probe_cycles_total",
		"Probe cycles by project and result",
		[]string{"project", "result"},
	)
	ProbeDurationSeconds = NewHistogramWithBuckets(
		"probe_duration_seconds",
		"Version probe duration in seconds",
		ProbeBuckets,
	)
	ChangeEventsTotal = NewCounterVec(
		"change_events_total",
		"Emitted change events by project and kind",
		[]string{"project", "kind"},
	)

	// Broadcast Metrics
	Subscribers = NewGauge(
		"subscribers",
		"Currently registered push subscribers",
	)
	BroadcastsTotal = NewCounter(
		"broadcasts_total",
		"Total broadcast fan-outs",
	)
	DroppedEventsTotal = NewCounter(
		"dropped_events_total",
		"Events discarded from full subscriber queues",
	)
	KeepAlivesTotal = NewCounter(
		"keepalives_total",
		"Keep-alive frames written to push connections",
	)
	PushDisconnectsTotal = NewCounterVec(
		"push_disconnects_total",
		"Push connections closed by reason",
		[]string{"reason"},
	)

	// Sink Metrics
	SinkPublishTotal = NewCounterVec(
		"sink_publish_total",
		"Sink publishes by sink and result",
		[]string{"sink", "result"},
	)
	SinkPublishSeconds = NewHistogramVec(
		"sink_publish_seconds",
		"Sink publish duration in seconds",
		[]string{"sink"},
		PublishBuckets,
	)
	SinkRetriesTotal = NewCounterVec(
		"sink_retries_total",
		"Sink publish retry attempts",
		[]string{"sink"},
	)

	// HTTP Metrics
	HTTPRequestsTotal = NewCounterVec(
		"http_requests_total",
		"HTTP requests by route and status class",
		[]string{"route", "status"},
	)
	HTTPRequestSeconds = NewHistogramVec(
		"http_request_seconds",
		"HTTP request duration in seconds",
		[]string{"route"},
		HTTPBuckets,
	)

	// Project Metrics
	ProjectSamples = NewGaugeVec(
		"project_samples",
		"Live samples per open project",
		[]string{"project"},
	)
	ProjectDataPoints = NewGaugeVec(
		"project_data_points",
		"Recorded parameter values per open project",
		[]string{"project"},
	)
	OpenProjects = NewGauge(
		"open_projects",
		"Number of open project stores",
	)
}
