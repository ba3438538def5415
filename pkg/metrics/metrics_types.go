package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Ingest Metrics
	IngestBatchesPerRequest prometheus.Histogram
	IngestRowsPerRequest    prometheus.Histogram
	IngestRejectedTotal     *prometheus.CounterVec

	// Staging Metrics
	AppendsTotal          *prometheus.CounterVec
	AppendDuration        prometheus.Histogram
	AppendedRowsTotal     prometheus.Counter
	AppendedBytesTotal    prometheus.Counter
	WritersOpenedTotal    prometheus.Counter
	WritersClosedTotal    *prometheus.CounterVec
	OpenWriters           prometheus.Gauge
	FlushesTotal          prometheus.Counter
	FlushDuration         prometheus.Histogram
	FinalizedFilesTotal   *prometheus.CounterVec
	StreamsDeletedTotal   prometheus.Counter
	StagingDiskUsageBytes prometheus.Gauge

	// System Metrics
	UptimeSeconds prometheus.Gauge
	BuildInfo     *prometheus.GaugeVec

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initHTTPMetrics()
	r.initStagingMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
