package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP series are labelled by mux route pattern, never by raw URL path, so
// stream names do not multiply series.
func (r *Registry) initHTTPMetrics() {
	factory := promauto.With(r.registry)

	r.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logstage_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	r.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "logstage_http_request_duration_seconds",
			Help: "HTTP request latency in seconds, including staging of every batch in the body",
			// Ingest bodies can carry many batches; reach further than DefBuckets.
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
		},
		[]string{"method", "route", "status"},
	)

	r.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "logstage_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	r.HTTPResponseSizeBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logstage_http_response_size_bytes",
			Help:    "HTTP response body size in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 6),
		},
		[]string{"method", "route"},
	)

	r.IngestBatchesPerRequest = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logstage_ingest_batches_per_request",
			Help:    "Record batches staged from one ingest request body",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	r.IngestRowsPerRequest = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logstage_ingest_rows_per_request",
			Help:    "Rows staged from one ingest request body",
			Buckets: prometheus.ExponentialBuckets(1, 8, 8),
		},
	)

	r.IngestRejectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logstage_ingest_rejected_total",
			Help: "Ingest requests refused before or while staging, by reason",
		},
		[]string{"reason"},
	)
}
