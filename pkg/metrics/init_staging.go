package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStagingMetrics() {
	r.AppendsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "logstage_appends_total",
			Help: "Total number of batch appends by outcome",
		},
		[]string{"status"},
	)

	r.AppendDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logstage_append_duration_seconds",
			Help:    "Batch append latency in seconds, including file creation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	r.AppendedRowsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "logstage_appended_rows_total",
			Help: "Total number of rows written to staged files",
		},
	)

	r.AppendedBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "logstage_appended_bytes_total",
			Help: "Total number of encoded bytes written to staged files",
		},
	)

	r.WritersOpenedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "logstage_writers_opened_total",
			Help: "Total number of staged files opened",
		},
	)

	r.WritersClosedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "logstage_writers_closed_total",
			Help: "Total number of staged files closed, by reason",
		},
		[]string{"reason"},
	)

	r.OpenWriters = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "logstage_open_writers",
			Help: "Number of staged files currently open",
		},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "logstage_flushes_total",
			Help: "Total number of flush-all runs",
		},
	)

	r.FlushDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logstage_flush_duration_seconds",
			Help:    "Flush-all duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.FinalizedFilesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "logstage_finalized_files_total",
			Help: "Total number of staged files finalized by flush-all, by outcome",
		},
		[]string{"status"},
	)

	r.StreamsDeletedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "logstage_streams_deleted_total",
			Help: "Total number of streams whose writers were dropped",
		},
	)

	r.StagingDiskUsageBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "logstage_staging_disk_usage_bytes",
			Help: "Disk space used by the staging directory in bytes",
		},
	)
}
