package metrics

import (
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordResponseSize records the size of an HTTP response body
func (r *Registry) RecordResponseSize(method, route string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, route).Observe(size)
}

// IncHTTPRequestsInFlight marks an HTTP request as started
func (r *Registry) IncHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks an HTTP request as finished
func (r *Registry) DecHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Dec()
}

// ObserveIngest records what one successful ingest request staged.
func (r *Registry) ObserveIngest(batches int, rows int64) {
	r.IngestBatchesPerRequest.Observe(float64(batches))
	r.IngestRowsPerRequest.Observe(float64(rows))
}

// IngestRejected counts an ingest request that failed with reason.
func (r *Registry) IngestRejected(reason string) {
	r.IngestRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveAppend records one registry append.
func (r *Registry) ObserveAppend(status string, elapsed time.Duration, rows, bytes int64) {
	r.AppendsTotal.WithLabelValues(status).Inc()
	r.AppendDuration.Observe(elapsed.Seconds())
	r.AppendedRowsTotal.Add(float64(rows))
	r.AppendedBytesTotal.Add(float64(bytes))
}

// WriterOpened records a newly opened staged file.
func (r *Registry) WriterOpened() {
	r.WritersOpenedTotal.Inc()
	r.OpenWriters.Inc()
}

// WriterClosed records a staged file leaving its slot.
func (r *Registry) WriterClosed(reason string) {
	r.WritersClosedTotal.WithLabelValues(reason).Inc()
	r.OpenWriters.Dec()
}

// ObserveFlush records one flush-all run.
func (r *Registry) ObserveFlush(elapsed time.Duration, finalized, failed int) {
	r.FlushesTotal.Inc()
	r.FlushDuration.Observe(elapsed.Seconds())
	r.FinalizedFilesTotal.WithLabelValues("success").Add(float64(finalized))
	r.FinalizedFilesTotal.WithLabelValues("error").Add(float64(failed))
}

// StreamDeleted records a stream deletion.
func (r *Registry) StreamDeleted() {
	r.StreamsDeletedTotal.Inc()
}

// UpdateSystemMetrics refreshes the uptime gauge. Runtime stats are
// collected on scrape.
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	r.UptimeSeconds.Set(time.Since(startTime).Seconds())
}

// UpdateDiskUsage walks root and sets the staging disk usage gauge.
func (r *Registry) UpdateDiskUsage(root string) error {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// Removed while walking.
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return err
	}
	r.StagingDiskUsageBytes.Set(float64(total))
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
