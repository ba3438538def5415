package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dd0wney/cluso-logstage/pkg/writer"
)

var _ writer.Observer = (*Registry)(nil)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	// Verify all metrics are initialized
	if r.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if r.AppendsTotal == nil {
		t.Error("AppendsTotal not initialized")
	}
	if r.OpenWriters == nil {
		t.Error("OpenWriters not initialized")
	}
	if r.UptimeSeconds == nil {
		t.Error("UptimeSeconds not initialized")
	}
	if r.IngestRejectedTotal == nil {
		t.Error("IngestRejectedTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	// Should return the same instance
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	r := NewRegistry()

	r.RecordHTTPRequest("POST", "/api/v1/logstream/{stream}", "200", 100*time.Millisecond)
	r.RecordHTTPRequest("POST", "/api/v1/logstream/{stream}", "200", 200*time.Millisecond)
	r.RecordHTTPRequest("POST", "/api/v1/logstream/{stream}", "400", 50*time.Millisecond)

	counter, err := r.HTTPRequestsTotal.GetMetricWithLabelValues("POST", "/api/v1/logstream/{stream}", "200")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := counterValue(t, counter); got != 2 {
		t.Errorf("Counter value = %v, want 2", got)
	}

	histogram, err := r.HTTPRequestDuration.GetMetricWithLabelValues("POST", "/api/v1/logstream/{stream}", "200")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}
	var metric dto.Metric
	if err := histogram.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("Sample count = %v, want 2", metric.Histogram.GetSampleCount())
	}
}

func TestObserveAppend(t *testing.T) {
	r := NewRegistry()

	r.ObserveAppend("success", time.Millisecond, 10, 1024)
	r.ObserveAppend("success", 2*time.Millisecond, 5, 512)
	r.ObserveAppend("encoding", time.Millisecond, 0, 0)

	success, _ := r.AppendsTotal.GetMetricWithLabelValues("success")
	if got := counterValue(t, success); got != 2 {
		t.Errorf("success appends = %v, want 2", got)
	}
	failed, _ := r.AppendsTotal.GetMetricWithLabelValues("encoding")
	if got := counterValue(t, failed); got != 1 {
		t.Errorf("encoding appends = %v, want 1", got)
	}
	if got := counterValue(t, r.AppendedRowsTotal); got != 15 {
		t.Errorf("rows = %v, want 15", got)
	}
	if got := counterValue(t, r.AppendedBytesTotal); got != 1536 {
		t.Errorf("bytes = %v, want 1536", got)
	}

	var metric dto.Metric
	if err := r.AppendDuration.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("append duration samples = %v, want 3", metric.Histogram.GetSampleCount())
	}
}

func TestWriterLifecycleMetrics(t *testing.T) {
	r := NewRegistry()

	r.WriterOpened()
	r.WriterOpened()
	r.WriterOpened()
	r.WriterClosed("finalized")
	r.WriterClosed("discarded")

	if got := gaugeValue(t, r.OpenWriters); got != 1 {
		t.Errorf("open writers = %v, want 1", got)
	}
	if got := counterValue(t, r.WritersOpenedTotal); got != 3 {
		t.Errorf("opened = %v, want 3", got)
	}
	finalized, _ := r.WritersClosedTotal.GetMetricWithLabelValues("finalized")
	if got := counterValue(t, finalized); got != 1 {
		t.Errorf("closed{finalized} = %v, want 1", got)
	}

	r.ObserveFlush(10*time.Millisecond, 4, 1)
	r.StreamDeleted()

	if got := counterValue(t, r.FlushesTotal); got != 1 {
		t.Errorf("flushes = %v, want 1", got)
	}
	ok, _ := r.FinalizedFilesTotal.GetMetricWithLabelValues("success")
	if got := counterValue(t, ok); got != 4 {
		t.Errorf("finalized{success} = %v, want 4", got)
	}
	bad, _ := r.FinalizedFilesTotal.GetMetricWithLabelValues("error")
	if got := counterValue(t, bad); got != 1 {
		t.Errorf("finalized{error} = %v, want 1", got)
	}
	if got := counterValue(t, r.StreamsDeletedTotal); got != 1 {
		t.Errorf("streams deleted = %v, want 1", got)
	}
}

func TestSystemMetrics(t *testing.T) {
	r := NewRegistry()
	r.UpdateSystemMetrics(time.Now().Add(-time.Hour))

	if got := gaugeValue(t, r.UptimeSeconds); got < 3600 {
		t.Errorf("uptime = %v, want >= 3600", got)
	}

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"go_goroutines", "go_memstats_alloc_bytes", "logstage_build_info"} {
		if !names[want] {
			t.Errorf("metric %s not exported", want)
		}
	}
}

func TestIngestMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveIngest(3, 300)
	r.ObserveIngest(1, 10)
	r.IngestRejected("body_too_large")
	r.IngestRejected("body_too_large")
	r.IngestRejected("encoding")

	var metric dto.Metric
	if err := r.IngestBatchesPerRequest.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if got := metric.Histogram.GetSampleCount(); got != 2 {
		t.Errorf("ingest requests observed = %d, want 2", got)
	}
	if got := metric.Histogram.GetSampleSum(); got != 4 {
		t.Errorf("batches sum = %v, want 4", got)
	}

	tooLarge, _ := r.IngestRejectedTotal.GetMetricWithLabelValues("body_too_large")
	if got := counterValue(t, tooLarge); got != 2 {
		t.Errorf("body_too_large = %v, want 2", got)
	}
	encoding, _ := r.IngestRejectedTotal.GetMetricWithLabelValues("encoding")
	if got := counterValue(t, encoding); got != 1 {
		t.Errorf("encoding = %v, want 1", got)
	}
}

func TestUpdateDiskUsage(t *testing.T) {
	r := NewRegistry()
	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "orders"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "orders", "a.data.arrows"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.data.arrows"), make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.UpdateDiskUsage(root); err != nil {
		t.Fatalf("UpdateDiskUsage() = %v", err)
	}
	if got := gaugeValue(t, r.StagingDiskUsageBytes); got != 150 {
		t.Errorf("disk usage = %v, want 150", got)
	}

	if err := r.UpdateDiskUsage(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestGetPrometheusRegistry(t *testing.T) {
	r := NewRegistry()
	promRegistry := r.GetPrometheusRegistry()

	if promRegistry == nil {
		t.Fatal("GetPrometheusRegistry() returned nil")
	}

	metrics, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(metrics) == 0 {
		t.Error("No metrics registered")
	}

	// Unlabelled metrics are exported from the start.
	expectedMetrics := []string{
		"logstage_open_writers",
		"logstage_appended_rows_total",
		"logstage_uptime_seconds",
	}

	metricNames := make(map[string]bool)
	for _, m := range metrics {
		metricNames[m.GetName()] = true
	}
	for _, expected := range expectedMetrics {
		if !metricNames[expected] {
			t.Errorf("Expected metric %s not found", expected)
		}
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveAppend("success", time.Millisecond, 3, 300)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `logstage_appends_total{status="success"} 1`) {
		t.Errorf("exposition missing appends counter:\n%s", body)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ObserveAppend("success", time.Microsecond, 1, 10)
				r.WriterOpened()
				r.WriterClosed("finalized")
			}
		}()
	}
	wg.Wait()

	success, _ := r.AppendsTotal.GetMetricWithLabelValues("success")
	if got := counterValue(t, success); got != 1000 {
		t.Errorf("appends = %v, want 1000", got)
	}
	if got := gaugeValue(t, r.OpenWriters); got != 0 {
		t.Errorf("open writers = %v, want 0", got)
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	r.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	r.ObserveAppend("success", time.Millisecond, 1, 1)

	metrics, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	// Runtime and process collectors keep their stock names.
	for _, m := range metrics {
		name := m.GetName()
		if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") {
			continue
		}
		if !strings.HasPrefix(name, "logstage_") {
			t.Errorf("Metric %s does not have logstage_ prefix", name)
		}
	}
}

func BenchmarkObserveAppend(b *testing.B) {
	r := NewRegistry()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r.ObserveAppend("success", time.Millisecond, 100, 4096)
	}
}
