package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// initSystemMetrics registers process level series. Go runtime and process
// stats come from the stock collectors and keep their go_ and process_
// names so existing dashboards apply.
func (r *Registry) initSystemMetrics() {
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r.UptimeSeconds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "logstage_uptime_seconds",
			Help: "Seconds since the ingest server started",
		},
	)

	r.BuildInfo = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logstage_build_info",
			Help: "Always 1; labelled with the Go version the binary was built with",
		},
		[]string{"go_version"},
	)
	r.BuildInfo.WithLabelValues(runtime.Version()).Set(1)
}
