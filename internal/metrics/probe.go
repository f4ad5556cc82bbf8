package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ProbeWrites counts probe writes by kind (status, heartbeat) and result.
	ProbeWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modekeeper_probe_writes_total",
			Help: "Total number of probe writes",
		},
		[]string{"kind", "result"},
	)

	// ProbeSignals counts mode candidates read from probes at startup.
	ProbeSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modekeeper_probe_signals_total",
			Help: "Total number of mode candidates found in probes",
		},
		[]string{"mode"},
	)
)

// registerProbeMetrics registers probe metrics.
func registerProbeMetrics() error {
	return register(ProbeWrites, ProbeSignals)
}
