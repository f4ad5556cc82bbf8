package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ModeCurrent is 1 for the effective mode token and 0 for the others.
	ModeCurrent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modekeeper_mode",
			Help: "Effective bot mode (1 for the current mode token)",
		},
		[]string{"mode"},
	)

	// ModeTransitions counts mode transitions by from/to token.
	ModeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modekeeper_mode_transitions_total",
			Help: "Total number of bot mode transitions",
		},
		[]string{"from_mode", "to_mode"},
	)

	// NodeActive indicates whether this node holds the active flag.
	NodeActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modekeeper_node_active",
			Help: "Whether this node is currently the active node (1=active, 0=standby)",
		},
	)

	// HeartbeatDuration measures tick processing duration.
	HeartbeatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "modekeeper_heartbeat_duration_seconds",
			Help: "Coordinator tick duration in seconds",
			// Buckets optimized for heartbeat operations: 1ms to 1s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// HeartbeatErrors counts failed ticks.
	HeartbeatErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modekeeper_heartbeat_errors_total",
			Help: "Total number of coordinator tick errors",
		},
	)

	// LastHeartbeat tracks the timestamp of the last successful tick.
	LastHeartbeat = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modekeeper_last_heartbeat_timestamp_seconds",
			Help: "Unix timestamp of the last successful heartbeat",
		},
	)

	// ClusterNodes tracks registry rows by derived state.
	ClusterNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modekeeper_cluster_nodes",
			Help: "Number of cluster registry rows by state",
		},
		[]string{"state"},
	)
)

// registerModeMetrics registers all mode and failover metrics.
func registerModeMetrics() error {
	return register(
		ModeCurrent,
		ModeTransitions,
		NodeActive,
		HeartbeatDuration,
		HeartbeatErrors,
		LastHeartbeat,
		ClusterNodes,
	)
}

// SetMode flips the ModeCurrent gauge to the given token.
func SetMode(current string, all []string) {
	for _, m := range all {
		value := 0.0
		if m == current {
			value = 1
		}
		ModeCurrent.WithLabelValues(m).Set(value)
	}
}
