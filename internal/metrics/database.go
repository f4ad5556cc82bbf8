package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DBQueryDuration measures guarded unit-of-work duration by operation.
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "modekeeper_db_query_duration_seconds",
			Help: "Database unit of work duration in seconds",
			// Buckets optimized for database queries: 100µs to 10s
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"operation"},
	)

	// DBQueriesTotal counts units of work by operation and status.
	DBQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modekeeper_db_queries_total",
			Help: "Total number of database units of work",
		},
		[]string{"operation", "status"},
	)

	// DBFatalErrors counts storage errors that triggered self-termination.
	DBFatalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modekeeper_storage_fatal_errors_total",
			Help: "Total number of unrecoverable storage errors",
		},
		[]string{"code"},
	)

	// DBConnectionsOpen tracks currently open database connections.
	DBConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modekeeper_db_connections_open",
			Help: "Number of currently open database connections",
		},
	)

	// DBConnectionsInUse tracks database connections currently in use.
	DBConnectionsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modekeeper_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)
)

// registerDatabaseMetrics registers all database-related metrics.
func registerDatabaseMetrics() error {
	return register(
		DBQueryDuration,
		DBQueriesTotal,
		DBFatalErrors,
		DBConnectionsOpen,
		DBConnectionsInUse,
	)
}
