// Package api provides the HTTP surface of a modekeeper node.
//
// This package wires routing, middleware and handlers: health probes, the
// status board, Prometheus metrics and the operator endpoints for mode
// changes and cluster registry administration.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/api/handlers"
	"github.com/yaroslav/modekeeper/internal/api/middleware"
	"github.com/yaroslav/modekeeper/internal/metrics"
	"github.com/yaroslav/modekeeper/pkg/token"
)

const (
	// DefaultRateLimit is the per-IP request rate.
	DefaultRateLimit = 20.0

	// DefaultRateBurst is the per-IP burst size.
	DefaultRateBurst = 40
)

// Coordinator is what the router needs from the mode coordinator.
type Coordinator interface {
	handlers.ModeView
	handlers.ModeSetter
}

// RouterConfig holds configuration for setting up the HTTP router.
type RouterConfig struct {
	// Logger is the Zap logger for request logging.
	Logger *zap.Logger

	// NodeName is this node's registry name.
	NodeName string

	// DB answers readiness pings.
	DB handlers.Pinger

	// Coordinator owns the effective mode.
	Coordinator Coordinator

	// Board is the presence shown on /status.
	Board *StatusBoard

	// Nodes is the cluster registry.
	Nodes handlers.NodeStore

	// StaleAfter is the heartbeat age reported as unhealthy.
	StaleAfter time.Duration

	// Operator verifies the operator token on admin endpoints.
	Operator *token.Verifier

	// RateLimit and RateBurst configure per-IP limiting. Zero uses defaults.
	RateLimit float64
	RateBurst int
}

// SetupRouter creates and configures the Gin HTTP router with all routes and middleware.
//
// This function sets up:
// - Global middleware (recovery, metrics, logging, rate limiting)
// - Health check and status endpoints (no auth required)
// - Cluster listing (no auth required)
// - Mode and cluster administration endpoints (operator token auth)
//
// The rate limiter's cleanup goroutine stops when ctx is done.
func SetupRouter(ctx context.Context, config *RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	// Metrics middleware (should be early to capture all requests)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(config.Logger))

	rps, burst := config.RateLimit, config.RateBurst
	if rps <= 0 {
		rps = DefaultRateLimit
	}
	if burst <= 0 {
		burst = DefaultRateBurst
	}
	router.Use(middleware.RateLimitByIP(rps, burst, ctx.Done()))

	healthHandler := handlers.NewHealthHandler(config.DB, config.NodeName)
	statusHandler := handlers.NewStatusHandler(config.Coordinator, config.Board)
	modeHandler := handlers.NewModeHandler(config.Coordinator)
	clusterHandler := handlers.NewClusterHandler(config.Nodes, config.StaleAfter)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry,
		promhttp.HandlerOpts{},
	)))

	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Liveness)
		health.GET("/ready", healthHandler.Readiness)
	}

	router.GET("/status", statusHandler.Status)

	v1 := router.Group("/api/v1")
	requireOperator := middleware.RequireOperatorToken(config.Operator)

	// POST /api/v1/mode - Change the bot mode
	v1.POST("/mode", requireOperator, modeHandler.SetMode)

	cluster := v1.Group("/cluster/nodes")
	{
		// GET /api/v1/cluster/nodes - List registry rows
		cluster.GET("", clusterHandler.ListNodes)

		// POST /api/v1/cluster/nodes/:name/transfer - Force a handoff
		cluster.POST("/:name/transfer", requireOperator, clusterHandler.Transfer)

		// POST /api/v1/cluster/nodes/:name/disable - Remove from failover
		cluster.POST("/:name/disable", requireOperator, clusterHandler.Disable)

		// POST /api/v1/cluster/nodes/:name/enable - Return to failover
		cluster.POST("/:name/enable", requireOperator, clusterHandler.Enable)
	}

	return router
}
