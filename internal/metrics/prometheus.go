// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconcileRuns tracks reconciliation passes by outcome.
	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "business_hours_reconcile_runs_total",
			Help: "Total business hour reconciliation passes by outcome",
		},
		[]string{"status"},
	)

	// ReconcileDuration tracks reconciliation pass duration.
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "business_hours_reconcile_duration_seconds",
			Help:    "Business hour reconciliation pass duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// OpenBusinessHours tracks the size of the current "must be open" set.
	OpenBusinessHours = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "business_hours_open",
			Help: "Current number of open business hours",
		},
	)

	// TriggerEvents tracks scheduler-driven open/close trigger events.
	TriggerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "business_hours_trigger_events_total",
			Help: "Total scheduler trigger events by action and status",
		},
		[]string{"action", "status"},
	)

	// AgentStatusRefreshes tracks agent livechat status recompute passes.
	AgentStatusRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_status_refreshes_total",
			Help: "Total agent livechat status recompute passes",
		},
	)

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DatabaseQueryDuration tracks database query duration.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// RegisterMetricsEndpoint registers the /metrics endpoint on a Gin router.
func RegisterMetricsEndpoint(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// MetricsHandler returns the Prometheus HTTP handler.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordReconcileRun records a reconciliation pass outcome.
func RecordReconcileRun(status string) {
	ReconcileRuns.WithLabelValues(status).Inc()
}

// RecordReconcileDuration records reconciliation pass duration.
func RecordReconcileDuration(seconds float64) {
	ReconcileDuration.Observe(seconds)
}

// SetOpenBusinessHours sets the size of the current open set.
func SetOpenBusinessHours(count float64) {
	OpenBusinessHours.Set(count)
}

// RecordTriggerEvent records a scheduler trigger event.
func RecordTriggerEvent(action, status string) {
	TriggerEvents.WithLabelValues(action, status).Inc()
}

// RecordAgentStatusRefresh records an agent status recompute pass.
func RecordAgentStatusRefresh() {
	AgentStatusRefreshes.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(method, path string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordDatabaseQuery records a database query duration.
func RecordDatabaseQuery(operation string, seconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(seconds)
}
