// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	RegisterMetricsEndpoint(router)

	// Test that /metrics endpoint works
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestMetricsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := MetricsHandler()

	require.NotNil(t, handler)
}

func TestRecordReconcileRun(t *testing.T) {
	before := testutil.ToFloat64(ReconcileRuns.WithLabelValues("ok"))

	RecordReconcileRun("ok")
	RecordReconcileRun("ok")
	RecordReconcileRun("error")

	assert.Equal(t, before+2, testutil.ToFloat64(ReconcileRuns.WithLabelValues("ok")))
}

func TestRecordReconcileDuration(t *testing.T) {
	// This should not panic
	RecordReconcileDuration(0.01)
	RecordReconcileDuration(0.5)
}

func TestSetOpenBusinessHours(t *testing.T) {
	SetOpenBusinessHours(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(OpenBusinessHours))

	SetOpenBusinessHours(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(OpenBusinessHours))
}

func TestRecordTriggerEvent(t *testing.T) {
	before := testutil.ToFloat64(TriggerEvents.WithLabelValues("open", "ok"))

	RecordTriggerEvent("open", "ok")
	RecordTriggerEvent("close", "ok")
	RecordTriggerEvent("open", "error")

	assert.Equal(t, before+1, testutil.ToFloat64(TriggerEvents.WithLabelValues("open", "ok")))
}

func TestRecordAgentStatusRefresh(t *testing.T) {
	before := testutil.ToFloat64(AgentStatusRefreshes)

	RecordAgentStatusRefresh()
	RecordAgentStatusRefresh()

	assert.Equal(t, before+2, testutil.ToFloat64(AgentStatusRefreshes))
}

func TestRecordHTTPRequest(t *testing.T) {
	// This should not panic
	RecordHTTPRequest("GET", "/api/v1/business-hours", "200")
	RecordHTTPRequest("POST", "/api/v1/business-hours", "400")
	RecordHTTPRequest("GET", "/api/v1/business-hours/:id", "404")
}

func TestRecordHTTPRequestDuration(t *testing.T) {
	// This should not panic
	RecordHTTPRequestDuration("GET", "/api/v1/business-hours", 0.05)
	RecordHTTPRequestDuration("POST", "/api/v1/reconcile", 0.2)
}

func TestRecordDatabaseQuery(t *testing.T) {
	// This should not panic
	RecordDatabaseQuery("save_business_hour", 0.01)
	RecordDatabaseQuery("open_by_day_and_time", 0.002)
}
