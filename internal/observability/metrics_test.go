package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/shared"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("integrity.scan").End(nil)

	require.Contains(t, scrape(t, metrics), "sitestock_jobs_total")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `sitestock_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `sitestock_http_request_duration_seconds_bucket{route="/test"`)
}

func TestOperationLabelsOutcomeByErrorCode(t *testing.T) {
	metrics := NewMetrics()
	metrics.Operation("requests", "sign", nil)
	metrics.Operation("requests", "sign", shared.Conflict("already_approved", "slot already approved"))
	metrics.Operation("requests", "sign", errors.New("db down"))
	metrics.AddQuantity("received", decimal.RequireFromString("12.5"))

	body := scrape(t, metrics)
	require.Contains(t, body, `sitestock_workflow_operations_total{action="sign",module="requests",outcome="ok"} 1`)
	require.Contains(t, body, `sitestock_workflow_operations_total{action="sign",module="requests",outcome="already_approved"} 1`)
	require.Contains(t, body, `sitestock_workflow_operations_total{action="sign",module="requests",outcome="error"} 1`)
	require.True(t, strings.Contains(body, `sitestock_workflow_quantity_total{flow="received"} 12.5`))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var metrics *Metrics
	metrics.Operation("orders", "create", nil)
	metrics.AddQuantity("ordered", decimal.NewFromInt(1))
	require.Nil(t, metrics.Jobs())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
