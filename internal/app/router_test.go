package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/observability"
	"github.com/sitestock/sitestock/internal/orders"
	"github.com/sitestock/sitestock/internal/purchasing"
	"github.com/sitestock/sitestock/internal/receiving"
	"github.com/sitestock/sitestock/internal/requests"
	"github.com/sitestock/sitestock/internal/shared"
	"github.com/sitestock/sitestock/jobs"
)

func testRouter(checks map[string]HealthCheck) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger:            logger,
		Config:            &Config{AppRequestTimeout: 0, RateLimitPerMinute: 0},
		RequestsHandler:   requests.NewHandler(logger, requests.NewService(nil, nil, nil)),
		PurchasingHandler: purchasing.NewHandler(logger, purchasing.NewService(nil, nil, nil)),
		OrdersHandler:     orders.NewHandler(logger, orders.NewService(nil, nil, nil, "EUR")),
		ReceivingHandler:  receiving.NewHandler(logger, receiving.NewService(nil, nil, nil, nil, nil)),
		InventoryHandler:  inventory.NewHandler(logger, inventory.NewService(nil, nil, nil, nil, nil)),
		JobHandler:        jobs.NewHandler(nil, logger),
		Metrics:           observability.NewMetrics(),
		HealthChecks:      checks,
	})
}

func TestIdentityMiddleware(t *testing.T) {
	var got shared.Actor
	var ok bool
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "17")
	req.Header.Set(HeaderRoleID, "3")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, ok)
	require.Equal(t, shared.Actor{UserID: 17, RoleID: 3}, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "abc")
	req.Header.Set(HeaderRoleID, "3")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, ok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "17")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, ok)
}

func TestRouterRejectsAnonymousMutations(t *testing.T) {
	r := testRouter(nil)
	paths := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/projects/1/requests", `{}`},
		{http.MethodPost, "/api/requests/1/sign", ``},
		{http.MethodPut, "/api/purchasing/lines/1/price", `{}`},
		{http.MethodPost, "/api/projects/1/orders", `{}`},
		{http.MethodPost, "/api/warehouses/1/receipts", `{}`},
		{http.MethodPost, "/api/warehouses/1/movements", `{}`},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			var body io.Reader
			if p.body != "" {
				body = strings.NewReader(p.body)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, body))
			require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
		})
	}
}

func TestHealthzReportsChecks(t *testing.T) {
	r := testRouter(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, "up", body["postgres"])
	require.Equal(t, "down", body["redis"])

	rec = httptest.NewRecorder()
	testRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	r := testRouter(nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pending":0`)
}
