package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

func serve(t *testing.T, h http.Handler, method, path, body string, actor bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor {
		req = req.WithContext(shared.ContextWithActor(req.Context(), keeper))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerStockAndMovements(t *testing.T) {
	repo := newMemoryRepo(false, 1, 2)
	seed(t, repo, 1, "10")
	svc := NewService(repo, nil, nil, nil, nil)
	r := chi.NewRouter()
	r.Route("/api", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)

	rec := serve(t, r, http.MethodPost, "/api/warehouses/1/movements", `{"type":"ISSUE","material_id":9,"unit_id":1,"quantity":"-4"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, r, http.MethodPost, "/api/warehouses/1/movements", `{"type":"RECEIPT","material_id":9,"unit_id":1,"quantity":"4"}`, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, http.MethodPost, "/api/warehouses/1/movements", `{"type":"ISSUE","material_id":9,"unit_id":1,"quantity":"-40"}`, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "negative_stock", problem.Code)

	rec = serve(t, r, http.MethodPost, "/api/warehouses/1/movements", `{"type":"ISSUE","material_id":9,"unit_id":1,"quantity":"-1"}`, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, r, http.MethodPost, "/api/warehouses/1/transfers", `{"dst_warehouse_id":2,"material_id":9,"unit_id":1,"quantity":"2"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, r, http.MethodGet, "/api/warehouses/1/stock", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []Stock `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "4", body.Items[0].Quantity.String())

	rec = serve(t, r, http.MethodGet, "/api/warehouses/9/stock", "", false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, http.MethodGet, "/api/warehouses/1/movements?from=yesterday", "", false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, http.MethodGet, "/api/warehouses/1/movements?limit=2", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var movements struct {
		Items []Movement `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &movements))
	require.Len(t, movements.Items, 2)
	require.Equal(t, MovementTransferOut, movements.Items[0].Type)
}
