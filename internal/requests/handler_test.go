package requests

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _, _ := newTestService()
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/api", handler.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, actor *shared.Actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"note":"slab","items":[{"material_type_id":1,"material_id":100,"unit_id":3,"quantity":"40"}]}`

func TestHandlerCreateSubmitSign(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/projects/7/requests", &foreman, createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusDraft, created.Status)
	require.Equal(t, "40", created.Items[0].Quantity.String())

	base := "/api/requests/" + strconv.FormatInt(created.ID, 10)
	rec = do(t, h, http.MethodPost, base+"/sign", &foreman, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/submit", &foreman, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/sign", &administrator, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var signed Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signed))
	require.Equal(t, StatusApproved, signed.Status)

	rec = do(t, h, http.MethodPost, base+"/sign", &foreman, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "already_approved", problem.Code)
}

func TestHandlerRejectsMissingActor(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/api/projects/7/requests", nil, createBody)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerValidatesPayload(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/projects/7/requests", &foreman, `{"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/projects/7/requests", &foreman,
		`{"items":[{"material_type_id":1,"material_id":100,"unit_id":3,"quantity":"-1"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/projects/abc/requests", &foreman, createBody)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerUnknownRoleIsForbidden(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/api/projects/7/requests", &foreman, createBody)
	var created Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/requests/" + strconv.FormatInt(created.ID, 10)
	do(t, h, http.MethodPost, base+"/submit", &foreman, "")

	rec = do(t, h, http.MethodPost, base+"/sign", &shared.Actor{UserID: 3, RoleID: 77}, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerAssignApproverAndList(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/api/projects/7/requests", &foreman, createBody)
	var created Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/requests/" + strconv.FormatInt(created.ID, 10)

	rec = do(t, h, http.MethodPut, base+"/slots/site_manager/approver", &administrator, `{"user_id":44}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pinned Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pinned))
	require.Equal(t, int64(44), *pinned.Approval(SlotSiteManager).ApproverUserID)

	rec = do(t, h, http.MethodPut, base+"/slots/janitor/approver", &administrator, `{"user_id":44}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodDelete, base+"/slots/site_manager/approver", &administrator, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/projects/7/requests?status=DRAFT", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list httpx.ListResponse[Request]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)

	rec = do(t, h, http.MethodGet, "/api/requests/999", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
