package purchasing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

// Handler exposes purchasing endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers purchasing routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects/{projectID}/purchasing/lines", h.list)
	r.Get("/purchasing/lines/{id}", h.get)
	r.Put("/purchasing/lines/{id}/price", h.setPrice)
}

type pricePayload struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency" validate:"required,len=3,alpha"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := httpx.IDParam(r, "projectID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	materialTypeID, err := httpx.QueryInt64(r, "material_type_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	materialID, err := httpx.QueryInt64(r, "material_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.ListOrderableLines(r.Context(), projectID, ListFilters{MaterialTypeID: materialTypeID, MaterialID: materialID})
	if err != nil {
		h.fail(w, "list purchasing lines", err, projectID)
		return
	}
	if lines == nil {
		lines = []Line{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.GetLine(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchasing line", err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload pricePayload
	if err := httpx.Bind(r, h.validator, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.SetPrice(r.Context(), actor, id, payload.Price, payload.Currency)
	if err != nil {
		h.fail(w, "set line price", err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, id int64) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("id", id))
	}
	httpx.RespondError(w, err)
}
