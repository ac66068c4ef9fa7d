package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects/{projectID}/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
	})
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/cancel", h.cancel)
}

type selectionPayload struct {
	RequestItemID int64           `json:"request_item_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

type createPayload struct {
	SupplierID int64              `json:"supplier_id" validate:"required,gt=0"`
	Currency   string             `json:"currency" validate:"omitempty,len=3,alpha"`
	Note       string             `json:"note" validate:"max=1000"`
	Items      []selectionPayload `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	projectID, err := httpx.IDParam(r, "projectID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload createPayload
	if err := httpx.Bind(r, h.validator, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInput{ProjectID: projectID, SupplierID: payload.SupplierID, Currency: payload.Currency, Note: payload.Note}
	for _, item := range payload.Items {
		input.Selections = append(input.Selections, Selection{RequestItemID: item.RequestItemID, Quantity: item.Quantity, Price: item.Price})
	}
	order, err := h.service.CreateOrder(r.Context(), actor, input)
	if err != nil {
		h.fail(w, "create purchase order", err, projectID)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := httpx.IDParam(r, "projectID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplierID, err := httpx.QueryInt64(r, "supplier_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, offset := httpx.Page(r)
	items, total, err := h.service.ListOrders(r.Context(), projectID, ListFilters{
		SupplierID: supplierID,
		Status:     Status(r.URL.Query().Get("status")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(w, "list purchase orders", err, projectID)
		return
	}
	if items == nil {
		items = []Order{}
	}
	httpx.JSON(w, http.StatusOK, httpx.ListResponse[Order]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchase order", err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
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
	order, err := h.service.CancelOrder(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "cancel purchase order", err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, id int64) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("id", id))
	}
	httpx.RespondError(w, err)
}
