package receiving

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

// Handler exposes receipt endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers receipt routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/warehouses/{warehouseID}/receipts", h.receive)
	r.Get("/warehouses/{warehouseID}/receipts", h.list)
}

type linePayload struct {
	OrderItemID int64           `json:"purchase_order_item_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal `json:"received_quantity"`
	Comment     string          `json:"comment" validate:"max=1000"`
}

type receivePayload struct {
	Lines []linePayload `json:"lines" validate:"dive"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouseID, err := httpx.IDParam(r, "warehouseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload receivePayload
	if err := httpx.Bind(r, h.validator, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := ReceiveInput{WarehouseID: warehouseID, IdempotencyKey: r.Header.Get("Idempotency-Key")}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, LineInput{OrderItemID: line.OrderItemID, Quantity: line.Quantity, Comment: line.Comment})
	}
	res, err := h.service.Receive(r.Context(), actor, input)
	if err != nil {
		h.fail(w, "receive goods", err, warehouseID)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := httpx.IDParam(r, "warehouseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, offset := httpx.Page(r)
	receipts, err := h.service.ListReceipts(r.Context(), warehouseID, limit, offset)
	if err != nil {
		h.fail(w, "list receipts", err, warehouseID)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouse_id": warehouseID, "items": receipts})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, id int64) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("warehouse_id", id))
	}
	httpx.RespondError(w, err)
}
