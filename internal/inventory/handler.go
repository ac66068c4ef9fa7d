package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

// Handler exposes stock endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses/{warehouseID}/stock", h.stock)
	r.Get("/warehouses/{warehouseID}/movements", h.movements)
	r.Post("/warehouses/{warehouseID}/movements", h.postMovement)
	r.Post("/warehouses/{warehouseID}/transfers", h.postTransfer)
}

type movementPayload struct {
	Type       string          `json:"type" validate:"required,oneof=ISSUE ADJUST"`
	MaterialID int64           `json:"material_id" validate:"required,gt=0"`
	UnitID     int64           `json:"unit_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	Code       string          `json:"code" validate:"max=64"`
	RefModule  string          `json:"ref_module" validate:"max=32"`
	RefID      string          `json:"ref_id" validate:"omitempty,uuid"`
	Note       string          `json:"note" validate:"max=1000"`
}

type transferPayload struct {
	DstWarehouseID int64           `json:"dst_warehouse_id" validate:"required,gt=0"`
	MaterialID     int64           `json:"material_id" validate:"required,gt=0"`
	UnitID         int64           `json:"unit_id" validate:"required,gt=0"`
	Quantity       decimal.Decimal `json:"quantity"`
	Code           string          `json:"code" validate:"max=64"`
	Note           string          `json:"note" validate:"max=1000"`
}

type transferResponse struct {
	Out Movement `json:"out"`
	In  Movement `json:"in"`
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := httpx.IDParam(r, "warehouseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	materialID, err := httpx.QueryInt64(r, "material_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.ListStock(r.Context(), StockFilter{WarehouseID: warehouseID, MaterialID: materialID})
	if err != nil {
		h.fail(w, "list stock", err, warehouseID)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouse_id": warehouseID, "items": stock})
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := httpx.IDParam(r, "warehouseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := MovementFilter{WarehouseID: warehouseID}
	if filter.MaterialID, err = httpx.QueryInt64(r, "material_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.From, err = httpx.QueryTime(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryTime(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit, _ = httpx.Page(r)
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, "list movements", err, warehouseID)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouse_id": warehouseID, "items": movements})
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
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
	var payload movementPayload
	if err := httpx.Bind(r, h.validator, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mv, err := h.service.PostMovement(r.Context(), actor, MovementInput{
		Code:        payload.Code,
		Type:        MovementType(payload.Type),
		WarehouseID: warehouseID,
		MaterialID:  payload.MaterialID,
		UnitID:      payload.UnitID,
		Quantity:    payload.Quantity,
		RefModule:   payload.RefModule,
		RefID:       payload.RefID,
		Note:        payload.Note,
	}, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, "post movement", err, warehouseID)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
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
	var payload transferPayload
	if err := httpx.Bind(r, h.validator, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, in, err := h.service.PostTransfer(r.Context(), actor, TransferInput{
		Code:         payload.Code,
		MaterialID:   payload.MaterialID,
		UnitID:       payload.UnitID,
		Quantity:     payload.Quantity,
		SrcWarehouse: warehouseID,
		DstWarehouse: payload.DstWarehouseID,
		Note:         payload.Note,
	}, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, "post transfer", err, warehouseID)
		return
	}
	httpx.JSON(w, http.StatusCreated, transferResponse{Out: out, In: in})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, id int64) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("warehouse_id", id))
	}
	httpx.RespondError(w, err)
}
