package requests

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

// Handler exposes material request endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers request routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects/{projectID}/requests", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
	})
	r.Route("/requests/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/items", h.replaceItems)
		r.Post("/submit", h.submit)
		r.Post("/sign", h.sign)
		r.Post("/reject", h.reject)
		r.Put("/slots/{slot}/approver", h.assign)
		r.Delete("/slots/{slot}/approver", h.unassign)
	})
}

type itemPayload struct {
	MaterialTypeID int64           `json:"material_type_id" validate:"required,gt=0"`
	MaterialID     int64           `json:"material_id" validate:"required,gt=0"`
	UnitID         int64           `json:"unit_id" validate:"required,gt=0"`
	Quantity       decimal.Decimal `json:"quantity"`
	Comment        string          `json:"comment" validate:"max=500"`
}

type createPayload struct {
	Note      string           `json:"note" validate:"max=1000"`
	Items     []itemPayload    `json:"items" validate:"required,min=1,dive"`
	Approvers map[string]int64 `json:"approvers" validate:"omitempty,dive,gt=0"`
}

type itemsPayload struct {
	Items []itemPayload `json:"items" validate:"required,min=1,dive"`
}

type rejectPayload struct {
	Note string `json:"note" validate:"max=1000"`
}

type assignPayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func toItemInputs(payload []itemPayload) []ItemInput {
	items := make([]ItemInput, 0, len(payload))
	for _, p := range payload {
		items = append(items, ItemInput{
			MaterialTypeID: p.MaterialTypeID,
			MaterialID:     p.MaterialID,
			UnitID:         p.UnitID,
			Quantity:       p.Quantity,
			Comment:        p.Comment,
		})
	}
	return items
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
	input := CreateInput{ProjectID: projectID, Note: payload.Note, Items: toItemInputs(payload.Items)}
	if len(payload.Approvers) > 0 {
		input.Approvers = make(map[Slot]int64, len(payload.Approvers))
		for name, userID := range payload.Approvers {
			slot, err := ParseSlot(name)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			input.Approvers[slot] = userID
		}
	}
	req, err := h.service.CreateRequest(r.Context(), actor, input)
	if err != nil {
		h.fail(w, "create material request", err, projectID)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := httpx.IDParam(r, "projectID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, offset := httpx.Page(r)
	items, total, err := h.service.ListRequests(r.Context(), projectID, ListFilters{
		Status: Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "list material requests", err, projectID)
		return
	}
	if items == nil {
		items = []Request{}
	}
	httpx.JSON(w, http.StatusOK, httpx.ListResponse[Request]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		h.fail(w, "get material request", err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) replaceItems(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "replace material request items", func(actor shared.Actor, id int64) (Request, error) {
		var payload itemsPayload
		if err := httpx.Bind(r, h.validator, &payload); err != nil {
			return Request{}, err
		}
		return h.service.ReplaceItems(r.Context(), actor, id, toItemInputs(payload.Items))
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "submit material request", func(actor shared.Actor, id int64) (Request, error) {
		return h.service.Submit(r.Context(), actor, id)
	})
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "sign material request", func(actor shared.Actor, id int64) (Request, error) {
		return h.service.Sign(r.Context(), actor, id)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "reject material request", func(actor shared.Actor, id int64) (Request, error) {
		var payload rejectPayload
		if r.ContentLength != 0 {
			if err := httpx.Bind(r, h.validator, &payload); err != nil {
				return Request{}, err
			}
		}
		return h.service.Reject(r.Context(), actor, id, payload.Note)
	})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "assign approver", func(actor shared.Actor, id int64) (Request, error) {
		slot, err := ParseSlot(chi.URLParam(r, "slot"))
		if err != nil {
			return Request{}, err
		}
		var payload assignPayload
		if err := httpx.Bind(r, h.validator, &payload); err != nil {
			return Request{}, err
		}
		return h.service.AssignApprover(r.Context(), actor, id, slot, payload.UserID)
	})
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "unassign approver", func(actor shared.Actor, id int64) (Request, error) {
		slot, err := ParseSlot(chi.URLParam(r, "slot"))
		if err != nil {
			return Request{}, err
		}
		return h.service.UnassignApprover(r.Context(), actor, id, slot)
	})
}

// withRequest resolves the actor and request id, runs fn and writes the updated request.
func (h *Handler) withRequest(w http.ResponseWriter, r *http.Request, op string, fn func(shared.Actor, int64) (Request, error)) {
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
	req, err := fn(actor, id)
	if err != nil {
		h.fail(w, op, err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, id int64) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("id", id))
	}
	httpx.RespondError(w, err)
}
