package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/shared"
)

const approvalModule = "MR"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (Request, error)
	ListRequests(ctx context.Context, projectID int64, filters ListFilters) ([]Request, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts workflow operations.
type MetricsPort interface {
	Operation(module, action string, err error)
}

// Service runs the material request lifecycle and its sign-off chain.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs the request service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// ItemInput describes a requested line.
type ItemInput struct {
	MaterialTypeID int64
	MaterialID     int64
	UnitID         int64
	Quantity       decimal.Decimal
	Comment        string
}

// CreateInput describes a new request.
type CreateInput struct {
	ProjectID int64
	Note      string
	Items     []ItemInput
	// Approvers optionally pins a user to a slot up front.
	Approvers map[Slot]int64
}

// CreateRequest stores a draft request with its items.
func (s *Service) CreateRequest(ctx context.Context, actor shared.Actor, input CreateInput) (Request, error) {
	req, err := s.createRequest(ctx, actor, input)
	s.observe("create", err)
	return req, err
}

func (s *Service) createRequest(ctx context.Context, actor shared.Actor, input CreateInput) (Request, error) {
	if actor.UserID <= 0 {
		return Request{}, shared.ErrUnauthenticated
	}
	if input.ProjectID <= 0 {
		return Request{}, ErrInvalidProject
	}
	if err := validateItems(input.Items); err != nil {
		return Request{}, err
	}
	req := Request{
		ProjectID: input.ProjectID,
		CreatedBy: actor.UserID,
		Note:      input.Note,
		Status:    StatusDraft,
		Approvals: newApprovals(),
	}
	for slot, userID := range input.Approvers {
		if userID <= 0 {
			return Request{}, ErrInvalidApprover.With("slot", slot)
		}
		i := slotIndex(slot)
		if i < 0 {
			return Request{}, ErrUnknownSlot.With("slot", slot)
		}
		id := userID
		req.Approvals[i].ApproverUserID = &id
	}
	var created Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		stored.Items, err = insertItems(ctx, tx, stored.ID, input.Items)
		if err != nil {
			return err
		}
		created = stored
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actor.UserID, "MR_CREATE", created.ID, map[string]any{"project_id": created.ProjectID, "items": len(created.Items)})
	return created, nil
}

// ReplaceItems swaps the item list of a request whose sign-off has not started.
func (s *Service) ReplaceItems(ctx context.Context, actor shared.Actor, requestID int64, items []ItemInput) (Request, error) {
	if err := validateItems(items); err != nil {
		s.observe("replace_items", err)
		return Request{}, err
	}
	req, err := s.mutate(ctx, requestID, func(ctx context.Context, tx TxRepository, req *Request) error {
		switch req.Status {
		case StatusDraft, StatusPendingApproval:
		default:
			return ErrRequestNotEditable.With("request_id", req.ID).With("status", req.Status)
		}
		if req.Decided() {
			return ErrItemsLocked.With("request_id", req.ID)
		}
		if err := tx.DeleteItems(ctx, req.ID); err != nil {
			return err
		}
		inserted, err := insertItems(ctx, tx, req.ID, items)
		if err != nil {
			return err
		}
		req.Items = inserted
		return nil
	})
	s.observe("replace_items", err)
	if err == nil {
		s.recordAudit(ctx, actor.UserID, "MR_ITEMS_REPLACE", requestID, map[string]any{"items": len(items)})
	}
	return req, err
}

// Submit sends a draft into the sign-off chain.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, requestID int64) (Request, error) {
	req, err := s.mutate(ctx, requestID, func(ctx context.Context, tx TxRepository, req *Request) error {
		if req.Status != StatusDraft {
			return ErrInvalidState.With("request_id", req.ID).With("status", req.Status)
		}
		req.Status = StatusPendingApproval
		return tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   shared.ApprovalRef(approvalModule, req.ID),
			ActorID: actor.UserID,
			Action:  shared.ApprovalSubmit,
			Note:    fmt.Sprintf("MR %d submitted", req.ID),
		})
	})
	s.observe("submit", err)
	if err == nil {
		s.recordAudit(ctx, actor.UserID, "MR_SUBMIT", requestID, nil)
	}
	return req, err
}

// Sign approves the slot owned by the acting role. Administrator approves every
// slot that is not yet approved in one step.
func (s *Service) Sign(ctx context.Context, actor shared.Actor, requestID int64) (Request, error) {
	req, err := s.decide(ctx, actor, requestID, true, "")
	s.observe("sign", err)
	return req, err
}

// Reject rejects the slot owned by the acting role, which rejects the request.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, requestID int64, note string) (Request, error) {
	req, err := s.decide(ctx, actor, requestID, false, note)
	s.observe("reject", err)
	return req, err
}

func (s *Service) decide(ctx context.Context, actor shared.Actor, requestID int64, approve bool, note string) (Request, error) {
	if actor.UserID <= 0 {
		return Request{}, shared.ErrUnauthenticated
	}
	if _, err := SlotsForRole(Role(actor.RoleID)); err != nil {
		return Request{}, err
	}
	action := shared.ApprovalApprove
	if !approve {
		action = shared.ApprovalReject
	}
	var changed []Slot
	req, err := s.mutate(ctx, requestID, func(ctx context.Context, tx TxRepository, req *Request) error {
		var err error
		changed, err = decide(req, actor, approve, s.now())
		if err != nil {
			return err
		}
		for _, slot := range changed {
			err := tx.RecordApproval(ctx, shared.ApprovalLog{
				Module:  approvalModule,
				RefID:   shared.ApprovalRef(approvalModule, req.ID),
				Slot:    string(slot),
				ActorID: actor.UserID,
				Action:  action,
				Note:    note,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actor.UserID, "MR_"+string(action), requestID, map[string]any{
		"role_id": actor.RoleID,
		"slots":   changed,
		"status":  req.Status,
	})
	return req, nil
}

// AssignApprover pins userID to a pending slot.
func (s *Service) AssignApprover(ctx context.Context, actor shared.Actor, requestID int64, slot Slot, userID int64) (Request, error) {
	if userID <= 0 {
		s.observe("assign", ErrInvalidApprover)
		return Request{}, ErrInvalidApprover
	}
	req, err := s.pin(ctx, actor, requestID, slot, &userID)
	s.observe("assign", err)
	return req, err
}

// UnassignApprover clears the pinned user of a pending slot.
func (s *Service) UnassignApprover(ctx context.Context, actor shared.Actor, requestID int64, slot Slot) (Request, error) {
	req, err := s.pin(ctx, actor, requestID, slot, nil)
	s.observe("unassign", err)
	return req, err
}

func (s *Service) pin(ctx context.Context, actor shared.Actor, requestID int64, slot Slot, userID *int64) (Request, error) {
	action := shared.ApprovalAssign
	note := ""
	if userID == nil {
		action = shared.ApprovalUnassign
	} else {
		note = fmt.Sprintf("assigned to user %d", *userID)
	}
	req, err := s.mutate(ctx, requestID, func(ctx context.Context, tx TxRepository, req *Request) error {
		if err := pin(req, slot, userID); err != nil {
			return err
		}
		return tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   shared.ApprovalRef(approvalModule, req.ID),
			Slot:    string(slot),
			ActorID: actor.UserID,
			Action:  action,
			Note:    note,
		})
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actor.UserID, "MR_"+string(action), requestID, map[string]any{"slot": slot})
	return req, nil
}

// GetRequest returns a request with its items.
func (s *Service) GetRequest(ctx context.Context, id int64) (Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListRequests pages through the requests of a project.
func (s *Service) ListRequests(ctx context.Context, projectID int64, filters ListFilters) ([]Request, int, error) {
	if projectID <= 0 {
		return nil, 0, ErrInvalidProject
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, ErrInvalidStatus.With("status", filters.Status)
	}
	filters.Limit, filters.Offset = shared.PageBounds(filters.Limit, filters.Offset)
	return s.repo.ListRequests(ctx, projectID, filters)
}

// mutate locks the request row, applies fn and persists the result with a
// version bump, all in one transaction.
func (s *Service) mutate(ctx context.Context, requestID int64, fn func(context.Context, TxRepository, *Request) error) (Request, error) {
	var updated Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &req); err != nil {
			return err
		}
		items := req.Items
		req, err = tx.UpdateRequest(ctx, req)
		if err != nil {
			return err
		}
		req.Items = items
		updated = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return updated, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for i, item := range items {
		if item.MaterialTypeID <= 0 || item.MaterialID <= 0 || item.UnitID <= 0 {
			return ErrInvalidItem.With("line", i+1)
		}
		if !item.Quantity.IsPositive() || !shared.FitsNumeric(item.Quantity) {
			return ErrInvalidQuantity.With("line", i+1).With("quantity", item.Quantity)
		}
	}
	return nil
}

func insertItems(ctx context.Context, tx TxRepository, requestID int64, inputs []ItemInput) ([]Item, error) {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		item, err := tx.InsertItem(ctx, Item{
			RequestID:      requestID,
			LineNo:         i + 1,
			MaterialTypeID: in.MaterialTypeID,
			MaterialID:     in.MaterialID,
			UnitID:         in.UnitID,
			Quantity:       in.Quantity,
			Comment:        in.Comment,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.Operation("requests", action, err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: shared.EntityMaterialRequest, EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
