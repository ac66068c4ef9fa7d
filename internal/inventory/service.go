package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sitestock/sitestock/internal/shared"
)

const idempotencyModule = "inventory"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStock(ctx context.Context, filter StockFilter) ([]Stock, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	WarehouseExists(ctx context.Context, id int64) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards client retries.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort counts workflow operations and moved quantities.
type MetricsPort interface {
	Operation(module, action string, err error)
}

// StockCache serves stock snapshots and is told about committed changes.
type StockCache interface {
	ChangeHandler
	Stock(ctx context.Context, filter StockFilter, load func(context.Context) ([]Stock, error)) ([]Stock, error)
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	cache       StockCache
	metrics     MetricsPort
}

// NewService builds Service. Every dependency except repo may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cache StockCache, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, cache: cache, metrics: metrics}
}

// PostMovement records an issue or adjustment against a warehouse. Receipts
// only enter stock through the receiving workflow.
func (s *Service) PostMovement(ctx context.Context, actor shared.Actor, input MovementInput, idemKey string) (Movement, error) {
	mv, err := s.postMovement(ctx, actor, input, idemKey)
	s.observe("movement", err)
	return mv, err
}

func (s *Service) postMovement(ctx context.Context, actor shared.Actor, input MovementInput, idemKey string) (Movement, error) {
	if actor.UserID <= 0 {
		return Movement{}, shared.ErrUnauthenticated
	}
	if input.Type == MovementReceipt || input.Type == MovementTransferIn || input.Type == MovementTransferOut {
		return Movement{}, ErrInvalidMovementType.With("type", input.Type)
	}
	m, err := buildMovement(actor, input)
	if err != nil {
		return Movement{}, err
	}
	var posted Movement
	err = s.withIdempotency(ctx, idemKey, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := requireWarehouse(ctx, tx, m.WarehouseID); err != nil {
				return err
			}
			var err error
			_, posted, err = tx.ApplyMovement(ctx, m)
			return err
		})
	})
	if err != nil {
		return Movement{}, err
	}
	s.notify(ctx, posted.WarehouseID, posted.MaterialID, posted.PostedAt)
	s.recordAudit(ctx, actor.UserID, posted)
	return posted, nil
}

// PostTransfer moves stock between warehouses. Both legs commit together.
func (s *Service) PostTransfer(ctx context.Context, actor shared.Actor, input TransferInput, idemKey string) (Movement, Movement, error) {
	out, in, err := s.postTransfer(ctx, actor, input, idemKey)
	s.observe("transfer", err)
	return out, in, err
}

func (s *Service) postTransfer(ctx context.Context, actor shared.Actor, input TransferInput, idemKey string) (Movement, Movement, error) {
	if actor.UserID <= 0 {
		return Movement{}, Movement{}, shared.ErrUnauthenticated
	}
	if input.SrcWarehouse <= 0 || input.DstWarehouse <= 0 {
		return Movement{}, Movement{}, ErrInvalidWarehouse
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return Movement{}, Movement{}, ErrSameWarehouse.With("warehouse_id", input.SrcWarehouse)
	}
	if !input.Quantity.IsPositive() || !shared.FitsNumeric(input.Quantity) {
		return Movement{}, Movement{}, ErrInvalidQuantity.With("quantity", input.Quantity)
	}
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("TRF-%d", time.Now().UnixNano())
	}
	ref := uuid.New().String()
	outMv, err := buildMovement(actor, MovementInput{
		Code:        code + "-OUT",
		Type:        MovementTransferOut,
		WarehouseID: input.SrcWarehouse,
		MaterialID:  input.MaterialID,
		UnitID:      input.UnitID,
		Quantity:    input.Quantity.Neg(),
		RefModule:   "TRANSFER",
		RefID:       ref,
		Note:        fmt.Sprintf("to warehouse %d: %s", input.DstWarehouse, input.Note),
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	inMv, err := buildMovement(actor, MovementInput{
		Code:        code + "-IN",
		Type:        MovementTransferIn,
		WarehouseID: input.DstWarehouse,
		MaterialID:  input.MaterialID,
		UnitID:      input.UnitID,
		Quantity:    input.Quantity,
		RefModule:   "TRANSFER",
		RefID:       ref,
		Note:        fmt.Sprintf("from warehouse %d: %s", input.SrcWarehouse, input.Note),
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	var postedOut, postedIn Movement
	err = s.withIdempotency(ctx, idemKey, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			for _, id := range []int64{input.SrcWarehouse, input.DstWarehouse} {
				if err := requireWarehouse(ctx, tx, id); err != nil {
					return err
				}
			}
			var err error
			if _, postedOut, err = tx.ApplyMovement(ctx, outMv); err != nil {
				return err
			}
			_, postedIn, err = tx.ApplyMovement(ctx, inMv)
			return err
		})
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	s.notify(ctx, input.SrcWarehouse, input.MaterialID, postedOut.PostedAt)
	s.notify(ctx, input.DstWarehouse, input.MaterialID, postedIn.PostedAt)
	s.recordAudit(ctx, actor.UserID, postedOut)
	s.recordAudit(ctx, actor.UserID, postedIn)
	return postedOut, postedIn, nil
}

// ListStock returns the stock snapshot of a warehouse.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) ([]Stock, error) {
	if filter.WarehouseID <= 0 {
		return nil, ErrInvalidWarehouse
	}
	ok, err := s.repo.WarehouseExists(ctx, filter.WarehouseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidWarehouse.With("warehouse_id", filter.WarehouseID)
	}
	if s.cache == nil {
		return s.repo.ListStock(ctx, filter)
	}
	return s.cache.Stock(ctx, filter, func(ctx context.Context) ([]Stock, error) {
		return s.repo.ListStock(ctx, filter)
	})
}

// ListMovements returns ledger entries of a warehouse, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.WarehouseID <= 0 {
		return nil, ErrInvalidWarehouse
	}
	limit, _ := shared.PageBounds(filter.Limit, 0)
	filter.Limit = limit
	return s.repo.ListMovements(ctx, filter)
}

func buildMovement(actor shared.Actor, input MovementInput) (Movement, error) {
	if input.WarehouseID <= 0 {
		return Movement{}, ErrInvalidWarehouse
	}
	if input.MaterialID <= 0 || input.UnitID <= 0 {
		return Movement{}, ErrInvalidMaterial
	}
	if err := checkSign(input.Type, input.Quantity); err != nil {
		return Movement{}, err
	}
	ref := uuid.Nil
	if input.RefID != "" {
		parsed, err := uuid.Parse(input.RefID)
		if err != nil {
			return Movement{}, ErrInvalidRef.With("ref_id", input.RefID)
		}
		ref = parsed
	}
	return Movement{
		Code:        input.Code,
		Type:        input.Type,
		WarehouseID: input.WarehouseID,
		MaterialID:  input.MaterialID,
		UnitID:      input.UnitID,
		Quantity:    input.Quantity,
		RefModule:   input.RefModule,
		RefID:       ref,
		ActorID:     actor.UserID,
		Note:        input.Note,
		PostedAt:    time.Now().UTC(),
	}, nil
}

func requireWarehouse(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.WarehouseExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidWarehouse.With("warehouse_id", id)
	}
	return nil
}

// withIdempotency claims key before fn and releases it when fn fails.
func (s *Service) withIdempotency(ctx context.Context, key string, fn func() error) error {
	if key == "" || s.idempotency == nil {
		return fn()
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = s.idempotency.Delete(ctx, key)
		return err
	}
	return nil
}

func (s *Service) notify(ctx context.Context, warehouseID, materialID int64, at time.Time) {
	if s.cache == nil {
		return
	}
	_ = s.cache.HandleStockChanged(ctx, StockChangedEvent{WarehouseID: warehouseID, MaterialIDs: []int64{materialID}, At: at})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, m Movement) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("inventory:%s", m.Type),
		Entity:   shared.EntityStockMovement,
		EntityID: fmt.Sprintf("%d", m.ID),
		Meta: map[string]any{
			"warehouse_id": m.WarehouseID,
			"material_id":  m.MaterialID,
			"quantity":     m.Quantity.String(),
			"balance":      m.Balance.String(),
		},
	})
}

func (s *Service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.Operation("inventory", action, err)
	}
}
