package receiving

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/orders"
	"github.com/sitestock/sitestock/internal/shared"
)

const (
	idempotencyModule = "receiving"
	refModule         = "RECEIPT"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListReceipts(ctx context.Context, warehouseID int64, limit, offset int) ([]Receipt, error)
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

// MetricsPort counts workflow operations and received quantities.
type MetricsPort interface {
	Operation(module, action string, err error)
	AddQuantity(flow string, qty decimal.Decimal)
}

// Service applies receipt batches to order items and warehouse stock.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	onChange    inventory.ChangeHandler
	metrics     MetricsPort
	now         func() time.Time
}

// NewService builds Service. Every dependency except repo may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, onChange inventory.ChangeHandler, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, onChange: onChange, metrics: metrics, now: time.Now}
}

// Receive commits a batch atomically: either every line is applied to its
// order item and to stock, or nothing is.
func (s *Service) Receive(ctx context.Context, actor shared.Actor, input ReceiveInput) (Result, error) {
	res, err := s.receive(ctx, actor, input)
	if s.metrics != nil {
		s.metrics.Operation("receiving", "receive", err)
		if err == nil {
			for _, line := range res.Receipt.Lines {
				s.metrics.AddQuantity("received", line.Quantity)
			}
		}
	}
	return res, err
}

func (s *Service) receive(ctx context.Context, actor shared.Actor, input ReceiveInput) (Result, error) {
	if actor.UserID <= 0 {
		return Result{}, shared.ErrUnauthenticated
	}
	if input.WarehouseID <= 0 {
		return Result{}, ErrInvalidWarehouse.With("warehouse_id", input.WarehouseID)
	}
	if len(input.Lines) == 0 {
		return Result{}, ErrEmptyBatch
	}
	for _, line := range input.Lines {
		if line.OrderItemID <= 0 {
			return Result{}, ErrOrderItemNotFound.With("order_item_id", line.OrderItemID)
		}
		if !line.Quantity.IsPositive() || !shared.FitsNumeric(line.Quantity) {
			return Result{}, ErrInvalidQuantity.With("order_item_id", line.OrderItemID).With("quantity", line.Quantity)
		}
	}
	itemOrder, totals := aggregate(input.Lines)

	var res Result
	err := s.withIdempotency(ctx, input.IdempotencyKey, func() error {
		res = Result{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			ok, err := tx.WarehouseExists(ctx, input.WarehouseID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidWarehouse.With("warehouse_id", input.WarehouseID)
			}
			ids := append([]int64(nil), itemOrder...)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			locked, err := tx.LockItems(ctx, ids)
			if err != nil {
				return err
			}
			for _, id := range itemOrder {
				item, found := locked[id]
				if !found {
					return ErrOrderItemNotFound.With("order_item_id", id)
				}
				if item.OrderStatus == orders.StatusCancelled {
					return ErrOrderCancelled.With("order_id", item.OrderID).With("order_item_id", id)
				}
				if totals[id].GreaterThan(item.Available()) {
					return ErrOverReceipt.
						With("order_item_id", id).
						With("material_id", item.MaterialID).
						With("available", item.Available()).
						With("requested", totals[id])
				}
			}

			now := s.now().UTC()
			receipt := Receipt{Code: uuid.New(), WarehouseID: input.WarehouseID, ActorID: actor.UserID, ReceivedAt: now}
			for _, line := range input.Lines {
				item := locked[line.OrderItemID]
				receipt.Lines = append(receipt.Lines, ReceiptLine{
					OrderItemID: line.OrderItemID,
					MaterialID:  item.MaterialID,
					UnitID:      item.UnitID,
					Quantity:    line.Quantity,
					Comment:     line.Comment,
				})
			}
			if receipt, err = tx.InsertReceipt(ctx, receipt); err != nil {
				return err
			}

			touchedOrders := []int64{}
			seenOrder := map[int64]bool{}
			requestIDs := []int64{}
			seenRequest := map[int64]bool{}
			for _, id := range itemOrder {
				li := locked[id]
				item := li.Item
				item.DeliveredQuantity = item.DeliveredQuantity.Add(totals[id])
				item.Status = orders.ItemStatusFor(item.DeliveredQuantity, item.Quantity)
				if err := tx.UpdateItemDelivery(ctx, item); err != nil {
					return err
				}
				if _, _, err := tx.ApplyStock(ctx, inventory.Movement{
					Code:        fmt.Sprintf("RCV-%s-%d", receipt.Code, item.ID),
					Type:        inventory.MovementReceipt,
					WarehouseID: input.WarehouseID,
					MaterialID:  item.MaterialID,
					UnitID:      item.UnitID,
					Quantity:    totals[id],
					RefModule:   refModule,
					RefID:       receipt.Code,
					ActorID:     actor.UserID,
					PostedAt:    now,
				}); err != nil {
					return err
				}
				res.Items = append(res.Items, item)
				if !seenOrder[item.OrderID] {
					seenOrder[item.OrderID] = true
					touchedOrders = append(touchedOrders, item.OrderID)
				}
				if !seenRequest[li.RequestID] {
					seenRequest[li.RequestID] = true
					requestIDs = append(requestIDs, li.RequestID)
				}
			}

			for _, orderID := range touchedOrders {
				items, err := tx.LoadOrderItems(ctx, orderID)
				if err != nil {
					return err
				}
				current := lockedOrderStatus(locked, orderID)
				if next := orders.DeriveStatus(current, items); next != current {
					if err := tx.UpdateOrderStatus(ctx, orderID, next); err != nil {
						return err
					}
				}
			}

			fulfilled, err := tx.MarkFulfilled(ctx, requestIDs)
			if err != nil {
				return err
			}
			res.Receipt = receipt
			res.FulfilledRequests = fulfilled
			return nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, input.WarehouseID, res.Items)
	s.recordAudit(ctx, actor.UserID, res)
	return res, nil
}

// ListReceipts returns receipts of a warehouse.
func (s *Service) ListReceipts(ctx context.Context, warehouseID int64, limit, offset int) ([]Receipt, error) {
	if warehouseID <= 0 {
		return nil, ErrInvalidWarehouse
	}
	limit, offset = shared.PageBounds(limit, offset)
	return s.repo.ListReceipts(ctx, warehouseID, limit, offset)
}

func lockedOrderStatus(locked map[int64]LockedItem, orderID int64) orders.Status {
	for _, li := range locked {
		if li.OrderID == orderID {
			return li.OrderStatus
		}
	}
	return orders.StatusCreated
}

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

func (s *Service) notify(ctx context.Context, warehouseID int64, items []orders.Item) {
	if s.onChange == nil {
		return
	}
	materials := make([]int64, 0, len(items))
	for _, item := range items {
		materials = append(materials, item.MaterialID)
	}
	_ = s.onChange.HandleStockChanged(ctx, inventory.StockChangedEvent{WarehouseID: warehouseID, MaterialIDs: materials, At: s.now().UTC()})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, res Result) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "receiving:receive",
		Entity:   shared.EntityReceipt,
		EntityID: res.Receipt.Code.String(),
		Meta: map[string]any{
			"warehouse_id": res.Receipt.WarehouseID,
			"lines":        len(res.Receipt.Lines),
			"fulfilled":    res.FulfilledRequests,
		},
	})
}
