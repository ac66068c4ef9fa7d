package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/purchasing"
	"github.com/sitestock/sitestock/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, projectID int64, filters ListFilters) ([]Order, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts workflow operations and ordered quantities.
type MetricsPort interface {
	Operation(module, action string, err error)
	AddQuantity(flow string, qty decimal.Decimal)
}

// Service places and tracks supplier purchase orders.
type Service struct {
	repo            RepositoryPort
	audit           AuditPort
	metrics         MetricsPort
	defaultCurrency string
}

// NewService constructs the order service. defaultCurrency applies when neither
// the caller nor the lines name a currency.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, defaultCurrency string) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, defaultCurrency: defaultCurrency}
}

// Selection picks a quantity of one purchasing line. A non-positive price falls
// back to the price stored on the line.
type Selection struct {
	RequestItemID int64
	Quantity      decimal.Decimal
	Price         decimal.Decimal
}

// CreateInput describes a new order.
type CreateInput struct {
	ProjectID  int64
	SupplierID int64
	Currency   string
	Note       string
	Selections []Selection
}

// CreateOrder places an order for the selected lines. Remaining quantities are
// re-derived under row locks, so concurrent orders can never over-order a line.
func (s *Service) CreateOrder(ctx context.Context, actor shared.Actor, input CreateInput) (Order, error) {
	order, err := s.createOrder(ctx, actor, input)
	s.observe("create", err)
	if err != nil {
		return Order{}, err
	}
	if s.metrics != nil {
		for _, item := range order.Items {
			s.metrics.AddQuantity("ordered", item.Quantity)
		}
	}
	s.recordAudit(ctx, actor.UserID, "PO_CREATE", order.ID, map[string]any{
		"number":      order.Number,
		"supplier_id": order.SupplierID,
		"items":       len(order.Items),
		"total":       order.Total.StringFixed(2),
	})
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, actor shared.Actor, input CreateInput) (Order, error) {
	if actor.UserID <= 0 {
		return Order{}, shared.ErrUnauthenticated
	}
	if input.ProjectID <= 0 {
		return Order{}, ErrInvalidProject
	}
	if input.SupplierID <= 0 {
		return Order{}, ErrInvalidSupplier
	}
	if len(input.Selections) == 0 {
		return Order{}, ErrEmptyOrder
	}
	requested := make(map[int64]decimal.Decimal, len(input.Selections))
	for i, sel := range input.Selections {
		if sel.RequestItemID <= 0 {
			return Order{}, ErrInvalidLineForProject.With("selection", i+1)
		}
		if !sel.Quantity.IsPositive() || !shared.FitsNumeric(sel.Quantity) {
			return Order{}, ErrInvalidQuantity.With("request_item_id", sel.RequestItemID).With("quantity", sel.Quantity)
		}
		if sel.Price.IsPositive() && !shared.FitsNumeric(sel.Price) {
			return Order{}, purchasing.ErrInvalidPrice.With("request_item_id", sel.RequestItemID).With("price", sel.Price)
		}
		requested[sel.RequestItemID] = requested[sel.RequestItemID].Add(sel.Quantity)
	}
	currency := ""
	if input.Currency != "" {
		code, err := purchasing.NormalizeCurrency(input.Currency)
		if err != nil {
			return Order{}, err
		}
		currency = code
	}
	ids := make([]int64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var created Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.LockLines(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			line, ok := lines[id]
			if !ok || line.ProjectID != input.ProjectID || !line.Approved() {
				return ErrInvalidLineForProject.With("request_item_id", id).With("project_id", input.ProjectID)
			}
			if requested[id].GreaterThan(line.RemainingQuantity) {
				return ErrOverOrdering.
					With("request_item_id", id).
					With("material_id", line.MaterialID).
					With("remaining", line.RemainingQuantity)
			}
		}
		orderCurrency, err := resolveCurrency(currency, ids, lines)
		if err != nil {
			return err
		}
		if orderCurrency == "" {
			orderCurrency = s.defaultCurrency
		}

		order, err := tx.CreateOrder(ctx, Order{
			Number:     generateNumber("PO"),
			ProjectID:  input.ProjectID,
			SupplierID: input.SupplierID,
			CreatedBy:  actor.UserID,
			Currency:   orderCurrency,
			Note:       input.Note,
			Status:     StatusCreated,
		})
		if err != nil {
			return err
		}
		for _, sel := range input.Selections {
			line := lines[sel.RequestItemID]
			price := sel.Price
			if !price.IsPositive() {
				if line.Price == nil || !line.Price.IsPositive() {
					return ErrPriceRequired.With("request_item_id", line.ID)
				}
				price = *line.Price
			}
			item, err := tx.InsertItem(ctx, Item{
				OrderID:           order.ID,
				RequestItemID:     line.ID,
				MaterialID:        line.MaterialID,
				UnitID:            line.UnitID,
				Quantity:          sel.Quantity,
				Price:             price,
				Sum:               LineSum(price, sel.Quantity),
				Status:            ItemOrdered,
				DeliveredQuantity: decimal.Zero,
			})
			if err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		order.Total = orderTotal(order.Items)
		created = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return created, nil
}

// resolveCurrency returns the explicit currency or the single currency shared
// by the priced lines. Any disagreement is a mismatch.
func resolveCurrency(explicit string, ids []int64, lines map[int64]purchasing.Line) (string, error) {
	currency := explicit
	for _, id := range ids {
		line := lines[id]
		if line.Currency == nil || *line.Currency == "" {
			continue
		}
		if currency == "" {
			currency = *line.Currency
			continue
		}
		if *line.Currency != currency {
			return "", ErrCurrencyMismatch.With("request_item_id", id).With("currency", *line.Currency).With("expected", currency)
		}
	}
	return currency, nil
}

// GetOrder returns an order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders pages through the orders of a project.
func (s *Service) ListOrders(ctx context.Context, projectID int64, filters ListFilters) ([]Order, int, error) {
	if projectID <= 0 {
		return nil, 0, ErrInvalidProject
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, ErrInvalidStatus.With("status", filters.Status)
	}
	filters.Limit, filters.Offset = shared.PageBounds(filters.Limit, filters.Offset)
	return s.repo.ListOrders(ctx, projectID, filters)
}

// CancelOrder cancels an order nothing has been delivered against. Its
// quantities return to the remaining quantity of their lines.
func (s *Service) CancelOrder(ctx context.Context, actor shared.Actor, id int64) (Order, error) {
	var cancelled Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusCreated {
			return ErrOrderNotCancellable.With("order_id", id).With("status", order.Status)
		}
		for _, item := range order.Items {
			if item.DeliveredQuantity.IsPositive() {
				return ErrOrderNotCancellable.With("order_id", id).With("order_item_id", item.ID)
			}
		}
		if err := tx.UpdateOrderStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		order.Status = StatusCancelled
		cancelled = order
		return nil
	})
	s.observe("cancel", err)
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actor.UserID, "PO_CANCEL", id, map[string]any{"number": cancelled.Number})
	return cancelled, nil
}

func (s *Service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.Operation("orders", action, err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: shared.EntityPurchaseOrder, EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

// generateNumber builds PO-<yyyymmdd>-<12 hex> from a random UUID.
func generateNumber(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102"), suffix)
}
