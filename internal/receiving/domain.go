package receiving

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/orders"
	"github.com/sitestock/sitestock/internal/shared"
)

// LineInput is one line of a receipt batch.
type LineInput struct {
	OrderItemID int64
	Quantity    decimal.Decimal
	Comment     string
}

// ReceiveInput is a receipt batch against one warehouse.
type ReceiveInput struct {
	WarehouseID int64
	Lines       []LineInput
	// IdempotencyKey rejects exact replays when set. Without it repeats add up.
	IdempotencyKey string
}

// Receipt is the persisted record of a committed batch.
type Receipt struct {
	ID          int64         `json:"id"`
	Code        uuid.UUID     `json:"code"`
	WarehouseID int64         `json:"warehouse_id"`
	ActorID     int64         `json:"actor_id"`
	ReceivedAt  time.Time     `json:"received_at"`
	Lines       []ReceiptLine `json:"lines"`
}

// ReceiptLine records the quantity taken in for one order item.
type ReceiptLine struct {
	ID          int64           `json:"id"`
	ReceiptID   int64           `json:"receipt_id"`
	OrderItemID int64           `json:"order_item_id"`
	MaterialID  int64           `json:"material_id"`
	UnitID      int64           `json:"unit_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Comment     string          `json:"comment,omitempty"`
}

// LockedItem is an order item held under row lock with its order context.
type LockedItem struct {
	orders.Item
	OrderStatus orders.Status
	RequestID   int64
}

// Result is returned by Receive.
type Result struct {
	Receipt Receipt       `json:"receipt"`
	Items   []orders.Item `json:"items"`
	// FulfilledRequests lists requests closed by this batch.
	FulfilledRequests []int64 `json:"fulfilled_requests,omitempty"`
}

var (
	// ErrEmptyBatch indicates a batch without lines.
	ErrEmptyBatch = shared.Validation("empty_batch", "receipt batch has no lines")
	// ErrInvalidQuantity indicates a received quantity that is not positive.
	ErrInvalidQuantity = shared.Validation("invalid_quantity", "received quantity must be positive with at most 4 decimal places")
	// ErrInvalidWarehouse indicates a missing or unknown warehouse.
	ErrInvalidWarehouse = shared.Validation("invalid_warehouse", "warehouse does not exist")
	// ErrOrderItemNotFound indicates an unknown purchase order item.
	ErrOrderItemNotFound = shared.NotFound("order_item_not_found", "purchase order item not found")
	// ErrOrderCancelled indicates an item of a cancelled order.
	ErrOrderCancelled = shared.Conflict("order_cancelled", "purchase order is cancelled")
	// ErrOverReceipt indicates more than the outstanding quantity.
	ErrOverReceipt = shared.Conflict("over_receipt", "received quantity exceeds the quantity still expected")
)

// aggregate sums duplicate lines per order item, keeping first-seen order.
func aggregate(lines []LineInput) ([]int64, map[int64]decimal.Decimal) {
	order := make([]int64, 0, len(lines))
	totals := make(map[int64]decimal.Decimal, len(lines))
	for _, line := range lines {
		if _, seen := totals[line.OrderItemID]; !seen {
			order = append(order, line.OrderItemID)
		}
		totals[line.OrderItemID] = totals[line.OrderItemID].Add(line.Quantity)
	}
	return order, totals
}
