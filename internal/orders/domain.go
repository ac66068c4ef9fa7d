package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	StatusCreated            Status = "CREATED"
	StatusPartiallyDelivered Status = "PARTIALLY_DELIVERED"
	StatusDelivered          Status = "DELIVERED"
	StatusCancelled          Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPartiallyDelivered, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ItemStatus tracks delivery progress of one order item.
type ItemStatus string

const (
	ItemOrdered           ItemStatus = "ORDERED"
	ItemPartiallyReceived ItemStatus = "PARTIALLY_RECEIVED"
	ItemReceived          ItemStatus = "RECEIVED"
)

// Order is a purchase order placed with one supplier.
type Order struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	ProjectID  int64           `json:"project_id"`
	SupplierID int64           `json:"supplier_id"`
	CreatedBy  int64           `json:"created_by"`
	Currency   string          `json:"currency"`
	Note       string          `json:"note,omitempty"`
	Status     Status          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
	Items      []Item          `json:"items"`
}

// Item is one ordered line. Quantity, price and sum never change after creation.
type Item struct {
	ID                int64           `json:"id"`
	OrderID           int64           `json:"order_id"`
	RequestItemID     int64           `json:"request_item_id"`
	MaterialID        int64           `json:"material_id"`
	UnitID            int64           `json:"unit_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Sum               decimal.Decimal `json:"sum"`
	Status            ItemStatus      `json:"status"`
	DeliveredQuantity decimal.Decimal `json:"delivered_quantity"`
}

// Available is the quantity still expected from the supplier.
func (i Item) Available() decimal.Decimal {
	return i.Quantity.Sub(i.DeliveredQuantity)
}

// ListFilters narrows ListOrders.
type ListFilters struct {
	SupplierID int64
	Status     Status
	Limit      int
	Offset     int
}

// LineSum is price times quantity rounded to two decimal places.
func LineSum(price, qty decimal.Decimal) decimal.Decimal {
	return price.Mul(qty).Round(2)
}

// ItemStatusFor derives an item status from delivered against ordered.
func ItemStatusFor(delivered, ordered decimal.Decimal) ItemStatus {
	switch {
	case !delivered.IsPositive():
		return ItemOrdered
	case delivered.LessThan(ordered):
		return ItemPartiallyReceived
	default:
		return ItemReceived
	}
}

// DeriveStatus computes the order status from its items. Cancelled is terminal.
func DeriveStatus(current Status, items []Item) Status {
	if current == StatusCancelled {
		return current
	}
	if len(items) == 0 {
		return StatusCreated
	}
	received, touched := 0, 0
	for _, item := range items {
		switch ItemStatusFor(item.DeliveredQuantity, item.Quantity) {
		case ItemReceived:
			received++
			touched++
		case ItemPartiallyReceived:
			touched++
		}
	}
	switch {
	case received == len(items):
		return StatusDelivered
	case touched > 0:
		return StatusPartiallyDelivered
	default:
		return StatusCreated
	}
}

func orderTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Sum)
	}
	return total
}
