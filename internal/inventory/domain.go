package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementReceipt is an inbound delivery against a purchase order.
	MovementReceipt MovementType = "RECEIPT"
	// MovementIssue hands material out to the site.
	MovementIssue MovementType = "ISSUE"
	// MovementAdjust corrects stock after a count.
	MovementAdjust MovementType = "ADJUST"
	// MovementTransferIn is the receiving leg of a transfer.
	MovementTransferIn MovementType = "TRANSFER_IN"
	// MovementTransferOut is the sending leg of a transfer.
	MovementTransferOut MovementType = "TRANSFER_OUT"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementReceipt, MovementIssue, MovementAdjust, MovementTransferIn, MovementTransferOut:
		return true
	}
	return false
}

// Stock is the on-hand quantity of one material in one unit at a warehouse.
type Stock struct {
	ID          int64           `json:"id"`
	WarehouseID int64           `json:"warehouse_id"`
	MaterialID  int64           `json:"material_id"`
	UnitID      int64           `json:"unit_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Movement is an append-only ledger entry. Quantity is signed.
type Movement struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Type        MovementType    `json:"type"`
	WarehouseID int64           `json:"warehouse_id"`
	MaterialID  int64           `json:"material_id"`
	UnitID      int64           `json:"unit_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Balance     decimal.Decimal `json:"balance"`
	RefModule   string          `json:"ref_module,omitempty"`
	RefID       uuid.UUID       `json:"ref_id"`
	ActorID     int64           `json:"actor_id"`
	Note        string          `json:"note,omitempty"`
	PostedAt    time.Time       `json:"posted_at"`
}

// MovementInput describes an out-of-core movement such as an issue or adjustment.
type MovementInput struct {
	Code        string
	Type        MovementType
	WarehouseID int64
	MaterialID  int64
	UnitID      int64
	Quantity    decimal.Decimal
	RefModule   string
	RefID       string
	Note        string
}

// TransferInput describes a transfer between warehouses.
type TransferInput struct {
	Code         string
	MaterialID   int64
	UnitID       int64
	Quantity     decimal.Decimal
	SrcWarehouse int64
	DstWarehouse int64
	Note         string
}

// StockFilter narrows stock listings.
type StockFilter struct {
	WarehouseID int64
	MaterialID  int64
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	WarehouseID int64
	MaterialID  int64
	From        time.Time
	To          time.Time
	Limit       int
}

var (
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = shared.Conflict("negative_stock", "movement would make stock negative")
	// ErrInvalidQuantity indicates a zero quantity or a sign that does not fit the movement type.
	ErrInvalidQuantity = shared.Validation("invalid_quantity", "quantity is invalid for this movement")
	// ErrInvalidWarehouse indicates a missing or unknown warehouse.
	ErrInvalidWarehouse = shared.Validation("invalid_warehouse", "warehouse does not exist")
	// ErrInvalidMaterial indicates missing material or unit ids.
	ErrInvalidMaterial = shared.Validation("invalid_material", "material and unit are required")
	// ErrInvalidMovementType indicates an unknown or reserved movement type.
	ErrInvalidMovementType = shared.Validation("invalid_movement_type", "movement type not allowed")
	// ErrInvalidRef indicates a reference id that is not a UUID.
	ErrInvalidRef = shared.Validation("invalid_ref", "reference id must be a UUID")
	// ErrSameWarehouse indicates a transfer onto itself.
	ErrSameWarehouse = shared.Validation("same_warehouse", "source and destination warehouse must differ")
)

// checkSign validates the quantity sign expected by each movement type.
func checkSign(t MovementType, qty decimal.Decimal) error {
	if !shared.FitsNumeric(qty) {
		return ErrInvalidQuantity.With("type", t).With("quantity", qty)
	}
	switch t {
	case MovementReceipt, MovementTransferIn:
		if !qty.IsPositive() {
			return ErrInvalidQuantity.With("type", t).With("quantity", qty)
		}
	case MovementIssue, MovementTransferOut:
		if !qty.IsNegative() {
			return ErrInvalidQuantity.With("type", t).With("quantity", qty)
		}
	case MovementAdjust:
		if qty.IsZero() {
			return ErrInvalidQuantity.With("type", t)
		}
	default:
		return ErrInvalidMovementType.With("type", t)
	}
	return nil
}
