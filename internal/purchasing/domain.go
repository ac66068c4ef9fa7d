package purchasing

import (
	"github.com/shopspring/decimal"
)

// Line is a request item of an approved request as seen by the purchasing agent.
// ID equals the request item id.
type Line struct {
	ID                int64            `json:"id"`
	RequestID         int64            `json:"request_id"`
	ProjectID         int64            `json:"project_id"`
	LineNo            int              `json:"line_no"`
	MaterialTypeID    int64            `json:"material_type_id"`
	MaterialID        int64            `json:"material_id"`
	UnitID            int64            `json:"unit_id"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Currency          *string          `json:"currency,omitempty"`
	TotalOrdered      decimal.Decimal  `json:"total_ordered"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	Comment           string           `json:"comment,omitempty"`
	RequestStatus     string           `json:"-"`
}

// Orderable reports whether more can still be ordered against the line.
func (l Line) Orderable() bool {
	return l.RemainingQuantity.IsPositive()
}

// Approved reports whether the owning request is approved.
func (l Line) Approved() bool {
	return l.RequestStatus == approvedStatus
}

// ListFilters narrows ListOrderableLines.
type ListFilters struct {
	MaterialTypeID int64
	MaterialID     int64
}

// Remaining derives how much of a line is still unordered. Ordered totals only
// count items of orders that were not cancelled.
func Remaining(requested, ordered decimal.Decimal) decimal.Decimal {
	rest := requested.Sub(ordered)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

func (l *Line) derive() {
	l.RemainingQuantity = Remaining(l.RequestedQuantity, l.TotalOrdered)
}
