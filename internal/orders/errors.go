package orders

import "github.com/sitestock/sitestock/internal/shared"

var (
	// ErrOrderNotFound indicates the order id does not exist.
	ErrOrderNotFound = shared.NotFound("order_not_found", "purchase order not found")
	// ErrEmptyOrder indicates an order without selections.
	ErrEmptyOrder = shared.Validation("empty_order", "at least one line must be selected")
	// ErrInvalidQuantity indicates a non-positive ordered quantity.
	ErrInvalidQuantity = shared.Validation("invalid_quantity", "quantity must be greater than zero with at most 4 decimal places")
	// ErrInvalidSupplier indicates a missing supplier.
	ErrInvalidSupplier = shared.Validation("invalid_supplier", "supplier id is required")
	// ErrInvalidProject indicates a missing project id.
	ErrInvalidProject = shared.Validation("invalid_project", "project id is required")
	// ErrInvalidStatus indicates an unknown status filter.
	ErrInvalidStatus = shared.Validation("invalid_status", "unknown order status")
	// ErrPriceRequired indicates neither the selection nor the line carries a price.
	ErrPriceRequired = shared.Validation("price_required", "line has no price")
	// ErrInvalidLineForProject indicates a line outside the approved requests of the project.
	ErrInvalidLineForProject = shared.Validation("invalid_line_for_project", "line is not an approved line of this project")
	// ErrCurrencyMismatch indicates lines priced in different currencies.
	ErrCurrencyMismatch = shared.Validation("currency_mismatch", "lines are priced in different currencies")
	// ErrOverOrdering indicates ordering beyond the remaining quantity of a line.
	ErrOverOrdering = shared.Conflict("over_ordering", "ordered quantity exceeds remaining quantity")
	// ErrOrderNotCancellable indicates a cancel after delivery started.
	ErrOrderNotCancellable = shared.Conflict("order_not_cancellable", "only undelivered orders can be cancelled")
)
