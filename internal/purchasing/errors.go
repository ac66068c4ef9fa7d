package purchasing

import "github.com/sitestock/sitestock/internal/shared"

var (
	// ErrLineNotFound indicates the line is missing or its request is not approved.
	ErrLineNotFound = shared.NotFound("line_not_found", "purchasing line not found on an approved request")
	// ErrInvalidPrice indicates a non-positive price.
	ErrInvalidPrice = shared.Validation("invalid_price", "price must be greater than zero with at most 4 decimal places")
	// ErrInvalidCurrency indicates a code outside ISO 4217.
	ErrInvalidCurrency = shared.Validation("invalid_currency", "currency must be an ISO 4217 code")
	// ErrInvalidProject indicates a missing project id.
	ErrInvalidProject = shared.Validation("invalid_project", "project id is required")
)
