package requests

import "github.com/sitestock/sitestock/internal/shared"

var (
	// ErrRequestNotFound indicates the request id does not exist.
	ErrRequestNotFound = shared.NotFound("request_not_found", "material request not found")
	// ErrUnknownRole indicates the acting role owns no approval slot.
	ErrUnknownRole = shared.Authorization("unknown_role", "role has no approval slot")
	// ErrNotYourApproval indicates the slot is pinned to another user.
	ErrNotYourApproval = shared.Authorization("not_your_approval", "approval slot is assigned to another user")
	// ErrAlreadyApproved indicates the slot has already been decided.
	ErrAlreadyApproved = shared.Conflict("already_approved", "approval slot already decided")
	// ErrRequestNotEditable indicates the request is rejected or closed.
	ErrRequestNotEditable = shared.Conflict("request_not_editable", "material request can no longer change")
	// ErrRequestNotSubmitted indicates a sign-off on a draft.
	ErrRequestNotSubmitted = shared.Conflict("request_not_submitted", "material request has not been submitted")
	// ErrItemsLocked indicates an item edit after approval started.
	ErrItemsLocked = shared.Conflict("items_locked", "items are frozen once approval has started")
	// ErrInvalidState indicates a transition not allowed from the current status.
	ErrInvalidState = shared.Conflict("invalid_state", "operation not allowed in current status")

	// ErrUnknownSlot indicates an unknown slot name.
	ErrUnknownSlot = shared.Validation("unknown_slot", "unknown approval slot")
	// ErrInvalidProject indicates a missing project id.
	ErrInvalidProject = shared.Validation("invalid_project", "project id is required")
	// ErrEmptyItems indicates a request without lines.
	ErrEmptyItems = shared.Validation("empty_items", "at least one item is required")
	// ErrInvalidItem indicates an item with missing material references.
	ErrInvalidItem = shared.Validation("invalid_item", "material type, material and unit are required")
	// ErrInvalidQuantity indicates a non-positive requested quantity.
	ErrInvalidQuantity = shared.Validation("invalid_quantity", "quantity must be greater than zero with at most 4 decimal places")
	// ErrInvalidStatus indicates an unknown status filter.
	ErrInvalidStatus = shared.Validation("invalid_status", "unknown request status")
	// ErrInvalidApprover indicates a missing approver user id.
	ErrInvalidApprover = shared.Validation("invalid_approver", "approver user id is required")
)
