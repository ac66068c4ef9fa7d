package requests

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a material request.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusFulfilled       Status = "FULFILLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusFulfilled:
		return true
	}
	return false
}

// Slot names one of the five sign-offs every request needs.
type Slot string

const (
	SlotForeman          Slot = "foreman"
	SlotSiteManager      Slot = "site_manager"
	SlotPurchasingAgent  Slot = "purchasing_agent"
	SlotPlanningEngineer Slot = "planning_engineer"
	SlotMainEngineer     Slot = "main_engineer"
)

// Slots lists the sign-off chain in display order. Signing order is free.
var Slots = [slotCount]Slot{
	SlotForeman,
	SlotSiteManager,
	SlotPurchasingAgent,
	SlotPlanningEngineer,
	SlotMainEngineer,
}

const slotCount = 5

// ParseSlot validates a slot name coming from a URL or payload.
func ParseSlot(value string) (Slot, error) {
	for _, s := range Slots {
		if string(s) == value {
			return s, nil
		}
	}
	return "", ErrUnknownSlot.With("slot", value)
}

func slotIndex(s Slot) int {
	for i, candidate := range Slots {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Approval is the state of one slot. Approved is nil while pending, true once
// signed and false once rejected. ApproverUserID doubles as the pinned approver
// while the slot is pending.
type Approval struct {
	Slot           Slot       `json:"slot"`
	Approved       *bool      `json:"approved"`
	ApproverUserID *int64     `json:"approver_user_id,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
}

// Pending reports whether the slot has not been decided yet.
func (a Approval) Pending() bool { return a.Approved == nil }

// Signed reports whether the slot has been approved.
func (a Approval) Signed() bool { return a.Approved != nil && *a.Approved }

// Rejected reports whether the slot has been rejected.
func (a Approval) Rejected() bool { return a.Approved != nil && !*a.Approved }

// Request is a material request raised for a project.
type Request struct {
	ID        int64               `json:"id"`
	ProjectID int64               `json:"project_id"`
	CreatedBy int64               `json:"created_by"`
	Note      string              `json:"note,omitempty"`
	Status    Status              `json:"status"`
	Version   int64               `json:"version"`
	Approvals [slotCount]Approval `json:"approvals"`
	Items     []Item              `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Approval returns the state of the given slot.
func (r Request) Approval(s Slot) Approval {
	if i := slotIndex(s); i >= 0 {
		return r.Approvals[i]
	}
	return Approval{Slot: s}
}

// Decided reports whether any slot is no longer pending. Items are frozen from then on.
func (r Request) Decided() bool {
	for _, a := range r.Approvals {
		if !a.Pending() {
			return true
		}
	}
	return false
}

// Item is one requested material line.
type Item struct {
	ID             int64           `json:"id"`
	RequestID      int64           `json:"request_id"`
	LineNo         int             `json:"line_no"`
	MaterialTypeID int64           `json:"material_type_id"`
	MaterialID     int64           `json:"material_id"`
	UnitID         int64           `json:"unit_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	Comment        string          `json:"comment,omitempty"`
}

// ListFilters narrows ListRequests.
type ListFilters struct {
	Status Status
	Limit  int
	Offset int
}

// DeriveStatus computes the status implied by the slot states. Draft and
// Fulfilled are set explicitly and never derived.
func DeriveStatus(r Request) Status {
	switch r.Status {
	case StatusDraft, StatusFulfilled:
		return r.Status
	}
	all := true
	for _, a := range r.Approvals {
		if a.Rejected() {
			return StatusRejected
		}
		if !a.Signed() {
			all = false
		}
	}
	if all {
		return StatusApproved
	}
	return StatusPendingApproval
}

func newApprovals() [slotCount]Approval {
	var approvals [slotCount]Approval
	for i, s := range Slots {
		approvals[i] = Approval{Slot: s}
	}
	return approvals
}
