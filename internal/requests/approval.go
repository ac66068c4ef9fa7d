package requests

import (
	"time"

	"github.com/sitestock/sitestock/internal/shared"
)

// Role is a platform role id as supplied by the identity gateway.
type Role int64

const (
	RoleAdministrator    Role = 1
	RoleForeman          Role = 2
	RoleSiteManager      Role = 3
	RolePurchasingAgent  Role = 4
	RolePlanningEngineer Role = 5
	RoleMainEngineer     Role = 6
)

var roleSlots = map[Role]Slot{
	RoleForeman:          SlotForeman,
	RoleSiteManager:      SlotSiteManager,
	RolePurchasingAgent:  SlotPurchasingAgent,
	RolePlanningEngineer: SlotPlanningEngineer,
	RoleMainEngineer:     SlotMainEngineer,
}

// SlotsForRole resolves the slots a role decides. Administrator decides all five.
func SlotsForRole(role Role) ([]Slot, error) {
	if role == RoleAdministrator {
		return Slots[:], nil
	}
	slot, ok := roleSlots[role]
	if !ok {
		return nil, ErrUnknownRole.With("role_id", int64(role))
	}
	return []Slot{slot}, nil
}

// decide applies a sign (approve=true) or reject (approve=false) by actor to req
// and returns the slots it changed. req is left untouched on error.
func decide(req *Request, actor shared.Actor, approve bool, now time.Time) ([]Slot, error) {
	role := Role(actor.RoleID)
	slots, err := SlotsForRole(role)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case StatusDraft:
		return nil, ErrRequestNotSubmitted.With("request_id", req.ID)
	case StatusRejected, StatusFulfilled:
		return nil, ErrRequestNotEditable.With("request_id", req.ID).With("status", req.Status)
	}

	next := req.Approvals
	var changed []Slot
	for _, slot := range slots {
		i := slotIndex(slot)
		current := next[i]
		if role == RoleAdministrator {
			if current.Signed() {
				continue
			}
		} else {
			if !current.Pending() {
				return nil, ErrAlreadyApproved.With("slot", slot)
			}
			if current.ApproverUserID != nil && *current.ApproverUserID != actor.UserID {
				return nil, ErrNotYourApproval.With("slot", slot)
			}
		}
		decision := approve
		userID := actor.UserID
		at := now
		next[i] = Approval{Slot: slot, Approved: &decision, ApproverUserID: &userID, ApprovedAt: &at}
		changed = append(changed, slot)
	}
	if len(changed) == 0 {
		return nil, ErrAlreadyApproved.With("request_id", req.ID)
	}
	req.Approvals = next
	req.Status = DeriveStatus(*req)
	return changed, nil
}

// pin sets or clears the pinned approver of a pending slot.
func pin(req *Request, slot Slot, userID *int64) error {
	switch req.Status {
	case StatusRejected, StatusFulfilled:
		return ErrRequestNotEditable.With("request_id", req.ID).With("status", req.Status)
	}
	i := slotIndex(slot)
	if i < 0 {
		return ErrUnknownSlot.With("slot", slot)
	}
	if !req.Approvals[i].Pending() {
		return ErrAlreadyApproved.With("slot", slot)
	}
	req.Approvals[i].ApproverUserID = userID
	return nil
}
