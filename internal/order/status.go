package order

import (
	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/fault"
)

type Status string

const (
	StatusReceived       Status = "received"
	StatusInPrep         Status = "in_prep"
	StatusReady          Status = "ready"
	StatusPickedUp       Status = "picked_up"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusReceived, StatusInPrep, StatusReady, StatusPickedUp,
		StatusOutForDelivery, StatusDelivered, StatusCompleted,
		StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is absorbing: no transition leaves it.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

type edge struct {
	from Status
	to   Status
}

// transitions maps each legal edge to the actor roles that may trigger it.
// Operators inherit every staff edge. Cancellation and staff-reported failure
// are handled separately because they are legal from any non-terminal state.
var transitions = map[edge][]auth.Role{
	{StatusReceived, StatusInPrep}:          {auth.RoleStaff, auth.RoleOperator},
	{StatusInPrep, StatusReady}:             {auth.RoleStaff, auth.RoleOperator},
	{StatusReady, StatusCompleted}:          {auth.RoleStaff, auth.RoleOperator},
	{StatusReady, StatusPickedUp}:           {auth.RoleAgent},
	{StatusPickedUp, StatusOutForDelivery}:  {auth.RoleAgent},
	{StatusOutForDelivery, StatusDelivered}: {auth.RoleAgent},
	{StatusPickedUp, StatusFailed}:          {auth.RoleAgent},
	{StatusOutForDelivery, StatusFailed}:    {auth.RoleAgent},
}

// CanTransition checks the edge (from -> to) for the given order type and
// actor role. Skipping states is never allowed; terminal states absorb.
func CanTransition(from, to Status, typ Type, role auth.Role) error {
	if !ValidStatus(to) {
		return fault.Validation("unknown_status", "unknown target status "+string(to))
	}
	if from.Terminal() {
		return fault.Conflict("terminal_status", "order is already "+string(from)).
			With("current_status", string(from))
	}

	if to == StatusCancelled {
		if role == auth.RoleStaff || role == auth.RoleOperator {
			return nil
		}
		return fault.Forbidden("role_not_allowed", string(role)+" may not cancel orders")
	}

	// Failure, like cancellation, is reachable from any non-terminal state for
	// staff and operators. Couriers report it only from the delivery leg, via
	// the edge table below.
	if to == StatusFailed && (role == auth.RoleStaff || role == auth.RoleOperator) {
		return nil
	}

	roles, ok := transitions[edge{from, to}]
	if !ok {
		return fault.Conflict("illegal_transition",
			"cannot move from "+string(from)+" to "+string(to)).
			With("current_status", string(from))
	}

	// Completion is the pickup branch, the delivery leg belongs to delivery orders.
	if to == StatusCompleted && typ != TypePickup {
		return fault.Conflict("illegal_transition", "delivery orders complete via delivered").
			With("current_status", string(from))
	}
	if deliveryLeg(to) && typ != TypeDelivery {
		return fault.Conflict("illegal_transition", "pickup orders have no delivery leg").
			With("current_status", string(from))
	}

	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return fault.Forbidden("role_not_allowed",
		string(role)+" may not move an order from "+string(from)+" to "+string(to))
}

func deliveryLeg(s Status) bool {
	switch s {
	case StatusPickedUp, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}
