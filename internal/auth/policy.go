package auth

import "github.com/quickbite/orderflow/internal/fault"

type Operation string

const (
	OpManageCart      Operation = "manage_cart"
	OpPlaceOrder      Operation = "place_order"
	OpViewOrder       Operation = "view_order"
	OpAdvanceStatus   Operation = "advance_status"
	OpCancelOrder     Operation = "cancel_order"
	OpAssignDelivery  Operation = "assign_delivery"
	OpRespondDelivery Operation = "respond_delivery"
	OpPostMilestone   Operation = "post_milestone"
	OpListAgents      Operation = "list_agents"
	OpInitiatePayment Operation = "initiate_payment"
	OpViewPayments    Operation = "view_payments"
)

// policy is the single capability table consulted before any mutation.
// Resource-level ownership (own cart, own order, assigned agent) is checked by
// the owning service after this gate.
var policy = map[Operation]map[Role]bool{
	OpManageCart:      {RoleCustomer: true},
	OpPlaceOrder:      {RoleCustomer: true, RoleOperator: true},
	OpViewOrder:       {RoleCustomer: true, RoleStaff: true, RoleAgent: true, RoleOperator: true},
	OpAdvanceStatus:   {RoleStaff: true, RoleAgent: true, RoleOperator: true},
	OpCancelOrder:     {RoleStaff: true, RoleOperator: true},
	OpAssignDelivery:  {RoleStaff: true, RoleOperator: true},
	OpRespondDelivery: {RoleAgent: true},
	OpPostMilestone:   {RoleAgent: true},
	OpListAgents:      {RoleStaff: true, RoleOperator: true},
	OpInitiatePayment: {RoleCustomer: true, RoleOperator: true},
	OpViewPayments:    {RoleCustomer: true, RoleStaff: true, RoleOperator: true},
}

// Allow returns a forbidden fault unless the actor's role holds the capability.
func Allow(a Actor, op Operation) error {
	if policy[op][a.Role] {
		return nil
	}
	return fault.Forbidden("operation_not_allowed", string(a.Role)+" may not "+string(op))
}
