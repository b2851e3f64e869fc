package delivery

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/fault"
	"github.com/quickbite/orderflow/internal/order"
)

// OrderLedger is the slice of the order repository dispatch needs. Milestone
// posts move the order status inside the same transaction as the assignment
// update, so the two can never diverge.
type OrderLedger interface {
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, orderID string, from, to order.Status, changedBy, note string) error
	SetAgentTx(ctx context.Context, tx pgx.Tx, orderID string, agentID *string) error
}

type Service struct {
	repo   Repository
	orders OrderLedger
	notify order.Notifier
	logger zerolog.Logger
}

func NewService(repo Repository, orders OrderLedger, notify order.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		orders: orders,
		notify: notify,
		logger: logger.With().Str("component", "delivery").Logger(),
	}
}

// Assign hands a ready delivery order to an agent. The assignment row is
// locked for the duration, so two concurrent assigns serialize: the loser sees
// the winner's agent and is rejected unless it asked to reassign. Reassignment
// is refused once the parcel is in transit.
func (s *Service) Assign(ctx context.Context, actor auth.Actor, orderID, agentID string, reassign bool) (*Assignment, error) {
	if err := auth.Allow(actor, auth.OpAssignDelivery); err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fault.Internal("load order", err)
	}
	if o == nil {
		return nil, fault.NotFound("order_not_found", "order does not exist")
	}
	if o.Type != order.TypeDelivery {
		return nil, fault.Validation("not_delivery_order", "pickup orders are not dispatched")
	}
	if o.Status != order.StatusReady {
		return nil, fault.Conflict("order_not_ready", "order is not ready for dispatch").
			With("current_status", string(o.Status))
	}

	// Availability is display-only; only existence is enforced.
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fault.Internal("load agent", err)
	}
	if agent == nil {
		return nil, fault.Validation("agent_not_found", "delivery agent does not exist")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fault.Internal("begin assign", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := s.repo.EnsureForOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, fault.Internal("lock assignment", err)
	}

	switch a.Status {
	case StatusUnassigned, StatusDeclined:
		// free to assign
	case StatusAssigned, StatusAccepted:
		if !reassign {
			return nil, fault.Conflict("already_assigned", "order already has an active agent").
				With("assigned_agent_id", deref(a.AgentID))
		}
	default:
		return nil, fault.Conflict("delivery_in_progress", "delivery already underway").
			With("delivery_status", string(a.Status))
	}

	note := "assigned to " + agent.Name
	if a.AgentID != nil && *a.AgentID != agentID {
		note = "reassigned to " + agent.Name
	}

	a.AgentID = &agentID
	a.Status = StatusAssigned
	a.Accepted = nil
	if err := s.repo.UpdateTx(ctx, tx, a); err != nil {
		return nil, fault.Internal("update assignment", err)
	}
	if err := s.repo.AppendMilestoneTx(ctx, tx, a.ID, StatusAssigned, note); err != nil {
		return nil, fault.Internal("append milestone", err)
	}
	if err := s.orders.SetAgentTx(ctx, tx, orderID, &agentID); err != nil {
		return nil, fault.Internal("set order agent", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("commit assign", err)
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("agent_id", agentID).
		Bool("reassign", reassign).
		Msg("delivery assigned")

	return s.repo.GetByID(ctx, a.ID)
}

// Respond records the assigned agent's accept or decline. Decline releases the
// order back to the assignment pool.
func (s *Service) Respond(ctx context.Context, actor auth.Actor, assignmentID string, accept bool) (*Assignment, error) {
	if err := auth.Allow(actor, auth.OpRespondDelivery); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fault.Internal("begin respond", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := s.repo.LockTx(ctx, tx, assignmentID)
	if err != nil {
		return nil, fault.Internal("lock assignment", err)
	}
	if a == nil {
		return nil, fault.NotFound("assignment_not_found", "delivery assignment does not exist")
	}
	if a.AgentID == nil || *a.AgentID != actor.ID {
		return nil, fault.Forbidden("not_assigned_agent", "assignment belongs to another agent")
	}
	if a.Status != StatusAssigned {
		return nil, fault.Conflict("already_responded", "assignment is not awaiting a response").
			With("delivery_status", string(a.Status))
	}

	if accept {
		yes := true
		a.Status = StatusAccepted
		a.Accepted = &yes
		if err := s.repo.AppendMilestoneTx(ctx, tx, a.ID, StatusAccepted, "accepted by agent"); err != nil {
			return nil, fault.Internal("append milestone", err)
		}
	} else {
		a.Status = StatusUnassigned
		a.AgentID = nil
		a.Accepted = nil
		if err := s.repo.AppendMilestoneTx(ctx, tx, a.ID, StatusDeclined, "declined by agent "+actor.ID); err != nil {
			return nil, fault.Internal("append milestone", err)
		}
		if err := s.orders.SetAgentTx(ctx, tx, a.OrderID, nil); err != nil {
			return nil, fault.Internal("clear order agent", err)
		}
	}

	if err := s.repo.UpdateTx(ctx, tx, a); err != nil {
		return nil, fault.Internal("update assignment", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("commit respond", err)
	}

	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("agent_id", actor.ID).
		Bool("accepted", accept).
		Msg("delivery response recorded")

	return s.repo.GetByID(ctx, assignmentID)
}

// milestoneOrder maps each milestone to the assignment state it must follow.
var milestoneOrder = map[Status][]Status{
	StatusPickedUp:       {StatusAccepted},
	StatusOutForDelivery: {StatusPickedUp},
	StatusDelivered:      {StatusOutForDelivery},
	StatusFailed:         {StatusPickedUp, StatusOutForDelivery},
}

// PostMilestone records a delivery milestone and drives the order state
// machine in lockstep within one transaction.
func (s *Service) PostMilestone(ctx context.Context, actor auth.Actor, assignmentID string, milestone Status, note string) (*Assignment, error) {
	if err := auth.Allow(actor, auth.OpPostMilestone); err != nil {
		return nil, err
	}
	if !ValidMilestone(milestone) {
		return nil, fault.Validation("invalid_milestone", "unknown milestone "+string(milestone))
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fault.Internal("begin milestone", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := s.repo.LockTx(ctx, tx, assignmentID)
	if err != nil {
		return nil, fault.Internal("lock assignment", err)
	}
	if a == nil {
		return nil, fault.NotFound("assignment_not_found", "delivery assignment does not exist")
	}
	if a.AgentID == nil || *a.AgentID != actor.ID {
		return nil, fault.Forbidden("not_assigned_agent", "assignment belongs to another agent")
	}
	if a.Accepted == nil || !*a.Accepted {
		return nil, fault.Conflict("not_accepted", "agent has not accepted this delivery").
			With("delivery_status", string(a.Status))
	}
	if !statusIn(a.Status, milestoneOrder[milestone]) {
		return nil, fault.Conflict("milestone_out_of_order",
			"cannot post "+string(milestone)+" from "+string(a.Status)).
			With("delivery_status", string(a.Status))
	}

	o, err := s.orders.GetByID(ctx, a.OrderID)
	if err != nil {
		return nil, fault.Internal("load order", err)
	}
	if o == nil {
		return nil, fault.NotFound("order_not_found", "order does not exist")
	}

	target := order.Status(milestone)
	if err := order.CanTransition(o.Status, target, o.Type, actor.Role); err != nil {
		return nil, err
	}

	a.Status = milestone
	if err := s.repo.UpdateTx(ctx, tx, a); err != nil {
		return nil, fault.Internal("update assignment", err)
	}
	if err := s.repo.AppendMilestoneTx(ctx, tx, a.ID, milestone, note); err != nil {
		return nil, fault.Internal("append milestone", err)
	}
	if err := s.orders.UpdateStatusTx(ctx, tx, a.OrderID, o.Status, target, actor.ID, note); err != nil {
		if _, ok := fault.As(err); ok {
			return nil, err
		}
		return nil, fault.Internal("update order status", err)
	}
	if err := s.notify.StatusChanged(ctx, a.OrderID, o.Status, target); err != nil {
		return nil, fault.Internal("publish status change", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("commit milestone", err)
	}

	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("order_id", a.OrderID).
		Str("milestone", string(milestone)).
		Msg("delivery milestone posted")

	return s.repo.GetByID(ctx, assignmentID)
}

func (s *Service) ByOrder(ctx context.Context, actor auth.Actor, orderID string) (*Assignment, error) {
	if err := auth.Allow(actor, auth.OpViewOrder); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fault.Internal("load assignment", err)
	}
	if a == nil {
		return nil, fault.NotFound("assignment_not_found", "order has no delivery assignment")
	}
	return a, nil
}

func (s *Service) ListAgents(ctx context.Context, actor auth.Actor) ([]Agent, error) {
	if err := auth.Allow(actor, auth.OpListAgents); err != nil {
		return nil, err
	}
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, fault.Internal("list agents", err)
	}
	return agents, nil
}

func statusIn(s Status, allowed []Status) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
