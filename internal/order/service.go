package order

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/catalog"
	"github.com/quickbite/orderflow/internal/fault"
)

// Notifier publishes order lifecycle events. The placement publish happens
// inside the commit unit: a broker failure aborts the whole placement.
type Notifier interface {
	OrderCreated(ctx context.Context, o *Order) error
	StatusChanged(ctx context.Context, orderID string, from, to Status) error
}

type Service struct {
	orders  Repository
	carts   cart.Repository
	catalog catalog.Gateway
	notify  Notifier
	logger  zerolog.Logger
}

func NewService(orders Repository, carts cart.Repository, gw catalog.Gateway, notify Notifier, logger zerolog.Logger) *Service {
	return &Service{
		orders:  orders,
		carts:   carts,
		catalog: gw,
		notify:  notify,
		logger:  logger.With().Str("component", "order").Logger(),
	}
}

type PlacementInput struct {
	CustomerID      string
	RestaurantID    string
	Type            Type
	Items           []cart.Item // empty means: consume the open cart
	DeliveryAddress string
	CustomerPhone   string
	PaymentMethod   PaymentMethod
}

// Place validates the selection against the catalog, recomputes the total from
// catalog prices and commits order, lines, history and cart drain as one
// transaction. Nothing is written until every line has been validated.
func (s *Service) Place(ctx context.Context, actor auth.Actor, in PlacementInput) (*Order, error) {
	if err := auth.Allow(actor, auth.OpPlaceOrder); err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleCustomer && actor.ID != in.CustomerID {
		return nil, fault.Forbidden("not_cart_owner", "customers place their own orders")
	}
	if err := validatePlacement(in); err != nil {
		return nil, err
	}

	rest, err := s.catalog.Restaurant(ctx, in.RestaurantID)
	if err != nil {
		return nil, catalogErr(err, "restaurant_not_found", "restaurant does not exist")
	}
	if !rest.IsActive {
		return nil, fault.Validation("restaurant_inactive", "restaurant is not taking orders")
	}

	items := in.Items
	var sourceCart *cart.Cart
	if len(items) == 0 {
		sourceCart, err = s.carts.Get(ctx, in.CustomerID, in.RestaurantID)
		if err != nil {
			return nil, fault.Internal("load cart", err)
		}
		if sourceCart != nil {
			items = sourceCart.Items
		}
	}
	if len(items) == 0 {
		return nil, fault.Validation("empty_order", "no items to order")
	}

	lines, total, err := s.buildLines(ctx, in.RestaurantID, items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		CustomerID:      in.CustomerID,
		RestaurantID:    in.RestaurantID,
		Type:            in.Type,
		Lines:           lines,
		TotalAmount:     total,
		Status:          StatusReceived,
		DeliveryAddress: in.DeliveryAddress,
		CustomerPhone:   in.CustomerPhone,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   PaymentUnpaid,
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return nil, fault.Internal("begin placement", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.orders.CreateTx(ctx, tx, o); err != nil {
		return nil, fault.Internal("commit order", err)
	}
	if sourceCart != nil {
		if err := s.carts.DrainTx(ctx, tx, sourceCart.ID); err != nil {
			return nil, fault.Internal("drain cart", err)
		}
	}
	if err := s.notify.OrderCreated(ctx, o); err != nil {
		return nil, fault.Internal("publish order created", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("commit placement", err)
	}

	s.logger.Info().
		Str("order_id", o.ID).
		Str("customer_id", o.CustomerID).
		Float64("total", o.TotalAmount).
		Int("lines", len(o.Lines)).
		Msg("order placed")

	return o, nil
}

func (s *Service) buildLines(ctx context.Context, restaurantID string, items []cart.Item) ([]Line, float64, error) {
	lines := make([]Line, 0, len(items))
	var total float64

	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, 0, fault.Validation("invalid_quantity",
				"quantity must be positive for item "+it.MenuItemID)
		}

		mi, err := s.catalog.MenuItem(ctx, it.MenuItemID)
		if err != nil {
			return nil, 0, catalogErr(err, "item_not_found", "menu item "+it.MenuItemID+" does not exist")
		}
		if mi.RestaurantID != restaurantID {
			return nil, 0, fault.Validation("foreign_menu_item",
				"menu item "+it.MenuItemID+" belongs to a different restaurant")
		}
		if !mi.Available {
			return nil, 0, fault.Validation("item_unavailable",
				mi.Name+" is currently unavailable")
		}

		ln := Line{
			MenuItemID: mi.ID,
			ItemName:   mi.Name,
			UnitPrice:  mi.Price,
			Quantity:   it.Quantity,
		}
		lines = append(lines, ln)
		total += ln.Total()
	}

	return lines, total, nil
}

// Advance runs one state machine transition on behalf of the actor.
func (s *Service) Advance(ctx context.Context, actor auth.Actor, orderID string, target Status, note string) (*Order, error) {
	if err := auth.Allow(actor, auth.OpAdvanceStatus); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, orderID, target, note)
}

// Cancel moves a non-terminal order into the absorbing cancelled state.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, orderID, note string) (*Order, error) {
	if err := auth.Allow(actor, auth.OpCancelOrder); err != nil {
		return nil, err
	}
	if note == "" {
		note = "order cancelled"
	}
	return s.transition(ctx, actor, orderID, StatusCancelled, note)
}

func (s *Service) transition(ctx context.Context, actor auth.Actor, orderID string, target Status, note string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fault.Internal("load order", err)
	}
	if o == nil {
		return nil, fault.NotFound("order_not_found", "order does not exist")
	}

	// The role table alone would let any courier drive someone else's
	// delivery; agents act only on the order assigned to them.
	if actor.Role == auth.RoleAgent {
		if o.AssignedAgentID == nil || *o.AssignedAgentID != actor.ID {
			return nil, fault.Forbidden("not_assigned_agent", "order is not assigned to this agent")
		}
	}

	if err := CanTransition(o.Status, target, o.Type, actor.Role); err != nil {
		return nil, err
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return nil, fault.Internal("begin transition", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	from := o.Status
	if err := s.orders.UpdateStatusTx(ctx, tx, orderID, from, target, actor.ID, note); err != nil {
		if _, ok := fault.As(err); ok {
			return nil, err
		}
		return nil, fault.Internal("update status", err)
	}
	if err := s.notify.StatusChanged(ctx, orderID, from, target); err != nil {
		return nil, fault.Internal("publish status change", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("commit transition", err)
	}

	o.Status = target
	s.logger.Info().
		Str("order_id", orderID).
		Str("from", string(from)).
		Str("to", string(target)).
		Str("actor", actor.ID).
		Msg("order status advanced")

	return o, nil
}

// Get returns the order after an ownership check: customers see their own
// orders, agents the ones assigned to them, staff and operators any.
func (s *Service) Get(ctx context.Context, actor auth.Actor, orderID string) (*Order, error) {
	if err := auth.Allow(actor, auth.OpViewOrder); err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fault.Internal("load order", err)
	}
	if o == nil {
		return nil, fault.NotFound("order_not_found", "order does not exist")
	}

	switch actor.Role {
	case auth.RoleCustomer:
		if o.CustomerID != actor.ID {
			return nil, fault.Forbidden("not_order_owner", "order belongs to another customer")
		}
	case auth.RoleAgent:
		if o.AssignedAgentID == nil || *o.AssignedAgentID != actor.ID {
			return nil, fault.Forbidden("not_assigned_agent", "order is not assigned to this agent")
		}
	}

	return o, nil
}

func (s *Service) ListByCustomer(ctx context.Context, actor auth.Actor, customerID string) ([]Order, error) {
	if err := auth.Allow(actor, auth.OpViewOrder); err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleCustomer && actor.ID != customerID {
		return nil, fault.Forbidden("not_order_owner", "customers list their own orders")
	}

	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fault.Internal("list orders", err)
	}
	return orders, nil
}

func (s *Service) History(ctx context.Context, actor auth.Actor, orderID string) ([]HistoryEntry, error) {
	if _, err := s.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	history, err := s.orders.History(ctx, orderID)
	if err != nil {
		return nil, fault.Internal("load history", err)
	}
	return history, nil
}

func validatePlacement(in PlacementInput) error {
	switch {
	case in.CustomerID == "":
		return fault.Validation("missing_customer", "customer id is required")
	case in.RestaurantID == "":
		return fault.Validation("missing_restaurant", "restaurant id is required")
	case in.CustomerPhone == "":
		return fault.Validation("missing_phone", "contact phone is required")
	}
	if in.Type != TypeDelivery && in.Type != TypePickup {
		return fault.Validation("invalid_order_type", "order type must be delivery or pickup")
	}
	if in.Type == TypeDelivery && in.DeliveryAddress == "" {
		return fault.Validation("missing_address", "delivery orders need a delivery address")
	}
	if in.PaymentMethod != PaymentCash && in.PaymentMethod != PaymentMobileMoney {
		return fault.Validation("invalid_payment_method", "payment method must be cash or mobile_money")
	}
	return nil
}

func catalogErr(err error, notFoundCode, notFoundMsg string) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return fault.Validation(notFoundCode, notFoundMsg)
	}
	return fault.Unavailable("catalog_unreachable", "catalog lookup failed", err)
}
