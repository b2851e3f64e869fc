package order

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/catalog"
	"github.com/quickbite/orderflow/internal/fault"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(_ context.Context) error { t.committed = true; return nil }
func (t *fakeTx) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeOrderRepo struct {
	tx        *fakeTx
	created   *Order
	createErr error

	byID    map[string]*Order
	history []HistoryEntry

	updated       []Status
	updateErr     error
	agentSet      *string
	paymentStatus PaymentStatus
	paymentSet    bool
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{tx: &fakeTx{}, byID: make(map[string]*Order)}
}

func (r *fakeOrderRepo) BeginTx(_ context.Context) (pgx.Tx, error) { return r.tx, nil }

func (r *fakeOrderRepo) CreateTx(_ context.Context, _ pgx.Tx, o *Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	o.ID = "order-1"
	r.created = o
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, orderID string) (*Order, error) {
	return r.byID[orderID], nil
}

func (r *fakeOrderRepo) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	var out []Order
	for _, o := range r.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) History(_ context.Context, _ string) ([]HistoryEntry, error) {
	return r.history, nil
}

func (r *fakeOrderRepo) UpdateStatusTx(_ context.Context, _ pgx.Tx, orderID string, _, to Status, _, _ string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updated = append(r.updated, to)
	if o, ok := r.byID[orderID]; ok {
		o.Status = to
	}
	return nil
}

func (r *fakeOrderRepo) SetAgentTx(_ context.Context, _ pgx.Tx, _ string, agentID *string) error {
	r.agentSet = agentID
	return nil
}

func (r *fakeOrderRepo) SetPaymentStatus(_ context.Context, _ string, status PaymentStatus) (bool, error) {
	r.paymentStatus = status
	r.paymentSet = true
	return true, nil
}

type fakeCartRepo struct {
	carts   map[string]*cart.Cart // keyed by customerID|restaurantID
	drained []string
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: make(map[string]*cart.Cart)}
}

func (r *fakeCartRepo) Get(_ context.Context, customerID, restaurantID string) (*cart.Cart, error) {
	return r.carts[customerID+"|"+restaurantID], nil
}

func (r *fakeCartRepo) AddItem(_ context.Context, _, _ string, _ cart.Item) (*cart.Cart, error) {
	return nil, nil
}

func (r *fakeCartRepo) SetItemQuantity(_ context.Context, _, _, _ string, _ int) (*cart.Cart, error) {
	return nil, nil
}

func (r *fakeCartRepo) Clear(_ context.Context, _, _ string) error { return nil }

func (r *fakeCartRepo) DrainTx(_ context.Context, _ pgx.Tx, cartID string) error {
	r.drained = append(r.drained, cartID)
	return nil
}

type fakeCatalog struct {
	items       map[string]catalog.MenuItem
	restaurants map[string]catalog.Restaurant
	err         error
}

func (c *fakeCatalog) MenuItem(_ context.Context, id string) (catalog.MenuItem, error) {
	if c.err != nil {
		return catalog.MenuItem{}, c.err
	}
	mi, ok := c.items[id]
	if !ok {
		return catalog.MenuItem{}, catalog.ErrNotFound
	}
	return mi, nil
}

func (c *fakeCatalog) Restaurant(_ context.Context, id string) (catalog.Restaurant, error) {
	if c.err != nil {
		return catalog.Restaurant{}, c.err
	}
	r, ok := c.restaurants[id]
	if !ok {
		return catalog.Restaurant{}, catalog.ErrNotFound
	}
	return r, nil
}

type fakeNotifier struct {
	created       []string
	changed       []Status
	orderCreatedE error
	statusChanged error
}

func (n *fakeNotifier) OrderCreated(_ context.Context, o *Order) error {
	if n.orderCreatedE != nil {
		return n.orderCreatedE
	}
	n.created = append(n.created, o.ID)
	return nil
}

func (n *fakeNotifier) StatusChanged(_ context.Context, orderID string, _, to Status) error {
	if n.statusChanged != nil {
		return n.statusChanged
	}
	n.changed = append(n.changed, to)
	return nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		restaurants: map[string]catalog.Restaurant{
			"rest-1": {ID: "rest-1", IsActive: true},
			"rest-2": {ID: "rest-2", IsActive: false},
		},
		items: map[string]catalog.MenuItem{
			"pizza":  {ID: "pizza", RestaurantID: "rest-1", Name: "Margherita", Price: 1000, Available: true},
			"salad":  {ID: "salad", RestaurantID: "rest-1", Name: "Caesar Salad", Price: 1500, Available: true},
			"burger": {ID: "burger", RestaurantID: "rest-2", Name: "Burger", Price: 800, Available: true},
			"soup":   {ID: "soup", RestaurantID: "rest-1", Name: "Soup", Price: 500, Available: false},
		},
	}
}

func newTestService(orders *fakeOrderRepo, carts *fakeCartRepo, cat *fakeCatalog, notify *fakeNotifier) *Service {
	return NewService(orders, carts, cat, notify, zerolog.Nop())
}

func customerActor(id string) auth.Actor { return auth.Actor{ID: id, Role: auth.RoleCustomer} }

func deliveryInput() PlacementInput {
	return PlacementInput{
		CustomerID:      "cust-1",
		RestaurantID:    "rest-1",
		Type:            TypeDelivery,
		Items:           []cart.Item{{MenuItemID: "pizza", Quantity: 2}, {MenuItemID: "salad", Quantity: 1}},
		DeliveryAddress: "12 Baker St",
		CustomerPhone:   "0771234567",
		PaymentMethod:   PaymentMobileMoney,
	}
}

func TestPlace_TotalFromCatalogPrices(t *testing.T) {
	orders := newFakeOrderRepo()
	notify := &fakeNotifier{}
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), notify)

	o, err := svc.Place(context.Background(), customerActor("cust-1"), deliveryInput())
	require.NoError(t, err)

	// 2 x 1000 + 1 x 1500, from catalog prices, not client input
	assert.Equal(t, 3500.0, o.TotalAmount)
	assert.Equal(t, StatusReceived, o.Status)
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
	assert.Len(t, o.Lines, 2)
	assert.Equal(t, "Margherita", o.Lines[0].ItemName)
	assert.Equal(t, 1000.0, o.Lines[0].UnitPrice)

	assert.True(t, orders.tx.committed)
	assert.Equal(t, []string{"order-1"}, notify.created)
}

func TestPlace_FromOpenCart(t *testing.T) {
	orders := newFakeOrderRepo()
	carts := newFakeCartRepo()
	carts.carts["cust-1|rest-1"] = &cart.Cart{
		ID:           "cart-1",
		CustomerID:   "cust-1",
		RestaurantID: "rest-1",
		Items:        []cart.Item{{MenuItemID: "pizza", Quantity: 1}},
	}
	svc := newTestService(orders, carts, testCatalog(), &fakeNotifier{})

	in := deliveryInput()
	in.Items = nil
	o, err := svc.Place(context.Background(), customerActor("cust-1"), in)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, o.TotalAmount)
	// the cart drains in the same commit unit as the order insert
	assert.Equal(t, []string{"cart-1"}, carts.drained)
	assert.True(t, orders.tx.committed)
}

func TestPlace_EmptyCartRejected(t *testing.T) {
	orders := newFakeOrderRepo()
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	in := deliveryInput()
	in.Items = nil
	_, err := svc.Place(context.Background(), customerActor("cust-1"), in)
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	assert.Nil(t, orders.created)
}

func TestPlace_ForeignItemRejectedBeforeAnyWrite(t *testing.T) {
	orders := newFakeOrderRepo()
	carts := newFakeCartRepo()
	svc := newTestService(orders, carts, testCatalog(), &fakeNotifier{})

	in := deliveryInput()
	in.Items = []cart.Item{{MenuItemID: "pizza", Quantity: 1}, {MenuItemID: "burger", Quantity: 1}}
	_, err := svc.Place(context.Background(), customerActor("cust-1"), in)
	require.Error(t, err)

	fe, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, "foreign_menu_item", fe.Code)
	assert.Nil(t, orders.created)
	assert.Empty(t, carts.drained)
	assert.False(t, orders.tx.committed)
}

func TestPlace_UnavailableItemRejected(t *testing.T) {
	orders := newFakeOrderRepo()
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	in := deliveryInput()
	in.Items = []cart.Item{{MenuItemID: "soup", Quantity: 1}}
	_, err := svc.Place(context.Background(), customerActor("cust-1"), in)
	require.Error(t, err)

	fe, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, "item_unavailable", fe.Code)
	assert.Nil(t, orders.created)
}

func TestPlace_InactiveRestaurantRejected(t *testing.T) {
	orders := newFakeOrderRepo()
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	in := deliveryInput()
	in.RestaurantID = "rest-2"
	in.Items = []cart.Item{{MenuItemID: "burger", Quantity: 1}}
	_, err := svc.Place(context.Background(), customerActor("cust-1"), in)
	require.Error(t, err)

	fe, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, "restaurant_inactive", fe.Code)
}

func TestPlace_NotifyFailureRollsBack(t *testing.T) {
	orders := newFakeOrderRepo()
	carts := newFakeCartRepo()
	carts.carts["cust-1|rest-1"] = &cart.Cart{
		ID: "cart-1", CustomerID: "cust-1", RestaurantID: "rest-1",
		Items: []cart.Item{{MenuItemID: "pizza", Quantity: 1}},
	}
	notify := &fakeNotifier{orderCreatedE: errors.New("broker down")}
	svc := newTestService(orders, carts, testCatalog(), notify)

	in := deliveryInput()
	in.Items = nil
	_, err := svc.Place(context.Background(), customerActor("cust-1"), in)
	require.Error(t, err)
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))

	// nothing commits, so order insert and cart drain both unwind
	assert.False(t, orders.tx.committed)
	assert.True(t, orders.tx.rolledBack)
}

func TestPlace_ValidationFailures(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(), newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	tests := []struct {
		name   string
		mutate func(*PlacementInput)
		code   string
	}{
		{"zero quantity", func(in *PlacementInput) {
			in.Items = []cart.Item{{MenuItemID: "pizza", Quantity: 0}}
		}, "invalid_quantity"},
		{"missing phone", func(in *PlacementInput) { in.CustomerPhone = "" }, "missing_phone"},
		{"delivery without address", func(in *PlacementInput) { in.DeliveryAddress = "" }, "missing_address"},
		{"bad order type", func(in *PlacementInput) { in.Type = Type("teleport") }, "invalid_order_type"},
		{"bad payment method", func(in *PlacementInput) { in.PaymentMethod = PaymentMethod("gold") }, "invalid_payment_method"},
		{"unknown item", func(in *PlacementInput) {
			in.Items = []cart.Item{{MenuItemID: "nope", Quantity: 1}}
		}, "item_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := deliveryInput()
			tt.mutate(&in)
			_, err := svc.Place(context.Background(), customerActor("cust-1"), in)
			require.Error(t, err)
			fe, ok := fault.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, fe.Code)
		})
	}
}

func TestPlace_CustomerCannotOrderForAnother(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(), newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	_, err := svc.Place(context.Background(), customerActor("cust-2"), deliveryInput())
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestPlace_CatalogUnreachable(t *testing.T) {
	cat := testCatalog()
	cat.err = errors.New("dial tcp: connection refused")
	svc := newTestService(newFakeOrderRepo(), newFakeCartRepo(), cat, &fakeNotifier{})

	_, err := svc.Place(context.Background(), customerActor("cust-1"), deliveryInput())
	require.Error(t, err)
	assert.Equal(t, fault.KindUnavailable, fault.KindOf(err))
}

func TestAdvance_PublishesAndCommits(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.byID["order-1"] = &Order{ID: "order-1", CustomerID: "cust-1", Type: TypeDelivery, Status: StatusReceived}
	notify := &fakeNotifier{}
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), notify)

	o, err := svc.Advance(context.Background(), auth.Actor{ID: "staff-1", Role: auth.RoleStaff}, "order-1", StatusInPrep, "")
	require.NoError(t, err)
	assert.Equal(t, StatusInPrep, o.Status)
	assert.Equal(t, []Status{StatusInPrep}, notify.changed)
	assert.True(t, orders.tx.committed)
}

func TestAdvance_StaleStatusSurfacesConflict(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.byID["order-1"] = &Order{ID: "order-1", Type: TypeDelivery, Status: StatusReceived}
	orders.updateErr = fault.Conflict("stale_status", "order moved").With("current_status", "cancelled")
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	_, err := svc.Advance(context.Background(), auth.Actor{ID: "staff-1", Role: auth.RoleStaff}, "order-1", StatusInPrep, "")
	require.Error(t, err)

	fe, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, "stale_status", fe.Code)
	assert.Equal(t, "cancelled", fe.Meta["current_status"])
}

func TestAdvance_UnknownOrder(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(), newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	_, err := svc.Advance(context.Background(), auth.Actor{ID: "staff-1", Role: auth.RoleStaff}, "nope", StatusInPrep, "")
	require.Error(t, err)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestAdvance_AgentMustBeAssigned(t *testing.T) {
	assigned := "agent-1"
	orders := newFakeOrderRepo()
	orders.byID["order-1"] = &Order{ID: "order-1", CustomerID: "cust-1", Type: TypeDelivery,
		Status: StatusReady, AssignedAgentID: &assigned}
	notify := &fakeNotifier{}
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), notify)

	// another courier cannot drive this delivery
	_, err := svc.Advance(context.Background(), auth.Actor{ID: "agent-2", Role: auth.RoleAgent}, "order-1", StatusPickedUp, "")
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
	assert.Empty(t, notify.changed)

	// an unassigned order gives no courier a claim either
	orders.byID["order-1"].AssignedAgentID = nil
	_, err = svc.Advance(context.Background(), auth.Actor{ID: "agent-2", Role: auth.RoleAgent}, "order-1", StatusPickedUp, "")
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))

	// the assigned agent advances as before
	orders.byID["order-1"].AssignedAgentID = &assigned
	o, err := svc.Advance(context.Background(), auth.Actor{ID: "agent-1", Role: auth.RoleAgent}, "order-1", StatusPickedUp, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, o.Status)
}

func TestCancel_CustomerForbidden(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.byID["order-1"] = &Order{ID: "order-1", CustomerID: "cust-1", Type: TypeDelivery, Status: StatusReceived}
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	_, err := svc.Cancel(context.Background(), customerActor("cust-1"), "order-1", "changed my mind")
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestGet_Ownership(t *testing.T) {
	agent := "agent-1"
	orders := newFakeOrderRepo()
	orders.byID["order-1"] = &Order{ID: "order-1", CustomerID: "cust-1", Type: TypeDelivery,
		Status: StatusOutForDelivery, AssignedAgentID: &agent}
	svc := newTestService(orders, newFakeCartRepo(), testCatalog(), &fakeNotifier{})

	_, err := svc.Get(context.Background(), customerActor("cust-1"), "order-1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), customerActor("cust-2"), "order-1")
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))

	_, err = svc.Get(context.Background(), auth.Actor{ID: "agent-1", Role: auth.RoleAgent}, "order-1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), auth.Actor{ID: "agent-2", Role: auth.RoleAgent}, "order-1")
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))

	_, err = svc.Get(context.Background(), auth.Actor{ID: "staff-1", Role: auth.RoleStaff}, "order-1")
	assert.NoError(t, err)
}
