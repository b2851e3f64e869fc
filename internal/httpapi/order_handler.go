package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/order"
)

// OrderService is the slice of the order engine the HTTP layer uses.
type OrderService interface {
	Place(ctx context.Context, actor auth.Actor, in order.PlacementInput) (*order.Order, error)
	Get(ctx context.Context, actor auth.Actor, orderID string) (*order.Order, error)
	ListByCustomer(ctx context.Context, actor auth.Actor, customerID string) ([]order.Order, error)
	History(ctx context.Context, actor auth.Actor, orderID string) ([]order.HistoryEntry, error)
	Advance(ctx context.Context, actor auth.Actor, orderID string, target order.Status, note string) (*order.Order, error)
	Cancel(ctx context.Context, actor auth.Actor, orderID, note string) (*order.Order, error)
}

type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type placeOrderRequest struct {
	CustomerID      string      `json:"customerId,omitempty"`
	RestaurantID    string      `json:"restaurantId"`
	OrderType       string      `json:"orderType"`
	Items           []cart.Item `json:"items,omitempty"`
	DeliveryAddress string      `json:"deliveryAddress,omitempty"`
	CustomerPhone   string      `json:"customerPhone"`
	PaymentMethod   string      `json:"paymentMethod"`
}

type placeOrderResponse struct {
	OrderID string  `json:"orderId"`
	Total   float64 `json:"total"`
	Status  string  `json:"status"`
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	customerID := req.CustomerID
	if actor.Role == auth.RoleCustomer {
		customerID = actor.ID
	}

	o, err := h.orders.Place(r.Context(), actor, order.PlacementInput{
		CustomerID:      customerID,
		RestaurantID:    req.RestaurantID,
		Type:            order.Type(req.OrderType),
		Items:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		CustomerPhone:   req.CustomerPhone,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID: o.ID,
		Total:   o.TotalAmount,
		Status:  string(o.Status),
	})
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		customerID = actor.ID
	}

	orders, err := h.orders.ListByCustomer(r.Context(), actor, customerID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	history, err := h.orders.History(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Status == "" {
		writeError(w, http.StatusBadRequest, "missing status")
		return
	}

	o, err := h.orders.Advance(r.Context(), actor, chi.URLParam(r, "orderID"),
		order.Status(body.Status), body.Note)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note"`
	}
	// body is optional
	_ = json.NewDecoder(r.Body).Decode(&body)

	o, err := h.orders.Cancel(r.Context(), actor, chi.URLParam(r, "orderID"), body.Note)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return auth.Actor{}, false
	}
	return actor, true
}
