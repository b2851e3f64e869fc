package events

import "time"

const (
	EventsExchange = "orderflow.events"

	OrderCreatedRoutingKey    = "order.created.v1"
	StatusChangedRoutingKey   = "order.status_changed.v1"
	PaymentReceivedRoutingKey = "payment.received.v1"
)

type OrderLine struct {
	MenuItemID string  `json:"menuItemId"`
	ItemName   string  `json:"itemName"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int     `json:"quantity"`
}

type OrderCreated struct {
	EventType    string      `json:"eventType"`
	OrderID      string      `json:"orderId"`
	CustomerID   string      `json:"customerId"`
	RestaurantID string      `json:"restaurantId"`
	OrderType    string      `json:"orderType"`
	TotalAmount  float64     `json:"totalAmount"`
	Lines        []OrderLine `json:"lines"`
	Timestamp    time.Time   `json:"timestamp"`
}

type StatusChanged struct {
	EventType string    `json:"eventType"`
	OrderID   string    `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentReceived struct {
	EventType string    `json:"eventType"`
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
