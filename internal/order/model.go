package order

import "time"

type Type string

const (
	TypeDelivery Type = "delivery"
	TypePickup   Type = "pickup"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobile_money"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Line is an immutable snapshot of one ordered item. Name and unit price are
// copied from the catalog at commit time so later menu edits never change
// existing orders.
type Line struct {
	MenuItemID string  `json:"menuItemId"`
	ItemName   string  `json:"itemName"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int     `json:"quantity"`
}

func (l Line) Total() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

type Order struct {
	ID              string        `json:"orderId"`
	CustomerID      string        `json:"customerId"`
	RestaurantID    string        `json:"restaurantId"`
	Type            Type          `json:"orderType"`
	Lines           []Line        `json:"lines"`
	TotalAmount     float64       `json:"totalAmount"`
	Status          Status        `json:"status"`
	DeliveryAddress string        `json:"deliveryAddress,omitempty"`
	CustomerPhone   string        `json:"customerPhone"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	AssignedAgentID *string       `json:"assignedAgentId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// HistoryEntry is one row of the append-only order timeline.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	Note      string    `json:"note"`
	ChangedAt time.Time `json:"changedAt"`
}
