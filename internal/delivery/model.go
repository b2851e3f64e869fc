package delivery

import "time"

type Status string

const (
	StatusUnassigned     Status = "unassigned"
	StatusAssigned       Status = "assigned"
	StatusAccepted       Status = "accepted"
	StatusDeclined       Status = "declined"
	StatusPickedUp       Status = "picked_up"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusFailed         Status = "failed"
)

// Milestone statuses an accepted agent may post.
func ValidMilestone(s Status) bool {
	switch s {
	case StatusPickedUp, StatusOutForDelivery, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

type Milestone struct {
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// Assignment tracks which agent is responsible for delivering an order.
// Accepted is the agent's tri-state response: nil until answered.
type Assignment struct {
	ID         string      `json:"assignmentId"`
	OrderID    string      `json:"orderId"`
	AgentID    *string     `json:"agentId,omitempty"`
	Status     Status      `json:"status"`
	Accepted   *bool       `json:"accepted,omitempty"`
	Milestones []Milestone `json:"milestones,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type Agent struct {
	ID        string `json:"agentId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Available bool   `json:"available"`
}
