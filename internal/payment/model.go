package payment

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// Terminal attempt statuses are never overwritten by later reports.
func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// Attempt is one initiation of a gateway collection request. Attempts are an
// audit trail: rows are created for every initiation and never deleted.
type Attempt struct {
	ID          string    `json:"paymentId"`
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	Amount      float64   `json:"amount"`
	PhoneNumber string    `json:"phoneNumber"`
	Status      Status    `json:"status"`
	ExternalRef string    `json:"externalRef"`
	GatewayRef  string    `json:"gatewayRef"`
	Operator    string    `json:"operator"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
