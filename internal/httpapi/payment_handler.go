package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/order"
	"github.com/quickbite/orderflow/internal/payment"
)

type PaymentService interface {
	Initiate(ctx context.Context, actor auth.Actor, orderID, phone string, amount *float64) (*payment.InitiationResult, error)
	Reconcile(ctx context.Context, actor auth.Actor, paymentID string) (*payment.Attempt, error)
	HandleCallback(ctx context.Context, externalRef, gatewayStatus, gatewayRef string) (*payment.Attempt, error)
	StatusByOrder(ctx context.Context, actor auth.Actor, orderID string) (order.PaymentStatus, []payment.Attempt, error)
}

type PaymentHandler struct {
	payments       PaymentService
	callbackSecret string
}

func NewPaymentHandler(payments PaymentService, callbackSecret string) *PaymentHandler {
	return &PaymentHandler{payments: payments, callbackSecret: callbackSecret}
}

type initiatePaymentRequest struct {
	Phone  string   `json:"phone"`
	Amount *float64 `json:"amount,omitempty"`
}

type initiatePaymentResponse struct {
	PaymentID   string  `json:"paymentId"`
	ExternalRef string  `json:"externalRef"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	AlreadyPaid bool    `json:"alreadyPaid,omitempty"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.payments.Initiate(r.Context(), actor, chi.URLParam(r, "orderID"), req.Phone, req.Amount)
	if err != nil {
		writeFault(w, err)
		return
	}
	if res.AlreadyPaid {
		writeJSON(w, http.StatusOK, initiatePaymentResponse{AlreadyPaid: true, Status: "successful"})
		return
	}
	writeJSON(w, http.StatusAccepted, initiatePaymentResponse{
		PaymentID:   res.Attempt.ID,
		ExternalRef: res.Attempt.ExternalRef,
		Status:      string(res.Attempt.Status),
		Amount:      res.Attempt.Amount,
	})
}

func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	attempt, err := h.payments.Reconcile(r.Context(), actor, chi.URLParam(r, "paymentID"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *PaymentHandler) StatusByOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	status, attempts, err := h.payments.StatusByOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paymentStatus": status,
		"attempts":      attempts,
	})
}

type callbackRequest struct {
	ExternalReference string `json:"externalId"`
	Status            string `json:"status"`
	FinancialTransID  string `json:"financialTransactionId"`
}

// Callback handles gateway notifications. It is authenticated by a shared
// secret header instead of a bearer token.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get("X-Callback-Secret")
	if h.callbackSecret == "" ||
		subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid callback secret")
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ExternalReference == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "missing externalId or status")
		return
	}

	attempt, err := h.payments.HandleCallback(r.Context(), req.ExternalReference, req.Status, req.FinancialTransID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"paymentId": attempt.ID,
		"status":    string(attempt.Status),
	})
}
