package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/config"
	"github.com/quickbite/orderflow/internal/fault"
	"github.com/quickbite/orderflow/internal/order"
)

// OrderLedger is the slice of the order repository reconciliation needs.
type OrderLedger interface {
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
	SetPaymentStatus(ctx context.Context, orderID string, status order.PaymentStatus) (bool, error)
}

type Notifier interface {
	PaymentReceived(ctx context.Context, orderID, paymentID string, amount float64) error
}

type Service struct {
	repo    Repository
	orders  OrderLedger
	gateway Gateway
	notify  Notifier
	cfg     config.PaymentConfig
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, orders OrderLedger, gw Gateway, notify Notifier, cfg config.PaymentConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		orders:  orders,
		gateway: gw,
		notify:  notify,
		cfg:     cfg,
		logger:  logger.With().Str("component", "payment").Logger(),
		now:     time.Now,
	}
}

type InitiationResult struct {
	Attempt     *Attempt `json:"attempt,omitempty"`
	AlreadyPaid bool     `json:"alreadyPaid"`
}

// Initiate submits a collection request for the order's full amount. The
// gateway call happens outside any ledger transaction; its result is written
// back in short follow-up statements. An attempt row is persisted for every
// initiation regardless of outcome.
func (s *Service) Initiate(ctx context.Context, actor auth.Actor, orderID, phone string, amount *float64) (*InitiationResult, error) {
	if err := auth.Allow(actor, auth.OpInitiatePayment); err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fault.Internal("load order", err)
	}
	if o == nil {
		return nil, fault.NotFound("order_not_found", "order does not exist")
	}
	if actor.Role == auth.RoleCustomer && o.CustomerID != actor.ID {
		return nil, fault.Forbidden("not_order_owner", "order belongs to another customer")
	}
	if o.Status == order.StatusCancelled || o.Status == order.StatusFailed {
		return nil, fault.Conflict("order_terminated", "cannot pay a "+string(o.Status)+" order").
			With("current_status", string(o.Status))
	}
	// Repeating an initiation against a paid order is success, not an error.
	if o.PaymentStatus == order.PaymentPaid {
		return &InitiationResult{AlreadyPaid: true}, nil
	}
	if amount != nil && *amount != o.TotalAmount {
		return nil, fault.Validation("amount_mismatch",
			fmt.Sprintf("amount %.2f does not match order total %.2f", *amount, o.TotalAmount))
	}

	normalized, err := NormalizePhone(phone, s.cfg.CountryCode)
	if err != nil {
		return nil, err
	}

	attempt := &Attempt{
		OrderID:     orderID,
		UserID:      o.CustomerID,
		Amount:      o.TotalAmount,
		PhoneNumber: normalized,
		Status:      StatusPending,
		ExternalRef: fmt.Sprintf("%s_%s_%d", s.cfg.ReferencePrefix, orderID, s.now().UnixNano()),
		GatewayRef:  uuid.NewString(),
	}
	if err := s.repo.Create(ctx, attempt); err != nil {
		return nil, fault.Internal("record payment attempt", err)
	}
	if _, err := s.orders.SetPaymentStatus(ctx, orderID, order.PaymentPending); err != nil {
		return nil, fault.Internal("mark payment pending", err)
	}

	res, err := s.gateway.RequestToPay(ctx, CollectionRequest{
		ExternalRef:   attempt.ExternalRef,
		CorrelationID: attempt.GatewayRef,
		Phone:         normalized,
		Amount:        attempt.Amount,
		Currency:      s.cfg.Currency,
	})
	if err != nil {
		return nil, s.failAttempt(ctx, attempt, err)
	}

	updated, err := s.applyResult(ctx, attempt.ExternalRef, res)
	if err != nil {
		return nil, err
	}
	return &InitiationResult{Attempt: updated}, nil
}

// failAttempt records the failure against the attempt and translates the
// gateway error for the caller. Only a definitive gateway rejection marks the
// order's payment failed; an unreachable gateway fails the attempt alone, the
// order keeps its pending payment status and the caller is pointed at cash on
// delivery.
func (s *Service) failAttempt(ctx context.Context, attempt *Attempt, cause error) error {
	if _, _, mergeErr := s.repo.MergeStatus(ctx, attempt.ExternalRef, StatusFailed, ""); mergeErr != nil {
		s.logger.Error().Err(mergeErr).Str("external_ref", attempt.ExternalRef).
			Msg("failed to record attempt failure")
	}

	if errors.Is(cause, ErrUnreachable) {
		return fault.Unavailable("gateway_unreachable",
			"payment gateway is unreachable, consider cash on delivery", cause).
			With("fallback", "cash_on_delivery")
	}

	var rej *RejectionError
	if errors.As(cause, &rej) {
		if _, err := s.orders.SetPaymentStatus(ctx, attempt.OrderID, order.PaymentFailed); err != nil {
			s.logger.Error().Err(err).Str("order_id", attempt.OrderID).
				Msg("failed to mark order payment failed")
		}
		return fault.Validation("gateway_rejected", rej.Message).
			With("gateway_code", rej.Code)
	}
	return fault.Internal("gateway request failed", cause)
}

// Reconcile polls the gateway for a pending attempt and merges the outcome.
// Reconciling an already-terminal attempt is a no-op that returns its state.
func (s *Service) Reconcile(ctx context.Context, actor auth.Actor, paymentID string) (*Attempt, error) {
	if err := auth.Allow(actor, auth.OpViewPayments); err != nil {
		return nil, err
	}

	attempt, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fault.Internal("load payment", err)
	}
	if attempt == nil {
		return nil, fault.NotFound("payment_not_found", "payment attempt does not exist")
	}
	if actor.Role == auth.RoleCustomer && attempt.UserID != actor.ID {
		return nil, fault.Forbidden("not_payment_owner", "payment belongs to another customer")
	}
	if attempt.Status.Terminal() {
		return attempt, nil
	}

	res, err := s.gateway.TransactionStatus(ctx, attempt.GatewayRef)
	if err != nil {
		if errors.Is(err, ErrUnreachable) {
			return nil, fault.Unavailable("gateway_unreachable",
				"payment gateway is unreachable", err).
				With("fallback", "cash_on_delivery")
		}
		var rej *RejectionError
		if errors.As(err, &rej) {
			return nil, fault.Validation("gateway_rejected", rej.Message).
				With("gateway_code", rej.Code)
		}
		return nil, fault.Internal("gateway status query failed", err)
	}

	return s.applyResult(ctx, attempt.ExternalRef, res)
}

// HandleCallback processes an asynchronous gateway notification. It is safe
// to receive after a poll already reconciled the same attempt: terminal states
// win and a late pending report changes nothing.
func (s *Service) HandleCallback(ctx context.Context, externalRef, gatewayStatus, gatewayRef string) (*Attempt, error) {
	attempt, err := s.repo.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, fault.Internal("load payment", err)
	}
	if attempt == nil {
		return nil, fault.NotFound("payment_not_found", "unknown payment reference")
	}

	res := CollectionResult{Status: MapGatewayStatus(gatewayStatus), GatewayRef: gatewayRef}
	return s.applyResult(ctx, externalRef, res)
}

// applyResult merges a gateway-reported outcome into the attempt and, when the
// attempt succeeded, marks the order paid exactly once.
func (s *Service) applyResult(ctx context.Context, externalRef string, res CollectionResult) (*Attempt, error) {
	attempt, changed, err := s.repo.MergeStatus(ctx, externalRef, res.Status, res.GatewayRef)
	if err != nil {
		return nil, fault.Internal("merge payment status", err)
	}
	if attempt == nil {
		return nil, fault.NotFound("payment_not_found", "unknown payment reference")
	}

	// The order follows the attempt's terminal state; paid is sticky either way.
	switch attempt.Status {
	case StatusSuccessful:
		flipped, err := s.orders.SetPaymentStatus(ctx, attempt.OrderID, order.PaymentPaid)
		if err != nil {
			return nil, fault.Internal("mark order paid", err)
		}
		if flipped {
			if err := s.notify.PaymentReceived(ctx, attempt.OrderID, attempt.ID, attempt.Amount); err != nil {
				s.logger.Error().Err(err).Str("order_id", attempt.OrderID).
					Msg("failed to publish payment received")
			}
			s.logger.Info().
				Str("order_id", attempt.OrderID).
				Str("payment_id", attempt.ID).
				Float64("amount", attempt.Amount).
				Msg("order paid")
		}
	case StatusFailed:
		if changed {
			if _, err := s.orders.SetPaymentStatus(ctx, attempt.OrderID, order.PaymentFailed); err != nil {
				return nil, fault.Internal("mark order payment failed", err)
			}
		}
	}

	return attempt, nil
}

// StatusByOrder returns the order's payment status with its attempt history.
func (s *Service) StatusByOrder(ctx context.Context, actor auth.Actor, orderID string) (order.PaymentStatus, []Attempt, error) {
	if err := auth.Allow(actor, auth.OpViewPayments); err != nil {
		return "", nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", nil, fault.Internal("load order", err)
	}
	if o == nil {
		return "", nil, fault.NotFound("order_not_found", "order does not exist")
	}
	if actor.Role == auth.RoleCustomer && o.CustomerID != actor.ID {
		return "", nil, fault.Forbidden("not_order_owner", "order belongs to another customer")
	}

	attempts, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return "", nil, fault.Internal("list payments", err)
	}
	return o.PaymentStatus, attempts, nil
}
