package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/quickbite/orderflow/internal/config"
)

// ErrUnreachable reports that every configured gateway host failed at the
// network level. It is never a statement about the payment's outcome.
var ErrUnreachable = errors.New("payment gateway unreachable")

// RejectionError is an application-level refusal from the gateway, such as an
// amount mismatch or an unsupported operator. Fallback hosts are not tried for
// these.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("gateway rejected request: %s (%s)", e.Message, e.Code)
}

type CollectionRequest struct {
	// ExternalRef is our unique reference, echoed back by the gateway.
	ExternalRef string
	// CorrelationID identifies the request on the gateway side and is used
	// for status queries.
	CorrelationID string
	Phone         string
	Amount        float64
	Currency      string
}

type CollectionResult struct {
	Status     Status
	GatewayRef string
	Operator   string
	Reason     string
}

type Gateway interface {
	RequestToPay(ctx context.Context, req CollectionRequest) (CollectionResult, error)
	TransactionStatus(ctx context.Context, correlationID string) (CollectionResult, error)
}

// TokenCache shares a gateway access token between workers for its validity
// window. A failing cache degrades to fetching a fresh token.
type TokenCache interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, ttl time.Duration)
}

// Client talks to a mobile-money collection gateway. Token acquisition and
// collection requests try the primary host first and fall back to alternate
// hosts on network-level failure only.
type Client struct {
	cfg    config.PaymentConfig
	http   *http.Client
	tokens TokenCache
	logger zerolog.Logger
}

func NewClient(cfg config.PaymentConfig, tokens TokenCache, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: tokens,
		logger: logger.With().Str("component", "payment_gateway").Logger(),
	}
}

func (c *Client) RequestToPay(ctx context.Context, req CollectionRequest) (CollectionResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return CollectionResult{}, err
	}

	body, err := json.Marshal(map[string]any{
		"amount":     strconv.FormatFloat(req.Amount, 'f', 2, 64),
		"currency":   req.Currency,
		"externalId": req.ExternalRef,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     req.Phone,
		},
		"payerMessage": "order payment",
	})
	if err != nil {
		return CollectionResult{}, fmt.Errorf("marshal collection request: %w", err)
	}

	resp, err := c.doWithFallback(ctx, func(host string) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost,
			host+"/collection/v1_0/requesttopay", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("X-Reference-Id", req.CorrelationID)
		r.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
		return r, nil
	})
	if err != nil {
		return CollectionResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// Accepted for processing; the outcome arrives via poll or callback.
		return CollectionResult{Status: StatusPending, GatewayRef: req.CorrelationID}, nil
	case resp.StatusCode == http.StatusOK:
		return decodeResult(resp)
	default:
		return CollectionResult{}, decodeRejection(resp)
	}
}

func (c *Client) TransactionStatus(ctx context.Context, correlationID string) (CollectionResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return CollectionResult{}, err
	}

	resp, err := c.doWithFallback(ctx, func(host string) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet,
			host+"/collection/v1_0/requesttopay/"+correlationID, nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
		return r, nil
	})
	if err != nil {
		return CollectionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CollectionResult{}, decodeRejection(resp)
	}
	return decodeResult(resp)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(ctx); ok {
		return token, nil
	}

	resp, err := c.doWithFallback(ctx, func(host string) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/collection/token/", nil)
		if err != nil {
			return nil, err
		}
		r.SetBasicAuth(c.cfg.APIUser, c.cfg.APIKey)
		r.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
		return r, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeRejection(resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("gateway returned empty access token")
	}

	if ttl := time.Duration(body.ExpiresIn)*time.Second - time.Minute; ttl > 0 {
		c.tokens.Set(ctx, body.AccessToken, ttl)
	}
	return body.AccessToken, nil
}

// doWithFallback tries each host in order, moving on only for network-level
// failures. Any HTTP response, including rejections, ends the search.
func (c *Client) doWithFallback(ctx context.Context, build func(host string) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for _, host := range c.cfg.Hosts {
		req, err := build(host)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn().Str("host", host).Err(err).Msg("gateway host unreachable, trying next")

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

func decodeResult(resp *http.Response) (CollectionResult, error) {
	var body struct {
		Status                 string `json:"status"`
		FinancialTransactionID string `json:"financialTransactionId"`
		Reason                 string `json:"reason"`
		Payer                  struct {
			PartyID string `json:"partyId"`
		} `json:"payer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CollectionResult{}, fmt.Errorf("decode gateway response: %w", err)
	}

	return CollectionResult{
		Status:     MapGatewayStatus(body.Status),
		GatewayRef: body.FinancialTransactionID,
		Reason:     body.Reason,
	}, nil
}

func decodeRejection(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code == "" {
		body.Code = "gateway_error_" + strconv.Itoa(resp.StatusCode)
	}
	if body.Message == "" {
		body.Message = resp.Status
	}
	return &RejectionError{Code: body.Code, Message: body.Message}
}

// MapGatewayStatus folds the gateway's status vocabulary into ours.
func MapGatewayStatus(s string) Status {
	switch s {
	case "SUCCESSFUL", "SUCCESS":
		return StatusSuccessful
	case "FAILED", "REJECTED", "TIMEOUT":
		return StatusFailed
	default:
		return StatusPending
	}
}
