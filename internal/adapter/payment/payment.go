// Package payment speaks the payment gateway's order and transaction API.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/adapter/wire"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/resilience"
	"github.com/yourorg/hotel-broker/internal/upstream"
)

const (
	ordersPath       = "/api/orders"
	transactionsPath = "/api/transactions/"

	// Gateway limit for idempotency keys.
	maxIdempotencyKey = 255
)

// Doer is the part of *upstream.Client the adapter needs.
type Doer interface {
	Do(ctx context.Context, r upstream.Request, out any) error
}

// Credentials authenticate the merchant with HTTP basic auth.
type Credentials struct {
	MerchantID string
	APIKey     string
}

// Adapter implements adapter.PaymentGateway.
type Adapter struct {
	client Doer
	creds  Credentials
}

var _ adapter.PaymentGateway = (*Adapter)(nil)

// New creates a payment gateway adapter. client must be configured with the
// resilience.Payment class.
func New(client Doer, creds Credentials) *Adapter {
	return &Adapter{client: client, creds: creds}
}

// GatewayError is a rejection the gateway explained in its error body.
type GatewayError struct {
	Status  int
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request (HTTP %d, %s): %s", e.Status, e.Code, e.Message)
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type orderRequest struct {
	Reference   string `json:"reference"`
	Source      string `json:"source"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"returnUrl,omitempty"`
}

type orderResponse struct {
	OrderCode   wire.FlexString `json:"orderCode"`
	RedirectURL string          `json:"redirectUrl"`
}

type transactionResponse struct {
	ID        wire.FlexString `json:"id"`
	OrderCode wire.FlexString `json:"orderCode"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
}

// MinorUnits converts a decimal amount to the gateway's integer cents,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// IdempotencyKey returns key trimmed to the gateway limit, or a fresh one if
// key is blank.
func IdempotencyKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		key = uuid.NewString()
	}
	if len(key) > maxIdempotencyKey {
		key = key[:maxIdempotencyKey]
	}
	return key
}

// CreateOrder opens a payment order. Every attempt of one call carries the
// same Idempotency-Key so a retried request cannot create a second order.
func (a *Adapter) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.OrderReceipt, error) {
	if !req.Amount.IsPositive() {
		return adapter.OrderReceipt{}, domain.Invalid("amount", "order amount must be positive, got %s", req.Amount)
	}
	if strings.TrimSpace(req.Reference) == "" {
		return adapter.OrderReceipt{}, domain.Invalid("reference", "order reference is required")
	}

	header := a.auth()
	header.Set("Idempotency-Key", IdempotencyKey(req.IdempotencyKey))

	var resp orderResponse
	err := a.client.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   ordersPath,
		Header: header,
		Body: orderRequest{
			Reference:   req.Reference,
			Source:      req.SourceCode,
			Amount:      MinorUnits(req.Amount),
			Currency:    strings.ToUpper(req.Currency),
			Description: req.Description,
			ReturnURL:   req.ReturnURL,
		},
	}, &resp)
	if err != nil {
		return adapter.OrderReceipt{}, fmt.Errorf("payment: create order: %w", explain(err))
	}
	if resp.OrderCode == "" {
		return adapter.OrderReceipt{}, domain.Protocol(upstream.Payment, errors.New("order response without orderCode"))
	}
	return adapter.OrderReceipt{OrderCode: resp.OrderCode.String(), RedirectURL: resp.RedirectURL}, nil
}

// GetTransaction reads a transaction back for verification.
func (a *Adapter) GetTransaction(ctx context.Context, transactionID string) (adapter.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return adapter.Transaction{}, domain.Invalid("transactionId", "transaction id is required")
	}

	var resp transactionResponse
	err := a.client.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   transactionsPath + url.PathEscape(transactionID),
		Header: a.auth(),
	}, &resp)
	if err != nil {
		return adapter.Transaction{}, fmt.Errorf("payment: get transaction %s: %w", transactionID, explain(err))
	}
	return adapter.Transaction{
		ID:        resp.ID.String(),
		OrderCode: resp.OrderCode.String(),
		Amount:    resp.Amount,
		Currency:  strings.ToUpper(resp.Currency),
		Status:    resp.Status,
	}, nil
}

func (a *Adapter) auth() http.Header {
	req := http.Request{Header: http.Header{}}
	req.SetBasicAuth(a.creds.MerchantID, a.creds.APIKey)
	return req.Header
}

// explain attaches the gateway's own error description to a rejected call.
func explain(err error) error {
	var se *resilience.StatusError
	if !errors.As(err, &se) || se.Transient() {
		return err
	}
	var body errorResponse
	if json.Unmarshal([]byte(se.Body), &body) != nil || body.Error.Message == "" {
		return err
	}
	return errors.Join(err, &GatewayError{Status: se.Code, Code: body.Error.Code, Message: body.Error.Message})
}
