package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/logging"
	"github.com/yourorg/hotel-broker/internal/metrics"
	"github.com/yourorg/hotel-broker/internal/requestctx"
	"github.com/yourorg/hotel-broker/internal/upstream"
)

const instrumentationName = "github.com/yourorg/hotel-broker/internal/settlement"

// StatusSuccess is the gateway's terminal success status.
const StatusSuccess = "F"

// Status of a settlement decision.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Mismatch is one disagreement between the expected and the settled values.
type Mismatch struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Decision is the outcome of one verification.
type Decision struct {
	Status        Status              `json:"status"`
	OrderCode     string              `json:"orderCode"`
	TransactionID string              `json:"transactionId"`
	Mismatches    []Mismatch          `json:"mismatches,omitempty"`
	Transaction   adapter.Transaction `json:"-"`
	DecidedAt     time.Time           `json:"decidedAt"`
}

// MismatchError reports a rejected settlement.
type MismatchError struct {
	Decision Decision
}

func (e *MismatchError) Error() string {
	fields := make([]string, len(e.Decision.Mismatches))
	for i, m := range e.Decision.Mismatches {
		fields[i] = fmt.Sprintf("%s (expected %s, got %s)", m.Field, m.Expected, m.Actual)
	}
	return fmt.Sprintf("settlement of order %s rejected: %s", e.Decision.OrderCode, strings.Join(fields, "; "))
}

func (e *MismatchError) Is(target error) bool { return target == domain.ErrSettlementMismatch }

// Observer receives every decision, e.g. for reporting.
type Observer interface {
	Observe(ctx context.Context, d Decision)
}

// Checkout is the input of CreateOrder.
type Checkout struct {
	Reference      string
	Amount         decimal.Decimal
	Prepay         decimal.Decimal
	Currency       string
	Description    string
	ReturnURL      string
	IdempotencyKey string
	// Origin overrides the origin found in the request context.
	Origin string
}

// VerifyRequest is the input of Verify. Prepay is optional.
type VerifyRequest struct {
	OrderCode     string
	TransactionID string
	Total         decimal.Decimal
	Prepay        *decimal.Decimal
}

// Verifier creates gateway orders and verifies their settlement.
type Verifier struct {
	gateway   adapter.PaymentGateway
	orders    *OrderBuilder
	sink      logging.Sink
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	observers []Observer
	now       func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

func WithSink(s logging.Sink) Option { return func(v *Verifier) { v.sink = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(v *Verifier) { v.metrics = m } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(v *Verifier) { v.tracer = tp.Tracer(instrumentationName) }
}

// WithObserver adds an observer of decisions.
func WithObserver(o Observer) Option {
	return func(v *Verifier) { v.observers = append(v.observers, o) }
}

// NewVerifier creates a Verifier over gateway.
func NewVerifier(gateway adapter.PaymentGateway, orders *OrderBuilder, opts ...Option) *Verifier {
	v := &Verifier{
		gateway: gateway,
		orders:  orders,
		sink:    logging.NopSink{},
		tracer:  otel.Tracer(instrumentationName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CreateOrder opens a gateway order for c and returns it in state Created.
func (v *Verifier) CreateOrder(ctx context.Context, c Checkout) (*Order, error) {
	ctx, span := v.tracer.Start(ctx, "settlement create_order")
	defer span.End()

	if c.Prepay.IsNegative() || c.Prepay.GreaterThan(c.Amount) {
		return nil, domain.Invalid("prepay", "prepay %s outside 0..%s", c.Prepay, c.Amount)
	}
	origin := c.Origin
	if origin == "" {
		if tc, ok := requestctx.From(ctx); ok {
			origin = tc.DeclaredOrigin()
		}
	}
	source := v.orders.SourceCodeFor(origin)
	reference := c.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	charge := c.Amount
	if c.Prepay.IsPositive() {
		charge = c.Prepay
	}
	span.SetAttributes(attribute.String("payment.source", source))

	receipt, err := v.gateway.CreateOrder(ctx, adapter.OrderRequest{
		Reference:      reference,
		SourceCode:     source,
		Amount:         charge,
		Currency:       c.Currency,
		Description:    c.Description,
		ReturnURL:      c.ReturnURL,
		IdempotencyKey: c.IdempotencyKey,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("settlement: create order: %w", err)
	}
	span.SetAttributes(attribute.String("payment.order_code", receipt.OrderCode))
	return &Order{
		OrderCode:   receipt.OrderCode,
		SourceCode:  source,
		Reference:   reference,
		Amount:      c.Amount,
		Prepay:      c.Prepay,
		Currency:    strings.ToUpper(c.Currency),
		RedirectURL: receipt.RedirectURL,
		CreatedAt:   v.now(),
	}, nil
}

// Verify fetches the transaction once and decides. The settlement is
// confirmed only if the order code matches, the amount equals the total or
// the prepay amount, and the status is StatusSuccess. A rejected decision is
// returned together with a *MismatchError. Gateway failures return an error
// and no decision.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (Decision, error) {
	ctx, span := v.tracer.Start(ctx, "settlement verify", trace.WithAttributes(
		attribute.String("payment.order_code", req.OrderCode),
		attribute.String("payment.transaction_id", req.TransactionID),
	))
	defer span.End()

	if strings.TrimSpace(req.OrderCode) == "" {
		return Decision{}, domain.Invalid("orderCode", "order code is required")
	}
	if !req.Total.IsPositive() {
		return Decision{}, domain.Invalid("total", "total must be positive, got %s", req.Total)
	}

	tx, err := v.gateway.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Decision{}, fmt.Errorf("settlement: verify %s: %w", req.OrderCode, err)
	}

	d := Decision{
		OrderCode:     req.OrderCode,
		TransactionID: req.TransactionID,
		Transaction:   tx,
		Mismatches:    compare(req, tx),
		DecidedAt:     v.now(),
	}
	d.Status = StatusConfirmed
	if len(d.Mismatches) > 0 {
		d.Status = StatusRejected
	}
	v.record(ctx, d)
	span.SetAttributes(attribute.String("settlement.status", string(d.Status)))

	if d.Status == StatusRejected {
		err := &MismatchError{Decision: d}
		span.SetStatus(codes.Error, err.Error())
		return d, err
	}
	return d, nil
}

// VerifyOrder verifies o against transactionID with the order's own amounts
// and moves it to its terminal state. A created order is moved to Pending
// first.
func (v *Verifier) VerifyOrder(ctx context.Context, o *Order, transactionID string) (Decision, error) {
	if o.State() == StateCreated {
		if err := o.Await(); err != nil {
			return Decision{}, err
		}
	}
	if o.State() != StatePending {
		return Decision{}, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.OrderCode, o.State())
	}
	req := VerifyRequest{OrderCode: o.OrderCode, TransactionID: transactionID, Total: o.Amount}
	if o.Prepay.IsPositive() {
		prepay := o.Prepay
		req.Prepay = &prepay
	}
	d, err := v.Verify(ctx, req)
	if d.Status == "" {
		return d, err
	}
	if aerr := o.Apply(d); aerr != nil {
		return d, aerr
	}
	return d, err
}

func compare(req VerifyRequest, tx adapter.Transaction) []Mismatch {
	var ms []Mismatch
	if tx.OrderCode != req.OrderCode {
		ms = append(ms, Mismatch{Field: "orderCode", Expected: req.OrderCode, Actual: tx.OrderCode})
	}
	amountOK := tx.Amount.Equal(req.Total)
	expected := req.Total.StringFixed(2)
	if req.Prepay != nil && req.Prepay.IsPositive() {
		amountOK = amountOK || tx.Amount.Equal(*req.Prepay)
		expected += " or " + req.Prepay.StringFixed(2)
	}
	if !amountOK {
		ms = append(ms, Mismatch{Field: "amount", Expected: expected, Actual: tx.Amount.StringFixed(2)})
	}
	if tx.Status != StatusSuccess {
		ms = append(ms, Mismatch{Field: "status", Expected: StatusSuccess, Actual: tx.Status})
	}
	return ms
}

func (v *Verifier) record(ctx context.Context, d Decision) {
	fields := make([]string, len(d.Mismatches))
	for i, m := range d.Mismatches {
		fields[i] = m.Field
	}
	v.sink.Emit(ctx, logging.Event{
		Kind:     logging.KindSettlementDecision,
		Upstream: upstream.Payment,
		Attrs: map[string]any{
			"order_code":     d.OrderCode,
			"transaction_id": d.TransactionID,
			"status":         string(d.Status),
			"mismatches":     strings.Join(fields, ","),
		},
	})
	v.metrics.Settlement(string(d.Status))
	for _, o := range v.observers {
		o.Observe(ctx, d)
	}
}
