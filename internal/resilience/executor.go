package resilience

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/logging"
	"github.com/yourorg/hotel-broker/internal/metrics"
	"github.com/yourorg/hotel-broker/internal/resilience/circuitbreaker"
)

const instrumentationName = "github.com/yourorg/hotel-broker/internal/resilience"

// Handler is one outbound call. Results travel through the closure.
type Handler func(ctx context.Context) error

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

// Chain wraps h so that mws[0] is the outermost layer.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Executor runs calls through the chain retry → breaker → transport and
// surfaces the final failure as a typed domain error.
type Executor struct {
	breaker  *circuitbreaker.CircuitBreaker
	sink     logging.Sink
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	sleep    Sleeper
	policies map[Class]Policy
}

// Option configures an Executor.
type Option func(*Executor)

func WithSink(s logging.Sink) Option { return func(e *Executor) { e.sink = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Executor) { e.metrics = m } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(instrumentationName) }
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(s Sleeper) Option { return func(e *Executor) { e.sleep = s } }

// WithPolicy overrides the policy of a class.
func WithPolicy(c Class, p Policy) Option { return func(e *Executor) { e.policies[c] = p } }

// NewExecutor creates an Executor using cb for breaker state. A nil cb gets
// a default breaker.
func NewExecutor(cb *circuitbreaker.CircuitBreaker, opts ...Option) *Executor {
	if cb == nil {
		cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
	}
	e := &Executor{
		breaker: cb,
		sink:    logging.NopSink{},
		tracer:  otel.Tracer(instrumentationName),
		sleep:   sleepContext,
		policies: map[Class]Policy{
			Standard: PolicyFor(Standard),
			Payment:  PolicyFor(Payment),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CircuitBreaker exposes the breaker state, e.g. for health reporting.
func (e *Executor) CircuitBreaker() *circuitbreaker.CircuitBreaker { return e.breaker }

// Execute runs call for upstream under the policy of class.
func (e *Executor) Execute(ctx context.Context, upstream string, class Class, call Handler) error {
	ctx, span := e.tracer.Start(ctx, "upstream "+upstream, trace.WithAttributes(
		attribute.String("upstream.name", upstream),
		attribute.String("upstream.class", class.String()),
	))
	defer span.End()

	p, ok := e.policies[class]
	if !ok {
		p = PolicyFor(class)
	}
	mws := []Middleware{e.Retry(upstream, p)}
	if p.UseBreaker {
		mws = append(mws, e.Breaker(upstream))
	}

	err := Chain(call, mws...)(ctx)
	out := classify(ctx, err)
	e.metrics.ObserveCall(upstream, outcomeLabel(out))
	if err == nil {
		return nil
	}

	err = surface(upstream, out, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Retry re-runs next on transient failures up to p.MaxRetries times. The
// backoff sleep ends early when ctx is done, and no attempt starts after
// cancellation.
func (e *Executor) Retry(upstream string, p Policy) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context) error {
			for attempt := 0; ; attempt++ {
				err := next(ctx)
				if classify(ctx, err) != outcomeTransient || attempt >= p.MaxRetries {
					return err
				}
				retry := attempt + 1
				delay := p.Backoff(retry)
				e.sink.Emit(ctx, logging.Event{
					Kind:     logging.KindRetryAttempt,
					Upstream: upstream,
					Attempt:  retry,
					Cause:    err,
					Attrs:    map[string]any{"delay_ms": delay.Milliseconds()},
				})
				e.metrics.IncRetry(upstream)
				trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
					attribute.Int("attempt", retry),
					attribute.String("cause", err.Error()),
				))
				if serr := e.sleep(ctx, delay); serr != nil {
					return errors.Join(serr, err)
				}
			}
		}
	}
}

// Breaker guards next with the per-upstream circuit breaker. Only transient
// failures count against it; cancelled and permanent outcomes are neutral.
func (e *Executor) Breaker(upstream string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context) error {
			if !e.breaker.AllowRequest(upstream) {
				return ErrCircuitOpen
			}
			err := next(ctx)
			switch classify(ctx, err) {
			case outcomeSuccess:
				if e.breaker.RecordSuccess(upstream) {
					e.transition(ctx, upstream, circuitbreaker.StateClosed, logging.KindBreakerReset, nil)
				}
			case outcomeTransient:
				if e.breaker.RecordFailure(upstream) {
					e.transition(ctx, upstream, circuitbreaker.StateOpen, logging.KindBreakerOpen, err)
				}
			default:
				e.breaker.ReleaseTrial(upstream)
			}
			return err
		}
	}
}

func (e *Executor) transition(ctx context.Context, upstream string, to circuitbreaker.State, kind string, cause error) {
	_, failures := e.breaker.GetProviderStatus(upstream)
	e.sink.Emit(ctx, logging.Event{
		Kind:     kind,
		Upstream: upstream,
		Cause:    cause,
		Attrs:    map[string]any{"state": to.String(), "failures": failures},
	})
	e.metrics.BreakerTransition(upstream, to.String())
}

// surface turns the last error of the chain into the error callers see.
func surface(upstream string, out outcome, err error) error {
	switch out {
	case outcomePermanent:
		var ue *domain.UpstreamError
		if errors.As(err, &ue) || errors.Is(err, domain.ErrValidation) {
			return err
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return domain.Protocol(upstream, pe.err)
		}
		return domain.Protocol(upstream, err)
	default:
		return domain.Unavailable(upstream, err)
	}
}

func outcomeLabel(o outcome) string {
	switch o {
	case outcomeSuccess:
		return metrics.OutcomeSuccess
	case outcomePermanent:
		return metrics.OutcomeRejected
	case outcomeCancelled:
		return metrics.OutcomeCancelled
	case outcomeOpen:
		return metrics.OutcomeCircuitOpen
	default:
		return metrics.OutcomeFailure
	}
}
