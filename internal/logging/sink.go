package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"

	"github.com/yourorg/hotel-broker/internal/requestctx"
)

// Event kinds emitted by the pipeline.
const (
	KindRetryAttempt       = "retry_attempt"
	KindBreakerOpen        = "breaker_open"
	KindBreakerReset       = "breaker_reset"
	KindSettlementDecision = "settlement_decision"
	KindAdapterDegraded    = "adapter_degraded"
)

// Event is a structured pipeline event. Its attribute set is stable:
// event, upstream, attempt and cause, plus whatever Attrs adds.
type Event struct {
	Kind     string
	Upstream string
	Attempt  int
	Cause    error
	Attrs    map[string]any
}

// Fields flattens the event into its stable attribute set.
func (e Event) Fields() map[string]any {
	f := make(map[string]any, len(e.Attrs)+4)
	for k, v := range e.Attrs {
		f[k] = v
	}
	f["event"] = e.Kind
	if e.Upstream != "" {
		f["upstream"] = e.Upstream
	}
	if e.Attempt > 0 {
		f["attempt"] = e.Attempt
	}
	if e.Cause != nil {
		f["cause"] = e.Cause.Error()
	}
	return f
}

func (e Event) level() slog.Level {
	switch e.Kind {
	case KindBreakerOpen, KindAdapterDegraded:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Sink receives pipeline events.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// SlogSink writes events through a slog logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger. A nil logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, e Event) {
	fields := e.Fields()
	if id := requestctx.TraceID(ctx); id != "" {
		fields["trace_id"] = id
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.LogAttrs(ctx, e.level(), e.Kind, attrs...)
}

// FluentPoster is the subset of *fluent.Fluent the sink uses.
type FluentPoster interface {
	Post(tag string, message interface{}) error
}

// FluentConfig describes the Fluent Bit forward endpoint.
type FluentConfig struct {
	Host      string
	Port      int
	TagPrefix string
}

// NewFluentClient connects a fluent forwarder. Creation does not guarantee
// connectivity; delivery errors surface on Post.
func NewFluentClient(cfg FluentConfig) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("logging: fluent tag prefix is required")
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: cfg.Host,
		FluentPort: cfg.Port,
		TagPrefix:  cfg.TagPrefix,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("logging: failed to create fluent client: %w", err)
	}
	return client, nil
}

// FluentSink forwards events to Fluent Bit, tagged by event kind. Delivery
// errors are counted; the first one of each outage is logged.
type FluentSink struct {
	client   FluentPoster
	logger   *slog.Logger
	now      func() time.Time
	failures atomic.Uint64
	failing  atomic.Bool
}

// NewFluentSink wraps a fluent client. logger reports delivery errors and
// defaults to slog.Default.
func NewFluentSink(client FluentPoster, logger *slog.Logger) (*FluentSink, error) {
	if client == nil {
		return nil, fmt.Errorf("logging: fluent client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FluentSink{client: client, logger: logger, now: time.Now}, nil
}

func (s *FluentSink) Emit(ctx context.Context, e Event) {
	data := e.Fields()
	data["level"] = e.level().String()
	data["timestamp"] = s.now().UTC().Format(time.RFC3339Nano)
	if id := requestctx.TraceID(ctx); id != "" {
		data["trace_id"] = id
	}
	if err := s.client.Post(e.Kind, data); err != nil {
		n := s.failures.Add(1)
		if s.failing.CompareAndSwap(false, true) {
			s.logger.WarnContext(ctx, "fluent delivery failed", "event", e.Kind, "failures", n, "error", err)
		}
		return
	}
	if s.failing.CompareAndSwap(true, false) {
		s.logger.InfoContext(ctx, "fluent delivery recovered", "failures", s.failures.Load())
	}
}

// Failures is the number of events Fluent Bit did not accept.
func (s *FluentSink) Failures() uint64 { return s.failures.Load() }

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}
