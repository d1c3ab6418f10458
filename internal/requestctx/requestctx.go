// Package requestctx carries the request-scoped values that cross package
// boundaries: the trace id, the caller's declared origin and its language.
package requestctx

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext carries only cross-cutting concerns needed for observability
// and routing. It holds no business data.
type TraceContext struct {
	TraceID  string
	Origin   string
	Referer  string
	Language string
}

// NewTraceContext creates a TraceContext with a fresh TraceID.
func NewTraceContext() TraceContext {
	return TraceContext{TraceID: uuid.NewString()}
}

type ctxKey struct{}

// With returns a copy of ctx carrying tc.
func With(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// From returns the TraceContext stored in ctx, if any.
func From(ctx context.Context) (TraceContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(TraceContext)
	return tc, ok
}

// TraceID returns the trace id stored in ctx or "".
func TraceID(ctx context.Context) string {
	tc, _ := From(ctx)
	return tc.TraceID
}

// DeclaredOrigin returns the Origin header value, falling back to Referer.
func (tc TraceContext) DeclaredOrigin() string {
	if tc.Origin != "" {
		return tc.Origin
	}
	return tc.Referer
}
