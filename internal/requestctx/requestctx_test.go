package requestctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceContext_RoundTrip(t *testing.T) {
	tc := NewTraceContext()
	_, err := uuid.Parse(tc.TraceID)
	require.NoError(t, err)

	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Empty(t, TraceID(context.Background()))

	ctx := With(context.Background(), tc)
	got, ok := From(ctx)
	require.True(t, ok)
	assert.Equal(t, tc, got)
	assert.Equal(t, tc.TraceID, TraceID(ctx))
}

func TestDeclaredOrigin(t *testing.T) {
	assert.Equal(t, "https://a.example", TraceContext{Origin: "https://a.example", Referer: "https://b.example/x"}.DeclaredOrigin())
	assert.Equal(t, "https://b.example/x", TraceContext{Referer: "https://b.example/x"}.DeclaredOrigin())
	assert.Empty(t, TraceContext{}.DeclaredOrigin())
}
