package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceIDKey struct{}

// NewTraceID returns a random 128-bit hex identifier for one poll cycle.
func NewTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext returns the trace ID stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext stores traceID in ctx.
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}
