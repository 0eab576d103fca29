package trace

import (
	"context"
	"testing"
)

func TestTraceIDRoundTrip(t *testing.T) {
	id := NewTraceID()
	if len(id) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", id)
	}
	if NewTraceID() == id {
		t.Fatal("expected distinct trace IDs")
	}

	ctx := WithContext(context.Background(), id)
	if got := FromContext(ctx); got != id {
		t.Fatalf("FromContext = %q, want %q", got, id)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace ID, got %q", got)
	}
}
