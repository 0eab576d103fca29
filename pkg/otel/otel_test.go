package otel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(Config{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	shutdown()

	// The no-op tracer must still produce usable spans.
	_, span := StartSpan(context.Background(), "cycle")
	EndSpan(span, errors.New("boom"))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); !strings.Contains(got, tt.want) {
			t.Fatalf("sampler(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestQueryPassesThroughErrors(t *testing.T) {
	want := errors.New("relation does not exist")
	err := Query(context.Background(), "select", "report", "SELECT 1", func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}

	err = Query(context.Background(), "select", "report", "SELECT 1", func(context.Context) error {
		return pgx.ErrNoRows
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestMQHeaderCarrier(t *testing.T) {
	c := NewMQHeaderCarrier(nil)
	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("Get = %q", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
	if len(c.Keys()) != 1 {
		t.Fatalf("expected one key, got %v", c.Keys())
	}

	headers := InjectHeaders(context.Background(), nil)
	if headers == nil {
		t.Fatal("expected non-nil headers")
	}
}
