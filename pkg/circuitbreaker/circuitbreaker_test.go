package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errSMTP = errors.New("421 service not available")

func newTestBreaker() (*CircuitBreaker, *time.Time) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker()
	fail := func() error { return errSMTP }

	if err := cb.Execute(fail); !errors.Is(err, errSMTP) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after one failure, got %s", cb.GetState())
	}
	cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after threshold, got %s", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) || called {
		t.Fatalf("expected rejection while open, err=%v called=%v", err, called)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker()
	cb.Execute(func() error { return errSMTP })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errSMTP })
	if cb.GetState() != StateClosed {
		t.Fatalf("non-consecutive failures must not open, got %s", cb.GetState())
	}
}

func TestHalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker()
	cb.Execute(func() error { return errSMTP })
	cb.Execute(func() error { return errSMTP })

	*now = now.Add(2 * time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should pass through, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.GetState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker()
	cb.Execute(func() error { return errSMTP })
	cb.Execute(func() error { return errSMTP })

	*now = now.Add(2 * time.Minute)
	cb.Execute(func() error { return errSMTP })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected reopen after failed probe, got %s", cb.GetState())
	}
}

func TestReset(t *testing.T) {
	cb, _ := newTestBreaker()
	cb.Execute(func() error { return errSMTP })
	cb.Execute(func() error { return errSMTP })
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", cb.GetState())
	}
}
