package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"reportnotifier/pkg/trace"
)

type countingCycles struct {
	mu       sync.Mutex
	calls    int
	traceIDs []string
	err      error
	ran      chan struct{}
}

func (c *countingCycles) RunCycle(ctx context.Context) (CycleResult, error) {
	c.mu.Lock()
	c.calls++
	c.traceIDs = append(c.traceIDs, trace.FromContext(ctx))
	c.mu.Unlock()
	if c.ran != nil {
		select {
		case c.ran <- struct{}{}:
		default:
		}
	}
	return CycleResult{TraceID: trace.FromContext(ctx), Reports: 1}, c.err
}

type fakeConnector struct {
	err   error
	calls int
}

func (f *fakeConnector) EnsureConnected(context.Context) error {
	f.calls++
	return f.err
}

func TestRunner_TickRunsCycleWithTraceID(t *testing.T) {
	cycles := &countingCycles{}
	conn := &fakeConnector{}
	r := NewRunner(cycles, conn, time.Minute, zap.NewNop())

	r.Tick(context.Background())
	r.Tick(context.Background())

	if conn.calls != 2 || cycles.calls != 2 {
		t.Fatalf("expected 2 connects and 2 cycles, got %d/%d", conn.calls, cycles.calls)
	}
	if cycles.traceIDs[0] == "" || cycles.traceIDs[0] == cycles.traceIDs[1] {
		t.Fatalf("each cycle needs a fresh trace ID, got %v", cycles.traceIDs)
	}
	st := r.Status()
	if st.Cycles != 2 || st.LastError != "" || st.LastResult.Reports != 1 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRunner_SkipsCycleWhenDatabaseDown(t *testing.T) {
	cycles := &countingCycles{}
	conn := &fakeConnector{err: errors.New("dial tcp: connection refused")}
	r := NewRunner(cycles, conn, time.Minute, zap.NewNop())

	r.Tick(context.Background())

	if cycles.calls != 0 {
		t.Fatal("cycle must be skipped while the database is unreachable")
	}
	if st := r.Status(); st.LastError == "" {
		t.Fatal("status must record the connection error")
	}
}

func TestRunner_RecordsCycleError(t *testing.T) {
	cycles := &countingCycles{err: errors.New("store unavailable")}
	r := NewRunner(cycles, nil, time.Minute, zap.NewNop())

	r.Tick(context.Background())

	if st := r.Status(); st.LastError != "store unavailable" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRunner_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	cycles := &countingCycles{ran: make(chan struct{}, 8)}
	r := NewRunner(cycles, nil, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-cycles.ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("cycle %d did not run", i+1)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRunner_DefaultInterval(t *testing.T) {
	r := NewRunner(&countingCycles{}, nil, 0, zap.NewNop())
	if r.interval != defaultPollInterval {
		t.Fatalf("expected default interval, got %v", r.interval)
	}
}
