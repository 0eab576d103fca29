package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reportnotifier/pkg/logger"
	"reportnotifier/pkg/metrics"
	"reportnotifier/pkg/trace"
	"reportnotifier/pkg/util"
)

const defaultPollInterval = 60 * time.Second

// CycleRunner runs one notifier cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Connector re-establishes the store connection before a cycle.
type Connector interface {
	EnsureConnected(ctx context.Context) error
}

// Status is the outcome of the most recent cycle.
type Status struct {
	LastResult CycleResult `json:"last_result"`
	LastError  string      `json:"last_error,omitempty"`
	Cycles     int         `json:"cycles"`
}

// Runner polls the orchestrator on a fixed interval. Cycles never overlap.
type Runner struct {
	cycles   CycleRunner
	conn     Connector
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	status Status
}

// NewRunner returns a Runner. conn may be nil; interval <= 0 uses 60s.
func NewRunner(cycles CycleRunner, conn Connector, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Runner{
		cycles:   cycles,
		conn:     conn,
		interval: interval,
		logger:   logger,
	}
}

// Run executes a cycle immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("Report notifier started", zap.Duration("interval", r.interval))

	r.Tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Report notifier stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs a single cycle with a fresh trace ID.
func (r *Runner) Tick(ctx context.Context) {
	ctx = trace.WithContext(ctx, trace.NewTraceID())
	log := logger.WithTrace(ctx, r.logger)

	if r.conn != nil {
		if err := r.conn.EnsureConnected(ctx); err != nil {
			_, errType := util.IsRetryableError(err)
			log.Error("Database unavailable, skipping cycle", zap.Error(err), zap.String("error_type", errType))
			metrics.RecordCycle("skipped")
			r.record(CycleResult{TraceID: trace.FromContext(ctx)}, err)
			return
		}
	}

	result, err := r.cycles.RunCycle(ctx)
	if err != nil {
		log.Error("Cycle aborted, watermark not advanced", zap.Error(err))
	}
	r.record(result, err)
}

// Status returns a snapshot of the most recent cycle.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) record(result CycleResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.LastResult = result
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	r.status.Cycles++
}
