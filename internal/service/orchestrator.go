package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	mqcontracts "reportnotifier/contracts/mq"
	"reportnotifier/internal/model"
	"reportnotifier/pkg/logger"
	"reportnotifier/pkg/metrics"
	"reportnotifier/pkg/otel"
	"reportnotifier/pkg/util"
	traceid "reportnotifier/pkg/trace"
)

// WatermarkStore reads and records per-process run watermarks.
type WatermarkStore interface {
	LastRun(ctx context.Context, process string) (time.Time, error)
	Watermark(ctx context.Context, process string) (model.IngestionWatermark, error)
	RecordRun(ctx context.Context, process string, at time.Time) error
}

// QueryStore reads report and query definitions.
type QueryStore interface {
	ListActiveReports(ctx context.Context) ([]model.Report, error)
	ListQueries(ctx context.Context, reportCode string) ([]model.Query, error)
}

// QueryExecutor runs literal report SQL.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*model.ResultSet, error)
}

// FileExporter materializes a non-empty result set.
type FileExporter interface {
	Export(reportCode string, rs *model.ResultSet) (model.ExportedFile, error)
}

// NotificationDispatcher composes and sends one report notification.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, report model.Report, settings model.EmailSettings, files []model.ExportedFile) (model.Notification, error)
}

// EventPublisher publishes lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// SendGuard suppresses a second notification for the same report and
// upstream batch, e.g. after a crash between send and watermark advance.
type SendGuard interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// Options names the pipeline and the upstream process it waits for.
type Options struct {
	ProcessName     string
	UpstreamProcess string
}

// CycleResult summarizes one RunCycle call.
type CycleResult struct {
	TraceID          string    `json:"trace_id"`
	Gated            bool      `json:"gated"`
	GateReason       string    `json:"gate_reason,omitempty"`
	Reports          int       `json:"reports"`
	QueriesRun       int       `json:"queries_run"`
	QueryFailures    int       `json:"query_failures"`
	Exports          int       `json:"exports"`
	ExportFailures   int       `json:"export_failures"`
	Notifications    int       `json:"notifications"`
	DeliveryFailures int       `json:"delivery_failures"`
	Duplicates       int       `json:"duplicates"`
	Watermark        time.Time `json:"watermark"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// reportOutcome collects what one report produced during a cycle.
type reportOutcome struct {
	files          []model.ExportedFile
	queriesRun     int
	queryFailures  int
	exportFailures int
}

type triggerHandler func(ctx context.Context, report model.Report, log *zap.Logger) (reportOutcome, error)

// Orchestrator runs one gate-check-to-watermark cycle at a time.
type Orchestrator struct {
	opts       Options
	watermarks WatermarkStore
	queries    QueryStore
	executor   QueryExecutor
	exporter   FileExporter
	dispatcher NotificationDispatcher
	publisher  EventPublisher
	guard      SendGuard
	now        func() time.Time
	logger     *zap.Logger

	handlers map[model.Trigger]triggerHandler
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithPublisher emits lifecycle events through p.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithSendGuard deduplicates notifications through g.
func WithSendGuard(g SendGuard) Option {
	return func(o *Orchestrator) { o.guard = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(
	opts Options,
	watermarks WatermarkStore,
	queries QueryStore,
	executor QueryExecutor,
	exporter FileExporter,
	dispatcher NotificationDispatcher,
	logger *zap.Logger,
	options ...Option,
) *Orchestrator {
	o := &Orchestrator{
		opts:       opts,
		watermarks: watermarks,
		queries:    queries,
		executor:   executor,
		exporter:   exporter,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range options {
		opt(o)
	}
	o.handlers = map[model.Trigger]triggerHandler{
		model.TriggerConditional: o.runConditional,
		model.TriggerCalendar:    o.runCalendar,
	}
	return o
}

// RunCycle performs one full cycle. It returns an error only when the cycle
// had to be aborted before advancing the watermark.
func (o *Orchestrator) RunCycle(ctx context.Context) (result CycleResult, err error) {
	if traceid.FromContext(ctx) == "" {
		ctx = traceid.WithContext(ctx, traceid.NewTraceID())
	}
	result.TraceID = traceid.FromContext(ctx)
	result.StartedAt = o.now()
	log := logger.WithTrace(ctx, o.logger)

	ctx, span := otel.StartSpan(ctx, "report.cycle",
		trace.WithAttributes(attribute.String("process", o.opts.ProcessName)))
	defer func() {
		result.FinishedAt = o.now()
		otel.EndSpan(span, err)
		switch {
		case err != nil:
			metrics.RecordCycle("failed")
		case result.Gated:
			metrics.RecordCycle("gated")
		default:
			metrics.RecordCycle("completed")
			metrics.RecordCycleDuration(result.FinishedAt.Sub(result.StartedAt))
		}
	}()

	// Gate on the upstream watermark.
	upstreamAt, reason, err := o.checkGate(ctx)
	if err != nil {
		log.Error("Gate check failed", zap.Error(err))
		return result, err
	}
	if reason != "" {
		result.Gated = true
		result.GateReason = reason
		log.Debug("Cycle gated", zap.String("reason", reason))
		return result, nil
	}

	reports, err := o.queries.ListActiveReports(ctx)
	if err != nil {
		log.Error("Failed to load report schedule", zap.Error(err))
		return result, err
	}
	log.Info("Running report schedule",
		zap.Int("active_reports", len(reports)),
		zap.Time("upstream_watermark", upstreamAt),
	)

	for _, report := range reports {
		if err := o.processReport(ctx, report, upstreamAt, &result, log); err != nil {
			return result, err
		}
	}

	at := o.now()
	if at.Before(upstreamAt) {
		// Clock skew between hosts must not let the same batch pass the gate twice.
		at = upstreamAt
	}
	if err := o.watermarks.RecordRun(ctx, o.opts.ProcessName, at); err != nil {
		log.Error("Failed to advance watermark", zap.Error(err))
		return result, err
	}
	result.Watermark = at

	log.Info("FINISHED REPORT NOTIFIER",
		zap.Int("reports", result.Reports),
		zap.Int("queries_run", result.QueriesRun),
		zap.Int("query_failures", result.QueryFailures),
		zap.Int("exports", result.Exports),
		zap.Int("notifications", result.Notifications),
		zap.Int("delivery_failures", result.DeliveryFailures),
	)
	o.publish(ctx, log, mqcontracts.RoutingCycleCompleted, mqcontracts.CycleCompletedPayload{
		TraceID:       result.TraceID,
		Process:       o.opts.ProcessName,
		Upstream:      o.opts.UpstreamProcess,
		Reports:       result.Reports,
		QueriesRun:    result.QueriesRun,
		QueryFailures: result.QueryFailures,
		Exports:       result.Exports,
		Notifications: result.Notifications,
		CompletedAt:   at,
	})
	return result, nil
}

// checkGate returns the upstream watermark and an empty reason when the
// cycle may proceed.
func (o *Orchestrator) checkGate(ctx context.Context) (time.Time, string, error) {
	ownAt, err := o.watermarks.LastRun(ctx, o.opts.ProcessName)
	if err != nil {
		return time.Time{}, "", err
	}
	upstream, err := o.watermarks.Watermark(ctx, o.opts.UpstreamProcess)
	if err != nil {
		return time.Time{}, "", err
	}

	switch {
	case !upstream.Finished:
		return upstream.LastRun, "upstream ingestion not finished", nil
	case !ownAt.Before(upstream.LastRun):
		return upstream.LastRun, "no upstream advance since last run", nil
	}
	return upstream.LastRun, "", nil
}

func (o *Orchestrator) processReport(ctx context.Context, report model.Report, upstreamAt time.Time, result *CycleResult, log *zap.Logger) (err error) {
	log = log.With(zap.String("report_code", report.Code))
	result.Reports++

	ctx, span := otel.StartSpan(ctx, "report.evaluate",
		trace.WithAttributes(
			attribute.String("report_code", report.Code),
			attribute.String("trigger", string(report.Trigger)),
		))
	defer func() { otel.EndSpan(span, err) }()

	handler, ok := o.handlers[report.Trigger]
	if !ok {
		log.Warn("Unknown report trigger, skipping", zap.String("trigger", string(report.Trigger)))
		return nil
	}

	settings, err := report.ParseEmail()
	if err != nil {
		log.Error("Invalid report email settings, skipping report", zap.Error(err))
		return nil
	}

	outcome, err := handler(ctx, report, log)
	result.QueriesRun += outcome.queriesRun
	result.QueryFailures += outcome.queryFailures
	result.Exports += len(outcome.files)
	result.ExportFailures += outcome.exportFailures
	if err != nil {
		return err
	}

	if len(outcome.files) == 0 {
		return nil
	}
	o.notify(ctx, report, settings, outcome.files, upstreamAt, result, log)
	return nil
}

func (o *Orchestrator) runConditional(ctx context.Context, report model.Report, log *zap.Logger) (reportOutcome, error) {
	var out reportOutcome
	log.Info("Running Conditional Report", zap.String("report_name", report.Name))

	queries, err := o.queries.ListQueries(ctx, report.Code)
	if err != nil {
		return out, err
	}

	for _, q := range queries {
		if q.Type != report.Trigger {
			continue
		}

		qlog := log.With(zap.Int("sequence", q.Sequence), zap.String("description", q.Description))
		out.queriesRun++
		start := time.Now()
		rs, err := o.executor.Execute(ctx, q.SQL)
		if err != nil {
			metrics.RecordReportQuery(report.Code, "error", time.Since(start))
			out.queryFailures++
			retryable, errType := util.IsRetryableError(err)
			qlog.Error("Report query failed, skipping",
				zap.Error(err),
				zap.String("error_type", errType),
				zap.Bool("retryable", retryable),
			)
			continue
		}
		if rs.Empty() {
			metrics.RecordReportQuery(report.Code, "empty", time.Since(start))
			qlog.Info("No Data (report not sent)")
			continue
		}
		metrics.RecordReportQuery(report.Code, "rows", time.Since(start))

		file, err := o.exporter.Export(report.Code, rs)
		if err != nil {
			metrics.IncrementExport("failed")
			out.exportFailures++
			qlog.Error("Export failed, skipping", zap.Error(err))
			continue
		}
		metrics.IncrementExport("success")
		file.Sequence = q.Sequence
		file.Description = q.Description
		out.files = append(out.files, file)

		o.publish(ctx, qlog, mqcontracts.RoutingReportExported, mqcontracts.ReportExportedPayload{
			ReportCode: report.Code,
			Sequence:   q.Sequence,
			Path:       file.Path,
			RowCount:   file.RowCount,
			CreatedAt:  file.CreatedAt,
		})
	}
	return out, nil
}

// runCalendar is the extension point for date-based reports; they are not
// evaluated and are never treated as conditional.
func (o *Orchestrator) runCalendar(_ context.Context, report model.Report, log *zap.Logger) (reportOutcome, error) {
	log.Debug("Calendar reports are not evaluated, skipping", zap.String("report_name", report.Name))
	return reportOutcome{}, nil
}

func (o *Orchestrator) notify(ctx context.Context, report model.Report, settings model.EmailSettings, files []model.ExportedFile, upstreamAt time.Time, result *CycleResult, log *zap.Logger) {
	dedupID := report.Code + ":" + strconv.FormatInt(upstreamAt.UnixNano(), 10)
	if o.guard != nil && !o.guard.AcquireOnce(ctx, "notify", dedupID) {
		result.Duplicates++
		metrics.IncrementNotification("duplicate")
		log.Warn("Notification already sent for this upstream batch, skipping")
		return
	}

	log.Info("Sending Email", zap.Int("files", len(files)))
	n, err := o.dispatcher.Dispatch(ctx, report, settings, files)
	if err != nil {
		result.DeliveryFailures++
		metrics.IncrementNotification("failed")
		log.Error("Notification delivery failed", zap.Error(err))
		if o.guard != nil {
			o.guard.Release(ctx, "notify", dedupID)
		}
		o.publish(ctx, log, mqcontracts.RoutingReportNotifyFailed, mqcontracts.ReportNotifyFailedPayload{
			ReportCode: report.Code,
			Error:      err.Error(),
		})
		return
	}

	result.Notifications++
	metrics.IncrementNotification("sent")
	o.publish(ctx, log, mqcontracts.RoutingReportNotified, mqcontracts.ReportNotifiedPayload{
		ReportCode:  report.Code,
		To:          n.To,
		Cc:          n.Cc,
		Attachments: n.Attachments,
		Redirected:  n.Redirected,
		SentAt:      o.now(),
	})
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, routingKey string, payload any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, routingKey, payload); err != nil {
		log.Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
