package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycles by outcome: gated, completed, failed, skipped
	CycleCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_cycle_total",
			Help: "Total number of poll cycles by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "report_cycle_duration_seconds",
			Help:    "Duration of poll cycles that passed the gate",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
		},
	)

	// Report query executions
	ReportQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_query_duration_seconds",
			Help:    "Report query execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"report_code", "status"}, // status: rows, empty, error
	)

	ExportCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_export_total",
			Help: "Total number of CSV exports",
		},
		[]string{"status"}, // status: success, failed
	)

	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_notification_total",
			Help: "Total number of report notifications",
		},
		[]string{"status"}, // status: sent, failed, duplicate
	)

	// Store reads and watermark writes
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
	)
)

// RecordCycle counts a finished poll cycle.
func RecordCycle(outcome string) {
	CycleCount.WithLabelValues(outcome).Inc()
}

// RecordCycleDuration observes the duration of a cycle that passed the gate.
func RecordCycleDuration(duration time.Duration) {
	CycleDuration.Observe(duration.Seconds())
}

// RecordReportQuery observes one report query execution.
func RecordReportQuery(reportCode, status string, duration time.Duration) {
	ReportQueryDuration.WithLabelValues(reportCode, status).Observe(duration.Seconds())
}

// IncrementExport counts an export attempt.
func IncrementExport(status string) {
	ExportCount.WithLabelValues(status).Inc()
}

// IncrementNotification counts a notification attempt.
func IncrementNotification(status string) {
	NotificationCount.WithLabelValues(status).Inc()
}

// RecordDBQueryDuration observes a store query.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts a query over the slow threshold.
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
