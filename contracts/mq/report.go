package mq

import "time"

// Routing keys published on the events exchange.
const (
	RoutingReportExported     = "report.exported"
	RoutingReportNotified     = "report.notified"
	RoutingReportNotifyFailed = "report.notify_failed"
	RoutingCycleCompleted     = "report.cycle.completed"
)

type ReportExportedPayload struct {
	ReportCode string    `json:"report_code"`
	Sequence   int       `json:"sequence"`
	Path       string    `json:"path"`
	RowCount   int       `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type ReportNotifiedPayload struct {
	ReportCode  string    `json:"report_code"`
	To          []string  `json:"to"`
	Cc          []string  `json:"cc,omitempty"`
	Attachments []string  `json:"attachments"`
	Redirected  bool      `json:"redirected"` // dev guard routed delivery to the sender only
	SentAt      time.Time `json:"sent_at"`
}

type ReportNotifyFailedPayload struct {
	ReportCode string `json:"report_code"`
	Error      string `json:"error"`
}

type CycleCompletedPayload struct {
	TraceID       string    `json:"trace_id"`
	Process       string    `json:"process"`
	Upstream      string    `json:"upstream"`
	Reports       int       `json:"reports"`
	QueriesRun    int       `json:"queries_run"`
	QueryFailures int       `json:"query_failures"`
	Exports       int       `json:"exports"`
	Notifications int       `json:"notifications"`
	CompletedAt   time.Time `json:"completed_at"`
}
