package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reportnotifier/internal/model"
)

// devMarker in any attachment path means the export came from a
// non-production environment.
const devMarker = "dev"

// ErrNoRecipients is returned when a report has neither to nor cc addresses.
var ErrNoRecipients = errors.New("notification has no recipients")

// DeliveryError wraps a failed notification send. It is never retried
// within a cycle.
type DeliveryError struct {
	ReportCode string
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver report %s: %v", e.ReportCode, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Mailer delivers a composed notification.
type Mailer interface {
	Send(ctx context.Context, n model.Notification) error
}

// Dispatcher composes report notifications and hands them to a Mailer.
type Dispatcher struct {
	mailer      Mailer
	generatedBy string
	sendTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewDispatcher returns a Dispatcher. A zero sendTimeout leaves sends unbounded.
func NewDispatcher(mailer Mailer, generatedBy string, sendTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:      mailer,
		generatedBy: generatedBy,
		sendTimeout: sendTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the clock used for the subject and body date.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Recipients applies the environment guard: when any attachment path contains
// "dev" the mail goes to the sender only.
func Recipients(settings model.EmailSettings, files []model.ExportedFile) (to []string, redirected bool) {
	for _, f := range files {
		if strings.Contains(f.Path, devMarker) {
			return []string{settings.From}, true
		}
	}
	return settings.To, false
}

// Compose builds the notification for report covering files.
func (d *Dispatcher) Compose(report model.Report, settings model.EmailSettings, files []model.ExportedFile) (model.Notification, error) {
	now := d.now()
	body, err := RenderBody(settings, d.generatedBy, now, files)
	if err != nil {
		return model.Notification{}, fmt.Errorf("render body for %s: %w", report.Code, err)
	}

	to, redirected := Recipients(settings, files)
	attachments := make([]string, len(files))
	for i, f := range files {
		attachments[i] = f.Path
	}

	return model.Notification{
		From:        settings.From,
		To:          to,
		Cc:          settings.Cc,
		Subject:     Subject(report.Name, now),
		HTMLBody:    body,
		Attachments: attachments,
		Redirected:  redirected,
	}, nil
}

// Dispatch composes and sends one notification for report. Any failure is
// returned as a *DeliveryError.
func (d *Dispatcher) Dispatch(ctx context.Context, report model.Report, settings model.EmailSettings, files []model.ExportedFile) (model.Notification, error) {
	n, err := d.Compose(report, settings, files)
	if err != nil {
		return model.Notification{}, &DeliveryError{ReportCode: report.Code, Err: err}
	}
	if len(n.To) == 0 && len(n.Cc) == 0 {
		return n, &DeliveryError{ReportCode: report.Code, Err: ErrNoRecipients}
	}

	if n.Redirected {
		d.logger.Warn("Dev export detected, sending to sender only",
			zap.String("report_code", report.Code),
			zap.String("from", n.From),
		)
	}

	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	if err := d.mailer.Send(ctx, n); err != nil {
		return n, &DeliveryError{ReportCode: report.Code, Err: err}
	}

	d.logger.Info("Report notification sent",
		zap.String("report_code", report.Code),
		zap.Strings("to", n.To),
		zap.Strings("cc", n.Cc),
		zap.Int("attachments", len(n.Attachments)),
	)
	return n, nil
}
