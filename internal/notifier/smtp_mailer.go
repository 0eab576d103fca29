package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"reportnotifier/internal/model"
	"reportnotifier/pkg/circuitbreaker"
	"reportnotifier/pkg/config"
)

// SMTPMailer sends notifications through an SMTP relay. Calls go through a
// circuit breaker so a dead relay is not dialled on every cycle.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &SMTPMailer{
		cfg:     cfg,
		breaker: breaker,
		logger:  logger,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, n model.Notification) error {
	msg, err := buildMessage(n)
	if err != nil {
		return err
	}

	err = m.breaker.Execute(func() error {
		client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
		if err != nil {
			return fmt.Errorf("smtp client: %w", err)
		}
		return client.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		m.logger.Error("SMTP send failed",
			zap.String("host", m.cfg.Host),
			zap.String("breaker_state", m.breaker.GetState().String()),
			zap.Error(err),
		)
	}
	return err
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithTLSPolicy(tlsPolicy(m.cfg.TLS))}
	if m.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(m.cfg.Port))
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch strings.ToLower(name) {
	case "none":
		return mail.NoTLS
	case "mandatory":
		return mail.TLSMandatory
	default:
		return mail.TLSOpportunistic
	}
}

func buildMessage(n model.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", n.From, err)
	}
	if err := msg.To(n.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	if len(n.Cc) > 0 {
		if err := msg.Cc(n.Cc...); err != nil {
			return nil, fmt.Errorf("invalid cc address: %w", err)
		}
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextHTML, n.HTMLBody)
	for _, path := range n.Attachments {
		msg.AttachFile(path)
	}
	return msg, nil
}
