// Package mailer delivers transactional mail over SMTP.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/tourbook/tours-api/internal/config"
)

// Message is a plain-text mail to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// dialer is the part of *gomail.Dialer the SMTP sender uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends mail through an authenticated relay.
type SMTP struct {
	from   string
	dialer dialer
	log    *zap.Logger
}

// NewSMTP returns a sender for the relay in cfg.
func NewSMTP(cfg config.MailConfig, log *zap.Logger) *SMTP {
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    log,
	}
}

// Send delivers msg.  gomail has no context support, so the delivery runs in
// a goroutine and Send returns early when ctx is done.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("mail delivery failed", zap.String("subject", msg.Subject), zap.Error(err))
			return fmt.Errorf("send mail: %w", err)
		}
		s.log.Info("mail sent", zap.String("subject", msg.Subject))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

// PasswordReset builds the reset mail pointing at resetURL.
func PasswordReset(to, resetURL string) Message {
	return Message{
		To:      to,
		Subject: "Your password reset token (valid for 10 minutes)",
		Body: "Forgot your password? Submit a PATCH request with your new password and " +
			"passwordConfirm to:\n\n" + resetURL +
			"\n\nIf you didn't forget your password, please ignore this email.",
	}
}

// Welcome builds the mail sent after signup.
func Welcome(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to the Tours family!",
		Body:    fmt.Sprintf("Hi %s,\n\nWelcome aboard! We're glad to have you.\n", name),
	}
}
