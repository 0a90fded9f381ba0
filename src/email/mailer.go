// Package email sends the transactional welcome message over SMTP.
package email

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/gracegoods/server/src/auth"
	"github.com/gracegoods/server/src/config"
)

// Mailer implements auth.Notifier over SMTP.
type Mailer struct {
	dialer *mail.Dialer
	from   string
	log    *zap.Logger
}

// NewMailer returns nil when no SMTP host is configured; callers fall
// back to the no-op notifier.
func NewMailer(cfg *config.SMTPConfig, log *zap.Logger) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	return &Mailer{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    log,
	}
}

// SendWelcome greets a first-time customer. The login flow treats a
// failure here as non-fatal.
func (m *Mailer) SendWelcome(ctx context.Context, user *auth.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", user.Email)
	msg.SetHeader("Subject", "Welcome to GraceGoods")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nWelcome to GraceGoods! Your account is ready.\n\nGrace and peace,\nThe GraceGoods team\n",
		user.Name,
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	m.log.Info("welcome email sent", zap.String("user_id", user.ID))
	return nil
}

var _ auth.Notifier = (*Mailer)(nil)
