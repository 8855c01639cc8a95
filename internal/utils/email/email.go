package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/Dan9191/pledge-service/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender delivers reminder messages over SMTP. The destination is an email
// address; the per-member credential argument is unused because SMTP
// authentication comes from configuration.
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// Send sends a reminder message to the given address. The underlying SMTP
// client does not take a context, so cancellation is not observed once the
// dial has started.
func (s *Sender) Send(ctx context.Context, destination, _ string, message string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{destination}
	e.Subject = "Pledge Reminder"
	e.Text = []byte(message)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", destination, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", destination, e.Subject)
	return nil
}
