package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/hmis-api/internal/config"
)

type Service interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPService delivers mail through an SMTP relay
type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// LogService records mail instead of sending it; used when SMTP is disabled
type LogService struct {
	Sent func(to, subject, body string)
}

func (s *LogService) Send(ctx context.Context, to, subject, body string) error {
	if s.Sent != nil {
		s.Sent(to, subject, body)
	}
	return nil
}
