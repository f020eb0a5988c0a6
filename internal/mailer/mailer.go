package mailer

import (
	"context"
	"errors"

	"github.com/lifenippon/apiserver/config"
	"gopkg.in/gomail.v2"
)

// Email is an outbound message. HTML is the primary body; Text, when
// set, is attached as the plain-text alternative.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Sender dispatches email. Delivery is best effort: callers log
// failures and never roll back work already committed.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// SMTPSender delivers email synchronously over SMTP.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

func (s *SMTPSender) Send(_ context.Context, email Email) error {
	if len(email.To) == 0 {
		return errors.New("no recipients specified")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	if email.HTML != "" {
		msg.SetBody("text/html", email.HTML)
		if email.Text != "" {
			msg.AddAlternative("text/plain", email.Text)
		}
	} else {
		msg.SetBody("text/plain", email.Text)
	}

	return s.dialer.DialAndSend(msg)
}
