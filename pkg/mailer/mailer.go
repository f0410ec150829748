// Package mailer sends notification emails over SMTP with PLAIN auth. Any
// standard SMTP endpoint works; development setups typically point it at a
// capture service such as Mailtrap.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer sends mail through a single configured SMTP server.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailerConfig contains options for creating a new SMTPMailer.
type NewSMTPMailerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string // sender address on outgoing mail
}

// NewSMTPMailer creates a new SMTPMailer. It validates the configuration but
// does not dial; connection errors surface on the first Send.
func NewSMTPMailer(cfg NewSMTPMailerConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("SMTP host and port must be provided")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("SMTP username and password must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender email address cannot be empty")
	}

	return &SMTPMailer{
		addr: cfg.Host + ":" + cfg.Port,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		from: cfg.From,
	}, nil
}

// Send delivers one message. The Content-Type is inferred from the body:
// anything containing basic HTML tags goes out as text/html.
func (m *SMTPMailer) Send(recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("recipient email address cannot be empty")
	}
	if subject == "" {
		return fmt.Errorf("email subject cannot be empty")
	}

	contentType := "text/plain; charset=UTF-8"
	lower := strings.ToLower(body)
	if strings.Contains(lower, "<html>") || strings.Contains(lower, "<p>") {
		contentType = "text/html; charset=UTF-8"
	}

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: %s\r\n"+
		"\r\n"+
		"%s\r\n", recipient, m.from, subject, contentType, body))

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{recipient}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
