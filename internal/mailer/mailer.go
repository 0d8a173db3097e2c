// internal/mailer/mailer.go

// Package mailer delivers outbound email through one of the configured providers.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/saptechnologies/sap-backend/internal/config"
)

var ErrNoRecipient = errors.New("mailer: message has no recipient")

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

type Message struct {
	To          []string     `json:"to"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Validate checks the recipients are well-formed addresses.
func (m *Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipient
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("mailer: invalid recipient %q: %w", to, err)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mailer: message has no subject")
	}
	return nil
}

// Mailer sends a message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

// New builds the mailer for the configured provider.
func New(cfg config.EmailConfig) (Mailer, error) {
	from := formatFrom(cfg.FromName, cfg.FromEmail)

	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(from), nil
	case "smtp":
		return NewSMTPMailer(SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
			FromName: cfg.FromName,
		})
	case "resend":
		return NewResendMailer(cfg.ResendAPIKey, from)
	case "sendgrid":
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName)
	default:
		return nil, fmt.Errorf("mailer: unsupported provider %q", cfg.Provider)
	}
}

func formatFrom(name, email string) string {
	if name == "" {
		return email
	}
	return (&mail.Address{Name: name, Address: email}).String()
}
