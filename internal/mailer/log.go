// internal/mailer/log.go
package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer writes messages to the log instead of sending them. Used in development.
type LogMailer struct {
	from string
}

func NewLogMailer(from string) *LogMailer {
	return &LogMailer{from: from}
}

func (m *LogMailer) Name() string { return "log" }

func (m *LogMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	attachments := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, a.Filename)
	}

	logrus.WithFields(logrus.Fields{
		"from":        m.from,
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": attachments,
		"html_bytes":  len(msg.HTML),
	}).Info("Email (log provider)")
	return nil
}
