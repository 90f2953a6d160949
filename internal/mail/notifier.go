// Package mail delivers confirmation emails.  Notifiers make exactly one
// delivery attempt per call; retrying is the caller's business.
package mail

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/express-reservations/internal/config"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single HTML email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Notifier sends one message.  Implementations must honour ctx
// cancellation so a caller-imposed per-attempt timeout can abandon a hung
// relay.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPNotifier sends through an SMTP relay with STARTTLS when offered.
type SMTPNotifier struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	return &SMTPNotifier{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	m := n.build(msg)

	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

func (n *SMTPNotifier) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.from, n.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	for _, a := range msg.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m
}

// LogNotifier records messages in the log instead of sending them.  It
// backs local runs without an SMTP relay.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	n.log.Info("email not sent, SMTP_HOST is empty",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}
