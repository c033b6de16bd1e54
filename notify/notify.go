// Package notify delivers outbound email through a transactional outbox.
// Producers enqueue messages inside the same database transaction as the
// state change that caused them; a dispatcher drains the outbox and hands
// messages to a Sender.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Message is one outbound notification.
type Message struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// Sender delivers a message to its recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over a plain SMTP connection. The standard
// library client is enough here: delivery is fire-and-forget text mail and
// retry policy lives in the dispatcher, not the transport.
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

// NewSMTPSender builds an SMTPSender. Empty username disables authentication.
func NewSMTPSender(addr, from, username, password string) *SMTPSender {
	s := &SMTPSender{Addr: addr, From: from}
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		s.Auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(s.Addr, s.Auth, s.From, msg.Recipients, []byte(b.String())); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. It is the
// default when no SMTP server is configured.
type LogSender struct {
	Logger *zap.SugaredLogger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Infow("notification (log sink)",
		"recipients", msg.Recipients,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
