/*
mailer.go - Outgoing mail

PURPOSE:
  Sends feedback to the maintainers over SMTP. When email is disabled a
  no-op mailer stands in and submissions stay pending in the store.

SMTP:
  Plain connection upgraded with STARTTLS when UseTLS is set, then PLAIN
  auth when a user is configured. Header values are stripped of line
  breaks before the message is built.

SEE ALSO:
  - service.go: Submit and Deliver
  - dispatcher.go: Retries
*/
package feedback

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Mailer delivers a plain-text message.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// MailConfig holds SMTP settings.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	UseTLS   bool
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

type smtpMailer struct {
	cfg MailConfig
}

// NewMailer returns an SMTP mailer, or one that drops every message when
// mail is disabled or no host is set.
func NewMailer(cfg MailConfig) Mailer {
	if !cfg.Enabled || cfg.Host == "" {
		return noopMailer{}
	}
	return &smtpMailer{cfg: cfg}
}

// IsNoop reports whether m silently discards mail.
func IsNoop(m Mailer) bool {
	_, ok := m.(noopMailer)
	return ok
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	msg := buildMessage(from, to, subject, body)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}

	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// headerSafe strips CR and LF so user input cannot add headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func buildMessage(from, to, subject, body string) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", headerSafe(from)),
		fmt.Sprintf("To: %s", headerSafe(to)),
		fmt.Sprintf("Subject: %s", headerSafe(subject)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}
