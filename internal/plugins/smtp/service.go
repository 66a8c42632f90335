// Package smtp delivers outbound email. The service sends only one kind of
// message (password reset links) so delivery is a single Send call with an
// HTML body; connection settings come from the environment.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strings"
	"time"

	"github.com/keyxmakerx/userservice/internal/config"
)

// Encryption modes.
const (
	EncryptionStartTLS = "starttls"
	EncryptionSSL      = "ssl"
	EncryptionNone     = "none"
)

const dialTimeout = 10 * time.Second

// Mailer sends a single HTML email. Failures are returned to the caller and
// never retried here.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// New returns an SMTP mailer for cfg, or a mailer that only logs when no
// host is configured (local development).
func New(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		slog.Warn("SMTP_HOST not set, outgoing mail will be logged and dropped")
		return &logMailer{}
	}
	return &smtpMailer{cfg: cfg, now: time.Now}
}

// smtpMailer implements Mailer over net/smtp.
type smtpMailer struct {
	cfg config.SMTPConfig
	now func() time.Time
}

// Send builds an RFC 5322 message and delivers it using the configured
// encryption mode.
func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}
	msg := buildMessage(from, to, subject, htmlBody, m.now())
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))

	var err error
	switch m.cfg.Encryption {
	case EncryptionSSL:
		err = m.sendSSL(ctx, addr, from.Address, to, msg)
	case EncryptionNone:
		err = m.sendPlain(ctx, addr, from.Address, to, msg, false)
	default:
		err = m.sendPlain(ctx, addr, from.Address, to, msg, true)
	}
	if err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}

// buildMessage renders headers and body. The subject is Q-encoded so
// non-ASCII text survives transport.
func buildMessage(from mail.Address, to, subject, htmlBody string, date time.Time) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from.String()))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", date.UTC().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return msg.String()
}

// sendPlain connects over TCP and optionally upgrades with STARTTLS
// (port 587 typical).
func (m *smtpMailer) sendPlain(ctx context.Context, addr, from, to, msg string, startTLS bool) error {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if startTLS {
		tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}
	return m.deliver(client, from, to, msg)
}

// sendSSL connects with implicit TLS (port 465 typical).
func (m *smtpMailer) sendSSL(ctx context.Context, addr, from, to, msg string) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting (SSL): %w", err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	return m.deliver(client, from, to, msg)
}

// deliver authenticates if credentials are set, then runs MAIL FROM,
// RCPT TO and DATA on an open client.
func (m *smtpMailer) deliver(client *gosmtp.Client, from, to, msg string) error {
	if m.cfg.Username != "" {
		auth := gosmtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}

// logMailer drops mail after logging its envelope. The body is not logged
// because it carries a live reset token.
type logMailer struct{}

func (logMailer) Send(_ context.Context, to, subject, _ string) error {
	slog.Info("mail not sent, SMTP disabled",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}
