package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/config"
	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/observability"
)

const (
	deliveryNotConfigured = "SMTP not configured. Set SMTP credentials to enable email sending."
	deliveryInvalidPort   = "Invalid SMTP_PORT"
	deliverySent          = "Email sent"
)

// Mailer delivers advisor notifications by email. Delivery failures are
// reported in the result and never returned as errors.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) dto.DeliveryResult
}

type smtpMailer struct {
	cfg    config.SMTPConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewSMTPMailer constructs a mailer speaking SMTP over implicit TLS.
func NewSMTPMailer(cfg config.SMTPConfig, logger zerolog.Logger) Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpMailer{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailer").Logger(),
		now:    time.Now,
	}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string) dto.DeliveryResult {
	if !m.cfg.Configured() {
		observability.EmailDeliveries().WithLabelValues("skipped").Inc()
		return dto.DeliveryResult{Sent: false, Info: deliveryNotConfigured}
	}

	port, err := strconv.Atoi(m.cfg.Port)
	if err != nil || port <= 0 || port > 65535 {
		observability.EmailDeliveries().WithLabelValues("failed").Inc()
		return dto.DeliveryResult{Sent: false, Info: deliveryInvalidPort}
	}

	if err := m.deliver(ctx, port, to, subject, body); err != nil {
		observability.EmailDeliveries().WithLabelValues("failed").Inc()
		m.logger.Warn().Err(err).Str("recipient", maskEmailAddress(to)).Msg("email delivery failed")
		return dto.DeliveryResult{Sent: false, Info: fmt.Sprintf("Email error: %v", err)}
	}

	observability.EmailDeliveries().WithLabelValues("sent").Inc()
	m.logger.Info().Str("recipient", maskEmailAddress(to)).Msg("email delivered")
	return dto.DeliveryResult{Sent: true, Info: deliverySent}
}

func (m *smtpMailer) deliver(ctx context.Context, port int, to, subject, body string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(port))

	deadline := m.now().Add(m.cfg.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: m.cfg.Timeout},
		Config:    &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("sender %s: %w", m.cfg.From, err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("recipient %s: %w", to, err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := writer.Write(buildMessage(m.cfg.From, to, subject, body, m.now())); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	if err := client.Quit(); err != nil {
		m.logger.Debug().Err(err).Msg("smtp quit")
	}
	return nil
}

// headerBreaks flattens line breaks so roster supplied values cannot start a new header.
var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", headerBreaks.Replace(from))
	fmt.Fprintf(&msg, "To: %s\r\n", headerBreaks.Replace(to))
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerBreaks.Replace(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", at.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return msg.Bytes()
}

// maskEmailAddress keeps the first and last character of the local part.
func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}
