package data

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"AlertGate/internal/conf"
	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// SMTPTransport implements biz.EmailTransport over SMTP. Every Send performs
// a scoped connection acquisition: dial, authenticate, transmit, and close on
// every exit path, all bounded by the configured timeout. Credentials come
// from the SMTP_USERNAME / SMTP_PASSWORD environment variables and are never
// part of the configuration snapshot.
type SMTPTransport struct {
	enabled  bool
	server   string
	port     int
	useTLS   bool
	timeout  time.Duration
	from     string
	to       string
	username string
	password string
	logger   *log.Helper
}

// NewSMTPTransport creates the SMTP transport from the alerting snapshot.
func NewSMTPTransport(cfg *conf.Alerting, logger log.Logger) *SMTPTransport {
	helper := log.NewHelper(logger)

	t := &SMTPTransport{
		timeout:  30 * time.Second,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		logger:   helper,
	}
	if cfg == nil || cfg.Email == nil {
		helper.Warn("email configuration is missing, SMTP transport disabled")
		return t
	}

	email := cfg.Email
	t.enabled = email.Enabled
	t.server = email.SMTPServer
	t.port = email.SMTPPort
	t.useTLS = email.UseTLS
	t.from = email.From
	t.to = email.To
	if email.Timeout != nil && email.Timeout.AsDuration() > 0 {
		t.timeout = email.Timeout.AsDuration()
	}
	if t.from == "" {
		t.from = t.username
	}

	if t.enabled && t.username == "" {
		helper.Warn("SMTP_USERNAME is not set, sending without authentication")
	}
	return t
}

// Send delivers one alert as an email. Any dial, handshake, authentication
// or transmission failure is a transport-level error for the circuit breaker.
func (t *SMTPTransport) Send(ctx context.Context, alert *model.Alert) error {
	if !t.enabled {
		return fmt.Errorf("email transport is disabled")
	}

	client, conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	// The raw connection close is the last-resort cleanup; Quit below is
	// the polite path.
	defer conn.Close()
	defer client.Close()

	if err := t.authenticate(client); err != nil {
		return err
	}

	if err := client.Mail(t.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, rcpt := range t.recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(buildMessage(t.from, t.to, alert)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp message close failed: %w", err)
	}

	if err := client.Quit(); err != nil {
		// Delivery already succeeded; a noisy QUIT is not a failure.
		t.logger.Debugw("msg", "smtp QUIT returned error after delivery", "error", err)
	}

	t.logger.Debugw("msg", "alert email delivered",
		"alert_id", alert.ID,
		"to", t.to)
	return nil
}

// IsAvailable performs a lightweight handshake without sending a body.
func (t *SMTPTransport) IsAvailable(ctx context.Context) bool {
	return t.TestConnection(ctx) == nil
}

// TestConnection dials, greets and quits without transmitting an alert.
func (t *SMTPTransport) TestConnection(ctx context.Context) error {
	if !t.enabled {
		return fmt.Errorf("email transport is disabled")
	}

	client, conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("smtp NOOP failed: %w", err)
	}
	return client.Quit()
}

// connect dials the SMTP server with the configured timeout and returns a
// greeted client. The connection deadline covers the whole exchange so a
// hung server cannot stall a send past the timeout.
func (t *SMTPTransport) connect(ctx context.Context) (*smtp.Client, net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", t.server, t.port)

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("smtp dial %s failed: %w", addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("smtp set deadline failed: %w", err)
	}

	// Port 465 is implicit TLS; otherwise upgrade via STARTTLS when
	// configured.
	if t.useTLS && t.port == 465 {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: t.server, MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("smtp tls handshake failed: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, t.server)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("smtp greeting failed: %w", err)
	}

	if t.useTLS && t.port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.server, MinVersion: tls.VersionTLS12}); err != nil {
				_ = client.Close()
				_ = conn.Close()
				return nil, nil, fmt.Errorf("smtp STARTTLS failed: %w", err)
			}
		}
	}

	return client, conn, nil
}

// authenticate runs AUTH PLAIN when credentials are configured.
func (t *SMTPTransport) authenticate(client *smtp.Client) error {
	if t.username == "" || t.password == "" {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return nil
	}
	auth := smtp.PlainAuth("", t.username, t.password, t.server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp authentication failed: %w", err)
	}
	return nil
}

// recipients splits the configured recipient list.
func (t *SMTPTransport) recipients() []string {
	parts := strings.Split(t.to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// buildMessage renders the alert as a plain-text email with severity and
// category carried in headers for downstream mail filtering.
func buildMessage(from, to string, alert *model.Alert) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", alert.Severity, alert.Title)
	fmt.Fprintf(&b, "X-Alert-Severity: %s\r\n", alert.Severity)
	fmt.Fprintf(&b, "X-Alert-Category: %s\r\n", alert.Category)
	fmt.Fprintf(&b, "Date: %s\r\n", alert.CreatedAt.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Alert:     %s\r\n", alert.Title)
	fmt.Fprintf(&b, "Severity:  %s\r\n", alert.Severity)
	fmt.Fprintf(&b, "Category:  %s\r\n", alert.Category)
	fmt.Fprintf(&b, "Component: %s\r\n", alert.Component)
	fmt.Fprintf(&b, "Time:      %s\r\n", alert.CreatedAt.Format(time.RFC3339))
	if alert.CorrelationID != "" {
		fmt.Fprintf(&b, "Correlation: %s\r\n", alert.CorrelationID)
	}
	b.WriteString("\r\n")
	b.WriteString(alert.Message)
	b.WriteString("\r\n")

	if len(alert.Metadata) > 0 {
		if md, err := json.MarshalIndent(alert.Metadata, "", "  "); err == nil {
			b.WriteString("\r\nMetadata:\r\n")
			b.Write(md)
			b.WriteString("\r\n")
		}
	}

	return []byte(b.String())
}
