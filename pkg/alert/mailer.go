// Package alert sends detection alert emails over SMTP.
package alert

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/teslashibe/go-laser/internal/config"
)

// DefaultObject names the object when an alert does not.
const DefaultObject = "Unknown Object"

// Config holds SMTP settings. Credentials come from the environment only.
type Config struct {
	Host     string        `json:"host"`
	Port     int           `json:"port" validate:"omitempty,min=1,max=65535"`
	User     string        `json:"user"`
	Password string        `json:"-"`
	From     string        `json:"from" validate:"omitempty,email"`
	Interval time.Duration `json:"interval" validate:"min=0"`
}

// DefaultConfig returns a disabled mailer configuration.
func DefaultConfig() Config {
	return Config{
		Port:     587,
		Interval: 30 * time.Second,
	}
}

// Enabled reports whether enough is set to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return config.Validate(c)
}

// Alert is one alert request.
type Alert struct {
	Object string `json:"object"`
	Email  string `json:"email" validate:"required,email"`
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends alert emails, at most one per configured interval.
type Mailer struct {
	cfg     Config
	limiter *rate.Limiter
	send    SendFunc
	logger  *slog.Logger
}

// New creates a mailer. A zero Interval disables rate limiting.
func New(cfg Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &Mailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		send:    smtp.SendMail,
		logger:  logger.With("component", "alert"),
	}
}

// Enabled reports whether the mailer can send.
func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled()
}

// Send validates and mails an alert. smtp.SendMail upgrades to TLS with
// STARTTLS when the server offers it.
func (m *Mailer) Send(ctx context.Context, a Alert) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(a.Object) == "" {
		a.Object = DefaultObject
	}
	if err := config.Validate(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.limiter.Allow() {
		return ErrRateLimited
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	if err := m.send(addr, auth, m.cfg.From, []string{a.Email}, m.message(a)); err != nil {
		m.logger.Warn("alert mail failed", "object", a.Object, "error", err)
		return fmt.Errorf("send alert: %w", err)
	}

	m.logger.Info("alert sent", "object", a.Object, "to", a.Email)
	return nil
}

func (m *Mailer) message(a Alert) []byte {
	subject := fmt.Sprintf("ALERT: %s Detected!", headerSafe(a.Object))
	body := fmt.Sprintf(
		"<html><body><h2 style='color:red;'>Alert</h2><p>%s detected.</p></body></html>",
		html.EscapeString(a.Object),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", a.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// headerSafe strips line breaks so a value cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
