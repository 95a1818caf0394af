// Package mail provides outbound email delivery behind a pluggable Sender.
// Several transactional providers were trialed for this service; the Sender
// contract is the part the rest of the code relies on.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message to its recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures a provider.
type Config struct {
	Provider  string // "api", "smtp", or "log"
	FromEmail string
	FromName  string

	// api provider
	APIEndpoint string
	APIKey      string

	// smtp provider
	SMTPAddr     string // host:port
	SMTPUsername string
	SMTPPassword string
}

// NewSender builds the configured provider.
func NewSender(cfg Config) (Sender, error) {
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("mail: from email is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "api":
		return NewAPISender(cfg.APIEndpoint, cfg.APIKey, cfg.FromEmail, cfg.FromName)
	case "smtp":
		return NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromEmail, cfg.FromName)
	case "log", "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("mail: unknown provider %q", cfg.Provider)
	}
}

// LogSender logs instead of sending. Used in development and tests.
type LogSender struct{}

// Send logs the message and reports success.
func (LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("mail_send_skipped", "provider", "log", "to", msg.To, "subject", msg.Subject)
	return nil
}
