package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPSender delivers mail through a plain SMTP relay with AUTH PLAIN.
type SMTPSender struct {
	addr      string
	auth      smtp.Auth
	fromEmail string
	fromName  string
}

// NewSMTPSender constructs an SMTP mail sender.
func NewSMTPSender(addr, username, password, fromEmail, fromName string) (*SMTPSender, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("mail: smtp addr is required")
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("mail: invalid smtp addr %q: %w", addr, err)
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:      addr,
		auth:      auth,
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// Send writes the message to the relay. The context is checked before the
// dial; net/smtp itself does not support cancellation mid-send.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := msg.Text
	contentType := "text/plain; charset=UTF-8"
	if msg.HTML != "" {
		body = msg.HTML
		contentType = "text/html; charset=UTF-8"
	}
	raw := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", s.fromName, s.fromEmail),
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: " + contentType,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.addr, s.auth, s.fromEmail, []string{msg.To}, []byte(raw)); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}
