package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIEndpoint = "https://api.sendgrid.com/v3/mail/send"

// APISender delivers mail through a SendGrid-compatible HTTP API.
type APISender struct {
	endpoint   string
	apiKey     string
	fromEmail  string
	fromName   string
	httpClient *http.Client
}

// NewAPISender constructs an HTTP-API mail sender.
func NewAPISender(endpoint, apiKey, fromEmail, fromName string) (*APISender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mail: api key is required")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultAPIEndpoint
	}
	return &APISender{
		endpoint:   endpoint,
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type apiAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type apiContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type apiPayload struct {
	Personalizations []struct {
		To []apiAddress `json:"to"`
	} `json:"personalizations"`
	From    apiAddress   `json:"from"`
	Subject string       `json:"subject"`
	Content []apiContent `json:"content"`
}

// Send posts the message to the provider endpoint.
func (s *APISender) Send(ctx context.Context, msg Message) error {
	payload := apiPayload{
		From:    apiAddress{Email: s.fromEmail, Name: s.fromName},
		Subject: msg.Subject,
	}
	payload.Personalizations = make([]struct {
		To []apiAddress `json:"to"`
	}, 1)
	payload.Personalizations[0].To = []apiAddress{{Email: msg.To}}
	if msg.Text != "" {
		payload.Content = append(payload.Content, apiContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, apiContent{Type: "text/html", Value: msg.HTML})
	}
	if len(payload.Content) == 0 {
		return errors.New("mail: message body is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mail: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail: provider request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
