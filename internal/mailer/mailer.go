// Package mailer delivers rendered notification messages.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrDelivery is returned when the transport rejects or cannot accept a message.
var ErrDelivery = errors.New("message delivery failed")

// Message is a rendered notification ready for a transport.
type Message struct {
	ID      string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// FormSender posts messages as JSON to a hosted form-mail endpoint
// (Formspree-style), which forwards them by email.
type FormSender struct {
	endpoint string
	client   *http.Client
}

// NewFormSender creates a FormSender for endpoint.
func NewFormSender(endpoint string, timeout time.Duration) *FormSender {
	return &FormSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type formPayload struct {
	Email        string `json:"email"`
	Subject      string `json:"subject"`
	Message      string `json:"message"`
	FormSubject  string `json:"_subject"`
	FormReplyTo  string `json:"_replyto,omitempty"`
	FormTemplate string `json:"_template"`
}

// Send posts msg and treats any non-2xx answer as a failure.
func (s *FormSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(formPayload{
		Email:        msg.To,
		Subject:      msg.Subject,
		Message:      msg.Body,
		FormSubject:  msg.Subject,
		FormReplyTo:  msg.ReplyTo,
		FormTemplate: "table",
	})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: endpoint status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used when
// no endpoint is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("message_id", msg.ID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// Ensure implementations satisfy Sender.
var (
	_ Sender = (*FormSender)(nil)
	_ Sender = (*LogSender)(nil)
)
