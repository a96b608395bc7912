// Package rail adapts each payment rail to a uniform verification contract.
package rail

import (
	"context"
	"errors"
	"strings"

	"payconfirm/internal/domain"
)

var (
	// ErrUnavailable is returned when the provider cannot be reached or
	// answers unexpectedly. It never means the payment failed.
	ErrUnavailable = errors.New("rail unavailable")

	// ErrUnknownPayment is returned when the provider has no such payment.
	ErrUnknownPayment = errors.New("payment unknown to rail")

	// ErrAmountMismatch is returned when the provider's amount or currency
	// differs from what the caller expected.
	ErrAmountMismatch = errors.New("payment amount or currency mismatch")

	// ErrUnsupportedRail is returned for a rail with no registered adapter.
	ErrUnsupportedRail = errors.New("unsupported rail")

	// ErrWebhookUnsupported is returned for a rail that does not push events.
	ErrWebhookUnsupported = errors.New("rail does not support webhooks")

	// ErrMalformedEvent is returned when a webhook body cannot be parsed.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Status is a rail's view of a payment.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// VerifyRequest asks a rail whether a payment reached a terminal success state.
type VerifyRequest struct {
	PaymentID        string
	Rail             domain.RailKind
	ExpectedAmount   int64  // zero skips the amount check
	ExpectedCurrency string // empty skips the currency check
}

// Result is a rail's answer to a verification.
type Result struct {
	Status   Status
	Raw      string // provider status string, for audit
	Amount   int64
	Currency string
}

// Adapter answers "is payment P in a terminal success state?" for one rail.
type Adapter interface {
	Kind() domain.RailKind
	Verify(ctx context.Context, req VerifyRequest) (Result, error)
}

// WebhookEvent is a rail-pushed status change.
type WebhookEvent struct {
	EventID   string
	Type      string
	PaymentID string
	// Handled is false for event types that do not affect confirmation.
	Handled bool
	Result  Result
	// Intent carries what the provider stored with the payment (contact,
	// meeting); fields may be empty.
	Intent domain.PaymentIntent
}

// WebhookAdapter is an Adapter for a rail that pushes events.
type WebhookAdapter interface {
	Adapter
	SignatureHeader() string
	ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool
	ParseWebhook(rawBody []byte) (WebhookEvent, error)
}

// checkExpected compares the provider's amount and currency with the caller's.
func checkExpected(req VerifyRequest, res Result) error {
	if req.ExpectedAmount > 0 && res.Amount != req.ExpectedAmount {
		return ErrAmountMismatch
	}
	if req.ExpectedCurrency != "" && res.Currency != "" && !strings.EqualFold(req.ExpectedCurrency, res.Currency) {
		return ErrAmountMismatch
	}
	return nil
}

// intentFromMetadata rebuilds the contact and meeting a provider stored as
// metadata when the intent was created.
func intentFromMetadata(id string, kind domain.RailKind, amount int64, currency string, md map[string]any) domain.PaymentIntent {
	str := func(key string) string {
		if v, ok := md[key].(string); ok {
			return v
		}
		return ""
	}

	return domain.PaymentIntent{
		ID:       id,
		Rail:     kind,
		Amount:   amount,
		Currency: strings.ToUpper(currency),
		Contact: domain.Contact{
			Name:  str("name"),
			Email: str("email"),
			Phone: str("phone"),
		},
		Meeting: domain.Meeting{
			Date: str("date"),
			Time: str("time"),
		},
	}
}
