package rail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payconfirm/internal/domain"
)

// CardConfig configures the card rail.
type CardConfig struct {
	BaseURL       string // e.g. https://api.stripe.com
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	// SignatureTolerance bounds webhook timestamp skew; zero uses the default.
	SignatureTolerance time.Duration
}

// CardRail verifies card payments against a Stripe-style payment intents API.
type CardRail struct {
	cfg    CardConfig
	client *http.Client
	now    func() time.Time
}

// NewCardRail creates a card rail adapter.
func NewCardRail(cfg CardConfig) *CardRail {
	if cfg.SignatureTolerance == 0 {
		cfg.SignatureTolerance = DefaultSignatureTolerance
	}
	return &CardRail{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// cardIntent is the subset of a payment intent the rail reads.
type cardIntent struct {
	ID       string         `json:"id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata"`
}

// Kind returns the card rail kind.
func (r *CardRail) Kind() domain.RailKind { return domain.RailCard }

// Verify retrieves the payment intent and maps its status.
func (r *CardRail) Verify(ctx context.Context, req VerifyRequest) (Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(r.cfg.BaseURL, "/") + "/v1/payment_intents/" + url.PathEscape(req.PaymentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.cfg.SecretKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: card provider: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownPayment, req.PaymentID)
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("%w: card provider status %d", ErrUnavailable, resp.StatusCode)
	}

	var intent cardIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return Result{}, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}

	res := Result{
		Status:   mapCardStatus(intent.Status),
		Raw:      intent.Status,
		Amount:   intent.Amount,
		Currency: strings.ToUpper(intent.Currency),
	}
	if err := checkExpected(req, res); err != nil {
		return Result{}, err
	}

	return res, nil
}

// SignatureHeader names the header carrying the webhook signature.
func (r *CardRail) SignatureHeader() string { return "Stripe-Signature" }

// ValidateWebhookSignature checks the timestamped HMAC-SHA256 signature.
func (r *CardRail) ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return ValidateTimestampedSignature(rawBody, signatureHeader, r.cfg.WebhookSecret, r.now(), r.cfg.SignatureTolerance)
}

// ParseWebhook decodes a payment intent event.
func (r *CardRail) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object cardIntent `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	obj := event.Data.Object
	ev := WebhookEvent{
		EventID:   event.ID,
		Type:      event.Type,
		PaymentID: obj.ID,
	}

	var status Status
	switch event.Type {
	case "payment_intent.succeeded":
		status = StatusSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		status = StatusFailed
	default:
		return ev, nil
	}
	if obj.ID == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing payment intent id", ErrMalformedEvent)
	}

	ev.Handled = true
	ev.Result = Result{
		Status:   status,
		Raw:      obj.Status,
		Amount:   obj.Amount,
		Currency: strings.ToUpper(obj.Currency),
	}
	ev.Intent = intentFromMetadata(obj.ID, domain.RailCard, obj.Amount, obj.Currency, obj.Metadata)

	return ev, nil
}

func mapCardStatus(status string) Status {
	switch status {
	case "succeeded":
		return StatusSucceeded
	case "canceled":
		return StatusFailed
	default:
		// processing, requires_payment_method, requires_action, ...
		return StatusPending
	}
}

// Ensure CardRail implements WebhookAdapter.
var _ WebhookAdapter = (*CardRail)(nil)
