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

// GatewayConfig configures the gateway rail.
type GatewayConfig struct {
	BaseURL   string // e.g. https://api.paystack.co
	SecretKey string
	Timeout   time.Duration
}

// GatewayRail verifies transactions against a Paystack-style gateway. The
// same secret key authenticates API calls and signs webhooks.
type GatewayRail struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewGatewayRail creates a gateway rail adapter.
func NewGatewayRail(cfg GatewayConfig) *GatewayRail {
	return &GatewayRail{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type gatewayTransaction struct {
	Reference string         `json:"reference"`
	Status    string         `json:"status"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Metadata  map[string]any `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// Kind returns the gateway rail kind.
func (r *GatewayRail) Kind() domain.RailKind { return domain.RailGateway }

// Verify looks up the transaction by reference and maps its status.
func (r *GatewayRail) Verify(ctx context.Context, req VerifyRequest) (Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(r.cfg.BaseURL, "/") + "/transaction/verify/" + url.PathEscape(req.PaymentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.cfg.SecretKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: gateway: %v", ErrUnavailable, err)
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
		return Result{}, fmt.Errorf("%w: gateway status %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope struct {
		Status  bool               `json:"status"`
		Message string             `json:"message"`
		Data    gatewayTransaction `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Result{}, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}
	if !envelope.Status {
		return Result{}, fmt.Errorf("%w: gateway: %s", ErrUnavailable, envelope.Message)
	}

	tx := envelope.Data
	res := Result{
		Status:   mapGatewayStatus(tx.Status),
		Raw:      tx.Status,
		Amount:   tx.Amount,
		Currency: strings.ToUpper(tx.Currency),
	}
	if err := checkExpected(req, res); err != nil {
		return Result{}, err
	}

	return res, nil
}

// SignatureHeader names the header carrying the webhook signature.
func (r *GatewayRail) SignatureHeader() string { return "X-Paystack-Signature" }

// ValidateWebhookSignature checks the HMAC-SHA512 body signature.
func (r *GatewayRail) ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return ValidateHMACSHA512(rawBody, signatureHeader, r.cfg.SecretKey)
}

// ParseWebhook decodes a charge event.
func (r *GatewayRail) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var event struct {
		Event string             `json:"event"`
		Data  gatewayTransaction `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Event == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing event", ErrMalformedEvent)
	}

	tx := event.Data
	ev := WebhookEvent{
		EventID:   event.Event + ":" + tx.Reference,
		Type:      event.Event,
		PaymentID: tx.Reference,
	}

	var status Status
	switch event.Event {
	case "charge.success":
		status = StatusSucceeded
	case "charge.failed":
		status = StatusFailed
	default:
		return ev, nil
	}
	if tx.Reference == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing reference", ErrMalformedEvent)
	}

	ev.Handled = true
	ev.Result = Result{
		Status:   status,
		Raw:      tx.Status,
		Amount:   tx.Amount,
		Currency: strings.ToUpper(tx.Currency),
	}
	ev.Intent = intentFromMetadata(tx.Reference, domain.RailGateway, tx.Amount, tx.Currency, tx.Metadata)
	if ev.Intent.Contact.Email == "" {
		ev.Intent.Contact.Email = tx.Customer.Email
	}

	return ev, nil
}

func mapGatewayStatus(status string) Status {
	switch status {
	case "success":
		return StatusSucceeded
	case "failed", "abandoned", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Ensure GatewayRail implements WebhookAdapter.
var _ WebhookAdapter = (*GatewayRail)(nil)
