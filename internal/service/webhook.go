package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"payconfirm/internal/domain"
	"payconfirm/internal/rail"
)

// EventApplier feeds an authenticated rail event into the state machine.
type EventApplier interface {
	ApplyRailEvent(ctx context.Context, kind domain.RailKind, ev rail.WebhookEvent) (*ConfirmResult, error)
}

// WebhookOutcome describes what happened to an accepted delivery.
type WebhookOutcome struct {
	EventID   string
	Type      string
	PaymentID string
	Handled   bool
	Status    domain.ConfirmationStatus // empty when not handled or processing failed
}

// WebhookService authenticates rail deliveries and routes them into the
// confirmation state machine.
type WebhookService struct {
	rails   RailRegistry
	applier EventApplier
	logger  *zap.Logger
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(rails RailRegistry, applier EventApplier, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		rails:   rails,
		applier: applier,
		logger:  logger,
	}
}

// SignatureHeader returns the header that carries kind's webhook signature.
func (s *WebhookService) SignatureHeader(kind domain.RailKind) (string, error) {
	wa, err := s.rails.Webhook(kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return wa.SignatureHeader(), nil
}

// Ingest authenticates rawBody exactly as received and applies the event.
// Only authentication and parse failures are returned; once an event is
// accepted, processing errors are logged so the rail does not redeliver.
func (s *WebhookService) Ingest(ctx context.Context, kind domain.RailKind, rawBody []byte, signature string) (*WebhookOutcome, error) {
	wa, err := s.rails.Webhook(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if !wa.ValidateWebhookSignature(rawBody, signature) {
		webhooksTotal.WithLabelValues(string(kind), "invalid_signature").Inc()
		s.logger.Warn("security: webhook signature rejected",
			zap.String("rail", string(kind)),
			zap.Int("body_bytes", len(rawBody)),
			zap.Bool("signature_present", signature != ""),
		)
		return nil, ErrSignatureInvalid
	}

	ev, err := wa.ParseWebhook(rawBody)
	if err != nil {
		webhooksTotal.WithLabelValues(string(kind), "malformed").Inc()
		if errors.Is(err, rail.ErrMalformedEvent) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, err
	}

	outcome := &WebhookOutcome{
		EventID:   ev.EventID,
		Type:      ev.Type,
		PaymentID: ev.PaymentID,
		Handled:   ev.Handled,
	}

	if !ev.Handled {
		webhooksTotal.WithLabelValues(string(kind), "ignored").Inc()
		s.logger.Debug("webhook event ignored",
			zap.String("rail", string(kind)),
			zap.String("event_id", ev.EventID),
			zap.String("type", ev.Type),
		)
		return outcome, nil
	}

	res, err := s.applier.ApplyRailEvent(ctx, kind, ev)
	if err != nil {
		webhooksTotal.WithLabelValues(string(kind), "error").Inc()
		s.logger.Error("webhook processing failed",
			zap.String("rail", string(kind)),
			zap.String("event_id", ev.EventID),
			zap.String("payment_id", ev.PaymentID),
			zap.Error(err),
		)
		return outcome, nil
	}

	webhooksTotal.WithLabelValues(string(kind), "applied").Inc()
	outcome.Status = res.Status
	s.logger.Info("webhook processed",
		zap.String("rail", string(kind)),
		zap.String("event_id", ev.EventID),
		zap.String("payment_id", ev.PaymentID),
		zap.String("status", string(res.Status)),
		zap.Bool("applied", res.Applied),
	)
	return outcome, nil
}
