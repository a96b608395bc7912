package tests

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payconfirm/internal/config"
	"payconfirm/internal/domain"
	"payconfirm/internal/rail"
	"payconfirm/internal/service"
)

const (
	cardWebhookSecret = "whsec_test"
	gatewaySecret     = "sk_gateway_test"
)

type harness struct {
	ledger   *MockLedger
	card     *MockRail
	gateway  *MockRail
	notifier *MockNotifier
	svc      *service.ConfirmationService
	webhooks *service.WebhookService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	banks, err := config.LoadBankDirectory("")
	require.NoError(t, err)

	h := &harness{
		ledger:   NewMockLedger(),
		card:     NewMockRail(domain.RailCard, rail.StatusSucceeded),
		gateway:  NewMockRail(domain.RailGateway, rail.StatusSucceeded),
		notifier: NewMockNotifier(),
	}

	registry := rail.NewRegistry(
		NewMockWebhookRail(h.card, rail.NewCardRail(rail.CardConfig{WebhookSecret: cardWebhookSecret})),
		NewMockWebhookRail(h.gateway, rail.NewGatewayRail(rail.GatewayConfig{SecretKey: gatewaySecret})),
		rail.NewBankTransferRail(),
	)

	logger := zap.NewNop()
	h.svc = service.NewConfirmationService(h.ledger, registry, h.notifier, banks, logger)
	h.webhooks = service.NewWebhookService(registry, h.svc, logger)
	return h
}

func cardRequest(id string) service.ConfirmRequest {
	return service.ConfirmRequest{
		PaymentID: id,
		Rail:      domain.RailCard,
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Phone:     "+15550100",
		Date:      "2026-11-02",
		Time:      "14:30",
		Amount:    5000,
		Currency:  "USD",
	}
}

func bankTransferRequest(id, currency string) service.ConfirmRequest {
	return service.ConfirmRequest{
		PaymentID: id,
		Rail:      domain.RailBankTransfer,
		Name:      "Grace Hopper",
		Email:     "grace@example.com",
		Date:      "2026-11-03",
		Time:      "09:00",
		Currency:  currency,
	}
}
