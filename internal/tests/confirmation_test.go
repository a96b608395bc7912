package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payconfirm/internal/config"
	"payconfirm/internal/domain"
	"payconfirm/internal/rail"
	"payconfirm/internal/repository"
	"payconfirm/internal/service"
)

// ──────────────────────────────────────────────
// 1. CARD AND GATEWAY CONFIRMATION
// ──────────────────────────────────────────────

func TestConfirm_CardSucceeded_ConfirmsAndNotifiesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	res, err := h.svc.Confirm(context.Background(), cardRequest("pi_123"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, res.Status)
	assert.True(t, res.Applied)
	assert.True(t, res.Success())
	assert.True(t, res.Final())
	assert.Nil(t, res.BankDetails)

	entry := h.ledger.Entry("pi_123")
	require.NotNil(t, entry)
	assert.Equal(t, domain.StatusConfirmed, entry.Status)
	assert.Equal(t, "succeeded", entry.RawStatus)
	assert.Equal(t, int64(2), entry.Version)

	assert.Equal(t, 1, h.notifier.Count(domain.AudienceCustomer, domain.StatusConfirmed))
	assert.Equal(t, 1, h.notifier.Count(domain.AudienceAdmin, domain.StatusConfirmed))
	assert.Len(t, h.notifier.Events(), 2)

	ev := h.notifier.Events()[0]
	assert.Equal(t, "ada@example.com", ev.Intent.Contact.Email)
	assert.Equal(t, int64(5000), ev.Intent.Amount)
	assert.Equal(t, int64(2), ev.Version)
}

func TestConfirm_Retry_IsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := h.svc.Confirm(ctx, cardRequest("pi_123"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, res.Status)
		assert.Equal(t, i == 0, res.Applied)
	}

	assert.Equal(t, int32(1), h.card.Calls(), "terminal fast path must skip the rail")
	assert.Equal(t, int32(1), h.ledger.Applied())
	assert.Len(t, h.notifier.Events(), 2)
}

func TestConfirm_RailFailed_MarksFailedWithoutNotification(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.card.SetResult(rail.StatusFailed, nil)

	res, err := h.svc.Confirm(context.Background(), cardRequest("pi_bad"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.False(t, res.Success())
	assert.True(t, res.Final())
	assert.Empty(t, h.notifier.Events())

	// failed is terminal; a later success report cannot revive it.
	h.card.SetResult(rail.StatusSucceeded, nil)
	res, err = h.svc.Confirm(context.Background(), cardRequest("pi_bad"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
}

func TestConfirm_QueriedRailPending_StaysPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.card.SetResult(rail.StatusPending, nil)

	res, err := h.svc.Confirm(context.Background(), cardRequest("pi_slow"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, res.Status)
	assert.False(t, res.Final())
	assert.False(t, res.Success())
	assert.Equal(t, int32(0), h.ledger.CompareAndSetCallCount)
	assert.Empty(t, h.notifier.Events())

	// Polling again once the provider settles confirms it.
	h.card.SetResult(rail.StatusSucceeded, nil)
	res, err = h.svc.Confirm(context.Background(), cardRequest("pi_slow"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Status)
	assert.Len(t, h.notifier.Events(), 2)
}

func TestConfirm_RailUnavailable_NotTreatedAsFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.card.SetResult("", rail.ErrUnavailable)

	_, err := h.svc.Confirm(context.Background(), cardRequest("pi_down"))
	assert.ErrorIs(t, err, service.ErrRailUnavailable)

	entry := h.ledger.Entry("pi_down")
	require.NotNil(t, entry)
	assert.Equal(t, domain.StatusPending, entry.Status)
	assert.Empty(t, h.notifier.Events())

	// Retrying after the outage succeeds.
	h.card.SetResult(rail.StatusSucceeded, nil)
	res, err := h.svc.Confirm(context.Background(), cardRequest("pi_down"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Status)
}

func TestConfirm_RailClientErrors_PassThrough(t *testing.T) {
	t.Parallel()

	for _, railErr := range []error{rail.ErrAmountMismatch, rail.ErrUnknownPayment} {
		h := newHarness(t)
		h.gateway.SetResult("", railErr)

		req := cardRequest("ref_1")
		req.Rail = domain.RailGateway
		_, err := h.svc.Confirm(context.Background(), req)
		assert.ErrorIs(t, err, railErr)
		assert.False(t, errors.Is(err, service.ErrRailUnavailable))
		assert.Equal(t, domain.StatusPending, h.ledger.Entry("ref_1").Status)
	}
}

func TestConfirm_RailMismatch_Rejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Confirm(ctx, cardRequest("pay_1"))
	require.NoError(t, err)

	req := cardRequest("pay_1")
	req.Rail = domain.RailGateway
	_, err = h.svc.Confirm(ctx, req)
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
	assert.Equal(t, int32(0), h.gateway.Calls())
}

// ──────────────────────────────────────────────
// 2. INPUT VALIDATION
// ──────────────────────────────────────────────

func TestConfirm_InvalidInput_NoLedgerEntry(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(r *service.ConfirmRequest)
		wantErr error
	}{
		{"missing email", func(r *service.ConfirmRequest) { r.Email = "" }, service.ErrInvalidRequest},
		{"bad email", func(r *service.ConfirmRequest) { r.Email = "not-an-email" }, service.ErrInvalidRequest},
		{"missing name", func(r *service.ConfirmRequest) { r.Name = "  " }, service.ErrInvalidRequest},
		{"missing payment id", func(r *service.ConfirmRequest) { r.PaymentID = "" }, service.ErrInvalidRequest},
		{"bad date", func(r *service.ConfirmRequest) { r.Date = "02/11/2026" }, service.ErrInvalidRequest},
		{"bad time", func(r *service.ConfirmRequest) { r.Time = "2pm" }, service.ErrInvalidRequest},
		{"unknown rail", func(r *service.ConfirmRequest) { r.Rail = "crypto" }, service.ErrInvalidRequest},
		{"missing amount on card", func(r *service.ConfirmRequest) { r.Amount = 0 }, service.ErrInvalidRequest},
		{"negative amount", func(r *service.ConfirmRequest) { r.Amount = -5 }, service.ErrInvalidRequest},
		{"missing currency", func(r *service.ConfirmRequest) { r.Currency = "" }, service.ErrInvalidRequest},
		{"not a currency", func(r *service.ConfirmRequest) { r.Currency = "XYZ" }, service.ErrInvalidRequest},
		{"no settlement account", func(r *service.ConfirmRequest) { r.Currency = "CHF" }, service.ErrUnsupportedCurrency},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			req := cardRequest("pi_invalid")
			tc.mutate(&req)

			_, err := h.svc.Confirm(context.Background(), req)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 0, h.ledger.Len())
			assert.Equal(t, int32(0), h.card.Calls())
			assert.Empty(t, h.notifier.Events())
		})
	}
}

func TestConfirm_LowercaseCurrency_Normalized(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	req := cardRequest("pi_lower")
	req.Currency = "usd"

	res, err := h.svc.Confirm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Status)
	assert.Equal(t, "USD", h.notifier.Events()[0].Intent.Currency)
}

// ──────────────────────────────────────────────
// 3. BANK TRANSFER
// ──────────────────────────────────────────────

func TestBankTransfer_AwaitingThenAssertedPaid(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Confirm(ctx, bankTransferRequest("bt_456", "EUR"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAwaitingManualTransfer, res.Status)
	assert.True(t, res.Success())
	require.NotNil(t, res.BankDetails)
	assert.Equal(t, "EUR", res.BankDetails.Currency)
	assert.Equal(t, "DE89370400440532013000", res.BankDetails.IBAN)

	assert.Equal(t, 1, h.notifier.Count(domain.AudienceCustomer, domain.StatusAwaitingManualTransfer))
	assert.Equal(t, 1, h.notifier.Count(domain.AudienceAdmin, domain.StatusAwaitingManualTransfer))
	assert.NotNil(t, h.notifier.Events()[0].BankDetails)

	// Repeating the confirmation does not re-notify.
	res, err = h.svc.Confirm(ctx, bankTransferRequest("bt_456", "EUR"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingManualTransfer, res.Status)
	assert.False(t, res.Applied)
	assert.Len(t, h.notifier.Events(), 2)

	res, err = h.svc.AssertPaid(ctx, bankTransferRequest("bt_456", "EUR"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Status)
	assert.True(t, res.Applied)
	assert.Nil(t, res.BankDetails)

	entry := h.ledger.Entry("bt_456")
	assert.Equal(t, service.RawCustomerAssertedPaid, entry.RawStatus)
	assert.Equal(t, int64(3), entry.Version)

	assert.Equal(t, 1, h.notifier.Count(domain.AudienceCustomer, domain.StatusConfirmed))
	assert.Equal(t, 1, h.notifier.Count(domain.AudienceAdmin, domain.StatusConfirmed))
	assert.Len(t, h.notifier.Events(), 4)

	// Asserting twice is a no-op.
	res, err = h.svc.AssertPaid(ctx, bankTransferRequest("bt_456", "EUR"))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.StatusConfirmed, res.Status)
	assert.Len(t, h.notifier.Events(), 4)
}

func TestBankTransfer_AmountOptional(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	req := bankTransferRequest("bt_noamount", "NGN")
	req.Amount = 0
	res, err := h.svc.Confirm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingManualTransfer, res.Status)
}

func TestBankTransfer_UnsupportedCurrency(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.svc.Confirm(context.Background(), bankTransferRequest("bt_chf", "CHF"))
	assert.ErrorIs(t, err, service.ErrUnsupportedCurrency)
	assert.Equal(t, 0, h.ledger.Len())
}

func TestAssertPaid_UnknownPayment(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.svc.AssertPaid(context.Background(), bankTransferRequest("bt_missing", "EUR"))
	assert.ErrorIs(t, err, service.ErrPaymentNotFound)
	assert.Equal(t, 0, h.ledger.Len())
}

func TestAssertPaid_NonBankRail_Rejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Confirm(ctx, cardRequest("pi_card"))
	require.NoError(t, err)

	_, err = h.svc.AssertPaid(ctx, cardRequest("pi_card"))
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	// A bank transfer claim against a card payment does not touch it either.
	_, err = h.svc.AssertPaid(ctx, bankTransferRequest("pi_card", "USD"))
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
	assert.Equal(t, int32(1), h.ledger.Applied())
}

func TestAssertPaid_BeforeConfirm_IsNoOp(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	// Seed a pending entry that never reached awaiting_manual_transfer.
	_, err := h.ledger.GetOrCreate(ctx, "bt_early", domain.RailBankTransfer)
	require.NoError(t, err)

	res, err := h.svc.AssertPaid(ctx, bankTransferRequest("bt_early", "GBP"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, res.Status)
	assert.False(t, res.Applied)
	assert.Empty(t, h.notifier.Events())
}

// ──────────────────────────────────────────────
// 4. LEDGER FAILURES AND CANCELLATION
// ──────────────────────────────────────────────

func TestConfirm_LedgerUnavailable_ReturnsError(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ledger.GetOrCreateError = errors.New("connection refused")

	_, err := h.svc.Confirm(context.Background(), cardRequest("pi_1"))
	assert.Error(t, err)
	assert.Equal(t, int32(0), h.card.Calls())
}

func TestConfirm_CallerCancelledAfterVerify_WriteStillApplied(t *testing.T) {
	t.Parallel()

	banks, err := config.LoadBankDirectory("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger := &ctxCheckingLedger{MockLedger: NewMockLedger()}
	notifier := NewMockNotifier()
	card := &cancellingRail{MockRail: NewMockRail(domain.RailCard, rail.StatusSucceeded), cancel: cancel}
	svc := service.NewConfirmationService(ledger, rail.NewRegistry(card), notifier, banks, zap.NewNop())

	res, err := svc.Confirm(ctx, cardRequest("pi_cancel"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Status)
	assert.Equal(t, domain.StatusConfirmed, ledger.Entry("pi_cancel").Status)
	assert.Len(t, notifier.Events(), 2)
}

// cancellingRail cancels the caller's context as soon as it answers, as if
// the client disconnected mid-request.
type cancellingRail struct {
	*MockRail
	cancel context.CancelFunc
}

func (r *cancellingRail) Verify(ctx context.Context, req rail.VerifyRequest) (rail.Result, error) {
	res, err := r.MockRail.Verify(ctx, req)
	r.cancel()
	return res, err
}

// ctxCheckingLedger refuses writes on a cancelled context.
type ctxCheckingLedger struct {
	*MockLedger
}

func (l *ctxCheckingLedger) CompareAndSet(ctx context.Context, paymentID string, expectedVersion int64, status domain.ConfirmationStatus, raw string) (repository.CASResult, error) {
	if err := ctx.Err(); err != nil {
		return repository.CASResult{}, err
	}
	return l.MockLedger.CompareAndSet(ctx, paymentID, expectedVersion, status, raw)
}
