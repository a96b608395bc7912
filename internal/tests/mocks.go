package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"payconfirm/internal/domain"
	"payconfirm/internal/rail"
	"payconfirm/internal/repository"
	"payconfirm/internal/repository/memory"
)

// ──────────────────────────────────────────────
// MOCK LEDGER
// ──────────────────────────────────────────────

// MockLedger wraps the in-memory ledger with call counters and error
// injection.
type MockLedger struct {
	inner *memory.Ledger

	// Counters for verification
	GetOrCreateCallCount   int32
	GetCallCount           int32
	CompareAndSetCallCount int32
	AppliedCount           int32

	// Error injection
	GetOrCreateError   error
	CompareAndSetError error
}

// NewMockLedger creates an empty mock ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{inner: memory.NewLedger()}
}

func (m *MockLedger) GetOrCreate(ctx context.Context, paymentID string, kind domain.RailKind) (*domain.LedgerEntry, error) {
	atomic.AddInt32(&m.GetOrCreateCallCount, 1)
	if m.GetOrCreateError != nil {
		return nil, m.GetOrCreateError
	}
	return m.inner.GetOrCreate(ctx, paymentID, kind)
}

func (m *MockLedger) Get(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	return m.inner.Get(ctx, paymentID)
}

func (m *MockLedger) CompareAndSet(ctx context.Context, paymentID string, expectedVersion int64, status domain.ConfirmationStatus, raw string) (repository.CASResult, error) {
	atomic.AddInt32(&m.CompareAndSetCallCount, 1)
	if m.CompareAndSetError != nil {
		return repository.CASResult{}, m.CompareAndSetError
	}
	res, err := m.inner.CompareAndSet(ctx, paymentID, expectedVersion, status, raw)
	if err == nil && res.Applied {
		atomic.AddInt32(&m.AppliedCount, 1)
	}
	return res, err
}

// Entry returns the stored entry, or nil.
func (m *MockLedger) Entry(paymentID string) *domain.LedgerEntry {
	entry, err := m.inner.Get(context.Background(), paymentID)
	if err != nil {
		return nil
	}
	return entry
}

// Len returns the number of stored entries.
func (m *MockLedger) Len() int {
	return m.inner.Len()
}

// Applied returns how many transitions were written.
func (m *MockLedger) Applied() int32 {
	return atomic.LoadInt32(&m.AppliedCount)
}

var _ repository.Ledger = (*MockLedger)(nil)

// ──────────────────────────────────────────────
// MOCK RAIL ADAPTER
// ──────────────────────────────────────────────

// MockRail is a scripted rail adapter. Gate, when set, blocks every Verify
// until it is closed so callers can be lined up concurrently.
type MockRail struct {
	mu     sync.RWMutex
	kind   domain.RailKind
	status rail.Status
	err    error
	Gate   chan struct{}
	Delay  time.Duration

	VerifyCallCount int32
}

// NewMockRail creates an adapter for kind that answers status.
func NewMockRail(kind domain.RailKind, status rail.Status) *MockRail {
	return &MockRail{kind: kind, status: status}
}

// SetResult changes the scripted answer.
func (m *MockRail) SetResult(status rail.Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.err = err
}

func (m *MockRail) Kind() domain.RailKind { return m.kind }

func (m *MockRail) Verify(ctx context.Context, req rail.VerifyRequest) (rail.Result, error) {
	atomic.AddInt32(&m.VerifyCallCount, 1)

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return rail.Result{}, rail.ErrUnavailable
		}
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return rail.Result{}, rail.ErrUnavailable
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return rail.Result{}, m.err
	}
	return rail.Result{
		Status:   m.status,
		Raw:      string(m.status),
		Amount:   req.ExpectedAmount,
		Currency: req.ExpectedCurrency,
	}, nil
}

// Calls returns how many times Verify ran.
func (m *MockRail) Calls() int32 {
	return atomic.LoadInt32(&m.VerifyCallCount)
}

var _ rail.Adapter = (*MockRail)(nil)

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records enqueued events instead of delivering them.
type MockNotifier struct {
	mu     sync.RWMutex
	events []domain.NotificationEvent

	EnqueueCallCount int32
}

// NewMockNotifier creates an empty recorder.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Enqueue(ctx context.Context, events ...domain.NotificationEvent) {
	atomic.AddInt32(&m.EnqueueCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// Events returns a copy of every recorded event.
func (m *MockNotifier) Events() []domain.NotificationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.NotificationEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events were recorded for audience and status.
func (m *MockNotifier) Count(audience domain.Audience, status domain.ConfirmationStatus) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ev := range m.events {
		if ev.Audience == audience && ev.Status == status {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK WEBHOOK RAIL
// ──────────────────────────────────────────────

// MockWebhookRail scripts Verify like MockRail but authenticates and parses
// webhooks with a real rail implementation.
type MockWebhookRail struct {
	*MockRail
	hook rail.WebhookAdapter
}

// NewMockWebhookRail combines a scripted verifier with hook's webhook handling.
func NewMockWebhookRail(verifier *MockRail, hook rail.WebhookAdapter) *MockWebhookRail {
	return &MockWebhookRail{MockRail: verifier, hook: hook}
}

func (m *MockWebhookRail) SignatureHeader() string { return m.hook.SignatureHeader() }

func (m *MockWebhookRail) ValidateWebhookSignature(rawBody []byte, header string) bool {
	return m.hook.ValidateWebhookSignature(rawBody, header)
}

func (m *MockWebhookRail) ParseWebhook(rawBody []byte) (rail.WebhookEvent, error) {
	return m.hook.ParseWebhook(rawBody)
}

var _ rail.WebhookAdapter = (*MockWebhookRail)(nil)
