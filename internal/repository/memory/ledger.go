// Package memory provides an in-process ledger. State is lost on restart, so
// it is meant for tests and single-instance development.
package memory

import (
	"context"
	"sync"
	"time"

	"payconfirm/internal/domain"
	"payconfirm/internal/repository"
)

// Ledger is an in-memory implementation of repository.Ledger.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*domain.LedgerEntry)}
}

// GetOrCreate returns the entry for paymentID, creating it as pending if absent.
func (l *Ledger) GetOrCreate(ctx context.Context, paymentID string, rail domain.RailKind) (*domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[paymentID]; ok {
		out := *entry
		return &out, nil
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		PaymentID: paymentID,
		Rail:      rail,
		Status:    domain.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.entries[paymentID] = entry

	out := *entry
	return &out, nil
}

// Get retrieves an entry by payment ID.
func (l *Ledger) Get(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[paymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *entry
	return &out, nil
}

// CompareAndSet applies newStatus only if the stored version matches.
func (l *Ledger) CompareAndSet(ctx context.Context, paymentID string, expectedVersion int64, newStatus domain.ConfirmationStatus, rawStatus string) (repository.CASResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[paymentID]
	if !ok {
		return repository.CASResult{}, repository.ErrNotFound
	}

	if entry.Version != expectedVersion {
		out := *entry
		return repository.CASResult{Applied: false, Entry: &out}, nil
	}

	entry.Status = newStatus
	entry.RawStatus = rawStatus
	entry.Version++
	entry.UpdatedAt = time.Now().UTC()

	out := *entry
	return repository.CASResult{Applied: true, Entry: &out}, nil
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Ensure Ledger implements repository.Ledger.
var _ repository.Ledger = (*Ledger)(nil)
