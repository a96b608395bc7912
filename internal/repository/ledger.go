package repository

import (
	"context"

	"payconfirm/internal/domain"
)

// CASResult is the outcome of a compare-and-set on the ledger.
type CASResult struct {
	// Applied is false when the stored version did not match; Entry then
	// holds the current state written by the concurrent writer.
	Applied bool
	Entry   *domain.LedgerEntry
}

// Ledger is the idempotency ledger: one entry per payment identifier.
type Ledger interface {
	// GetOrCreate returns the entry for paymentID, creating it as pending
	// with version 1 if absent.
	GetOrCreate(ctx context.Context, paymentID string, rail domain.RailKind) (*domain.LedgerEntry, error)

	// Get retrieves an existing entry. Returns ErrNotFound if absent.
	Get(ctx context.Context, paymentID string) (*domain.LedgerEntry, error)

	// CompareAndSet moves the entry to newStatus if its version still equals
	// expectedVersion. It is the only mutation path for an existing entry.
	CompareAndSet(ctx context.Context, paymentID string, expectedVersion int64, newStatus domain.ConfirmationStatus, rawStatus string) (CASResult, error)
}
