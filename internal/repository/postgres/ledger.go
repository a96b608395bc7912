package postgres

import (
	"context"
	"database/sql"
	"errors"

	"payconfirm/internal/domain"
	"payconfirm/internal/repository"
)

// LedgerSchema creates the ledger table. Entries are never deleted.
const LedgerSchema = `
	CREATE TABLE IF NOT EXISTS payment_ledger (
		payment_id TEXT PRIMARY KEY,
		rail       TEXT NOT NULL,
		status     TEXT NOT NULL,
		raw_status TEXT NOT NULL DEFAULT '',
		version    BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// LedgerRepository is a PostgreSQL implementation of repository.Ledger.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new PostgreSQL ledger.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{q: db}
}

// Migrate creates the ledger table if it does not exist.
func (r *LedgerRepository) Migrate(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, LedgerSchema)
	return err
}

// GetOrCreate returns the entry for paymentID, inserting a pending entry if absent.
// Concurrent creators race on the primary key; the loser reads the winner's row.
func (r *LedgerRepository) GetOrCreate(ctx context.Context, paymentID string, rail domain.RailKind) (*domain.LedgerEntry, error) {
	query := `
		INSERT INTO payment_ledger (payment_id, rail, status, version)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (payment_id) DO NOTHING
	`

	if _, err := r.q.ExecContext(ctx, query, paymentID, rail, domain.StatusPending); err != nil {
		return nil, err
	}

	return r.Get(ctx, paymentID)
}

// Get retrieves an entry by payment ID.
func (r *LedgerRepository) Get(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	query := `
		SELECT payment_id, rail, status, raw_status, version, created_at, updated_at
		FROM payment_ledger WHERE payment_id = $1
	`

	entry, err := scanEntry(r.q.QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

// CompareAndSet updates the entry only if its version equals expectedVersion.
func (r *LedgerRepository) CompareAndSet(ctx context.Context, paymentID string, expectedVersion int64, newStatus domain.ConfirmationStatus, rawStatus string) (repository.CASResult, error) {
	query := `
		UPDATE payment_ledger
		SET status = $1, raw_status = $2, version = version + 1, updated_at = now()
		WHERE payment_id = $3 AND version = $4
		RETURNING payment_id, rail, status, raw_status, version, created_at, updated_at
	`

	entry, err := scanEntry(r.q.QueryRowContext(ctx, query, newStatus, rawStatus, paymentID, expectedVersion))
	if err == nil {
		return repository.CASResult{Applied: true, Entry: entry}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return repository.CASResult{}, err
	}

	// No row matched: either the version moved or the entry does not exist.
	current, err := r.Get(ctx, paymentID)
	if err != nil {
		return repository.CASResult{}, err
	}

	return repository.CASResult{Applied: false, Entry: current}, nil
}

func scanEntry(row *sql.Row) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := row.Scan(
		&entry.PaymentID,
		&entry.Rail,
		&entry.Status,
		&entry.RawStatus,
		&entry.Version,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Ensure LedgerRepository implements repository.Ledger.
var _ repository.Ledger = (*LedgerRepository)(nil)
