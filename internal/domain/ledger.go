package domain

import "time"

// ConfirmationStatus represents where a payment stands in the confirmation flow.
type ConfirmationStatus string

const (
	StatusPending                ConfirmationStatus = "pending"
	StatusConfirmed              ConfirmationStatus = "confirmed"
	StatusFailed                 ConfirmationStatus = "failed"
	StatusAwaitingManualTransfer ConfirmationStatus = "awaiting_manual_transfer"
)

// IsTerminal reports whether no further transition can leave this status.
func (s ConfirmationStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Notifiable reports whether reaching this status sends notifications.
func (s ConfirmationStatus) Notifiable() bool {
	return s == StatusConfirmed || s == StatusAwaitingManualTransfer
}

// transitions is the complete forward-only transition graph.
var transitions = map[ConfirmationStatus][]ConfirmationStatus{
	StatusPending:                {StatusConfirmed, StatusFailed, StatusAwaitingManualTransfer},
	StatusAwaitingManualTransfer: {StatusConfirmed},
}

// CanTransition reports whether from -> to is an edge of the graph.
func CanTransition(from, to ConfirmationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LedgerEntry is the durable record of a payment's confirmation outcome.
// Version increases by one on every applied write.
type LedgerEntry struct {
	PaymentID string
	Rail      RailKind
	Status    ConfirmationStatus
	RawStatus string // rail-reported status, kept for audit
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
