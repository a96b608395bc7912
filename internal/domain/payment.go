package domain

import (
	"strings"
	"time"
)

// RailKind identifies the payment rail that governs confirmation.
type RailKind string

const (
	RailCard         RailKind = "card"
	RailBankTransfer RailKind = "bank_transfer"
	RailGateway      RailKind = "gateway"
)

// Valid reports whether k is a known rail.
func (k RailKind) Valid() bool {
	switch k {
	case RailCard, RailBankTransfer, RailGateway:
		return true
	}
	return false
}

// SelfAttested reports whether completion on this rail is declared by the
// requester rather than queried from a provider.
func (k RailKind) SelfAttested() bool {
	return k == RailBankTransfer
}

// PaymentIntent is the per-request view of a payment. It is rebuilt on every
// call from request input or provider metadata and never stored.
type PaymentIntent struct {
	ID        string
	Rail      RailKind
	Amount    int64 // minor units
	Currency  string
	Contact   Contact
	Meeting   Meeting
	CreatedAt time.Time
}

// Contact holds the requester's details.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Meeting holds the scheduled meeting the payment books.
type Meeting struct {
	Date string // YYYY-MM-DD
	Time string // HH:MM
}

// Reference returns the short customer-facing reference for the payment.
func (p PaymentIntent) Reference() string {
	id := p.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}
