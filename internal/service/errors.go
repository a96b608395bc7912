package service

import "errors"

var (
	// ErrInvalidRequest is returned when client input is malformed or missing.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedCurrency is returned when no settlement account exists
	// for the requested currency.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrRailUnavailable is returned when the rail could not answer. Safe to
	// retry.
	ErrRailUnavailable = errors.New("payment rail unavailable")

	// ErrSignatureInvalid is returned when a webhook fails authentication.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrNotificationDelivery is returned by Dispatch when a transport fails.
	// It never reaches a confirmation caller.
	ErrNotificationDelivery = errors.New("notification delivery failed")

	// ErrPaymentNotFound is returned when no ledger entry exists for a payment.
	ErrPaymentNotFound = errors.New("payment not found")
)
