package rail

import (
	"context"

	"payconfirm/internal/domain"
)

// BankTransferRail has no provider to query. Completion is declared by the
// customer and settled by an operator, so verification is always pending.
type BankTransferRail struct{}

// NewBankTransferRail creates a bank transfer rail adapter.
func NewBankTransferRail() *BankTransferRail {
	return &BankTransferRail{}
}

// Kind returns the bank transfer rail kind.
func (r *BankTransferRail) Kind() domain.RailKind { return domain.RailBankTransfer }

// Verify always reports pending.
func (r *BankTransferRail) Verify(ctx context.Context, req VerifyRequest) (Result, error) {
	return Result{
		Status:   StatusPending,
		Raw:      "self_attested",
		Amount:   req.ExpectedAmount,
		Currency: req.ExpectedCurrency,
	}, nil
}

// Ensure BankTransferRail implements Adapter.
var _ Adapter = (*BankTransferRail)(nil)
