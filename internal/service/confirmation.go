package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"payconfirm/internal/domain"
	"payconfirm/internal/rail"
	"payconfirm/internal/repository"
)

// RawCustomerAssertedPaid is recorded as the raw status when a customer
// declares a bank transfer complete.
const RawCustomerAssertedPaid = "customer_asserts_paid"

// RailRegistry resolves a rail kind to its adapter.
type RailRegistry interface {
	Adapter(kind domain.RailKind) (rail.Adapter, error)
	Webhook(kind domain.RailKind) (rail.WebhookAdapter, error)
}

// BankDirectory resolves a currency to its settlement account.
type BankDirectory interface {
	Lookup(currency string) (domain.BankDetails, bool)
}

// ConfirmRequest is a client's claim that a payment was made.
type ConfirmRequest struct {
	PaymentID string          `json:"paymentId" validate:"required,max=255"`
	Rail      domain.RailKind `json:"rail" validate:"required,oneof=card bank_transfer gateway"`
	Name      string          `json:"name" validate:"required,max=200"`
	Email     string          `json:"email" validate:"required,email"`
	Phone     string          `json:"phone" validate:"max=40"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string          `json:"time" validate:"required,datetime=15:04"`
	Amount    int64           `json:"amount" validate:"required_unless=Rail bank_transfer,gte=0"`
	Currency  string          `json:"currency" validate:"required,iso4217"`
}

// normalize trims input and upper-cases the currency before validation.
func (r *ConfirmRequest) normalize() {
	r.PaymentID = strings.TrimSpace(r.PaymentID)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
}

func (r ConfirmRequest) intent() domain.PaymentIntent {
	return domain.PaymentIntent{
		ID:       r.PaymentID,
		Rail:     r.Rail,
		Amount:   r.Amount,
		Currency: r.Currency,
		Contact: domain.Contact{
			Name:  r.Name,
			Email: r.Email,
			Phone: r.Phone,
		},
		Meeting: domain.Meeting{
			Date: r.Date,
			Time: r.Time,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// ConfirmResult is the single outcome for a payment at the time of the call.
type ConfirmResult struct {
	PaymentID string
	Rail      domain.RailKind
	Status    domain.ConfirmationStatus
	Version   int64
	// Applied is true when this call performed the transition.
	Applied     bool
	BankDetails *domain.BankDetails
}

// Success reports whether the client should treat the booking as accepted.
func (r *ConfirmResult) Success() bool {
	return r.Status == domain.StatusConfirmed || r.Status == domain.StatusAwaitingManualTransfer
}

// Final reports whether the outcome no longer depends on the rail.
func (r *ConfirmResult) Final() bool {
	return r.Status != domain.StatusPending
}

// ConfirmationService is the single authority for moving a payment through
// its confirmation states. Client confirmations, customer assertions and
// rail webhooks all converge here.
type ConfirmationService struct {
	ledger   repository.Ledger
	rails    RailRegistry
	notifier Notifier
	banks    BankDirectory
	logger   *zap.Logger
	validate *validator.Validate
}

// NewConfirmationService creates a new ConfirmationService.
func NewConfirmationService(
	ledger repository.Ledger,
	rails RailRegistry,
	notifier Notifier,
	banks BankDirectory,
	logger *zap.Logger,
) *ConfirmationService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &ConfirmationService{
		ledger:   ledger,
		rails:    rails,
		notifier: notifier,
		banks:    banks,
		logger:   logger,
		validate: v,
	}
}

// Confirm resolves a client's confirmation request against the payment's rail.
// Repeating it for the same payment is safe and returns the recorded outcome.
func (s *ConfirmationService) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	details, err := s.checkRequest(&req)
	if err != nil {
		return nil, err
	}

	adapter, err := s.rails.Adapter(req.Rail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	entry, err := s.ledger.GetOrCreate(context.WithoutCancel(ctx), req.PaymentID, req.Rail)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	if entry.Rail != req.Rail {
		return nil, fmt.Errorf("%w: payment %s belongs to rail %s", ErrInvalidRequest, entry.PaymentID, entry.Rail)
	}

	// Anything past pending was decided by an earlier call.
	if entry.Status != domain.StatusPending {
		return s.result(entry, false, details), nil
	}

	res, err := s.verify(ctx, adapter, req)
	if err != nil {
		return nil, err
	}

	target, ok := targetStatus(req.Rail, res.Status)
	if !ok {
		// Queried rail still processing; the webhook or a later call settles it.
		return s.result(entry, false, details), nil
	}

	return s.transition(ctx, entry, target, res.Raw, req.intent(), details)
}

// AssertPaid records a customer's declaration that their bank transfer was
// sent, moving awaiting_manual_transfer to confirmed. No provider is queried;
// the customer's word is the trust boundary for this rail.
func (s *ConfirmationService) AssertPaid(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if req.Rail == "" {
		req.Rail = domain.RailBankTransfer
	}
	if req.Rail != domain.RailBankTransfer {
		return nil, fmt.Errorf("%w: only bank transfers can be asserted paid", ErrInvalidRequest)
	}

	details, err := s.checkRequest(&req)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.Get(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, req.PaymentID)
		}
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	if entry.Rail != req.Rail {
		return nil, fmt.Errorf("%w: payment %s belongs to rail %s", ErrInvalidRequest, entry.PaymentID, entry.Rail)
	}

	if entry.Status != domain.StatusAwaitingManualTransfer {
		return s.result(entry, false, details), nil
	}

	return s.transition(ctx, entry, domain.StatusConfirmed, RawCustomerAssertedPaid, req.intent(), nil)
}

// ApplyRailEvent applies a rail-pushed status for kind. The event must
// already be authenticated.
func (s *ConfirmationService) ApplyRailEvent(ctx context.Context, kind domain.RailKind, ev rail.WebhookEvent) (*ConfirmResult, error) {
	if ev.PaymentID == "" {
		return nil, fmt.Errorf("%w: event has no payment id", ErrInvalidRequest)
	}

	entry, err := s.ledger.GetOrCreate(context.WithoutCancel(ctx), ev.PaymentID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	if entry.Rail != kind {
		return nil, fmt.Errorf("%w: payment %s belongs to rail %s", ErrInvalidRequest, entry.PaymentID, entry.Rail)
	}

	if entry.Status != domain.StatusPending {
		return s.result(entry, false, nil), nil
	}

	target, ok := targetStatus(kind, ev.Result.Status)
	if !ok {
		return s.result(entry, false, nil), nil
	}

	return s.transition(ctx, entry, target, ev.Result.Raw, ev.Intent, nil)
}

// Get returns the recorded outcome for a payment without changing it.
func (s *ConfirmationService) Get(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidRequest)
	}

	entry, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return nil, err
	}
	return entry, nil
}

// checkRequest validates req and resolves its settlement account.
func (s *ConfirmationService) checkRequest(req *ConfirmRequest) (*domain.BankDetails, error) {
	req.normalize()

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}

	details, ok := s.banks.Lookup(req.Currency)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, req.Currency)
	}
	if req.Rail != domain.RailBankTransfer {
		return nil, nil
	}
	return &details, nil
}

func (s *ConfirmationService) verify(ctx context.Context, adapter rail.Adapter, req ConfirmRequest) (rail.Result, error) {
	start := time.Now()
	res, err := adapter.Verify(ctx, rail.VerifyRequest{
		PaymentID:        req.PaymentID,
		Rail:             req.Rail,
		ExpectedAmount:   req.Amount,
		ExpectedCurrency: req.Currency,
	})
	railVerifySeconds.WithLabelValues(string(req.Rail)).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Warn("rail verification failed",
			zap.String("payment_id", req.PaymentID),
			zap.String("rail", string(req.Rail)),
			zap.Error(err),
		)
		if errors.Is(err, rail.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			return rail.Result{}, fmt.Errorf("%w: %w", ErrRailUnavailable, err)
		}
		return rail.Result{}, err
	}
	return res, nil
}

// transition applies entry.Status -> target through compare-and-set. The
// write and the notification hand-off survive caller cancellation.
func (s *ConfirmationService) transition(
	ctx context.Context,
	entry *domain.LedgerEntry,
	target domain.ConfirmationStatus,
	raw string,
	intent domain.PaymentIntent,
	details *domain.BankDetails,
) (*ConfirmResult, error) {
	if !domain.CanTransition(entry.Status, target) {
		return s.result(entry, false, details), nil
	}

	ctx = context.WithoutCancel(ctx)

	cas, err := s.ledger.CompareAndSet(ctx, entry.PaymentID, entry.Version, target, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", target, err)
	}
	if !cas.Applied {
		// A concurrent writer got there first; its outcome is ours.
		s.logger.Info("ledger conflict resolved by re-read",
			zap.String("payment_id", entry.PaymentID),
			zap.String("wanted", string(target)),
			zap.String("status", string(cas.Entry.Status)),
			zap.Int64("version", cas.Entry.Version),
		)
		return s.result(cas.Entry, false, details), nil
	}

	confirmationsTotal.WithLabelValues(string(cas.Entry.Rail), string(target)).Inc()
	s.logger.Info("payment status changed",
		zap.String("payment_id", entry.PaymentID),
		zap.String("rail", string(cas.Entry.Rail)),
		zap.String("from", string(entry.Status)),
		zap.String("status", string(target)),
		zap.Int64("version", cas.Entry.Version),
	)

	if target.Notifiable() {
		intent.ID = entry.PaymentID
		intent.Rail = cas.Entry.Rail
		s.notifier.Enqueue(ctx,
			domain.NotificationEvent{Intent: intent, Status: target, Audience: domain.AudienceCustomer, Version: cas.Entry.Version, BankDetails: details},
			domain.NotificationEvent{Intent: intent, Status: target, Audience: domain.AudienceAdmin, Version: cas.Entry.Version, BankDetails: details},
		)
	}

	return s.result(cas.Entry, true, details), nil
}

func (s *ConfirmationService) result(entry *domain.LedgerEntry, applied bool, details *domain.BankDetails) *ConfirmResult {
	res := &ConfirmResult{
		PaymentID: entry.PaymentID,
		Rail:      entry.Rail,
		Status:    entry.Status,
		Version:   entry.Version,
		Applied:   applied,
	}
	if entry.Status == domain.StatusAwaitingManualTransfer {
		res.BankDetails = details
	}
	return res
}

// targetStatus maps a rail answer to the status it should produce. ok is
// false when the payment should stay pending.
func targetStatus(kind domain.RailKind, status rail.Status) (domain.ConfirmationStatus, bool) {
	switch status {
	case rail.StatusSucceeded:
		return domain.StatusConfirmed, true
	case rail.StatusFailed:
		return domain.StatusFailed, true
	case rail.StatusPending:
		if kind.SelfAttested() {
			return domain.StatusAwaitingManualTransfer, true
		}
	}
	return "", false
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_unless":
			fields = append(fields, fe.Field()+" is required")
		default:
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(fields, ", ")
}
