package patron

import (
	"context"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Payout State Machine
// ──────────────────────────────────────────────────

// RequestPayout opens a pending payout for part or all of the creator's
// available balance. Checks run in order: input validation, balance,
// minimum, banking info, then the atomic no-payout-in-flight insert.
//
// The in-flight uniqueness is a hard store guarantee. The balance check is
// read-then-write: two requests racing past it is already prevented by the
// uniqueness rule, so the only residual window is a payout racing a
// concurrent revenue reversal, which reconciliation catches.
func (l *Ledger) RequestPayout(ctx context.Context, creatorID string, amount types.Money) (*payout.Payout, error) {
	if creatorID == "" {
		return nil, ValidationError{Field: "creator_id", Message: "required"}
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !l.supportedCurrency(amount.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	summary, err := l.GetCreatorEarnings(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if summary.AvailableBalance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	minimum := l.effectiveMinimum(ctx, creatorID, amount.Currency)
	if amount.LessThan(minimum) {
		return nil, ErrBelowMinimumPayout
	}

	if l.banking == nil {
		return nil, ErrNoBankingInfo
	}
	methodRef, ok, err := l.banking.ActivePaymentMethod(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoBankingInfo
	}

	p := &payout.Payout{
		Entity:          types.NewEntity(),
		ID:              id.NewPayoutID(),
		CreatorID:       creatorID,
		Amount:          amount,
		Status:          payout.StatusPending,
		PaymentMethodID: methodRef,
		RequestedAt:     time.Now().UTC(),
	}

	if err := l.store.CreatePayout(ctx, p); err != nil {
		return nil, err
	}

	l.plugins.EmitPayoutRequested(ctx, p)

	l.logger.Info("payout requested",
		"creator_id", creatorID,
		"payout_id", p.ID.String(),
		"amount", amount.String(),
	)

	return p, nil
}

// ProcessPayout applies the outcome of an external transfer attempt,
// moving the payout to completed or failed. Terminal states are final:
// settling an already-settled payout returns ErrStoreConflict. A failed
// payout releases its balance reservation; the creator may request again.
func (l *Ledger) ProcessPayout(ctx context.Context, payoutID id.PayoutID, result payout.Result) error {
	if result.Success && result.TransferRef == "" {
		return ValidationError{Field: "transfer_ref", Message: "required on success"}
	}
	if !result.Success && result.Error == "" {
		return ValidationError{Field: "error", Message: "required on failure"}
	}

	if err := l.store.SetPayoutResult(ctx, payoutID, result); err != nil {
		return err
	}

	p, err := l.store.GetPayout(ctx, payoutID)
	if err != nil {
		return err
	}

	l.plugins.EmitPayoutSettled(ctx, p)

	l.logger.Info("payout settled",
		"payout_id", payoutID.String(),
		"creator_id", p.CreatorID,
		"status", p.Status,
	)

	return nil
}

// GetPayout retrieves a payout by ID.
func (l *Ledger) GetPayout(ctx context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	return l.store.GetPayout(ctx, payoutID)
}

// ListPayouts returns a creator's payout history, newest first.
func (l *Ledger) ListPayouts(ctx context.Context, creatorID string, opts payout.ListOpts) ([]*payout.Payout, error) {
	return l.store.ListPayouts(ctx, creatorID, opts)
}

// ──────────────────────────────────────────────────
// Payout Settings
// ──────────────────────────────────────────────────

// GetPayoutSettings returns the creator's payout preferences, synthesizing
// defaults when none are stored yet.
func (l *Ledger) GetPayoutSettings(ctx context.Context, creatorID string) (*payout.Settings, error) {
	s, err := l.store.GetPayoutSettings(ctx, creatorID)
	if err == nil {
		return s, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	return &payout.Settings{
		CreatorID:     creatorID,
		MinimumPayout: types.USD(l.minimumPayout),
		Schedule:      payout.ScheduleMonthly,
		AutoPayout:    false,
		Currency:      "usd",
	}, nil
}

// UpdatePayoutSettings validates and stores a creator's payout
// preferences. A creator may raise the minimum above the platform floor
// but never lower it below.
func (l *Ledger) UpdatePayoutSettings(ctx context.Context, s *payout.Settings) error {
	if s.CreatorID == "" {
		return ValidationError{Field: "creator_id", Message: "required"}
	}
	if !payout.ValidSchedule(s.Schedule) {
		return ErrUnsupportedSchedule
	}
	if !l.supportedCurrency(s.Currency) {
		return ErrUnsupportedCurrency
	}
	if s.MinimumPayout.Currency != s.Currency {
		return ValidationError{Field: "minimum_payout", Message: "currency must match settings currency"}
	}
	if s.MinimumPayout.Amount < l.minimumPayout {
		return ValidationError{Field: "minimum_payout", Message: "below platform floor"}
	}

	if s.ID == (id.PayoutSettingsID{}) {
		s.ID = id.NewPayoutSettingsID()
		s.Entity = types.NewEntity()
	} else {
		s.Touch()
	}

	return l.store.PutPayoutSettings(ctx, s)
}

// effectiveMinimum is the creator's payout floor: their configured minimum
// when set, never below the platform floor.
func (l *Ledger) effectiveMinimum(ctx context.Context, creatorID, currency string) types.Money {
	floor := types.Money{Amount: l.minimumPayout, Currency: currency}
	s, err := l.store.GetPayoutSettings(ctx, creatorID)
	if err != nil || s.MinimumPayout.Currency != currency {
		return floor
	}
	return floor.Max(s.MinimumPayout)
}
