// Package payout defines creator payout requests and per-creator payout
// settings.
package payout

import (
	"context"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// Status of a payout request. Pending and processing are in-flight;
// completed and failed are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// InFlight reports whether the status still reserves creator balance.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payout is a creator's request to withdraw available balance.
// At most one payout per creator may be in flight at a time.
type Payout struct {
	types.Entity
	ID              id.PayoutID `json:"id"`
	CreatorID       string      `json:"creator_id"`
	Amount          types.Money `json:"amount"`
	Status          Status      `json:"status"`
	PaymentMethodID string      `json:"payment_method_id"`
	RequestedAt     time.Time   `json:"requested_at"`
	ProcessedAt     *time.Time  `json:"processed_at,omitempty"`
	TransferRef     string      `json:"transfer_ref,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// Schedule controls when automatic payouts run.
type Schedule string

const (
	ScheduleWeekly   Schedule = "weekly"
	ScheduleBiweekly Schedule = "biweekly"
	ScheduleMonthly  Schedule = "monthly"
)

// ValidSchedule reports whether s is a known schedule.
func ValidSchedule(s Schedule) bool {
	switch s {
	case ScheduleWeekly, ScheduleBiweekly, ScheduleMonthly:
		return true
	}
	return false
}

// Settings are a creator's payout preferences. MinimumPayout may raise,
// but never lower, the platform floor.
type Settings struct {
	types.Entity
	ID            id.PayoutSettingsID `json:"id"`
	CreatorID     string              `json:"creator_id"`
	MinimumPayout types.Money         `json:"minimum_payout"`
	Schedule      Schedule            `json:"schedule"`
	AutoPayout    bool                `json:"auto_payout"`
	Currency      string              `json:"currency"`
}

// Result is the outcome reported by the external transfer executor.
type Result struct {
	Success     bool   `json:"success"`
	TransferRef string `json:"transfer_ref,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BankingInfo answers whether a creator can receive transfers. The check
// lives outside this module; implementations typically consult the payment
// provider's connected-account state.
type BankingInfo interface {
	// ActivePaymentMethod returns the creator's payment method reference,
	// or ok=false when the creator has no usable banking details.
	ActivePaymentMethod(ctx context.Context, creatorID string) (ref string, ok bool, err error)
}

// BankingInfoFunc adapts a function to the BankingInfo interface.
type BankingInfoFunc func(ctx context.Context, creatorID string) (string, bool, error)

func (f BankingInfoFunc) ActivePaymentMethod(ctx context.Context, creatorID string) (string, bool, error) {
	return f(ctx, creatorID)
}
