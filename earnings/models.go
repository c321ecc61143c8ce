// Package earnings defines the creator revenue ledger: immutable
// transactions and the monthly periods that aggregate them.
package earnings

import (
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// PeriodStatus describes whether a monthly period is still accumulating
// revenue or has been settled.
type PeriodStatus string

const (
	PeriodPending PeriodStatus = "pending"
	PeriodSettled PeriodStatus = "settled"
)

// Period is one creator's earnings for one calendar month. Periods are
// created lazily on the first revenue event of the month and mutated only
// additively; they are never deleted.
//
// Invariants: GrossRevenue = SubscriptionRevenue + TipsRevenue and
// NetRevenue = GrossRevenue - PlatformFee.
type Period struct {
	types.Entity
	ID                  id.EarningsPeriodID `json:"id"`
	CreatorID           string              `json:"creator_id"`
	PeriodStart         time.Time           `json:"period_start"`
	PeriodEnd           time.Time           `json:"period_end"`
	SubscriptionRevenue types.Money         `json:"subscription_revenue"`
	TipsRevenue         types.Money         `json:"tips_revenue"`
	GrossRevenue        types.Money         `json:"gross_revenue"`
	PlatformFee         types.Money         `json:"platform_fee"`
	NetRevenue          types.Money         `json:"net_revenue"`
	Status              PeriodStatus        `json:"status"`
}

// TransactionType distinguishes the two revenue sources.
type TransactionType string

const (
	TransactionSubscription TransactionType = "subscription"
	TransactionTip          TransactionType = "tip"
)

// Transaction is an immutable, append-only record of a single revenue
// event. Gross, Fee and Net are all captured at write time so history
// survives later commission changes.
type Transaction struct {
	types.Entity
	ID             id.TransactionID `json:"id"`
	CreatorID      string           `json:"creator_id"`
	CounterpartyID string           `json:"counterparty_id"` // subscriber or tipper
	Type           TransactionType  `json:"type"`
	Gross          types.Money      `json:"gross"`
	Fee            types.Money      `json:"fee"`
	Net            types.Money      `json:"net"`
	TierID         id.TierID        `json:"tier_id,omitempty"` // subscription payments only
	PostID         string           `json:"post_id,omitempty"` // tips only
	Message        string           `json:"message,omitempty"` // tips only
	PaymentRef     string           `json:"payment_ref"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Receipt is the caller-facing breakdown returned after recording revenue.
type Receipt struct {
	TransactionID id.TransactionID `json:"transaction_id"`
	Gross         types.Money      `json:"gross"`
	Fee           types.Money      `json:"fee"`
	Net           types.Money      `json:"net"`
}

// Delta is the increment applied to a period by one revenue event.
// Exactly one of Subscription/Tips carries the gross amount.
type Delta struct {
	Subscription types.Money
	Tips         types.Money
	Gross        types.Money
	Fee          types.Money
	Net          types.Money
}

// Totals holds gross/fee/net sums over some set of periods.
type Totals struct {
	Gross types.Money `json:"gross"`
	Fee   types.Money `json:"fee"`
	Net   types.Money `json:"net"`
}

// Summary is the full earnings dashboard for one creator.
type Summary struct {
	CreatorID         string      `json:"creator_id"`
	AllTime           Totals      `json:"all_time"`
	CurrentMonth      Totals      `json:"current_month"`
	TotalPaidOut      types.Money `json:"total_paid_out"`
	PendingPayout     types.Money `json:"pending_payout"`
	AvailableBalance  types.Money `json:"available_balance"`
	CanRequestPayout  bool        `json:"can_request_payout"`
	MinimumPayout     types.Money `json:"minimum_payout"`
	CommissionRateBps int64       `json:"commission_rate_bps"`
}

// MonthlyRow is one month in a breakdown series.
type MonthlyRow struct {
	Month time.Time `json:"month"` // first instant of the month, UTC
	Totals
}

// CurrentWindow returns the calendar-month window containing now, in UTC.
// The end bound is exclusive: the first instant of the next month.
func CurrentWindow(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
