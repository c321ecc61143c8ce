// Package subscription defines fan subscriptions to creator tiers and the
// mapping from external billing-provider statuses to internal ones.
package subscription

import (
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Countable reports whether the status occupies the subscriber's single
// slot for a creator. At most one countable subscription may exist per
// (subscriber, creator) pair.
func (s Status) Countable() bool {
	return s == StatusActive || s == StatusPending
}

// Subscription links a subscriber to one of a creator's tiers.
type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID `json:"id"`
	SubscriberID       string            `json:"subscriber_id"`
	CreatorID          string            `json:"creator_id"`
	TierID             id.TierID         `json:"tier_id"`
	Status             Status            `json:"status"`
	StartDate          time.Time         `json:"start_date"`
	CurrentPeriodStart time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Free               bool              `json:"free"`

	// External billing-provider references.
	ExternalCustomerRef     string `json:"external_customer_ref,omitempty"`
	ExternalSubscriptionRef string `json:"external_subscription_ref,omitempty"`
	ExternalPriceRef        string `json:"external_price_ref,omitempty"`
}

// MapExternalStatus translates a billing-provider subscription status into
// the internal status vocabulary. Unknown inputs map to pending rather than
// failing, so novel provider states degrade safely.
func MapExternalStatus(external string) Status {
	switch external {
	case "active", "trialing":
		return StatusActive
	case "past_due", "unpaid":
		return StatusPastDue
	case "canceled", "incomplete_expired":
		return StatusCancelled
	case "paused":
		return StatusPaused
	case "incomplete":
		return StatusPending
	default:
		return StatusPending
	}
}

// BillingEvent is an inbound provider notification about a subscription,
// already verified and decoded by the caller.
type BillingEvent struct {
	ExternalSubscriptionRef string    `json:"external_subscription_ref"`
	ExternalStatus          string    `json:"external_status"`
	CurrentPeriodStart      time.Time `json:"current_period_start"`
	CurrentPeriodEnd        time.Time `json:"current_period_end"`
}

// CreatorStats are computed subscription counts for one creator. These are
// authoritative, unlike the denormalized counters kept on tiers.
type CreatorStats struct {
	CreatorID string `json:"creator_id"`
	Active    int64  `json:"active"`
	Paid      int64  `json:"paid"`
	Free      int64  `json:"free"`
	PastDue   int64  `json:"past_due"`
	Cancelled int64  `json:"cancelled"`
}
