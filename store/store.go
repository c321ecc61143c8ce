package store

import (
	"context"
	"time"

	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tier"
	"github.com/xraph/patron/types"
)

// Store is the unified storage interface for all Patron entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Atomicity contract: RecordRevenue, CreatePayout and CreateSubscription
// are the operations where concurrent writers race. Implementations must
// make each of them a single atomic unit (see the per-method comments on
// the entity store interfaces).
type Store interface {
	// Tier methods
	CreateTier(ctx context.Context, t *tier.Tier) error
	GetTier(ctx context.Context, tierID id.TierID) (*tier.Tier, error)
	ListTiers(ctx context.Context, creatorID string, opts tier.ListOpts) ([]*tier.Tier, error)
	UpdateTier(ctx context.Context, t *tier.Tier) error
	DeactivateTier(ctx context.Context, tierID id.TierID, creatorID string) error
	AdjustTierSubscribers(ctx context.Context, tierID id.TierID, delta int64) error

	// Earnings methods
	RecordRevenue(ctx context.Context, txn *earnings.Transaction, periodStart, periodEnd time.Time, delta earnings.Delta) error
	GetPeriod(ctx context.Context, creatorID string, periodStart time.Time) (*earnings.Period, error)
	ListPeriods(ctx context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Period, error)
	TotalsAllTime(ctx context.Context, creatorID string, currency string) (earnings.Totals, error)
	ListTransactions(ctx context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Transaction, error)

	// Payout methods
	CreatePayout(ctx context.Context, p *payout.Payout) error
	GetPayout(ctx context.Context, payoutID id.PayoutID) (*payout.Payout, error)
	GetInFlightPayout(ctx context.Context, creatorID string) (*payout.Payout, error)
	ListPayouts(ctx context.Context, creatorID string, opts payout.ListOpts) ([]*payout.Payout, error)
	SetPayoutResult(ctx context.Context, payoutID id.PayoutID, result payout.Result) error
	SumCompletedPayouts(ctx context.Context, creatorID string, currency string) (types.Money, error)
	SumInFlightPayouts(ctx context.Context, creatorID string, currency string) (types.Money, error)
	GetPayoutSettings(ctx context.Context, creatorID string) (*payout.Settings, error)
	PutPayoutSettings(ctx context.Context, s *payout.Settings) error
	ListAutoPayoutSettings(ctx context.Context) ([]*payout.Settings, error)

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetCountableSubscription(ctx context.Context, subscriberID, creatorID string) (*subscription.Subscription, error)
	GetSubscriptionByExternalRef(ctx context.Context, externalSubscriptionRef string) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	SubscriptionStats(ctx context.Context, creatorID string) (*subscription.CreatorStats, error)
	CountActiveForTier(ctx context.Context, tierID id.TierID) (int64, error)
	AdjustCreatorSubscribers(ctx context.Context, creatorID string, delta int64) error

	// Access cache methods
	GetCachedAccess(ctx context.Context, userID, creatorID, requiredTierID string) (*entitlement.Result, error)
	SetCachedAccess(ctx context.Context, userID, creatorID, requiredTierID string, result *entitlement.Result, ttl time.Duration) error
	InvalidateAccess(ctx context.Context, userID, creatorID string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
