// Package plugin provides an extensible plugin system for Patron.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Tier lifecycle hooks
// ──────────────────────────────────────────────────

// OnTierCreated is called when a creator adds a new tier.
type OnTierCreated interface {
	Plugin
	OnTierCreated(ctx context.Context, t interface{}) error
}

// OnTierUpdated is called when a tier is updated.
type OnTierUpdated interface {
	Plugin
	OnTierUpdated(ctx context.Context, oldTier, newTier interface{}) error
}

// OnTierDeactivated is called when a tier is soft-deleted.
type OnTierDeactivated interface {
	Plugin
	OnTierDeactivated(ctx context.Context, tierID string) error
}

// ──────────────────────────────────────────────────
// Revenue hooks
// ──────────────────────────────────────────────────

// OnRevenueRecorded is called after a revenue transaction is committed.
type OnRevenueRecorded interface {
	Plugin
	OnRevenueRecorded(ctx context.Context, txn interface{}) error
}

// ──────────────────────────────────────────────────
// Payout lifecycle hooks
// ──────────────────────────────────────────────────

// OnPayoutRequested is called when a payout enters the pending state.
type OnPayoutRequested interface {
	Plugin
	OnPayoutRequested(ctx context.Context, p interface{}) error
}

// OnPayoutSettled is called when a payout reaches a terminal state,
// completed or failed.
type OnPayoutSettled interface {
	Plugin
	OnPayoutSettled(ctx context.Context, p interface{}) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a new subscription is created.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub interface{}) error
}

// OnSubscriptionCanceled is called when a subscription is canceled,
// immediately or at period end.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub interface{}) error
}

// OnTierChanged is called when a subscription moves between tiers.
type OnTierChanged interface {
	Plugin
	OnTierChanged(ctx context.Context, sub interface{}, oldTier, newTier interface{}) error
}

// OnExternalEventApplied is called after a billing-provider event has been
// applied to a subscription.
type OnExternalEventApplied interface {
	Plugin
	OnExternalEventApplied(ctx context.Context, sub interface{}, externalStatus string) error
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnAccessChecked is called when a tier-access check completes.
type OnAccessChecked interface {
	Plugin
	OnAccessChecked(ctx context.Context, result interface{}) error
}

// OnAccessDenied is called when a tier-access check denies access.
type OnAccessDenied interface {
	Plugin
	OnAccessDenied(ctx context.Context, userID, creatorID string, reason string) error
}

// ──────────────────────────────────────────────────
// Transfer executors
// ──────────────────────────────────────────────────

// TransferExecutor executes outbound money transfers for payouts. The
// engine never moves money itself; a registered executor (or an external
// operator calling ProcessPayout) settles each payout.
type TransferExecutor interface {
	Plugin
	Execute(ctx context.Context, p interface{}) (interface{}, error) // Returns payout.Result
}

// ──────────────────────────────────────────────────
// Auto-payout hooks
// ──────────────────────────────────────────────────

// OnAutoPayoutSwept is called after each automatic payout sweep.
type OnAutoPayoutSwept interface {
	Plugin
	OnAutoPayoutSwept(ctx context.Context, requested int, elapsed time.Duration) error
}
