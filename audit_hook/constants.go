package audithook

// Action constants for audit events.
const (
	// Tier actions
	ActionTierCreated     = "tier.created"
	ActionTierUpdated     = "tier.updated"
	ActionTierDeactivated = "tier.deactivated"

	// Revenue actions
	ActionRevenueRecorded = "revenue.recorded"

	// Payout actions
	ActionPayoutRequested = "payout.requested"
	ActionPayoutCompleted = "payout.completed"
	ActionPayoutFailed    = "payout.failed"

	// Subscription actions
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionCanceled = "subscription.canceled"
	ActionTierChanged          = "subscription.tier_changed"
	ActionBillingEventApplied  = "subscription.billing_event_applied"

	// Access actions
	ActionAccessDenied = "access.denied"
)

// Resource constants for audit events.
const (
	ResourceTier         = "tier"
	ResourceTransaction  = "transaction"
	ResourcePayout       = "payout"
	ResourceSubscription = "subscription"
	ResourceAccess       = "access"
)

// Category constants for audit events.
const (
	CategoryCatalog      = "catalog"
	CategoryRevenue      = "revenue"
	CategoryPayment      = "payment"
	CategorySubscription = "subscription"
	CategoryAccess       = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
