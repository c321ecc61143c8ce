// Package entitlement defines tier-access check results for gated content.
package entitlement

// Reason explains an access decision.
type Reason string

const (
	ReasonFreeContent      Reason = "free_content"
	ReasonOwner            Reason = "owner"
	ReasonNotSubscribed    Reason = "not_subscribed"
	ReasonTierNotFound     Reason = "tier_not_found"
	ReasonSufficientTier   Reason = "sufficient_tier"
	ReasonInsufficientTier Reason = "insufficient_tier"
)

// MissingTierPolicy decides access when content references a tier that no
// longer exists (deleted or deactivated after the content was gated).
type MissingTierPolicy string

const (
	// FailOpen grants access: stale gates should not lock subscribers out
	// of content they paid for.
	FailOpen MissingTierPolicy = "fail_open"
	// FailClosed denies access until the gate is repaired.
	FailClosed MissingTierPolicy = "fail_closed"
)

// Result is the outcome of a tier-access check.
type Result struct {
	HasAccess    bool   `json:"has_access"`
	Reason       Reason `json:"reason"`
	UserTier     string `json:"user_tier,omitempty"`     // name of the subscriber's tier
	RequiredTier string `json:"required_tier,omitempty"` // name of the gating tier
}
