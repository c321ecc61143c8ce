package patron

import (
	"context"
	"time"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Subscription Management
// ──────────────────────────────────────────────────

// CreateSubscription subscribes a fan to one of a creator's tiers. The
// store atomically enforces at most one active-or-pending subscription per
// (subscriber, creator) pair; a lost race surfaces as ErrAlreadySubscribed.
func (l *Ledger) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.SubscriberID == "" {
		return ValidationError{Field: "subscriber_id", Message: "required"}
	}
	if sub.CreatorID == "" {
		return ValidationError{Field: "creator_id", Message: "required"}
	}
	if sub.SubscriberID == sub.CreatorID {
		return ValidationError{Field: "subscriber_id", Message: "creators cannot subscribe to themselves"}
	}

	t, err := l.store.GetTier(ctx, sub.TierID)
	if err != nil {
		return err
	}
	if !t.Active {
		return ErrTierInactive
	}
	if t.CreatorID != sub.CreatorID {
		return ValidationError{Field: "tier_id", Message: "tier belongs to another creator"}
	}

	if sub.ID == (id.SubscriptionID{}) {
		sub.ID = id.NewSubscriptionID()
	}
	sub.Entity = types.NewEntity()
	if sub.Status == "" {
		sub.Status = subscription.StatusPending
	}
	sub.Free = t.IsFree()

	now := time.Now().UTC()
	if sub.StartDate.IsZero() {
		sub.StartDate = now
	}
	if sub.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = now.AddDate(0, 1, 0)
	}

	if err := l.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	l.adjustCounters(ctx, sub.TierID, sub.CreatorID, +1)
	l.invalidateAccess(ctx, sub.SubscriberID, sub.CreatorID)

	l.plugins.EmitSubscriptionCreated(ctx, sub)

	l.logger.Info("subscription created",
		"subscription_id", sub.ID.String(),
		"creator_id", sub.CreatorID,
		"tier_id", sub.TierID.String(),
		"status", sub.Status,
	)

	return nil
}

// SubscribeToFreeTier subscribes a fan to a creator's free tier. No
// payment provider is involved, so the subscription activates immediately.
func (l *Ledger) SubscribeToFreeTier(ctx context.Context, subscriberID, creatorID string, tierID id.TierID) (*subscription.Subscription, error) {
	t, err := l.store.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	if !t.IsFree() {
		return nil, ErrTierNotFree
	}

	sub := &subscription.Subscription{
		SubscriberID: subscriberID,
		CreatorID:    creatorID,
		TierID:       tierID,
		Status:       subscription.StatusActive,
	}
	if err := l.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubscription retrieves a subscription by ID.
func (l *Ledger) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return l.store.GetSubscription(ctx, subID)
}

// ListSubscriptions returns subscriptions matching the filter.
func (l *Ledger) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return l.store.ListSubscriptions(ctx, opts)
}

// CancelSubscription cancels a subscriber's own subscription. Requests by
// anyone else fail with ErrNotFoundOrUnauthorized, indistinguishable from
// a missing subscription. Immediate cancellation drops access now;
// otherwise the subscription only flags cancel-at-period-end and a later
// provider event finishes the job.
func (l *Ledger) CancelSubscription(ctx context.Context, subID id.SubscriptionID, requesterID string, immediate bool) error {
	sub, err := l.store.GetSubscription(ctx, subID)
	if err != nil {
		if IsNotFound(err) {
			return ErrNotFoundOrUnauthorized
		}
		return err
	}
	if sub.SubscriberID != requesterID {
		return ErrNotFoundOrUnauthorized
	}
	if sub.Status == subscription.StatusCancelled {
		return ErrAlreadyCancelled
	}

	wasCountable := sub.Status.Countable()

	if immediate {
		now := time.Now().UTC()
		sub.Status = subscription.StatusCancelled
		sub.CancelledAt = &now
	} else {
		sub.CancelAtPeriodEnd = true
	}
	sub.Touch()

	if err := l.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	if immediate && wasCountable {
		l.adjustCounters(ctx, sub.TierID, sub.CreatorID, -1)
	}
	l.invalidateAccess(ctx, sub.SubscriberID, sub.CreatorID)

	l.plugins.EmitSubscriptionCanceled(ctx, sub)

	l.logger.Info("subscription cancelled",
		"subscription_id", subID.String(),
		"immediate", immediate,
	)

	return nil
}

// ChangeTier moves an active subscription to another of the same creator's
// tiers, keeping both denormalized subscriber counters in step: the old
// tier's count drops and the new tier's count rises.
func (l *Ledger) ChangeTier(ctx context.Context, subID id.SubscriptionID, newTierID id.TierID, requesterID string) error {
	sub, err := l.store.GetSubscription(ctx, subID)
	if err != nil {
		if IsNotFound(err) {
			return ErrNotFoundOrUnauthorized
		}
		return err
	}
	if sub.SubscriberID != requesterID {
		return ErrNotFoundOrUnauthorized
	}
	if sub.Status != subscription.StatusActive {
		return ErrSubscriptionInactive
	}
	if sub.TierID.String() == newTierID.String() {
		return nil
	}

	oldTier, err := l.store.GetTier(ctx, sub.TierID)
	if err != nil {
		return err
	}
	newTier, err := l.store.GetTier(ctx, newTierID)
	if err != nil {
		return err
	}
	if !newTier.Active {
		return ErrTierInactive
	}
	if newTier.CreatorID != sub.CreatorID {
		return ValidationError{Field: "tier_id", Message: "tier belongs to another creator"}
	}

	sub.TierID = newTierID
	sub.Free = newTier.IsFree()
	sub.Touch()
	if err := l.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	// Creator total is unchanged; only the per-tier counters move.
	if err := l.store.AdjustTierSubscribers(ctx, oldTier.ID, -1); err != nil {
		l.logger.Warn("tier counter decrement failed", "tier_id", oldTier.ID.String(), "error", err)
	}
	if err := l.store.AdjustTierSubscribers(ctx, newTierID, +1); err != nil {
		l.logger.Warn("tier counter increment failed", "tier_id", newTierID.String(), "error", err)
	}
	l.invalidateAccess(ctx, sub.SubscriberID, sub.CreatorID)

	l.plugins.EmitTierChanged(ctx, sub, oldTier, newTier)

	l.logger.Info("subscription tier changed",
		"subscription_id", subID.String(),
		"old_tier", oldTier.ID.String(),
		"new_tier", newTierID.String(),
	)

	return nil
}

// ApplyExternalStatus applies a verified billing-provider event to the
// subscription it references. Unknown provider statuses degrade to
// pending. A transition into cancelled performs the same counter and
// cache bookkeeping as an immediate cancellation.
func (l *Ledger) ApplyExternalStatus(ctx context.Context, event subscription.BillingEvent) error {
	if event.ExternalSubscriptionRef == "" {
		return ValidationError{Field: "external_subscription_ref", Message: "required"}
	}

	sub, err := l.store.GetSubscriptionByExternalRef(ctx, event.ExternalSubscriptionRef)
	if err != nil {
		return err
	}

	newStatus := subscription.MapExternalStatus(event.ExternalStatus)
	wasCountable := sub.Status.Countable()

	sub.Status = newStatus
	if !event.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = event.CurrentPeriodStart
	}
	if !event.CurrentPeriodEnd.IsZero() {
		sub.CurrentPeriodEnd = event.CurrentPeriodEnd
	}
	if newStatus == subscription.StatusCancelled && sub.CancelledAt == nil {
		now := time.Now().UTC()
		sub.CancelledAt = &now
	}
	sub.Touch()

	if err := l.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	if wasCountable && !newStatus.Countable() {
		l.adjustCounters(ctx, sub.TierID, sub.CreatorID, -1)
	} else if !wasCountable && newStatus.Countable() {
		l.adjustCounters(ctx, sub.TierID, sub.CreatorID, +1)
	}
	l.invalidateAccess(ctx, sub.SubscriberID, sub.CreatorID)

	l.plugins.EmitExternalEventApplied(ctx, sub, event.ExternalStatus)

	return nil
}

// CreatorSubscriptionStats computes authoritative subscription counts for
// a creator. Use it to reconcile the denormalized tier counters, which can
// drift under partial failures.
func (l *Ledger) CreatorSubscriptionStats(ctx context.Context, creatorID string) (*subscription.CreatorStats, error) {
	return l.store.SubscriptionStats(ctx, creatorID)
}

// ──────────────────────────────────────────────────
// Tier Access
// ──────────────────────────────────────────────────

// CheckTierAccess decides whether a user may view content gated on a tier.
// Rules apply in order: ungated content is free, creators always see their
// own content, non-subscribers are denied, a vanished gating tier falls to
// the configured missing-tier policy, and otherwise access compares tier
// prices — any tier priced at or above the gate unlocks it, so tier
// upgrades never lose access.
func (l *Ledger) CheckTierAccess(ctx context.Context, userID, creatorID string, requiredTierID id.TierID) (*entitlement.Result, error) {
	if requiredTierID.IsNil() {
		return &entitlement.Result{HasAccess: true, Reason: entitlement.ReasonFreeContent}, nil
	}
	if userID == creatorID {
		return &entitlement.Result{HasAccess: true, Reason: entitlement.ReasonOwner}, nil
	}

	if cached, err := l.store.GetCachedAccess(ctx, userID, creatorID, requiredTierID.String()); err == nil {
		return cached, nil
	}

	result, err := l.checkTierAccess(ctx, userID, creatorID, requiredTierID)
	if err != nil {
		return nil, err
	}

	_ = l.store.SetCachedAccess(ctx, userID, creatorID, requiredTierID.String(), result, l.accessCacheTTL) //nolint:errcheck // best-effort cache set

	l.plugins.EmitAccessChecked(ctx, result)
	if !result.HasAccess {
		l.plugins.EmitAccessDenied(ctx, userID, creatorID, string(result.Reason))
	}

	return result, nil
}

func (l *Ledger) checkTierAccess(ctx context.Context, userID, creatorID string, requiredTierID id.TierID) (*entitlement.Result, error) {
	sub, err := l.store.GetCountableSubscription(ctx, userID, creatorID)
	if err != nil || sub.Status != subscription.StatusActive {
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		return &entitlement.Result{HasAccess: false, Reason: entitlement.ReasonNotSubscribed}, nil
	}

	required, err := l.store.GetTier(ctx, requiredTierID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		// The gating tier no longer exists; stale gates resolve by policy.
		return &entitlement.Result{
			HasAccess: l.missingTierPolicy == entitlement.FailOpen,
			Reason:    entitlement.ReasonTierNotFound,
		}, nil
	}

	userTier, err := l.store.GetTier(ctx, sub.TierID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		// The subscriber's own tier record vanished; without a price to
		// compare, the subscription cannot unlock the gate. The missing-tier
		// policy only applies to the gating tier.
		return &entitlement.Result{
			Reason:       entitlement.ReasonInsufficientTier,
			RequiredTier: required.Name,
		}, nil
	}

	result := &entitlement.Result{
		UserTier:     userTier.Name,
		RequiredTier: required.Name,
	}
	if userTier.Price.Amount >= required.Price.Amount {
		result.HasAccess = true
		result.Reason = entitlement.ReasonSufficientTier
	} else {
		result.Reason = entitlement.ReasonInsufficientTier
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// adjustCounters moves the denormalized tier and creator subscriber
// counters together. Counter drift is tolerated (and reconciled via
// CreatorSubscriptionStats), so failures only log.
func (l *Ledger) adjustCounters(ctx context.Context, tierID id.TierID, creatorID string, delta int64) {
	if err := l.store.AdjustTierSubscribers(ctx, tierID, delta); err != nil {
		l.logger.Warn("tier counter adjustment failed",
			"tier_id", tierID.String(),
			"delta", delta,
			"error", err,
		)
	}
	if err := l.store.AdjustCreatorSubscribers(ctx, creatorID, delta); err != nil {
		l.logger.Warn("creator counter adjustment failed",
			"creator_id", creatorID,
			"delta", delta,
			"error", err,
		)
	}
}

func (l *Ledger) invalidateAccess(ctx context.Context, userID, creatorID string) {
	if err := l.store.InvalidateAccess(ctx, userID, creatorID); err != nil {
		l.logger.Warn("access cache invalidation failed",
			"user_id", userID,
			"creator_id", creatorID,
			"error", err,
		)
	}
}
