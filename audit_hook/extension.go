// Package audithook bridges Patron lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// particular audit system directly. Callers inject a RecorderFunc adapter
// that bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnTierCreated          = (*Extension)(nil)
	_ plugin.OnTierUpdated          = (*Extension)(nil)
	_ plugin.OnTierDeactivated      = (*Extension)(nil)
	_ plugin.OnRevenueRecorded      = (*Extension)(nil)
	_ plugin.OnPayoutRequested      = (*Extension)(nil)
	_ plugin.OnPayoutSettled        = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated  = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnTierChanged          = (*Extension)(nil)
	_ plugin.OnExternalEventApplied = (*Extension)(nil)
	_ plugin.OnAccessDenied         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package carries no backend dependency — callers
// inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Patron lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Tier lifecycle hooks
// ──────────────────────────────────────────────────

// OnTierCreated implements plugin.OnTierCreated.
func (e *Extension) OnTierCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionTierCreated, SeverityInfo, OutcomeSuccess,
		ResourceTier, "", CategoryCatalog, nil,
		"event", "tier_created",
	)
}

// OnTierUpdated implements plugin.OnTierUpdated.
func (e *Extension) OnTierUpdated(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionTierUpdated, SeverityInfo, OutcomeSuccess,
		ResourceTier, "", CategoryCatalog, nil,
		"event", "tier_updated",
	)
}

// OnTierDeactivated implements plugin.OnTierDeactivated.
func (e *Extension) OnTierDeactivated(ctx context.Context, tierID string) error {
	return e.record(ctx, ActionTierDeactivated, SeverityInfo, OutcomeSuccess,
		ResourceTier, tierID, CategoryCatalog, nil,
		"tier_id", tierID,
	)
}

// ──────────────────────────────────────────────────
// Revenue hooks
// ──────────────────────────────────────────────────

// OnRevenueRecorded implements plugin.OnRevenueRecorded. Money amounts
// land in the metadata so the trail can reconcile against the ledger.
func (e *Extension) OnRevenueRecorded(ctx context.Context, v interface{}) error {
	txn, ok := v.(*earnings.Transaction)
	if !ok {
		return e.record(ctx, ActionRevenueRecorded, SeverityInfo, OutcomeSuccess,
			ResourceTransaction, "", CategoryRevenue, nil,
			"event", "revenue_recorded",
		)
	}
	return e.record(ctx, ActionRevenueRecorded, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryRevenue, nil,
		"creator_id", txn.CreatorID,
		"type", string(txn.Type),
		"gross", txn.Gross.Amount,
		"fee", txn.Fee.Amount,
		"net", txn.Net.Amount,
		"currency", txn.Gross.Currency,
	)
}

// ──────────────────────────────────────────────────
// Payout lifecycle hooks
// ──────────────────────────────────────────────────

// OnPayoutRequested implements plugin.OnPayoutRequested.
func (e *Extension) OnPayoutRequested(ctx context.Context, v interface{}) error {
	p, ok := v.(*payout.Payout)
	if !ok {
		return e.record(ctx, ActionPayoutRequested, SeverityInfo, OutcomeSuccess,
			ResourcePayout, "", CategoryPayment, nil,
			"event", "payout_requested",
		)
	}
	return e.record(ctx, ActionPayoutRequested, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayment, nil,
		"creator_id", p.CreatorID,
		"amount", p.Amount.Amount,
		"currency", p.Amount.Currency,
	)
}

// OnPayoutSettled implements plugin.OnPayoutSettled. Failed transfers are
// recorded at warning severity with the transfer error as the reason.
func (e *Extension) OnPayoutSettled(ctx context.Context, v interface{}) error {
	p, ok := v.(*payout.Payout)
	if !ok {
		return e.record(ctx, ActionPayoutCompleted, SeverityInfo, OutcomeSuccess,
			ResourcePayout, "", CategoryPayment, nil,
			"event", "payout_settled",
		)
	}
	if p.Status == payout.StatusFailed {
		return e.record(ctx, ActionPayoutFailed, SeverityWarning, OutcomeFailure,
			ResourcePayout, p.ID.String(), CategoryPayment, fmt.Errorf("%s", p.Error),
			"creator_id", p.CreatorID,
			"amount", p.Amount.Amount,
			"currency", p.Amount.Currency,
		)
	}
	return e.record(ctx, ActionPayoutCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayment, nil,
		"creator_id", p.CreatorID,
		"amount", p.Amount.Amount,
		"currency", p.Amount.Currency,
		"transfer_ref", p.TransferRef,
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, v interface{}) error {
	sub, ok := v.(*subscription.Subscription)
	if !ok {
		return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
			ResourceSubscription, "", CategorySubscription, nil,
			"event", "subscription_created",
		)
	}
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"creator_id", sub.CreatorID,
		"tier_id", sub.TierID.String(),
		"free", sub.Free,
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, v interface{}) error {
	sub, ok := v.(*subscription.Subscription)
	if !ok {
		return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
			ResourceSubscription, "", CategorySubscription, nil,
			"event", "subscription_canceled",
		)
	}
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"creator_id", sub.CreatorID,
		"immediate", sub.Status == subscription.StatusCancelled,
	)
}

// OnTierChanged implements plugin.OnTierChanged.
func (e *Extension) OnTierChanged(ctx context.Context, v interface{}, _, _ interface{}) error {
	sub, ok := v.(*subscription.Subscription)
	if !ok {
		return e.record(ctx, ActionTierChanged, SeverityInfo, OutcomeSuccess,
			ResourceSubscription, "", CategorySubscription, nil,
			"event", "tier_changed",
		)
	}
	return e.record(ctx, ActionTierChanged, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"creator_id", sub.CreatorID,
		"tier_id", sub.TierID.String(),
	)
}

// OnExternalEventApplied implements plugin.OnExternalEventApplied.
func (e *Extension) OnExternalEventApplied(ctx context.Context, v interface{}, externalStatus string) error {
	resourceID := ""
	if sub, ok := v.(*subscription.Subscription); ok {
		resourceID = sub.ID.String()
	}
	return e.record(ctx, ActionBillingEventApplied, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, resourceID, CategorySubscription, nil,
		"external_status", externalStatus,
	)
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnAccessDenied implements plugin.OnAccessDenied. Granted checks are not
// audited to keep the trail small; denials are the interesting signal.
func (e *Extension) OnAccessDenied(ctx context.Context, userID, creatorID, reason string) error {
	return e.record(ctx, ActionAccessDenied, SeverityInfo, OutcomeFailure,
		ResourceAccess, "", CategoryAccess, nil,
		"user_id", userID,
		"creator_id", creatorID,
		"reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
