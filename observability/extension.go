// Package observability provides a metrics extension for Ledger that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnTierCreated          = (*MetricsExtension)(nil)
	_ plugin.OnTierUpdated          = (*MetricsExtension)(nil)
	_ plugin.OnTierDeactivated      = (*MetricsExtension)(nil)
	_ plugin.OnRevenueRecorded      = (*MetricsExtension)(nil)
	_ plugin.OnPayoutRequested      = (*MetricsExtension)(nil)
	_ plugin.OnPayoutSettled        = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnTierChanged          = (*MetricsExtension)(nil)
	_ plugin.OnExternalEventApplied = (*MetricsExtension)(nil)
	_ plugin.OnAccessChecked        = (*MetricsExtension)(nil)
	_ plugin.OnAccessDenied         = (*MetricsExtension)(nil)
	_ plugin.OnAutoPayoutSwept      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Ledger plugin to automatically track monetization metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Tier metrics
	TierCreated     Counter
	TierUpdated     Counter
	TierDeactivated Counter

	// Revenue metrics
	RevenueRecorded Counter
	RevenueGross    Histogram
	RevenueFee      Histogram

	// Payout metrics
	PayoutRequested Counter
	PayoutSettled   Counter
	PayoutSweeps    Counter
	PayoutSweepSize Histogram
	PayoutSweepTime Histogram

	// Subscription metrics
	SubscriptionCreated  Counter
	SubscriptionCanceled Counter
	TierChanged          Counter
	ExternalEventApplied Counter

	// Access metrics
	AccessChecks Counter
	AccessDenied Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Tier metrics
		TierCreated:     factory.Counter("patron.tier.created"),
		TierUpdated:     factory.Counter("patron.tier.updated"),
		TierDeactivated: factory.Counter("patron.tier.deactivated"),

		// Revenue metrics
		RevenueRecorded: factory.Counter("patron.revenue.recorded"),
		RevenueGross:    factory.Histogram("patron.revenue.gross_amount"),
		RevenueFee:      factory.Histogram("patron.revenue.fee_amount"),

		// Payout metrics
		PayoutRequested: factory.Counter("patron.payout.requested"),
		PayoutSettled:   factory.Counter("patron.payout.settled"),
		PayoutSweeps:    factory.Counter("patron.payout.sweeps"),
		PayoutSweepSize: factory.Histogram("patron.payout.sweep.requested"),
		PayoutSweepTime: factory.Histogram("patron.payout.sweep.latency_ms"),

		// Subscription metrics
		SubscriptionCreated:  factory.Counter("patron.subscription.created"),
		SubscriptionCanceled: factory.Counter("patron.subscription.canceled"),
		TierChanged:          factory.Counter("patron.subscription.tier_changed"),
		ExternalEventApplied: factory.Counter("patron.subscription.external_events"),

		// Access metrics
		AccessChecks: factory.Counter("patron.access.checks"),
		AccessDenied: factory.Counter("patron.access.denied"),

		// Error metrics
		StoreErrors:  factory.Counter("patron.store.errors"),
		PluginErrors: factory.Counter("patron.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Tier lifecycle hooks
// ──────────────────────────────────────────────────

// OnTierCreated implements plugin.OnTierCreated.
func (m *MetricsExtension) OnTierCreated(_ context.Context, _ interface{}) error {
	m.TierCreated.Inc()
	return nil
}

// OnTierUpdated implements plugin.OnTierUpdated.
func (m *MetricsExtension) OnTierUpdated(_ context.Context, _, _ interface{}) error {
	m.TierUpdated.Inc()
	return nil
}

// OnTierDeactivated implements plugin.OnTierDeactivated.
func (m *MetricsExtension) OnTierDeactivated(_ context.Context, _ string) error {
	m.TierDeactivated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Revenue hooks
// ──────────────────────────────────────────────────

// OnRevenueRecorded implements plugin.OnRevenueRecorded.
func (m *MetricsExtension) OnRevenueRecorded(_ context.Context, txn interface{}) error {
	m.RevenueRecorded.Inc()
	if t, ok := txn.(*earnings.Transaction); ok {
		m.RevenueGross.Observe(float64(t.Gross.Amount))
		m.RevenueFee.Observe(float64(t.Fee.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Payout lifecycle hooks
// ──────────────────────────────────────────────────

// OnPayoutRequested implements plugin.OnPayoutRequested.
func (m *MetricsExtension) OnPayoutRequested(_ context.Context, _ interface{}) error {
	m.PayoutRequested.Inc()
	return nil
}

// OnPayoutSettled implements plugin.OnPayoutSettled.
func (m *MetricsExtension) OnPayoutSettled(_ context.Context, _ interface{}) error {
	m.PayoutSettled.Inc()
	return nil
}

// OnAutoPayoutSwept implements plugin.OnAutoPayoutSwept.
func (m *MetricsExtension) OnAutoPayoutSwept(_ context.Context, requested int, elapsed time.Duration) error {
	m.PayoutSweeps.Inc()
	m.PayoutSweepSize.Observe(float64(requested))
	m.PayoutSweepTime.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ interface{}) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ interface{}) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

// OnTierChanged implements plugin.OnTierChanged.
func (m *MetricsExtension) OnTierChanged(_ context.Context, _ interface{}, _, _ interface{}) error {
	m.TierChanged.Inc()
	return nil
}

// OnExternalEventApplied implements plugin.OnExternalEventApplied.
func (m *MetricsExtension) OnExternalEventApplied(_ context.Context, _ interface{}, _ string) error {
	m.ExternalEventApplied.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnAccessChecked implements plugin.OnAccessChecked.
func (m *MetricsExtension) OnAccessChecked(_ context.Context, result interface{}) error {
	m.AccessChecks.Inc()
	if r, ok := result.(*entitlement.Result); ok && !r.HasAccess {
		m.AccessDenied.Inc()
	}
	return nil
}

// OnAccessDenied implements plugin.OnAccessDenied.
func (m *MetricsExtension) OnAccessDenied(_ context.Context, _, _ string, _ string) error {
	// Counted through OnAccessChecked; the dedicated hook exists for
	// plugins that only care about denials.
	return nil
}
