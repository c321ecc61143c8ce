package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onTierCreated          []OnTierCreated
	onTierUpdated          []OnTierUpdated
	onTierDeactivated      []OnTierDeactivated
	onRevenueRecorded      []OnRevenueRecorded
	onPayoutRequested      []OnPayoutRequested
	onPayoutSettled        []OnPayoutSettled
	onSubscriptionCreated  []OnSubscriptionCreated
	onSubscriptionCanceled []OnSubscriptionCanceled
	onTierChanged          []OnTierChanged
	onExternalEventApplied []OnExternalEventApplied
	onAccessChecked        []OnAccessChecked
	onAccessDenied         []OnAccessDenied
	onAutoPayoutSwept      []OnAutoPayoutSwept
	transferExecutors      []TransferExecutor
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTierCreated); ok {
		r.onTierCreated = append(r.onTierCreated, v)
	}
	if v, ok := p.(OnTierUpdated); ok {
		r.onTierUpdated = append(r.onTierUpdated, v)
	}
	if v, ok := p.(OnTierDeactivated); ok {
		r.onTierDeactivated = append(r.onTierDeactivated, v)
	}
	if v, ok := p.(OnRevenueRecorded); ok {
		r.onRevenueRecorded = append(r.onRevenueRecorded, v)
	}
	if v, ok := p.(OnPayoutRequested); ok {
		r.onPayoutRequested = append(r.onPayoutRequested, v)
	}
	if v, ok := p.(OnPayoutSettled); ok {
		r.onPayoutSettled = append(r.onPayoutSettled, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnTierChanged); ok {
		r.onTierChanged = append(r.onTierChanged, v)
	}
	if v, ok := p.(OnExternalEventApplied); ok {
		r.onExternalEventApplied = append(r.onExternalEventApplied, v)
	}
	if v, ok := p.(OnAccessChecked); ok {
		r.onAccessChecked = append(r.onAccessChecked, v)
	}
	if v, ok := p.(OnAccessDenied); ok {
		r.onAccessDenied = append(r.onAccessDenied, v)
	}
	if v, ok := p.(OnAutoPayoutSwept); ok {
		r.onAutoPayoutSwept = append(r.onAutoPayoutSwept, v)
	}
	if v, ok := p.(TransferExecutor); ok {
		r.transferExecutors = append(r.transferExecutors, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnTierCreated)(nil)).Elem(), "OnTierCreated")
	checkInterface(reflect.TypeOf((*OnRevenueRecorded)(nil)).Elem(), "OnRevenueRecorded")
	checkInterface(reflect.TypeOf((*OnPayoutRequested)(nil)).Elem(), "OnPayoutRequested")
	checkInterface(reflect.TypeOf((*OnSubscriptionCreated)(nil)).Elem(), "OnSubscriptionCreated")
	checkInterface(reflect.TypeOf((*OnAccessChecked)(nil)).Elem(), "OnAccessChecked")
	checkInterface(reflect.TypeOf((*TransferExecutor)(nil)).Elem(), "TransferExecutor")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierCreated emits a tier created event.
func (r *Registry) EmitTierCreated(ctx context.Context, t interface{}) {
	r.mu.RLock()
	plugins := r.onTierCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierCreated(ctx, t)
		}); err != nil {
			r.logger.Warn("plugin OnTierCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierUpdated emits a tier updated event.
func (r *Registry) EmitTierUpdated(ctx context.Context, oldTier, newTier interface{}) {
	r.mu.RLock()
	plugins := r.onTierUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierUpdated(ctx, oldTier, newTier)
		}); err != nil {
			r.logger.Warn("plugin OnTierUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierDeactivated emits a tier deactivated event.
func (r *Registry) EmitTierDeactivated(ctx context.Context, tierID string) {
	r.mu.RLock()
	plugins := r.onTierDeactivated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierDeactivated(ctx, tierID)
		}); err != nil {
			r.logger.Warn("plugin OnTierDeactivated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRevenueRecorded emits a revenue recorded event.
func (r *Registry) EmitRevenueRecorded(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onRevenueRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRevenueRecorded(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnRevenueRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPayoutRequested emits a payout requested event.
func (r *Registry) EmitPayoutRequested(ctx context.Context, payout interface{}) {
	r.mu.RLock()
	plugins := r.onPayoutRequested
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPayoutRequested(ctx, payout)
		}); err != nil {
			r.logger.Warn("plugin OnPayoutRequested failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPayoutSettled emits a payout settled event.
func (r *Registry) EmitPayoutSettled(ctx context.Context, payout interface{}) {
	r.mu.RLock()
	plugins := r.onPayoutSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPayoutSettled(ctx, payout)
		}); err != nil {
			r.logger.Warn("plugin OnPayoutSettled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCreated(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCanceled emits a subscription canceled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionCanceled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCanceled(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCanceled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierChanged emits a tier changed event.
func (r *Registry) EmitTierChanged(ctx context.Context, sub interface{}, oldTier, newTier interface{}) {
	r.mu.RLock()
	plugins := r.onTierChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierChanged(ctx, sub, oldTier, newTier)
		}); err != nil {
			r.logger.Warn("plugin OnTierChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitExternalEventApplied emits an external event applied event.
func (r *Registry) EmitExternalEventApplied(ctx context.Context, sub interface{}, externalStatus string) {
	r.mu.RLock()
	plugins := r.onExternalEventApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnExternalEventApplied(ctx, sub, externalStatus)
		}); err != nil {
			r.logger.Warn("plugin OnExternalEventApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessChecked emits an access checked event.
func (r *Registry) EmitAccessChecked(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onAccessChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessChecked(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnAccessChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessDenied emits an access denied event.
func (r *Registry) EmitAccessDenied(ctx context.Context, userID, creatorID, reason string) {
	r.mu.RLock()
	plugins := r.onAccessDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessDenied(ctx, userID, creatorID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnAccessDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAutoPayoutSwept emits an auto-payout sweep event.
func (r *Registry) EmitAutoPayoutSwept(ctx context.Context, requested int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onAutoPayoutSwept
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAutoPayoutSwept(ctx, requested, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnAutoPayoutSwept failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetTransferExecutors returns all registered transfer executor plugins.
func (r *Registry) GetTransferExecutors() []TransferExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]TransferExecutor, len(r.transferExecutors))
	copy(result, r.transferExecutors)
	return result
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the monetization pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
