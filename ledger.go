package patron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/store"
)

// Default configuration values.
const (
	// DefaultCommissionRateBps is the platform commission in basis points
	// (1500 = 15%).
	DefaultCommissionRateBps int64 = 1500
	// DefaultMinimumPayout is the platform payout floor in minor units.
	DefaultMinimumPayout int64 = 5000
)

// conflictRetries bounds how often a write is retried after losing an
// atomic race in the store.
const conflictRetries = 3

// Ledger is the creator monetization engine. It records revenue, tracks
// balances, drives the payout state machine and answers tier-access
// questions. It never talks to a payment provider itself; money movement
// is reported in via RecordSubscriptionPayment/RecordTip and out via
// ProcessPayout.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	banking payout.BankingInfo

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	commissionRateBps  int64
	minimumPayout      int64
	currencies         map[string]bool
	accessCacheTTL     time.Duration
	missingTierPolicy  entitlement.MissingTierPolicy
	autoPayoutInterval time.Duration
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		stopChan:          make(chan struct{}),
		commissionRateBps: DefaultCommissionRateBps,
		minimumPayout:     DefaultMinimumPayout,
		currencies:        map[string]bool{"usd": true, "eur": true, "jpy": true},
		accessCacheTTL:    30 * time.Second,
		missingTierPolicy: entitlement.FailOpen,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithBankingInfo sets the collaborator that answers whether a creator can
// receive transfers. Without it, every payout request fails with
// ErrNoBankingInfo.
func WithBankingInfo(b payout.BankingInfo) Option {
	return func(l *Ledger) {
		l.banking = b
	}
}

// WithCommissionRate sets the platform commission as a fraction
// (0.15 = 15%). Stored internally in basis points.
func WithCommissionRate(rate float64) Option {
	return func(l *Ledger) {
		l.commissionRateBps = int64(rate*10000 + 0.5)
	}
}

// WithCommissionRateBps sets the platform commission in basis points.
func WithCommissionRateBps(bps int64) Option {
	return func(l *Ledger) {
		l.commissionRateBps = bps
	}
}

// WithMinimumPayout sets the platform payout floor in minor units.
func WithMinimumPayout(minorUnits int64) Option {
	return func(l *Ledger) {
		l.minimumPayout = minorUnits
	}
}

// WithCurrencies replaces the set of accepted currency codes.
func WithCurrencies(codes ...string) Option {
	return func(l *Ledger) {
		l.currencies = make(map[string]bool, len(codes))
		for _, c := range codes {
			l.currencies[c] = true
		}
	}
}

// WithAccessCacheTTL sets the tier-access cache TTL.
func WithAccessCacheTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		l.accessCacheTTL = ttl
	}
}

// WithMissingTierPolicy sets the behavior when content gates on a tier
// that no longer exists. The default is entitlement.FailOpen.
func WithMissingTierPolicy(p entitlement.MissingTierPolicy) Option {
	return func(l *Ledger) {
		l.missingTierPolicy = p
	}
}

// WithAutoPayout enables the background sweep that requests payouts for
// creators who opted into automatic payouts.
func WithAutoPayout(interval time.Duration) Option {
	return func(l *Ledger) {
		l.autoPayoutInterval = interval
	}
}

// Start migrates the store, initializes plugins and begins background
// workers.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	if l.autoPayoutInterval > 0 {
		l.wg.Add(1)
		go l.autoPayoutWorker(ctx)
	}

	l.logger.Info("patron started",
		"commission_bps", l.commissionRateBps,
		"minimum_payout", l.minimumPayout,
		"cache_ttl", l.accessCacheTTL,
		"auto_payout", l.autoPayoutInterval > 0,
	)

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	close(l.stopChan)
	l.wg.Wait()

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Auto-payout worker
// ──────────────────────────────────────────────────

// autoPayoutWorker periodically requests full-balance payouts for creators
// with automatic payouts enabled. Creators whose balance is below minimum
// or who already have a payout in flight are skipped quietly.
func (l *Ledger) autoPayoutWorker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.autoPayoutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.sweepAutoPayouts(ctx)
		}
	}
}

func (l *Ledger) sweepAutoPayouts(ctx context.Context) {
	start := time.Now()

	settings, err := l.store.ListAutoPayoutSettings(ctx)
	if err != nil {
		l.logger.Error("auto-payout sweep failed to list settings", "error", err)
		return
	}

	requested := 0
	for _, s := range settings {
		summary, err := l.GetCreatorEarnings(ctx, s.CreatorID)
		if err != nil {
			l.logger.Warn("auto-payout skipped creator",
				"creator_id", s.CreatorID,
				"error", err,
			)
			continue
		}
		if !summary.CanRequestPayout {
			continue
		}

		if _, err := l.RequestPayout(ctx, s.CreatorID, summary.AvailableBalance); err != nil {
			// Losing to a concurrent manual request is expected.
			if IsConflict(err) {
				continue
			}
			l.logger.Warn("auto-payout request failed",
				"creator_id", s.CreatorID,
				"error", err,
			)
			continue
		}
		requested++
	}

	elapsed := time.Since(start)
	l.plugins.EmitAutoPayoutSwept(ctx, requested, elapsed)

	l.logger.Debug("auto-payout sweep complete",
		"creators", len(settings),
		"requested", requested,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// Plugins exposes the plugin registry, mainly for tests and extensions.
func (l *Ledger) Plugins() *plugin.Registry {
	return l.plugins
}

// CommissionRateBps returns the configured platform commission.
func (l *Ledger) CommissionRateBps() int64 {
	return l.commissionRateBps
}

func (l *Ledger) supportedCurrency(code string) bool {
	return l.currencies[code]
}

// withConflictRetry runs fn, retrying a bounded number of times when the
// store reports a lost atomic race.
func (l *Ledger) withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		l.logger.Debug("retrying after store conflict", "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return err
}
