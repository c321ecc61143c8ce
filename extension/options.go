package extension

import (
	"time"

	patron "github.com/xraph/patron"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/store"
)

// Option configures the Patron Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPatronOption passes a patron.Option through to the underlying engine.
func WithPatronOption(opt patron.Option) Option {
	return func(e *Extension) {
		e.patronOpts = append(e.patronOpts, opt)
	}
}

// WithPlugin registers a patron plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.patronOpts = append(e.patronOpts, patron.WithPlugin(p))
	}
}

// WithBankingInfo sets the banking info lookup used to gate payouts.
func WithBankingInfo(b payout.BankingInfo) Option {
	return func(e *Extension) {
		e.patronOpts = append(e.patronOpts, patron.WithBankingInfo(b))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCommissionRateBps sets the platform commission in basis points.
func WithCommissionRateBps(bps int64) Option {
	return func(e *Extension) { e.config.CommissionRateBps = bps }
}

// WithMinimumPayout sets the payout floor in minor units.
func WithMinimumPayout(minorUnits int64) Option {
	return func(e *Extension) { e.config.MinimumPayout = minorUnits }
}

// WithCurrencies sets the accepted ISO currency codes.
func WithCurrencies(codes ...string) Option {
	return func(e *Extension) { e.config.Currencies = codes }
}

// WithAccessCacheTTL sets the tier-access check cache duration.
func WithAccessCacheTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.AccessCacheTTL = d }
}

// WithAutoPayoutInterval enables the automatic payout sweep.
func WithAutoPayoutInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.AutoPayoutInterval = d }
}

// WithMongo configures a MongoDB-backed store. The extension connects and
// builds the store during Register; pass an empty database name to use the
// default.
func WithMongo(uri, database string) Option {
	return func(e *Extension) {
		e.config.MongoURI = uri
		e.config.MongoDatabase = database
	}
}
