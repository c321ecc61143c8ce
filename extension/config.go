package extension

import "time"

// Config holds the Patron extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.patron" or "patron" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CommissionRateBps is the platform commission in basis points
	// (default: 1500 = 15%).
	CommissionRateBps int64 `json:"commission_rate_bps" mapstructure:"commission_rate_bps" yaml:"commission_rate_bps"`

	// MinimumPayout is the payout floor in minor units (default: 5000).
	MinimumPayout int64 `json:"minimum_payout" mapstructure:"minimum_payout" yaml:"minimum_payout"`

	// Currencies lists the accepted ISO currency codes. Empty means the
	// engine default set.
	Currencies []string `json:"currencies" mapstructure:"currencies" yaml:"currencies"`

	// AccessCacheTTL controls how long tier-access check results are
	// cached before re-evaluating against the store (default: 30s).
	AccessCacheTTL time.Duration `json:"access_cache_ttl" mapstructure:"access_cache_ttl" yaml:"access_cache_ttl"`

	// MissingTierPolicy decides access when gated content references a tier
	// that no longer exists: "fail_open" (default) or "fail_closed".
	MissingTierPolicy string `json:"missing_tier_policy" mapstructure:"missing_tier_policy" yaml:"missing_tier_policy"`

	// AutoPayoutInterval enables the automatic payout sweep when > 0.
	AutoPayoutInterval time.Duration `json:"auto_payout_interval" mapstructure:"auto_payout_interval" yaml:"auto_payout_interval"`

	// MongoURI is a MongoDB connection string. When set, the extension
	// builds a mongo-backed store instead of the in-memory one.
	MongoURI string `json:"mongo_uri" mapstructure:"mongo_uri" yaml:"mongo_uri"`

	// MongoDatabase is the database name for the mongo store
	// (default: "patron").
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AccessCacheTTL: 30 * time.Second,
		MongoDatabase:  "patron",
	}
}
