// Package extension provides the Forge extension adapter for Patron.
//
// It implements the forge.Extension interface to integrate Patron
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.patron" or "patron" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	patron "github.com/xraph/patron"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/memory"
	mongostore "github.com/xraph/patron/store/mongo"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "patron"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Creator monetization and payout engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Patron as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *patron.Ledger
	store      store.Store
	patronOpts []patron.Option
}

// New creates a new Patron Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *patron.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.buildStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	// Build ledger options from resolved config.
	opts := e.buildPatronOpts()

	eng := patron.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*patron.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("patron: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("patron: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore constructs the store backend from config. A configured Mongo
// URI wins; otherwise the in-memory store is used.
func (e *Extension) buildStore() (store.Store, error) {
	if e.config.MongoURI != "" {
		s, err := mongostore.New(e.config.MongoURI, e.config.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("patron: connecting mongo store: %w", err)
		}
		return s, nil
	}
	return memory.New(), nil
}

// buildPatronOpts constructs patron.Option values from the resolved config.
func (e *Extension) buildPatronOpts() []patron.Option {
	opts := make([]patron.Option, 0, len(e.patronOpts)+5)

	if e.config.CommissionRateBps > 0 {
		opts = append(opts, patron.WithCommissionRateBps(e.config.CommissionRateBps))
	}
	if e.config.MinimumPayout > 0 {
		opts = append(opts, patron.WithMinimumPayout(e.config.MinimumPayout))
	}
	if len(e.config.Currencies) > 0 {
		opts = append(opts, patron.WithCurrencies(e.config.Currencies...))
	}
	if e.config.AccessCacheTTL > 0 {
		opts = append(opts, patron.WithAccessCacheTTL(e.config.AccessCacheTTL))
	}
	if e.config.MissingTierPolicy == string(entitlement.FailClosed) {
		opts = append(opts, patron.WithMissingTierPolicy(entitlement.FailClosed))
	}
	if e.config.AutoPayoutInterval > 0 {
		opts = append(opts, patron.WithAutoPayout(e.config.AutoPayoutInterval))
	}

	// Append any pass-through patron options.
	opts = append(opts, e.patronOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("patron: configuration is required but not found in config files; " +
				"ensure 'extensions.patron' or 'patron' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("patron: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("commission_rate_bps", e.config.CommissionRateBps),
		forge.F("minimum_payout", e.config.MinimumPayout),
		forge.F("access_cache_ttl", e.config.AccessCacheTTL),
		forge.F("missing_tier_policy", e.config.MissingTierPolicy),
		forge.F("auto_payout_interval", e.config.AutoPayoutInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.patron" first (namespaced pattern).
	if cm.IsSet("extensions.patron") {
		if err := cm.Bind("extensions.patron", &cfg); err == nil {
			e.Logger().Debug("patron: loaded config from file",
				forge.F("key", "extensions.patron"),
			)
			return cfg, true
		}
		e.Logger().Warn("patron: failed to bind extensions.patron config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "patron" key.
	if cm.IsSet("patron") {
		if err := cm.Bind("patron", &cfg); err == nil {
			e.Logger().Debug("patron: loaded config from file",
				forge.F("key", "patron"),
			)
			return cfg, true
		}
		e.Logger().Warn("patron: failed to bind patron config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.AccessCacheTTL == 0 {
		cfg.AccessCacheTTL = defaults.AccessCacheTTL
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = defaults.MongoDatabase
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.MissingTierPolicy == "" && programmaticConfig.MissingTierPolicy != "" {
		yamlConfig.MissingTierPolicy = programmaticConfig.MissingTierPolicy
	}
	if yamlConfig.MongoURI == "" && programmaticConfig.MongoURI != "" {
		yamlConfig.MongoURI = programmaticConfig.MongoURI
	}
	if yamlConfig.MongoDatabase == "" && programmaticConfig.MongoDatabase != "" {
		yamlConfig.MongoDatabase = programmaticConfig.MongoDatabase
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CommissionRateBps == 0 && programmaticConfig.CommissionRateBps != 0 {
		yamlConfig.CommissionRateBps = programmaticConfig.CommissionRateBps
	}
	if yamlConfig.MinimumPayout == 0 && programmaticConfig.MinimumPayout != 0 {
		yamlConfig.MinimumPayout = programmaticConfig.MinimumPayout
	}
	if len(yamlConfig.Currencies) == 0 && len(programmaticConfig.Currencies) != 0 {
		yamlConfig.Currencies = programmaticConfig.Currencies
	}
	if yamlConfig.AccessCacheTTL == 0 && programmaticConfig.AccessCacheTTL != 0 {
		yamlConfig.AccessCacheTTL = programmaticConfig.AccessCacheTTL
	}
	if yamlConfig.AutoPayoutInterval == 0 && programmaticConfig.AutoPayoutInterval != 0 {
		yamlConfig.AutoPayoutInterval = programmaticConfig.AutoPayoutInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
