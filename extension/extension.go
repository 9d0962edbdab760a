// Package extension provides the Forge extension adapter for the credits
// ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
// The ledger, the feature gate and the payment processor are all provided
// to the container.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.credits" or "credits" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/credits"
	"github.com/xraph/credits/gate"
	"github.com/xraph/credits/payment"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "credits"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Credit ledger for metered AI features"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the credits ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	ledger     *credits.Ledger
	gate       *gate.Gate
	payments   *payment.Processor
	gateway    payment.Gateway
	store      store.Store
	ledgerOpts []credits.Option
}

// New creates a new credits Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Ledger() *credits.Ledger { return e.ledger }

// Gate returns the feature gate. Nil until Register is called.
func (e *Extension) Gate() *gate.Gate { return e.gate }

// Payments returns the payment processor. Nil until Register is called.
func (e *Extension) Payments() *payment.Processor { return e.payments }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	e.build()

	c := fapp.Container()
	if err := vessel.Provide(c, func() (*credits.Ledger, error) {
		return e.ledger, nil
	}); err != nil {
		return err
	}
	if err := vessel.Provide(c, func() (*gate.Gate, error) {
		return e.gate, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(c, func() (*payment.Processor, error) {
		return e.payments, nil
	})
}

// build wires the ledger and its consumers from the resolved config.
func (e *Extension) build() {
	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.gateway == nil {
		e.gateway = payment.NewMockGateway(e.config.MockLatency())
	}

	e.ledger = credits.New(e.store, e.buildLedgerOpts()...)
	e.gate = gate.New(e.ledger)
	e.payments = payment.NewProcessor(e.gateway, e.ledger, payment.WithPlugins(e.ledger.Plugins()))
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.ledger == nil {
		return errors.New("credits: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.ledger.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.ledger != nil {
		if err := e.ledger.Stop(); err != nil {
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
		return errors.New("credits: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs credits.Option values from the resolved config.
// Pass-through options come last so they win over config.
func (e *Extension) buildLedgerOpts() []credits.Option {
	opts := make([]credits.Option, 0, len(e.ledgerOpts)+1)
	opts = append(opts, credits.WithPolicy(e.config.Policy()))
	return append(opts, e.ledgerOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("credits: configuration is required but not found in config files; " +
				"ensure 'extensions.credits' or 'credits' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("credits: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("welcome_bonus", e.config.WelcomeBonus),
		forge.F("monthly_allotment", e.config.MonthlyAllotment),
		forge.F("reset_interval", e.config.ResetInterval),
		forge.F("history_limit", e.config.HistoryLimit),
		forge.F("payment_latency", e.config.MockLatency()),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.credits", "credits"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("credits: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("credits: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.WelcomeBonus == 0 {
		cfg.WelcomeBonus = defaults.WelcomeBonus
	}
	if cfg.MonthlyAllotment == 0 {
		cfg.MonthlyAllotment = defaults.MonthlyAllotment
	}
	if cfg.ResetInterval == 0 {
		cfg.ResetInterval = defaults.ResetInterval
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.PaymentLatency == nil {
		cfg.PaymentLatency = defaults.PaymentLatency
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.WelcomeBonus == 0 {
		yamlConfig.WelcomeBonus = programmaticConfig.WelcomeBonus
	}
	if yamlConfig.MonthlyAllotment == 0 {
		yamlConfig.MonthlyAllotment = programmaticConfig.MonthlyAllotment
	}
	if yamlConfig.ResetInterval == 0 {
		yamlConfig.ResetInterval = programmaticConfig.ResetInterval
	}
	if yamlConfig.HistoryLimit == 0 {
		yamlConfig.HistoryLimit = programmaticConfig.HistoryLimit
	}
	if yamlConfig.PaymentLatency == nil {
		yamlConfig.PaymentLatency = programmaticConfig.PaymentLatency
	}
	return mergeWithDefaults(yamlConfig)
}
