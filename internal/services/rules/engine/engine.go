// Package engine is the public surface of the rule engine. It binds the rule
// registry, configuration store, validator, notifier, and record codec behind
// one serialized API.
package engine

import (
	"fmt"
	"sync"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/notify"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/record"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/validation"
)

// Operation names reported to observers.
const (
	OpCreate       = "create_configuration"
	OpEnable       = "enable_rule"
	OpDisable      = "disable_rule"
	OpSetParameter = "set_rule_parameter"
	OpExport       = "export_configuration"
	OpImport       = "import_configuration"
	OpDispose      = "dispose_configuration"
)

// Observer receives engine activity, typically for metrics.
type Observer interface {
	CallCompleted(op string, err error)
	NotificationRound(delivered int)
	ConfigurationsLive(count int)
}

// Export is an exported configuration ready to download.
type Export struct {
	Filename string
	Data     []byte
	Record   record.Record
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	store    []configuration.Option
	observer Observer
}

// WithStoreOptions passes options to the configuration store.
func WithStoreOptions(opts ...configuration.Option) Option {
	return func(o *options) { o.store = append(o.store, opts...) }
}

// WithObserver reports activity to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Engine serializes every call so concurrent transports behave as a single
// cooperative caller. Change listeners run before the mutating call returns
// but after the engine state is unlocked, so they may read the Engine. They
// must not mutate it.
type Engine struct {
	// publishMu is held for a whole mutating call, delivery included, so
	// notification rounds reach listeners in call order.
	publishMu sync.Mutex
	mu        sync.Mutex
	rules     *registry.Registry
	store     *configuration.Store
	observer  Observer
	pending   []func()
}

// New seals rules, checks catalog references, and returns an engine over them.
func New(rules *registry.Registry, opts ...Option) (*Engine, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule registry is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	rules.Seal()
	if err := rules.CheckReferences(); err != nil {
		return nil, err
	}

	e := &Engine{rules: rules, observer: o.observer}
	storeOpts := o.store
	if e.observer != nil {
		storeOpts = append(storeOpts, configuration.WithPublishHook(func(_ string, delivered int) {
			e.observer.NotificationRound(delivered)
		}))
	}
	storeOpts = append(storeOpts, configuration.WithDispatcher(func(round func()) {
		e.pending = append(e.pending, round)
	}))
	e.store = configuration.NewStore(rules, storeOpts...)
	return e, nil
}

// mutate runs fn with the state locked, then delivers the notification
// rounds fn queued.
func (e *Engine) mutate(op string, fn func() error) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	rounds := func() []func() {
		e.mu.Lock()
		defer func() {
			e.pending = nil
			e.mu.Unlock()
		}()
		e.done(op, fn())
		return e.pending
	}()
	for _, round := range rounds {
		round()
	}
}

// CreateConfiguration starts a configuration of baseGame with its default
// rules active.
func (e *Engine) CreateConfiguration(baseGame, name, description string) (snap configuration.Snapshot, err error) {
	e.mutate(OpCreate, func() error {
		snap, err = e.store.Create(baseGame, name, description)
		return err
	})
	return snap, err
}

// GetConfiguration returns the current snapshot of gameID.
func (e *Engine) GetConfiguration(gameID string) (configuration.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(gameID)
}

// EnableRule activates ruleID. Rules outside the base game are ignored.
func (e *Engine) EnableRule(gameID, ruleID string) (snap configuration.Snapshot, err error) {
	e.mutate(OpEnable, func() error {
		snap, _, err = e.store.Enable(gameID, ruleID)
		return err
	})
	return snap, err
}

// DisableRule deactivates ruleID, keeping its parameter values for later.
func (e *Engine) DisableRule(gameID, ruleID string) (snap configuration.Snapshot, err error) {
	e.mutate(OpDisable, func() error {
		snap, err = e.store.Disable(gameID, ruleID)
		return err
	})
	return snap, err
}

// SetRuleParameter stores a parameter value of an active rule.
func (e *Engine) SetRuleParameter(gameID, ruleID, key string, value rule.Value) (snap configuration.Snapshot, err error) {
	e.mutate(OpSetParameter, func() error {
		snap, err = e.store.SetParameter(gameID, ruleID, key, value)
		return err
	})
	return snap, err
}

// GetRuleParameterValue returns the effective parameter value, or false when
// the configuration, rule, or key is unknown.
func (e *Engine) GetRuleParameterValue(gameID, ruleID, key string) (rule.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ParameterValue(gameID, ruleID, key)
}

// GetRulesForGame lists the rules of baseGame in registration order.
func (e *Engine) GetRulesForGame(baseGame string) []rule.Rule {
	return e.rules.RulesForGame(baseGame)
}

// GetRule returns the rule registered under id.
func (e *Engine) GetRule(id string) (rule.Rule, bool) {
	return e.rules.Rule(id)
}

// ListGames lists the base games with registered rules.
func (e *Engine) ListGames() []string {
	return e.rules.Games()
}

// OnConfigurationChange registers listener for every change to gameID.
// Release the subscription when the consumer tears down.
func (e *Engine) OnConfigurationChange(gameID string, listener func(configuration.Snapshot)) (*notify.Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Subscribe(gameID, listener)
}

// ValidateConfiguration reports conflicts and missing dependencies.
func (e *Engine) ValidateConfiguration(gameID string) (validation.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Validate(gameID)
}

// ExportConfiguration encodes gameID as a portable record.
func (e *Engine) ExportConfiguration(gameID string) (Export, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out, err := e.export(gameID)
	e.done(OpExport, err)
	return out, err
}

func (e *Engine) export(gameID string) (Export, error) {
	snap, ok := e.store.Get(gameID)
	if !ok {
		return Export{}, apperrors.WithMetadata(apperrors.CodeConfigurationNotFound,
			fmt.Sprintf("configuration %s not found", gameID),
			map[string]string{"GameID": gameID})
	}
	rec := record.FromConfiguration(snap.Configuration)
	data, err := record.Encode(rec)
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: record.Filename(snap.Name), Data: data, Record: rec}, nil
}

// ImportConfiguration registers the configuration encoded in data under a
// new id and returns that id. Nothing is registered on failure.
func (e *Engine) ImportConfiguration(data []byte) (gameID string, err error) {
	e.mutate(OpImport, func() error {
		gameID, err = e.importRecord(data)
		return err
	})
	return gameID, err
}

func (e *Engine) importRecord(data []byte) (string, error) {
	rec, err := record.Decode(data)
	if err != nil {
		return "", err
	}
	snap, err := e.store.Insert(rec.Draft())
	if err != nil {
		return "", err
	}
	return snap.GameID, nil
}

// DisposeConfiguration removes gameID and ends its subscriptions. It reports
// whether the configuration existed.
func (e *Engine) DisposeConfiguration(gameID string) (ok bool) {
	e.mutate(OpDispose, func() error {
		if ok = e.store.Dispose(gameID); !ok {
			return apperrors.New(apperrors.CodeConfigurationNotFound, "configuration not found")
		}
		return nil
	})
	return ok
}

// Subscribers returns the number of live listeners on gameID.
func (e *Engine) Subscribers(gameID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Subscribers(gameID)
}

func (e *Engine) done(op string, err error) {
	if e.observer == nil {
		return
	}
	e.observer.CallCompleted(op, err)
	e.observer.ConfigurationsLive(e.store.Len())
}
