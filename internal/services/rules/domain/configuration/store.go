package configuration

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/platform/id"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/notify"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/validation"
)

// RuleSource is the read side of the rule registry.
type RuleSource interface {
	Rule(id string) (rule.Rule, bool)
	RulesForGame(baseGame string) []rule.Rule
	BelongsTo(id, baseGame string) bool
	HasGame(baseGame string) bool
}

// PublishFunc observes each notification round.
type PublishFunc func(gameID string, delivered int)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the configuration id generator.
func WithIDGenerator(gen id.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock replaces the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithNotifier replaces the change notifier.
func WithNotifier(n *notify.Notifier[Snapshot]) Option {
	return func(s *Store) { s.notifier = n }
}

// Dispatcher runs a notification round. The default runs it immediately.
// A caller that holds a lock around store calls can queue rounds and run
// them once the lock is released.
type Dispatcher func(round func())

// WithDispatcher replaces how notification rounds are run.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Store) { s.dispatch = d }
}

// WithPublishHook registers a callback run after every notification round.
func WithPublishHook(fn PublishFunc) Option {
	return func(s *Store) { s.published = fn }
}

type entry struct {
	gameID      string
	baseGame    string
	name        string
	description string
	createdAt   time.Time
	active      map[string]struct{}
	// overrides keeps values of disabled rules so re-enabling restores them.
	overrides Overrides
}

// Store holds live configurations. Every mutation validates the result and
// then notifies subscribers before returning.
//
// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	rules     RuleSource
	notifier  *notify.Notifier[Snapshot]
	newID     id.Generator
	now       func() time.Time
	published PublishFunc
	dispatch  Dispatcher
	entries   map[string]*entry
}

// NewStore creates a store over rules.
func NewStore(rules RuleSource, opts ...Option) *Store {
	s := &Store{
		rules:   rules,
		newID:   id.NewID,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.New[Snapshot](nil)
	}
	if s.dispatch == nil {
		s.dispatch = func(round func()) { round() }
	}
	return s
}

// Create allocates a configuration for baseGame with its default rules active.
func (s *Store) Create(baseGame, name, description string) (Snapshot, error) {
	if !s.rules.HasGame(baseGame) {
		return Snapshot{}, gameUnknown(baseGame)
	}
	if strings.TrimSpace(name) == "" {
		return Snapshot{}, apperrors.New(apperrors.CodeConfigurationNameEmpty, "configuration name is required")
	}
	e, err := s.newEntry(baseGame, name, description)
	if err != nil {
		return Snapshot{}, err
	}
	for _, def := range s.rules.RulesForGame(baseGame) {
		if def.IsDefault() {
			s.activate(e, def)
		}
	}
	s.entries[e.gameID] = e
	return s.snapshot(e), nil
}

// Insert registers a configuration described by draft under a fresh id.
// Nothing is stored unless the draft is valid.
func (s *Store) Insert(draft Draft) (Snapshot, error) {
	if err := s.checkDraft(draft); err != nil {
		return Snapshot{}, err
	}
	e, err := s.newEntry(draft.BaseGame, draft.Name, draft.Description)
	if err != nil {
		return Snapshot{}, err
	}
	for ruleID, params := range draft.ParameterOverrides {
		def, _ := s.rules.Rule(ruleID)
		for key, value := range params {
			param, _ := def.Parameter(key)
			coerced, _ := param.Coerce(value)
			e.set(ruleID, key, coerced)
		}
	}
	for _, ruleID := range draft.ActiveRules {
		def, _ := s.rules.Rule(ruleID)
		s.activate(e, def)
	}
	s.entries[e.gameID] = e
	return s.snapshot(e), nil
}

// Get returns the current snapshot of gameID.
func (s *Store) Get(gameID string) (Snapshot, bool) {
	e, ok := s.entries[gameID]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(e), true
}

// Enable activates ruleID. A rule outside the configuration's base game is
// ignored without notification; notified reports whether a round ran.
func (s *Store) Enable(gameID, ruleID string) (snap Snapshot, notified bool, err error) {
	e, err := s.lookup(gameID)
	if err != nil {
		return Snapshot{}, false, err
	}
	if !s.rules.BelongsTo(ruleID, e.baseGame) {
		return s.snapshot(e), false, nil
	}
	def, _ := s.rules.Rule(ruleID)
	s.activate(e, def)
	return s.commit(e), true, nil
}

// Disable deactivates ruleID. Its overrides are kept but hidden.
func (s *Store) Disable(gameID, ruleID string) (Snapshot, error) {
	e, err := s.lookup(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	delete(e.active, ruleID)
	return s.commit(e), nil
}

// SetParameter stores value for an active rule's parameter. Numbers outside
// the declared range are clamped to the nearest bound.
func (s *Store) SetParameter(gameID, ruleID, key string, value rule.Value) (Snapshot, error) {
	e, err := s.lookup(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	meta := map[string]string{"RuleID": ruleID, "Key": key}
	if _, ok := e.active[ruleID]; !ok {
		return Snapshot{}, apperrors.WithMetadata(apperrors.CodeRuleNotActive,
			fmt.Sprintf("rule %s is not active in %s", ruleID, gameID), meta)
	}
	def, _ := s.rules.Rule(ruleID)
	param, ok := def.Parameter(key)
	if !ok {
		return Snapshot{}, apperrors.WithMetadata(apperrors.CodeRuleParameterUnknown,
			fmt.Sprintf("rule %s has no parameter %s", ruleID, key), meta)
	}
	coerced, err := param.Coerce(value)
	if err != nil {
		return Snapshot{}, apperrors.WrapWithMetadata(apperrors.CodeRuleParameterInvalid, err.Error(), meta, err)
	}
	e.set(ruleID, key, coerced)
	return s.commit(e), nil
}

// ParameterValue returns the effective value of a parameter: the override of
// an active rule, else the declared default. Unknown configurations, rules,
// and keys yield an undefined value and false.
func (s *Store) ParameterValue(gameID, ruleID, key string) (rule.Value, bool) {
	e, ok := s.entries[gameID]
	if !ok || !s.rules.BelongsTo(ruleID, e.baseGame) {
		return rule.Value{}, false
	}
	if _, active := e.active[ruleID]; active {
		if v, ok := e.overrides[ruleID][key]; ok {
			return v, true
		}
	}
	def, _ := s.rules.Rule(ruleID)
	param, ok := def.Parameter(key)
	if !ok {
		return rule.Value{}, false
	}
	return param.DefaultValue, true
}

// Validate returns the consistency result of gameID.
func (s *Store) Validate(gameID string) (validation.Result, bool) {
	e, ok := s.entries[gameID]
	if !ok {
		return validation.Result{}, false
	}
	return validation.Validate(s.rules, e.activeIDs()), true
}

// Subscribe registers listener for changes to gameID.
func (s *Store) Subscribe(gameID string, listener func(Snapshot)) (*notify.Subscription, error) {
	if _, err := s.lookup(gameID); err != nil {
		return nil, err
	}
	return s.notifier.Subscribe(gameID, listener), nil
}

// Dispose removes gameID and ends its subscriptions.
func (s *Store) Dispose(gameID string) bool {
	if _, ok := s.entries[gameID]; !ok {
		return false
	}
	delete(s.entries, gameID)
	s.notifier.Close(gameID)
	return true
}

// Len returns the number of live configurations.
func (s *Store) Len() int {
	return len(s.entries)
}

// Subscribers returns the number of live subscriptions for gameID.
func (s *Store) Subscribers(gameID string) int {
	return s.notifier.Count(gameID)
}

func (s *Store) checkDraft(draft Draft) error {
	if !s.rules.HasGame(draft.BaseGame) {
		return invalidRecord(fmt.Sprintf("base game %q is not registered", draft.BaseGame), nil)
	}
	if strings.TrimSpace(draft.Name) == "" {
		return invalidRecord("configuration name is required", nil)
	}
	for _, ruleID := range draft.ActiveRules {
		if !s.rules.BelongsTo(ruleID, draft.BaseGame) {
			return invalidRecord(fmt.Sprintf("rule %q is not a %s rule", ruleID, draft.BaseGame),
				map[string]string{"RuleID": ruleID})
		}
	}
	for ruleID, params := range draft.ParameterOverrides {
		if !s.rules.BelongsTo(ruleID, draft.BaseGame) {
			return invalidRecord(fmt.Sprintf("override for rule %q outside %s", ruleID, draft.BaseGame),
				map[string]string{"RuleID": ruleID})
		}
		def, _ := s.rules.Rule(ruleID)
		for key, value := range params {
			param, ok := def.Parameter(key)
			if !ok {
				return invalidRecord(fmt.Sprintf("rule %q has no parameter %q", ruleID, key),
					map[string]string{"RuleID": ruleID, "Key": key})
			}
			if _, err := param.Coerce(value); err != nil {
				return invalidRecord(err.Error(), map[string]string{"RuleID": ruleID, "Key": key})
			}
		}
	}
	return nil
}

func (s *Store) newEntry(baseGame, name, description string) (*entry, error) {
	gameID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate configuration id: %w", err)
	}
	if _, taken := s.entries[gameID]; taken {
		return nil, fmt.Errorf("generate configuration id: %s already in use", gameID)
	}
	return &entry{
		gameID:      gameID,
		baseGame:    baseGame,
		name:        name,
		description: description,
		createdAt:   s.now().UTC(),
		active:      make(map[string]struct{}),
		overrides:   make(Overrides),
	}, nil
}

// activate adds def and seeds any override it lacks with the declared default.
func (s *Store) activate(e *entry, def rule.Rule) {
	e.active[def.ID] = struct{}{}
	for _, p := range def.Parameters {
		if _, ok := e.overrides[def.ID][p.Key]; !ok {
			e.set(def.ID, p.Key, p.DefaultValue)
		}
	}
}

// commit snapshots e after a mutation and dispatches one notification round
// carrying that snapshot.
func (s *Store) commit(e *entry) Snapshot {
	snap := s.snapshot(e)
	gameID := e.gameID
	s.dispatch(func() {
		delivered := s.notifier.Publish(gameID, snap)
		if s.published != nil {
			s.published(gameID, delivered)
		}
	})
	return snap
}

func (s *Store) snapshot(e *entry) Snapshot {
	active := e.activeIDs()
	visible := make(Overrides, len(active))
	values := make(Overrides, len(active))
	for _, ruleID := range active {
		params := maps.Clone(e.overrides[ruleID])
		if len(params) > 0 {
			visible[ruleID] = params
		}

		def, _ := s.rules.Rule(ruleID)
		effective := def.Defaults()
		for key, v := range params {
			effective[key] = v
		}
		values[ruleID] = effective
	}
	return Snapshot{
		Configuration: Configuration{
			GameID:             e.gameID,
			BaseGame:           e.baseGame,
			Name:               e.name,
			Description:        e.description,
			ActiveRules:        active,
			ParameterOverrides: visible,
			CreatedAt:          e.createdAt,
		},
		Validation: validation.Validate(s.rules, active),
		Values:     values,
	}
}

func (s *Store) lookup(gameID string) (*entry, error) {
	e, ok := s.entries[gameID]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeConfigurationNotFound,
			fmt.Sprintf("configuration %s not found", gameID),
			map[string]string{"GameID": gameID})
	}
	return e, nil
}

func (e *entry) set(ruleID, key string, value rule.Value) {
	params, ok := e.overrides[ruleID]
	if !ok {
		params = make(map[string]rule.Value)
		e.overrides[ruleID] = params
	}
	params[key] = value
}

func (e *entry) activeIDs() []string {
	ids := make([]string, 0, len(e.active))
	for ruleID := range e.active {
		ids = append(ids, ruleID)
	}
	slices.Sort(ids)
	return ids
}

func gameUnknown(baseGame string) error {
	return apperrors.WithMetadata(apperrors.CodeGameUnknown,
		fmt.Sprintf("base game %q is not registered", baseGame),
		map[string]string{"BaseGame": baseGame})
}

func invalidRecord(message string, metadata map[string]string) error {
	return apperrors.WithMetadata(apperrors.CodeRecordInvalid, message, metadata)
}
