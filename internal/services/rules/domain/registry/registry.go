// Package registry holds rule definitions keyed by id and indexed by base game.
package registry

import (
	"fmt"
	"reflect"
	"sync"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// Registry is the catalog of rule definitions. It is populated at start-up by
// per-game entry points and sealed before serving.
type Registry struct {
	mu     sync.RWMutex
	rules  map[string]rule.Rule
	byGame map[string][]string
	games  []string
	sealed bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		rules:  make(map[string]rule.Rule),
		byGame: make(map[string][]string),
	}
}

// Register adds one rule. Re-registering an identical definition is a no-op;
// a different definition under an existing id fails with
// RULE_DUPLICATE_REGISTRATION.
func (r *Registry) Register(def rule.Rule) error {
	return r.RegisterAll(def)
}

// RegisterAll adds a batch of rules atomically: if any definition fails,
// none of the batch is registered.
func (r *Registry) RegisterAll(defs ...rule.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return apperrors.New(apperrors.CodeRegistrySealed, "registry is sealed")
	}

	pending := make(map[string]rule.Rule, len(defs))
	accepted := make([]rule.Rule, 0, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return apperrors.WrapWithMetadata(apperrors.CodeRuleDefinitionInvalid,
				err.Error(), map[string]string{"RuleID": def.ID}, err)
		}
		existing, ok := r.rules[def.ID]
		if !ok {
			existing, ok = pending[def.ID]
		}
		if ok {
			if reflect.DeepEqual(existing, def) {
				continue
			}
			return duplicate(def.ID)
		}
		def = def.Clone()
		pending[def.ID] = def
		accepted = append(accepted, def)
	}

	for _, def := range accepted {
		r.rules[def.ID] = def
		if _, known := r.byGame[def.BaseGame]; !known {
			r.games = append(r.games, def.BaseGame)
		}
		r.byGame[def.BaseGame] = append(r.byGame[def.BaseGame], def.ID)
	}
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Rule returns the rule registered under id.
func (r *Registry) Rule(id string) (rule.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.rules[id]
	if !ok {
		return rule.Rule{}, false
	}
	return def.Clone(), true
}

// RulesForGame returns the rules of baseGame in registration order.
// An unknown game yields an empty list.
func (r *Registry) RulesForGame(baseGame string) []rule.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byGame[baseGame]
	out := make([]rule.Rule, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.rules[id].Clone())
	}
	return out
}

// BelongsTo reports whether id is a rule of baseGame.
func (r *Registry) BelongsTo(id, baseGame string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.rules[id]
	return ok && def.BaseGame == baseGame
}

// HasGame reports whether any rule is registered for baseGame.
func (r *Registry) HasGame(baseGame string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byGame[baseGame]
	return ok
}

// Games lists base games in the order their first rule was registered.
func (r *Registry) Games() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.games...)
}

// CheckReferences verifies every conflicts and requires entry names a rule
// of the same base game.
func (r *Registry) CheckReferences() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, game := range r.games {
		for _, id := range r.byGame[game] {
			def := r.rules[id]
			for _, ref := range append(append([]string(nil), def.Conflicts...), def.Requires...) {
				target, ok := r.rules[ref]
				if !ok || target.BaseGame != def.BaseGame {
					return apperrors.WithMetadata(apperrors.CodeRuleCatalogReferenceBroken,
						fmt.Sprintf("rule %s references %s outside %s", id, ref, def.BaseGame),
						map[string]string{"RuleID": id, "Reference": ref})
				}
			}
		}
	}
	return nil
}

func duplicate(id string) error {
	return apperrors.WithMetadata(apperrors.CodeRuleDuplicateRegistration,
		fmt.Sprintf("rule %s is already registered with a different definition", id),
		map[string]string{"RuleID": id})
}
