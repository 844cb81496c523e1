// Package configuration owns per-session rule configurations: which rules are
// active and the parameter values chosen for them.
package configuration

import (
	"maps"
	"time"

	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/validation"
)

// Overrides maps rule id to parameter key to value.
type Overrides map[string]map[string]rule.Value

// Clone returns a deep copy.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for ruleID, params := range o {
		out[ruleID] = maps.Clone(params)
	}
	return out
}

// Configuration is a named set of active rules and parameter overrides bound
// to one base game.
type Configuration struct {
	GameID      string `json:"gameId"`
	BaseGame    string `json:"baseGame"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// ActiveRules is sorted by rule id.
	ActiveRules []string `json:"activeRules"`
	// ParameterOverrides holds overrides of active rules only.
	ParameterOverrides Overrides `json:"parameterOverrides"`
	CreatedAt          time.Time `json:"createdAt"`
}

// IsActive reports whether ruleID is active.
func (c Configuration) IsActive(ruleID string) bool {
	for _, id := range c.ActiveRules {
		if id == ruleID {
			return true
		}
	}
	return false
}

// Snapshot is the validated state of a configuration after a call.
type Snapshot struct {
	Configuration
	Validation validation.Result `json:"validation"`
	// Values maps each active rule to the effective value of every declared
	// parameter. Game loops read this each tick.
	Values Overrides `json:"values"`
}

// Draft describes a configuration to register from an external record.
type Draft struct {
	BaseGame           string
	Name               string
	Description        string
	ActiveRules        []string
	ParameterOverrides Overrides
}
