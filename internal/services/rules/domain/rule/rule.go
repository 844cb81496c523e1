// Package rule defines game rules and their typed parameters.
package rule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TagDefault marks rules that new configurations activate.
const TagDefault = "default"

var (
	// ErrInvalid indicates a malformed rule definition.
	ErrInvalid = errors.New("invalid rule definition")
	// ErrTypeUnknown indicates an unsupported parameter type.
	ErrTypeUnknown = errors.New("unknown parameter type")
	// ErrValueInvalid indicates a value rejected by its parameter.
	ErrValueInvalid = errors.New("invalid parameter value")
	// ErrValueUnsupported indicates a value that is not a boolean, number, or string.
	ErrValueUnsupported = errors.New("unsupported parameter value")
)

// Rule is a unit of optional, parameterized behavior scoped to one base game.
type Rule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	BaseGame    string      `json:"baseGame"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	// Conflicts lists rules that must not be active alongside this one.
	Conflicts []string `json:"conflicts,omitempty"`
	// Requires lists rules that must be active whenever this one is.
	Requires []string `json:"requires,omitempty"`
}

// Parameter returns the parameter declared under key.
func (r Rule) Parameter(key string) (Parameter, bool) {
	for _, p := range r.Parameters {
		if p.Key == key {
			return p, true
		}
	}
	return Parameter{}, false
}

// HasTag reports whether the rule carries tag.
func (r Rule) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// IsDefault reports whether new configurations activate the rule.
func (r Rule) IsDefault() bool {
	return r.HasTag(TagDefault)
}

// Defaults returns the declared default value of every parameter.
func (r Rule) Defaults() map[string]Value {
	out := make(map[string]Value, len(r.Parameters))
	for _, p := range r.Parameters {
		out[p.Key] = p.DefaultValue
	}
	return out
}

// Clone returns a deep copy so callers cannot reach registry-owned slices or
// constraint bounds.
func (r Rule) Clone() Rule {
	out := r
	out.Parameters = make([]Parameter, len(r.Parameters))
	for i, p := range r.Parameters {
		out.Parameters[i] = p
		out.Parameters[i].Constraints = cloneConstraints(p.Constraints)
	}
	if r.Parameters == nil {
		out.Parameters = nil
	}
	out.Tags = slices.Clone(r.Tags)
	out.Conflicts = slices.Clone(r.Conflicts)
	out.Requires = slices.Clone(r.Requires)
	return out
}

// Validate checks the definition is well formed.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if strings.TrimSpace(r.BaseGame) == "" {
		return fmt.Errorf("%w: %s: base game is required", ErrInvalid, r.ID)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: %s: name is required", ErrInvalid, r.ID)
	}
	keys := make(map[string]struct{}, len(r.Parameters))
	for _, p := range r.Parameters {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, r.ID, err)
		}
		if _, dup := keys[p.Key]; dup {
			return fmt.Errorf("%w: %s: duplicate parameter key %q", ErrInvalid, r.ID, p.Key)
		}
		keys[p.Key] = struct{}{}
	}
	for _, ref := range [][]string{r.Conflicts, r.Requires} {
		seen := make(map[string]struct{}, len(ref))
		for _, id := range ref {
			if id == r.ID {
				return fmt.Errorf("%w: %s references itself", ErrInvalid, r.ID)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s lists %s twice", ErrInvalid, r.ID, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}
