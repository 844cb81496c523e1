package rule

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Constraints restricts the values a parameter accepts. The concrete type
// depends on the parameter type: NumberConstraints for numbers,
// SelectConstraints for selects, TextConstraints for text.
type Constraints interface {
	appliesTo(Type) bool
	validate() error
}

// NumberConstraints bounds a number parameter.
type NumberConstraints struct {
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
}

func (NumberConstraints) appliesTo(t Type) bool { return t == TypeNumber }

func (c NumberConstraints) validate() error {
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("min %g exceeds max %g", *c.Min, *c.Max)
	}
	if c.Step != nil && *c.Step <= 0 {
		return fmt.Errorf("step must be positive")
	}
	return nil
}

// Clamp returns n limited to [Min, Max].
func (c NumberConstraints) Clamp(n float64) float64 {
	if c.Min != nil && n < *c.Min {
		return *c.Min
	}
	if c.Max != nil && n > *c.Max {
		return *c.Max
	}
	return n
}

// SelectConstraints lists the options of a select parameter.
type SelectConstraints struct {
	Options []string `json:"options"`
}

func (SelectConstraints) appliesTo(t Type) bool { return t == TypeSelect }

func (c SelectConstraints) validate() error {
	if len(c.Options) == 0 {
		return fmt.Errorf("select requires at least one option")
	}
	seen := make(map[string]struct{}, len(c.Options))
	for _, option := range c.Options {
		if _, ok := seen[option]; ok {
			return fmt.Errorf("duplicate option %q", option)
		}
		seen[option] = struct{}{}
	}
	return nil
}

// Allows reports whether option is declared.
func (c SelectConstraints) Allows(option string) bool {
	return slices.Contains(c.Options, option)
}

// TextConstraints limits a text parameter. Zero MaxLength means unbounded.
type TextConstraints struct {
	MaxLength int `json:"maxLength,omitempty"`
}

func (TextConstraints) appliesTo(t Type) bool { return t == TypeText }

func (c TextConstraints) validate() error {
	if c.MaxLength < 0 {
		return fmt.Errorf("maxLength must not be negative")
	}
	return nil
}

func (c NumberConstraints) clone() NumberConstraints {
	return NumberConstraints{Min: cloneFloat(c.Min), Max: cloneFloat(c.Max), Step: cloneFloat(c.Step)}
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// cloneConstraints copies the variants that hold references. TextConstraints
// is a plain value.
func cloneConstraints(c Constraints) Constraints {
	switch c := c.(type) {
	case NumberConstraints:
		return c.clone()
	case SelectConstraints:
		return SelectConstraints{Options: slices.Clone(c.Options)}
	default:
		return c
	}
}

// NumberRange builds NumberConstraints from explicit bounds.
func NumberRange(minValue, maxValue, step float64) NumberConstraints {
	return NumberConstraints{Min: &minValue, Max: &maxValue, Step: &step}
}

func decodeConstraints(t Type, data json.RawMessage) (Constraints, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	switch t {
	case TypeNumber:
		var c NumberConstraints
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeSelect:
		var c SelectConstraints
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeText:
		var c TextConstraints
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeBoolean, TypeColor:
		return nil, fmt.Errorf("%s parameters take no constraints", t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrTypeUnknown, t)
	}
}
