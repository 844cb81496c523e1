package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"unicode/utf8"
)

// Type is the kind of a rule parameter.
type Type string

const (
	TypeBoolean Type = "boolean"
	TypeNumber  Type = "number"
	TypeSelect  Type = "select"
	TypeColor   Type = "color"
	TypeText    Type = "text"
)

// Valid reports whether t is a known parameter type.
func (t Type) Valid() bool {
	switch t {
	case TypeBoolean, TypeNumber, TypeSelect, TypeColor, TypeText:
		return true
	default:
		return false
	}
}

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Parameter is a named, typed, constrained value owned by a rule.
type Parameter struct {
	Key          string
	Name         string
	Description  string
	Type         Type
	DefaultValue Value
	Constraints  Constraints
}

// Coerce checks value against the parameter and returns what should be
// stored. Numbers outside the declared bounds are clamped to the nearest one.
func (p Parameter) Coerce(value Value) (Value, error) {
	switch p.Type {
	case TypeBoolean:
		if _, ok := value.BoolValue(); !ok {
			return Value{}, p.typeError(value)
		}
		return value, nil
	case TypeNumber:
		n, ok := value.NumberValue()
		if !ok {
			return Value{}, p.typeError(value)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Value{}, fmt.Errorf("%w: %s must be finite", ErrValueInvalid, p.Key)
		}
		if c, ok := p.Constraints.(NumberConstraints); ok {
			n = c.Clamp(n)
		}
		return Number(n), nil
	case TypeSelect:
		s, ok := value.StringValue()
		if !ok {
			return Value{}, p.typeError(value)
		}
		if c, ok := p.Constraints.(SelectConstraints); ok && !c.Allows(s) {
			return Value{}, fmt.Errorf("%w: %q is not an option of %s", ErrValueInvalid, s, p.Key)
		}
		return value, nil
	case TypeColor:
		s, ok := value.StringValue()
		if !ok {
			return Value{}, p.typeError(value)
		}
		if !colorPattern.MatchString(s) {
			return Value{}, fmt.Errorf("%w: %q is not a #rgb or #rrggbb color", ErrValueInvalid, s)
		}
		return value, nil
	case TypeText:
		s, ok := value.StringValue()
		if !ok {
			return Value{}, p.typeError(value)
		}
		if c, ok := p.Constraints.(TextConstraints); ok && c.MaxLength > 0 && utf8.RuneCountInString(s) > c.MaxLength {
			return Value{}, fmt.Errorf("%w: %s exceeds %d characters", ErrValueInvalid, p.Key, c.MaxLength)
		}
		return value, nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrTypeUnknown, p.Type)
	}
}

func (p Parameter) typeError(value Value) error {
	return fmt.Errorf("%w: %s expects %s, got %s", ErrValueInvalid, p.Key, p.Type, value.Kind())
}

func (p Parameter) validate() error {
	if p.Key == "" {
		return fmt.Errorf("parameter key is required")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("parameter %s: %w: %q", p.Key, ErrTypeUnknown, p.Type)
	}
	if p.Constraints != nil {
		if !p.Constraints.appliesTo(p.Type) {
			return fmt.Errorf("parameter %s: constraints %T do not apply to %s", p.Key, p.Constraints, p.Type)
		}
		if err := p.Constraints.validate(); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Key, err)
		}
	}
	if p.Type == TypeSelect && p.Constraints == nil {
		return fmt.Errorf("parameter %s: select requires options", p.Key)
	}
	coerced, err := p.Coerce(p.DefaultValue)
	if err != nil {
		return fmt.Errorf("parameter %s default: %w", p.Key, err)
	}
	if !coerced.Equal(p.DefaultValue) {
		return fmt.Errorf("parameter %s: default %s is outside its bounds", p.Key, p.DefaultValue)
	}
	return nil
}

type parameterJSON struct {
	Key          string          `json:"key"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         Type            `json:"type"`
	DefaultValue Value           `json:"defaultValue"`
	Constraints  json.RawMessage `json:"constraints,omitempty"`
}

// MarshalJSON encodes the constraints payload under "constraints".
func (p Parameter) MarshalJSON() ([]byte, error) {
	wire := parameterJSON{
		Key:          p.Key,
		Name:         p.Name,
		Description:  p.Description,
		Type:         p.Type,
		DefaultValue: p.DefaultValue,
	}
	if p.Constraints != nil {
		raw, err := json.Marshal(p.Constraints)
		if err != nil {
			return nil, err
		}
		wire.Constraints = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes constraints according to the parameter type.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var wire parameterJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	constraints, err := decodeConstraints(wire.Type, wire.Constraints)
	if err != nil {
		return fmt.Errorf("parameter %s: %w", wire.Key, err)
	}
	*p = Parameter{
		Key:          wire.Key,
		Name:         wire.Name,
		Description:  wire.Description,
		Type:         wire.Type,
		DefaultValue: wire.DefaultValue,
		Constraints:  constraints,
	}
	return nil
}
