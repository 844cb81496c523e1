package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
)

// ValueKind is the scalar carried by a Value.
type ValueKind int

const (
	// KindUndefined is the zero Value.
	KindUndefined ValueKind = iota
	KindBool
	KindNumber
	KindString
)

// String returns the JSON-ish name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "undefined"
	}
}

// Value is a parameter value: a boolean, a number, or a string.
// The zero Value is undefined.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// FromAny converts a decoded JSON or structpb scalar into a Value.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrValueUnsupported, err)
		}
		return Number(n), nil
	case string:
		return String(v), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrValueUnsupported, raw)
	}
}

// Kind reports which scalar the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsDefined reports whether the value holds a scalar.
func (v Value) IsDefined() bool { return v.kind != KindUndefined }

// BoolValue returns the boolean and whether the value is a boolean.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// NumberValue returns the number and whether the value is a number.
func (v Value) NumberValue() (float64, bool) { return v.n, v.kind == KindNumber }

// StringValue returns the string and whether the value is a string.
func (v Value) StringValue() (string, bool) { return v.s, v.kind == KindString }

// Any returns the value as bool, float64, string, or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Equal reports whether both values hold the same scalar.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String formats the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return "undefined"
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.n) || math.IsInf(v.n, 0)) {
		return nil, fmt.Errorf("%w: non-finite number", ErrValueUnsupported)
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a JSON boolean, number, or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: null", ErrValueUnsupported)
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// JSONSchema describes the scalar encoding for schema reflection.
func (Value) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "A boolean, number, or string parameter value.",
		OneOf: []*jsonschema.Schema{
			{Type: "boolean"},
			{Type: "number"},
			{Type: "string"},
		},
	}
}
