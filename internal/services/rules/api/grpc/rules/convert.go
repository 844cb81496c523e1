package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// Request and response field names.
const (
	fieldGameID        = "game_id"
	fieldBaseGame      = "base_game"
	fieldName          = "name"
	fieldDescription   = "description"
	fieldRuleID        = "rule_id"
	fieldKey           = "key"
	fieldValue         = "value"
	fieldFound         = "found"
	fieldFilter        = "filter"
	fieldPageSize      = "page_size"
	fieldPageToken     = "page_token"
	fieldNextPageToken = "next_page_token"
	fieldTotalSize     = "total_size"
	fieldConfiguration = "configuration"
	fieldRule          = "rule"
	fieldRules         = "rules"
	fieldGames         = "games"
	fieldValidation    = "validation"
	fieldFilename      = "filename"
	fieldData          = "data"
	fieldRecord        = "record"
	fieldDisposed      = "disposed"
	fieldSchema        = "schema"
)

// encodeJSON converts any JSON-encodable value into a structpb value.
func encodeJSON(v any) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := new(structpb.Value)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// decodeJSON fills target from a structpb value.
func decodeJSON(v *structpb.Value, target any) error {
	if v == nil {
		return fmt.Errorf("decode response: missing value")
	}
	data, err := protojson.Marshal(v)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// response builds a Struct from field values. Values may be plain Go
// scalars or anything JSON-encodable.
func response(fields map[string]any) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for key, value := range fields {
		var (
			encoded *structpb.Value
			err     error
		)
		switch v := value.(type) {
		case string:
			encoded = structpb.NewStringValue(v)
		case bool:
			encoded = structpb.NewBoolValue(v)
		case int:
			encoded = structpb.NewNumberValue(float64(v))
		default:
			encoded, err = encodeJSON(v)
		}
		if err != nil {
			return nil, err
		}
		out.Fields[key] = encoded
	}
	return out, nil
}

func stringField(in *structpb.Struct, key string) string {
	v, ok := in.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func requiredString(in *structpb.Struct, key string) (string, error) {
	value := stringField(in, key)
	if value == "" {
		return "", apperrors.WithMetadata(apperrors.CodeArgumentMissing,
			fmt.Sprintf("%s is required", key), map[string]string{"Field": key})
	}
	return value, nil
}

// int32Field truncates a numeric field into [0, math.MaxInt32]. NaN reads as 0.
func int32Field(in *structpb.Struct, key string) int32 {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0
	}
	n := math.Trunc(v.GetNumberValue())
	switch {
	case math.IsNaN(n), n <= 0:
		return 0
	case n >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(n)
	}
}

// valueField decodes a parameter value. Null and composite values are rejected.
func valueField(in *structpb.Struct, key string) (rule.Value, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return rule.Value{}, apperrors.WithMetadata(apperrors.CodeArgumentMissing,
			fmt.Sprintf("%s is required", key), map[string]string{"Field": key})
	}
	value, err := rule.FromAny(v.AsInterface())
	if err != nil {
		return rule.Value{}, apperrors.WrapWithMetadata(apperrors.CodeRuleParameterInvalid,
			fmt.Sprintf("decode %s: %v", key, err), map[string]string{"Key": stringField(in, fieldKey)}, err)
	}
	return value, nil
}

func structField(in *structpb.Struct, key string) (*structpb.Value, bool) {
	v, ok := in.GetFields()[key]
	return v, ok
}
