// Package record converts configurations to and from the portable record
// users download and share.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/invopop/jsonschema"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// SchemaVersion is the record layout written by Encode.
const SchemaVersion = 1

// FileExtension is appended to download filenames.
const FileExtension = ".rules.json"

// Record is the exchanged form of a configuration.
type Record struct {
	SchemaVersion      int                              `json:"schemaVersion" jsonschema:"required,minimum=1,description=Record layout version. Missing means 1."`
	GameID             string                           `json:"gameId" jsonschema:"description=Id of the exported configuration. Never reused on import."`
	BaseGame           string                           `json:"baseGame" jsonschema:"required,description=Base game the rules belong to."`
	Name               string                           `json:"name" jsonschema:"required,description=Configuration name."`
	Description        string                           `json:"description" jsonschema:"description=Free-form description."`
	ActiveRules        []string                         `json:"activeRules" jsonschema:"required,description=Ids of active rules sorted ascending."`
	ParameterOverrides map[string]map[string]rule.Value `json:"parameterOverrides" jsonschema:"required,description=Parameter values keyed by rule id then parameter key."`
}

// FromConfiguration builds the record of c.
func FromConfiguration(c configuration.Configuration) Record {
	active := slices.Clone(c.ActiveRules)
	slices.Sort(active)
	overrides := make(map[string]map[string]rule.Value, len(c.ParameterOverrides))
	for ruleID, params := range c.ParameterOverrides.Clone() {
		overrides[ruleID] = params
	}
	return Record{
		SchemaVersion:      SchemaVersion,
		GameID:             c.GameID,
		BaseGame:           c.BaseGame,
		Name:               c.Name,
		Description:        c.Description,
		ActiveRules:        active,
		ParameterOverrides: overrides,
	}
}

// Draft returns the store input described by r.
func (r Record) Draft() configuration.Draft {
	return configuration.Draft{
		BaseGame:           r.BaseGame,
		Name:               r.Name,
		Description:        r.Description,
		ActiveRules:        slices.Clone(r.ActiveRules),
		ParameterOverrides: configuration.Overrides(r.ParameterOverrides).Clone(),
	}
}

// Encode writes the canonical text of r: indented JSON with map keys and
// active rules sorted, ending in a newline. Equal records encode to equal bytes.
func Encode(r Record) ([]byte, error) {
	r.ActiveRules = slices.Clone(r.ActiveRules)
	slices.Sort(r.ActiveRules)
	if r.ActiveRules == nil {
		r.ActiveRules = []string{}
	}
	if r.ParameterOverrides == nil {
		r.ParameterOverrides = map[string]map[string]rule.Value{}
	}
	if r.SchemaVersion == 0 {
		r.SchemaVersion = SchemaVersion
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a record. Malformed input fails with RECORD_MALFORMED and
// records from a newer layout with RECORD_UNSUPPORTED_VERSION.
func Decode(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, malformed("record is empty", nil)
	}
	var raw struct {
		Record
		SchemaVersion *int `json:"schemaVersion"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return Record{}, malformed("record is not valid JSON", err)
	}
	if dec.More() {
		return Record{}, malformed("record has trailing data", nil)
	}

	r := raw.Record
	switch {
	case raw.SchemaVersion == nil:
		r.SchemaVersion = SchemaVersion
	case *raw.SchemaVersion < 1:
		return Record{}, malformed(fmt.Sprintf("schema version %d is invalid", *raw.SchemaVersion), nil)
	case *raw.SchemaVersion > SchemaVersion:
		return Record{}, apperrors.WithMetadata(apperrors.CodeRecordUnsupportedVersion,
			fmt.Sprintf("schema version %d is newer than %d", *raw.SchemaVersion, SchemaVersion),
			map[string]string{"Version": fmt.Sprint(*raw.SchemaVersion)})
	default:
		r.SchemaVersion = *raw.SchemaVersion
	}

	if strings.TrimSpace(r.BaseGame) == "" {
		return Record{}, malformed("baseGame is required", nil)
	}
	for ruleID, params := range r.ParameterOverrides {
		if params == nil {
			return Record{}, malformed(fmt.Sprintf("overrides of %s must be an object", ruleID), nil)
		}
	}
	if r.ParameterOverrides == nil {
		r.ParameterOverrides = map[string]map[string]rule.Value{}
	}
	return r, nil
}

// Filename returns the download filename for a configuration named name.
func Filename(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "configuration"
	}
	return slug + FileExtension
}

// Schema returns the JSON Schema of Record.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(Record{}))
	schema.Version = jsonschema.Version
	schema.Title = "Ruleforge configuration record"
	schema.Description = "A portable game rule configuration."
	return schema
}

// SchemaJSON returns Schema as indented JSON with a trailing newline.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record schema: %w", err)
	}
	return append(data, '\n'), nil
}

func malformed(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeRecordMalformed, message, cause)
}
