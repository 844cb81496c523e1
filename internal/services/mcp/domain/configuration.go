package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/validation"
)

// ConfigurationCreateInput represents the MCP tool input for configuration creation.
type ConfigurationCreateInput struct {
	BaseGame    string `json:"base_game" jsonschema:"base game to configure (see list_games)"`
	Name        string `json:"name" jsonschema:"configuration name"`
	Description string `json:"description,omitempty" jsonschema:"optional description"`
}

// ConfigurationTargetInput selects a configuration, defaulting to context.
type ConfigurationTargetInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"configuration identifier (defaults to context)"`
}

// RuleToggleInput represents the MCP tool input for enabling or disabling a rule.
type RuleToggleInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"configuration identifier (defaults to context)"`
	RuleID string `json:"rule_id" jsonschema:"rule identifier"`
}

// RuleParameterSetInput represents the MCP tool input for setting a parameter.
type RuleParameterSetInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"configuration identifier (defaults to context)"`
	RuleID string `json:"rule_id" jsonschema:"active rule identifier"`
	Key    string `json:"key" jsonschema:"parameter key"`
	Value  any    `json:"value" jsonschema:"parameter value (number, boolean, or string)"`
}

// ConfigurationImportInput represents the MCP tool input for importing a record.
type ConfigurationImportInput struct {
	Data string `json:"data" jsonschema:"configuration record JSON as produced by configuration_export"`
}

// ConfigurationResult represents a configuration snapshot in tool output.
type ConfigurationResult struct {
	GameID             string                    `json:"game_id" jsonschema:"configuration identifier"`
	BaseGame           string                    `json:"base_game" jsonschema:"base game"`
	Name               string                    `json:"name" jsonschema:"configuration name"`
	Description        string                    `json:"description" jsonschema:"configuration description"`
	ActiveRules        []string                  `json:"active_rules" jsonschema:"active rule identifiers, sorted"`
	Parameters         map[string]map[string]any `json:"parameters" jsonschema:"effective parameter values of every active rule"`
	ParameterOverrides map[string]map[string]any `json:"parameter_overrides" jsonschema:"explicitly set parameter values"`
	Valid              bool                      `json:"valid" jsonschema:"whether the active rules are consistent"`
	Errors             []string                  `json:"errors" jsonschema:"consistency errors"`
	CreatedAt          string                    `json:"created_at" jsonschema:"RFC3339 timestamp when configuration was created"`
}

// ValidationIssue is one consistency problem in tool output.
type ValidationIssue struct {
	Kind    string `json:"kind" jsonschema:"conflict or missing_dependency"`
	RuleID  string `json:"rule_id" jsonschema:"rule that declared the relation"`
	OtherID string `json:"other_id" jsonschema:"conflicting or required rule"`
	Message string `json:"message" jsonschema:"human readable description"`
}

// ValidationResult represents the MCP tool output for validation.
type ValidationResult struct {
	GameID string            `json:"game_id" jsonschema:"configuration identifier"`
	Valid  bool              `json:"valid" jsonschema:"whether the active rules are consistent"`
	Errors []string          `json:"errors" jsonschema:"consistency errors"`
	Issues []ValidationIssue `json:"issues" jsonschema:"structured consistency problems"`
}

// ExportResult represents the MCP tool output for export.
type ExportResult struct {
	GameID   string `json:"game_id" jsonschema:"configuration identifier"`
	Filename string `json:"filename" jsonschema:"suggested download filename"`
	Data     string `json:"data" jsonschema:"configuration record JSON"`
}

func configurationResult(snap configuration.Snapshot) ConfigurationResult {
	result := ConfigurationResult{
		GameID:             snap.GameID,
		BaseGame:           snap.BaseGame,
		Name:               snap.Name,
		Description:        snap.Description,
		ActiveRules:        append([]string{}, snap.ActiveRules...),
		Parameters:         overridesToAny(snap.Values),
		ParameterOverrides: overridesToAny(snap.ParameterOverrides),
		Valid:              snap.Validation.Valid,
		Errors:             append([]string{}, snap.Validation.Errors...),
	}
	if !snap.CreatedAt.IsZero() {
		result.CreatedAt = snap.CreatedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func validationResult(gameID string, res validation.Result) ValidationResult {
	out := ValidationResult{
		GameID: gameID,
		Valid:  res.Valid,
		Errors: append([]string{}, res.Errors...),
		Issues: make([]ValidationIssue, 0, len(res.Issues)),
	}
	for _, issue := range res.Issues {
		out.Issues = append(out.Issues, ValidationIssue{
			Kind:    string(issue.Kind),
			RuleID:  issue.RuleID,
			OtherID: issue.OtherID,
			Message: issue.Message,
		})
	}
	return out
}

func overridesToAny(overrides configuration.Overrides) map[string]map[string]any {
	out := make(map[string]map[string]any, len(overrides))
	for ruleID, params := range overrides {
		values := make(map[string]any, len(params))
		for key, value := range params {
			values[key] = value.Any()
		}
		out[ruleID] = values
	}
	return out
}

// ConfigurationResourceURI returns the resource URI of a configuration.
func ConfigurationResourceURI(gameID string) string {
	return "configuration://" + gameID
}

// parseGameIDFromURI extracts the id from configuration://{game_id}.
func parseGameIDFromURI(uri string) (string, error) {
	const prefix = "configuration://"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("URI must start with %s", prefix)
	}
	gameID := strings.TrimSpace(strings.TrimPrefix(uri, prefix))
	if gameID == "" || strings.Contains(gameID, "/") {
		return "", fmt.Errorf("URI must be %s{game_id}", prefix)
	}
	return gameID, nil
}
