package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	"github.com/louisbranch/ruleforge/internal/platform/timeouts"
	rulesservice "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/rules"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// ListGamesInput represents the MCP tool input for listing base games.
type ListGamesInput struct{}

// ListGamesResult represents the MCP tool output for listing base games.
type ListGamesResult struct {
	Games []string `json:"games" jsonschema:"base games with registered rules"`
}

// ListRulesInput represents the MCP tool input for listing rules.
type ListRulesInput struct {
	BaseGame  string `json:"base_game,omitempty" jsonschema:"optional base game to list"`
	Filter    string `json:"filter,omitempty" jsonschema:"optional AIP-160 filter over id, name, category, base_game, tag, parameter_count"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum rules per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// ListRulesResult represents the MCP tool output for listing rules.
type ListRulesResult struct {
	Rules         []RuleEntry `json:"rules" jsonschema:"matching rules"`
	NextPageToken string      `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
	TotalSize     int         `json:"total_size" jsonschema:"number of matching rules"`
}

// GetRuleInput represents the MCP tool input for reading a rule.
type GetRuleInput struct {
	RuleID string `json:"rule_id" jsonschema:"rule identifier"`
}

// RuleEntry is a rule definition in tool output.
type RuleEntry struct {
	ID          string           `json:"id" jsonschema:"rule identifier"`
	Name        string           `json:"name" jsonschema:"display name"`
	Description string           `json:"description,omitempty" jsonschema:"description"`
	Category    string           `json:"category,omitempty" jsonschema:"category"`
	BaseGame    string           `json:"base_game" jsonschema:"base game"`
	Tags        []string         `json:"tags" jsonschema:"tags; default marks rules active in new configurations"`
	Conflicts   []string         `json:"conflicts" jsonschema:"rules that must not be active together with this one"`
	Requires    []string         `json:"requires" jsonschema:"rules this one depends on"`
	Parameters  []ParameterEntry `json:"parameters" jsonschema:"tunable parameters"`
}

// ParameterEntry is a rule parameter in tool output.
type ParameterEntry struct {
	Key          string         `json:"key" jsonschema:"parameter key"`
	Name         string         `json:"name" jsonschema:"display name"`
	Description  string         `json:"description,omitempty" jsonschema:"description"`
	Type         string         `json:"type" jsonschema:"boolean, number, select, color, or text"`
	DefaultValue any            `json:"default_value" jsonschema:"default value"`
	Constraints  map[string]any `json:"constraints,omitempty" jsonschema:"type specific bounds"`
}

// ListGamesTool defines the MCP tool schema for listing base games.
func ListGamesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_games",
		Description: "Lists the base games that have registered rules",
	}
}

// ListRulesTool defines the MCP tool schema for listing rules.
func ListRulesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_rules",
		Description: "Lists rule definitions, optionally by base game and filter expression",
	}
}

// GetRuleTool defines the MCP tool schema for reading a rule.
func GetRuleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_rule",
		Description: "Returns one rule definition with its parameters",
	}
}

// ListGamesHandler executes a list games request.
func ListGamesHandler(client RulesClient) mcp.ToolHandlerFor[ListGamesInput, ListGamesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListGamesInput) (*mcp.CallToolResult, ListGamesResult, error) {
		callContext, err := newToolInvocationContext(ctx, nil)
		if err != nil {
			return nil, ListGamesResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, ListGamesResult{}, err
		}
		games, err := client.ListGames(callCtx, grpc.Header(header))
		if err != nil {
			return nil, ListGamesResult{}, toolError("list games", err)
		}
		return callMeta.resolve(*header).Result(), ListGamesResult{Games: append([]string{}, games...)}, nil
	}
}

// ListRulesHandler executes a list rules request.
func ListRulesHandler(client RulesClient) mcp.ToolHandlerFor[ListRulesInput, ListRulesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListRulesInput) (*mcp.CallToolResult, ListRulesResult, error) {
		callContext, err := newToolInvocationContext(ctx, nil)
		if err != nil {
			return nil, ListRulesResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		if input.PageSize < 0 {
			return nil, ListRulesResult{}, fmt.Errorf("page_size must not be negative")
		}
		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, ListRulesResult{}, err
		}
		resp, err := client.ListRules(callCtx, rulesservice.ListRulesRequest{
			BaseGame:  strings.TrimSpace(input.BaseGame),
			Filter:    input.Filter,
			PageSize:  int32(input.PageSize),
			PageToken: input.PageToken,
		}, grpc.Header(header))
		if err != nil {
			return nil, ListRulesResult{}, toolError("list rules", err)
		}

		result := ListRulesResult{
			Rules:         make([]RuleEntry, 0, len(resp.Rules)),
			NextPageToken: resp.NextPageToken,
			TotalSize:     resp.TotalSize,
		}
		for _, def := range resp.Rules {
			result.Rules = append(result.Rules, ruleEntry(def))
		}
		return callMeta.resolve(*header).Result(), result, nil
	}
}

// GetRuleHandler executes a get rule request.
func GetRuleHandler(client RulesClient) mcp.ToolHandlerFor[GetRuleInput, RuleEntry] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetRuleInput) (*mcp.CallToolResult, RuleEntry, error) {
		callContext, err := newToolInvocationContext(ctx, nil)
		if err != nil {
			return nil, RuleEntry{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		ruleID := strings.TrimSpace(input.RuleID)
		if ruleID == "" {
			return nil, RuleEntry{}, fmt.Errorf("rule_id is required")
		}
		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, RuleEntry{}, err
		}
		def, err := client.GetRule(callCtx, ruleID, grpc.Header(header))
		if err != nil {
			return nil, RuleEntry{}, toolError("get rule", err)
		}
		return callMeta.resolve(*header).Result(), ruleEntry(def), nil
	}
}

// RuleCatalogResourceTemplate defines the readable per-game rule catalog.
func RuleCatalogResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "rule_catalog",
		Title:       "Rule Catalog",
		Description: "Readable rule definitions of one base game. URI format: rules://{base_game}",
		MIMEType:    "application/json",
		URITemplate: "rules://{base_game}",
	}
}

// RuleCatalogResourceHandler returns the rules of one base game.
func RuleCatalogResourceHandler(client RulesClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("rules client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("base game is required; use URI format rules://{base_game}")
		}
		uri := req.Params.URI
		baseGame := strings.TrimSpace(strings.TrimPrefix(uri, "rules://"))
		if !strings.HasPrefix(uri, "rules://") || baseGame == "" {
			return nil, fmt.Errorf("invalid URI %q: use rules://{base_game}", uri)
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
		defer cancel()
		callCtx, _, err := withCallMeta(runCtx, "")
		if err != nil {
			return nil, fmt.Errorf("create request metadata: %w", err)
		}

		payload := ListRulesResult{Rules: []RuleEntry{}}
		pageToken := ""
		for {
			resp, err := client.ListRules(callCtx, rulesservice.ListRulesRequest{BaseGame: baseGame, PageToken: pageToken})
			if err != nil {
				if notFound(err) {
					return nil, mcp.ResourceNotFoundError(uri)
				}
				return nil, toolError("list rules", err)
			}
			for _, def := range resp.Rules {
				payload.Rules = append(payload.Rules, ruleEntry(def))
			}
			payload.TotalSize = resp.TotalSize
			if resp.NextPageToken == "" {
				break
			}
			pageToken = resp.NextPageToken
		}
		if payload.TotalSize == 0 {
			return nil, mcp.ResourceNotFoundError(uri)
		}

		contents, err := marshalResource(uri, payload)
		if err != nil {
			return nil, fmt.Errorf("marshal rule catalog: %w", err)
		}
		return &mcp.ReadResourceResult{Contents: contents}, nil
	}
}

func ruleEntry(def rule.Rule) RuleEntry {
	entry := RuleEntry{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		BaseGame:    def.BaseGame,
		Tags:        append([]string{}, def.Tags...),
		Conflicts:   append([]string{}, def.Conflicts...),
		Requires:    append([]string{}, def.Requires...),
		Parameters:  make([]ParameterEntry, 0, len(def.Parameters)),
	}
	for _, param := range def.Parameters {
		entry.Parameters = append(entry.Parameters, ParameterEntry{
			Key:          param.Key,
			Name:         param.Name,
			Description:  param.Description,
			Type:         string(param.Type),
			DefaultValue: param.DefaultValue.Any(),
			Constraints:  constraintsMap(param),
		})
	}
	return entry
}

// constraintsMap reads the constraints object from the parameter wire form.
func constraintsMap(param rule.Parameter) map[string]any {
	data, err := json.Marshal(param)
	if err != nil {
		return nil
	}
	var wire struct {
		Constraints map[string]any `json:"constraints"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil
	}
	return wire.Constraints
}
