package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	"github.com/louisbranch/ruleforge/internal/platform/timeouts"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// ConfigurationCreateTool defines the MCP tool schema for creating a configuration.
func ConfigurationCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "configuration_create",
		Description: "Creates a rule configuration for a base game with its default rules active",
	}
}

// ConfigurationGetTool defines the MCP tool schema for reading a configuration.
func ConfigurationGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "configuration_get",
		Description: "Returns the active rules, effective parameter values, and validity of a configuration",
	}
}

// RuleEnableTool defines the MCP tool schema for enabling a rule.
func RuleEnableTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "rule_enable",
		Description: "Activates a rule in a configuration. Rules of other base games are ignored",
	}
}

// RuleDisableTool defines the MCP tool schema for disabling a rule.
func RuleDisableTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "rule_disable",
		Description: "Deactivates a rule in a configuration, keeping its parameter values",
	}
}

// RuleParameterSetTool defines the MCP tool schema for setting a parameter.
func RuleParameterSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "rule_parameter_set",
		Description: "Sets a parameter of an active rule. Numbers are clamped to the parameter range",
	}
}

// ConfigurationValidateTool defines the MCP tool schema for validation.
func ConfigurationValidateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "configuration_validate",
		Description: "Reports conflicting and missing required rules of a configuration",
	}
}

// ConfigurationExportTool defines the MCP tool schema for export.
func ConfigurationExportTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "configuration_export",
		Description: "Exports a configuration as a portable JSON record",
	}
}

// ConfigurationImportTool defines the MCP tool schema for import.
func ConfigurationImportTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "configuration_import",
		Description: "Imports a configuration record as a new configuration",
	}
}

type snapshotCall[I any] func(ctx context.Context, call toolInvocationContext, input I, opts ...grpc.CallOption) (configuration.Snapshot, error)

// snapshotHandler runs a rules call that answers with a configuration
// snapshot and notifies the configuration resource when mutating is set.
func snapshotHandler[I any](getContext func() Context, notify ResourceUpdateNotifier, mutating bool, run snapshotCall[I]) mcp.ToolHandlerFor[I, ConfigurationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input I) (*mcp.CallToolResult, ConfigurationResult, error) {
		callContext, err := newToolInvocationContext(ctx, getContext)
		if err != nil {
			return nil, ConfigurationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, ConfigurationResult{}, err
		}
		callContext.RunCtx = callCtx
		snap, err := run(callCtx, callContext, input, grpc.Header(header))
		if err != nil {
			return nil, ConfigurationResult{}, err
		}

		if mutating {
			notifyAll(ctx, notify, ConfigurationResourceURI(snap.GameID))
		}
		return callMeta.resolve(*header).Result(), configurationResult(snap), nil
	}
}

// ConfigurationCreateHandler executes a configuration create request.
func ConfigurationCreateHandler(client RulesClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ConfigurationCreateInput, ConfigurationResult] {
	return snapshotHandler(nil, notify, true,
		func(ctx context.Context, _ toolInvocationContext, input ConfigurationCreateInput, opts ...grpc.CallOption) (configuration.Snapshot, error) {
			baseGame := strings.TrimSpace(input.BaseGame)
			if baseGame == "" {
				return configuration.Snapshot{}, fmt.Errorf("base_game is required")
			}
			snap, err := client.CreateConfiguration(ctx, baseGame, input.Name, input.Description, opts...)
			if err != nil {
				return configuration.Snapshot{}, toolError("configuration create", err)
			}
			return snap, nil
		})
}

// ConfigurationGetHandler executes a configuration read request.
func ConfigurationGetHandler(client RulesClient, getContext func() Context) mcp.ToolHandlerFor[ConfigurationTargetInput, ConfigurationResult] {
	return snapshotHandler(getContext, nil, false,
		func(ctx context.Context, call toolInvocationContext, input ConfigurationTargetInput, opts ...grpc.CallOption) (configuration.Snapshot, error) {
			gameID, err := call.gameID(input.GameID)
			if err != nil {
				return configuration.Snapshot{}, err
			}
			snap, err := client.GetConfiguration(ctx, gameID, opts...)
			if err != nil {
				return configuration.Snapshot{}, toolError("configuration get", err)
			}
			return snap, nil
		})
}

// RuleEnableHandler executes a rule enable request.
func RuleEnableHandler(client RulesClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[RuleToggleInput, ConfigurationResult] {
	return snapshotHandler(getContext, notify, true,
		func(ctx context.Context, call toolInvocationContext, input RuleToggleInput, opts ...grpc.CallOption) (configuration.Snapshot, error) {
			gameID, ruleID, err := toggleTarget(call, input)
			if err != nil {
				return configuration.Snapshot{}, err
			}
			snap, err := client.EnableRule(ctx, gameID, ruleID, opts...)
			if err != nil {
				return configuration.Snapshot{}, toolError("rule enable", err)
			}
			return snap, nil
		})
}

// RuleDisableHandler executes a rule disable request.
func RuleDisableHandler(client RulesClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[RuleToggleInput, ConfigurationResult] {
	return snapshotHandler(getContext, notify, true,
		func(ctx context.Context, call toolInvocationContext, input RuleToggleInput, opts ...grpc.CallOption) (configuration.Snapshot, error) {
			gameID, ruleID, err := toggleTarget(call, input)
			if err != nil {
				return configuration.Snapshot{}, err
			}
			snap, err := client.DisableRule(ctx, gameID, ruleID, opts...)
			if err != nil {
				return configuration.Snapshot{}, toolError("rule disable", err)
			}
			return snap, nil
		})
}

// RuleParameterSetHandler executes a parameter set request.
func RuleParameterSetHandler(client RulesClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[RuleParameterSetInput, ConfigurationResult] {
	return snapshotHandler(getContext, notify, true,
		func(ctx context.Context, call toolInvocationContext, input RuleParameterSetInput, opts ...grpc.CallOption) (configuration.Snapshot, error) {
			gameID, ruleID, err := toggleTarget(call, RuleToggleInput{GameID: input.GameID, RuleID: input.RuleID})
			if err != nil {
				return configuration.Snapshot{}, err
			}
			key := strings.TrimSpace(input.Key)
			if key == "" {
				return configuration.Snapshot{}, fmt.Errorf("key is required")
			}
			value, err := rule.FromAny(input.Value)
			if err != nil {
				return configuration.Snapshot{}, fmt.Errorf("value: %w", err)
			}
			snap, err := client.SetRuleParameter(ctx, gameID, ruleID, key, value, opts...)
			if err != nil {
				return configuration.Snapshot{}, toolError("rule parameter set", err)
			}
			return snap, nil
		})
}

// ConfigurationImportHandler executes a configuration import request.
func ConfigurationImportHandler(client RulesClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ConfigurationImportInput, ConfigurationResult] {
	return snapshotHandler(nil, notify, true,
		func(ctx context.Context, _ toolInvocationContext, input ConfigurationImportInput, opts ...grpc.CallOption) (configuration.Snapshot, error) {
			if strings.TrimSpace(input.Data) == "" {
				return configuration.Snapshot{}, fmt.Errorf("data is required")
			}
			snap, err := client.ImportConfiguration(ctx, []byte(input.Data), opts...)
			if err != nil {
				return configuration.Snapshot{}, toolError("configuration import", err)
			}
			return snap, nil
		})
}

// ConfigurationValidateHandler executes a validation request.
func ConfigurationValidateHandler(client RulesClient, getContext func() Context) mcp.ToolHandlerFor[ConfigurationTargetInput, ValidationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ConfigurationTargetInput) (*mcp.CallToolResult, ValidationResult, error) {
		callContext, err := newToolInvocationContext(ctx, getContext)
		if err != nil {
			return nil, ValidationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		gameID, err := callContext.gameID(input.GameID)
		if err != nil {
			return nil, ValidationResult{}, err
		}
		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, ValidationResult{}, err
		}
		res, err := client.ValidateConfiguration(callCtx, gameID, grpc.Header(header))
		if err != nil {
			return nil, ValidationResult{}, toolError("configuration validate", err)
		}
		return callMeta.resolve(*header).Result(), validationResult(gameID, res), nil
	}
}

// ConfigurationExportHandler executes an export request.
func ConfigurationExportHandler(client RulesClient, getContext func() Context) mcp.ToolHandlerFor[ConfigurationTargetInput, ExportResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ConfigurationTargetInput) (*mcp.CallToolResult, ExportResult, error) {
		callContext, err := newToolInvocationContext(ctx, getContext)
		if err != nil {
			return nil, ExportResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		gameID, err := callContext.gameID(input.GameID)
		if err != nil {
			return nil, ExportResult{}, err
		}
		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, ExportResult{}, err
		}
		export, err := client.ExportConfiguration(callCtx, gameID, grpc.Header(header))
		if err != nil {
			return nil, ExportResult{}, toolError("configuration export", err)
		}
		return callMeta.resolve(*header).Result(), ExportResult{
			GameID:   gameID,
			Filename: export.Filename,
			Data:     string(export.Data),
		}, nil
	}
}

func toggleTarget(call toolInvocationContext, input RuleToggleInput) (string, string, error) {
	gameID, err := call.gameID(input.GameID)
	if err != nil {
		return "", "", err
	}
	ruleID := strings.TrimSpace(input.RuleID)
	if ruleID == "" {
		return "", "", fmt.Errorf("rule_id is required")
	}
	return gameID, ruleID, nil
}

// ConfigurationResourceTemplate defines the readable configuration resource.
func ConfigurationResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "configuration",
		Title:       "Configuration",
		Description: "Readable configuration snapshot. URI format: configuration://{game_id}",
		MIMEType:    "application/json",
		URITemplate: "configuration://{game_id}",
	}
}

// ConfigurationResourceHandler returns a readable configuration resource.
func ConfigurationResourceHandler(client RulesClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("rules client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("game ID is required; use URI format configuration://{game_id}")
		}
		uri := req.Params.URI
		gameID, err := parseGameIDFromURI(uri)
		if err != nil {
			return nil, fmt.Errorf("parse game ID from URI: %w", err)
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
		defer cancel()
		callCtx, _, err := withCallMeta(runCtx, "")
		if err != nil {
			return nil, fmt.Errorf("create request metadata: %w", err)
		}
		snap, err := client.GetConfiguration(callCtx, gameID)
		if err != nil {
			if notFound(err) {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			return nil, toolError("configuration get", err)
		}

		contents, err := marshalResource(uri, configurationResult(snap))
		if err != nil {
			return nil, fmt.Errorf("marshal configuration: %w", err)
		}
		return &mcp.ReadResourceResult{Contents: contents}, nil
	}
}
