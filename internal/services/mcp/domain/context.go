package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// Context is the configuration an MCP session is currently editing.
type Context struct {
	GameID string
}

// SetContextInput represents the MCP tool input for setting context.
type SetContextInput struct {
	GameID string `json:"game_id" jsonschema:"configuration identifier to edit in subsequent calls"`
}

// SetContextResult represents the MCP tool output for setting context.
type SetContextResult struct {
	Context struct {
		GameID   string `json:"game_id" jsonschema:"configuration identifier"`
		BaseGame string `json:"base_game" jsonschema:"base game of the configuration"`
	} `json:"context" jsonschema:"current context"`
}

// SetContextTool defines the MCP tool schema for setting context.
func SetContextTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_context",
		Description: "Sets the configuration (game_id) that later tool calls default to",
	}
}

// SetContextHandler checks the configuration exists and stores it as the
// session context.
func SetContextHandler(client RulesClient, setContext func(Context), notify ResourceUpdateNotifier) mcp.ToolHandlerFor[SetContextInput, SetContextResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetContextInput) (*mcp.CallToolResult, SetContextResult, error) {
		callContext, err := newToolInvocationContext(ctx, nil)
		if err != nil {
			return nil, SetContextResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		gameID := strings.TrimSpace(input.GameID)
		if gameID == "" {
			return nil, SetContextResult{}, fmt.Errorf("game_id is required")
		}

		callCtx, callMeta, header, err := callContext.outgoing()
		if err != nil {
			return nil, SetContextResult{}, err
		}
		snap, err := client.GetConfiguration(callCtx, gameID, grpc.Header(header))
		if err != nil {
			if notFound(err) {
				return nil, SetContextResult{}, fmt.Errorf("configuration %s not found", gameID)
			}
			return nil, SetContextResult{}, toolError("validate configuration", err)
		}

		setContext(Context{GameID: snap.GameID})
		notifyAll(ctx, notify, ContextResource().URI)

		result := SetContextResult{}
		result.Context.GameID = snap.GameID
		result.Context.BaseGame = snap.BaseGame
		return callMeta.resolve(*header).Result(), result, nil
	}
}

// ContextResourcePayload represents the MCP resource payload for the current context.
type ContextResourcePayload struct {
	Context struct {
		GameID *string `json:"game_id"`
	} `json:"context"`
}

// ContextResource defines the MCP resource for the current context.
func ContextResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "context_current",
		Title:       "Current Context",
		Description: "Readable current MCP context (game_id)",
		MIMEType:    "application/json",
		URI:         "context://current",
	}
}

// ContextResourceHandler returns a readable current context resource.
func ContextResourceHandler(getContext func() Context) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if getContext == nil {
			return nil, fmt.Errorf("context getter function is not configured")
		}
		uri := ContextResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" && req.Params.URI != uri {
			return nil, fmt.Errorf("invalid URI: expected %s, got %q", uri, req.Params.URI)
		}

		payload := ContextResourcePayload{}
		if current := getContext(); current.GameID != "" {
			payload.Context.GameID = &current.GameID
		}
		contents, err := marshalResource(uri, payload)
		if err != nil {
			return nil, fmt.Errorf("marshal context: %w", err)
		}
		return &mcp.ReadResourceResult{Contents: contents}, nil
	}
}
