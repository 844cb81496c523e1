package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/platform/id"
	"github.com/louisbranch/ruleforge/internal/platform/timeouts"
	rulesservice "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/rules"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/validation"
)

// RulesClient is the slice of the rules gRPC API the MCP tools call.
type RulesClient interface {
	ListGames(ctx context.Context, opts ...grpc.CallOption) ([]string, error)
	ListRules(ctx context.Context, req rulesservice.ListRulesRequest, opts ...grpc.CallOption) (rulesservice.ListRulesResponse, error)
	GetRule(ctx context.Context, ruleID string, opts ...grpc.CallOption) (rule.Rule, error)
	CreateConfiguration(ctx context.Context, baseGame, name, description string, opts ...grpc.CallOption) (configuration.Snapshot, error)
	GetConfiguration(ctx context.Context, gameID string, opts ...grpc.CallOption) (configuration.Snapshot, error)
	EnableRule(ctx context.Context, gameID, ruleID string, opts ...grpc.CallOption) (configuration.Snapshot, error)
	DisableRule(ctx context.Context, gameID, ruleID string, opts ...grpc.CallOption) (configuration.Snapshot, error)
	SetRuleParameter(ctx context.Context, gameID, ruleID, key string, value rule.Value, opts ...grpc.CallOption) (configuration.Snapshot, error)
	ValidateConfiguration(ctx context.Context, gameID string, opts ...grpc.CallOption) (validation.Result, error)
	ExportConfiguration(ctx context.Context, gameID string, opts ...grpc.CallOption) (rulesservice.Export, error)
	ImportConfiguration(ctx context.Context, data []byte, opts ...grpc.CallOption) (configuration.Snapshot, error)
}

var _ RulesClient = (*rulesservice.Client)(nil)

// toolInvocationContext bundles the per-call state every handler needs.
type toolInvocationContext struct {
	RunCtx       context.Context
	Cancel       context.CancelFunc
	InvocationID string
	MCPContext   Context
}

func newToolInvocationContext(ctx context.Context, getContext func() Context) (toolInvocationContext, error) {
	invocationID, err := id.NewID()
	if err != nil {
		return toolInvocationContext{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	var mcpCtx Context
	if getContext != nil {
		mcpCtx = getContext()
	}
	return toolInvocationContext{
		RunCtx:       runCtx,
		Cancel:       cancel,
		InvocationID: invocationID,
		MCPContext:   mcpCtx,
	}, nil
}

// outgoing prepares a gRPC call context and a header sink for the response.
func (c toolInvocationContext) outgoing() (context.Context, CallMeta, *metadata.MD, error) {
	callCtx, callMeta, err := withCallMeta(c.RunCtx, c.InvocationID)
	if err != nil {
		return nil, CallMeta{}, nil, fmt.Errorf("create request metadata: %w", err)
	}
	return callCtx, callMeta, new(metadata.MD), nil
}

// gameID resolves the target configuration from input or session context.
func (c toolInvocationContext) gameID(input string) (string, error) {
	gameID := strings.TrimSpace(input)
	if gameID == "" {
		gameID = c.MCPContext.GameID
	}
	if gameID == "" {
		return "", fmt.Errorf("game_id is required (or call set_context first)")
	}
	return gameID, nil
}

// toolError describes a failed rules call, preferring the localized message
// and domain code carried by the status.
func toolError(action string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	message := st.Message()
	for _, detail := range st.Details() {
		if localized, ok := detail.(*errdetails.LocalizedMessage); ok && localized.GetMessage() != "" {
			message = localized.GetMessage()
		}
	}
	if reason, ok := apperrors.ReasonFromStatus(err); ok {
		return fmt.Errorf("%s failed: %s: %s", action, reason, message)
	}
	return fmt.Errorf("%s failed: %s: %s", action, st.Code(), message)
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// marshalResource renders payload as an indented JSON resource body.
func marshalResource(uri string, payload any) ([]*mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}}, nil
}
