package domain

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/ruleforge/internal/platform/id"
	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
)

// ResourceUpdateNotifier tells subscribed MCP clients that uri changed.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// CallMeta holds the identifiers that tie a tool call to the rules calls it
// makes.
type CallMeta struct {
	RequestID    string
	InvocationID string
}

// withCallMeta tags ctx with a fresh request id and the invocation id, if any.
func withCallMeta(ctx context.Context, invocationID string) (context.Context, CallMeta, error) {
	requestID, err := id.NewID()
	if err != nil {
		return nil, CallMeta{}, err
	}
	pairs := []string{grpcmeta.RequestIDHeader, requestID}
	if invocationID != "" {
		pairs = append(pairs, grpcmeta.InvocationIDHeader, invocationID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...), CallMeta{RequestID: requestID, InvocationID: invocationID}, nil
}

// resolve returns m with any identifier the server echoed in header.
func (m CallMeta) resolve(header metadata.MD) CallMeta {
	if v := grpcmeta.FirstMetadataValue(header, grpcmeta.RequestIDHeader); v != "" {
		m.RequestID = v
	}
	if v := grpcmeta.FirstMetadataValue(header, grpcmeta.InvocationIDHeader); v != "" {
		m.InvocationID = v
	}
	return m
}

// Result returns a tool result whose _meta carries m.
func (m CallMeta) Result() *mcp.CallToolResult {
	meta := map[string]any{grpcmeta.RequestIDHeader: m.RequestID}
	if m.InvocationID != "" {
		meta[grpcmeta.InvocationIDHeader] = m.InvocationID
	}
	return &mcp.CallToolResult{Meta: meta}
}

func notifyAll(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) != "" {
			notify(ctx, uri)
		}
	}
}
