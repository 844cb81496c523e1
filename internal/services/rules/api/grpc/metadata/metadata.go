// Package metadata defines the request headers shared by rules service
// callers: correlation ids for logs and the caller locale for error messages.
package metadata

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/ruleforge/internal/platform/errors/i18n"
	"github.com/louisbranch/ruleforge/internal/platform/id"
)

// RequestIDHeader is the gRPC metadata key for request correlation IDs.
const RequestIDHeader = "x-ruleforge-request-id"

// InvocationIDHeader is the gRPC metadata key for MCP tool invocation IDs.
const InvocationIDHeader = "x-ruleforge-invocation-id"

// LocaleHeader carries an Accept-Language style locale preference.
const LocaleHeader = "accept-language"

// callIDs are the correlation ids of one rules call.
type callIDs struct {
	request    string
	invocation string
}

type callIDsKey struct{}

func idsFromContext(ctx context.Context) callIDs {
	if ctx == nil {
		return callIDs{}
	}
	ids, _ := ctx.Value(callIDsKey{}).(callIDs)
	return ids
}

func withIDs(ctx context.Context, update func(*callIDs)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ids := idsFromContext(ctx)
	update(&ids)
	return context.WithValue(ctx, callIDsKey{}, ids)
}

// RequestIDFromContext returns the request id assigned to the call.
func RequestIDFromContext(ctx context.Context) string { return idsFromContext(ctx).request }

// InvocationIDFromContext returns the MCP invocation id forwarded with the call.
func InvocationIDFromContext(ctx context.Context) string { return idsFromContext(ctx).invocation }

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withIDs(ctx, func(ids *callIDs) { ids.request = requestID })
}

// WithInvocationID stores the invocation id in context.
func WithInvocationID(ctx context.Context, invocationID string) context.Context {
	return withIDs(ctx, func(ids *callIDs) { ids.invocation = invocationID })
}

// LocaleFromContext negotiates the caller locale from incoming metadata.
func LocaleFromContext(ctx context.Context) string {
	return i18n.MatchLocale(incomingValue(ctx, LocaleHeader))
}

// printable reports whether value is non-empty printable ASCII, the only
// header values accepted as ids.
func printable(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if printable(value) {
				return value
			}
		}
	}
	return ""
}

// UnaryServerInterceptor keeps the caller's request id, or mints one with
// newID, and echoes the ids in the response headers.
func UnaryServerInterceptor(newID id.Generator) grpc.UnaryServerInterceptor {
	if newID == nil {
		newID = id.NewID
	}
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, headers, err := tagCall(ctx, newID)
		if err != nil {
			return nil, err
		}
		if err := grpc.SetHeader(ctx, headers); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is UnaryServerInterceptor for streaming calls.
func StreamServerInterceptor(newID id.Generator) grpc.StreamServerInterceptor {
	if newID == nil {
		newID = id.NewID
	}
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, headers, err := tagCall(stream.Context(), newID)
		if err != nil {
			return err
		}
		if err := stream.SetHeader(headers); err != nil {
			return status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(srv, &taggedStream{ServerStream: stream, ctx: ctx})
	}
}

type taggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *taggedStream) Context() context.Context { return s.ctx }

func tagCall(ctx context.Context, newID id.Generator) (context.Context, metadata.MD, error) {
	requestID := incomingValue(ctx, RequestIDHeader)
	if requestID == "" {
		generated, err := newID()
		if err != nil {
			return nil, nil, status.Errorf(codes.Internal, "generate request id: %v", err)
		}
		requestID = generated
	}
	ctx = WithRequestID(ctx, requestID)
	headers := metadata.Pairs(RequestIDHeader, requestID)
	if invocationID := incomingValue(ctx, InvocationIDHeader); invocationID != "" {
		ctx = WithInvocationID(ctx, invocationID)
		headers.Append(InvocationIDHeader, invocationID)
	}
	return ctx, headers, nil
}

func incomingValue(ctx context.Context, header string) string {
	if ctx == nil {
		return ""
	}
	md, _ := metadata.FromIncomingContext(ctx)
	return FirstMetadataValue(md, header)
}
