// Package interceptors holds gRPC middleware for the rules service.
package interceptors

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
)

// Logf matches log.Printf.
type Logf func(format string, args ...any)

// LoggingInterceptor logs failed unary calls, and every call when verbose is set.
func LoggingInterceptor(logf Logf, verbose bool) grpc.UnaryServerInterceptor {
	if logf == nil {
		logf = log.Printf
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logf, verbose, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor logs the end of streaming calls.
func StreamLoggingInterceptor(logf Logf, verbose bool) grpc.StreamServerInterceptor {
	if logf == nil {
		logf = log.Printf
	}
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, stream)
		logCall(stream.Context(), logf, verbose, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, logf Logf, verbose bool, method string, start time.Time, err error) {
	code := codes.OK
	if err != nil {
		code = status.Code(err)
	}
	if code == codes.OK && !verbose {
		return
	}

	var traceID string
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	logf("grpc %s code=%s duration=%s request_id=%s trace_id=%s",
		method, code, time.Since(start).Round(time.Microsecond), grpcmeta.RequestIDFromContext(ctx), traceID)
}
