package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	healthRetryStart = 100 * time.Millisecond
	healthRetryMax   = time.Second
)

// RegisterHealth serves the standard health API on srv with the overall
// entry and each of services marked SERVING.
func RegisterHealth(srv gogrpc.ServiceRegistrar, services ...string) *health.Server {
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	for _, service := range append([]string{""}, services...) {
		healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	return healthServer
}

// WaitForHealth blocks until service reports SERVING on conn or ctx ends.
// It follows the Watch stream and falls back to polling Check on servers
// that do not implement Watch.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return errors.New("gRPC connection is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	retry := healthRetryStart
	for {
		err := watchUntilServing(ctx, client, service, logf)
		if err == nil {
			logf("health of %q is SERVING", service)
			return nil
		}
		if status.Code(err) == codes.Unimplemented {
			return pollUntilServing(ctx, client, service, logf)
		}
		logf("health watch for %q interrupted: %v", service, err)
		if err := sleepCtx(ctx, retry); err != nil {
			return fmt.Errorf("wait for %q health: %w", service, err)
		}
		retry = min(retry*2, healthRetryMax)
	}
}

// watchUntilServing returns nil once the stream reports SERVING and the
// stream error otherwise.
func watchUntilServing(ctx context.Context, client grpc_health_v1.HealthClient, service string, logf func(string, ...any)) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Watch(watchCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	for {
		response, err := stream.Recv()
		if err != nil {
			return err
		}
		if response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		logf("health of %q is %s", service, response.GetStatus())
	}
}

func pollUntilServing(ctx context.Context, client grpc_health_v1.HealthClient, service string, logf func(string, ...any)) error {
	retry := healthRetryStart
	for {
		callCtx, cancel := context.WithTimeout(ctx, healthRetryMax)
		response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			logf("health check for %q: %v", service, err)
		case response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("health of %q is SERVING", service)
			return nil
		default:
			logf("health of %q is %s", service, response.GetStatus())
		}
		if err := sleepCtx(ctx, retry); err != nil {
			return fmt.Errorf("wait for %q health: %w", service, err)
		}
		retry = min(retry*2, healthRetryMax)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
