package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const testService = "ruleforge.rules.v1.RuleService"

type healthPeer struct {
	listener *bufconn.Listener
	health   *health.Server
}

// startPeer serves health on an in-memory listener. A nil custom server
// uses the standard health implementation.
func startPeer(t *testing.T, custom grpc_health_v1.HealthServer) *healthPeer {
	t.Helper()
	peer := &healthPeer{listener: bufconn.Listen(1 << 20)}
	srv := gogrpc.NewServer()
	if custom != nil {
		grpc_health_v1.RegisterHealthServer(srv, custom)
	} else {
		peer.health = RegisterHealth(srv, testService)
	}
	go func() {
		_ = srv.Serve(peer.listener)
	}()
	t.Cleanup(srv.Stop)
	return peer
}

func (p *healthPeer) dialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return p.listener.DialContext(ctx)
		}),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

func (p *healthPeer) dial(t *testing.T) *gogrpc.ClientConn {
	t.Helper()
	conn, err := gogrpc.NewClient("passthrough:///bufnet", p.dialOptions()...)
	if err != nil {
		t.Fatalf("dial peer: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// checkOnly implements Check but not Watch. It reports NOT_SERVING once per
// queued token.
type checkOnly struct {
	grpc_health_v1.UnimplementedHealthServer
	notServing chan struct{}
}

func (c *checkOnly) Check(context.Context, *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	select {
	case <-c.notServing:
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	default:
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
	}
}

func TestRegisterHealthMarksServicesServing(t *testing.T) {
	peer := startPeer(t, nil)
	client := grpc_health_v1.NewHealthClient(peer.dial(t))

	for _, service := range []string{"", testService} {
		resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Fatalf("check %q = %s, want SERVING", service, resp.GetStatus())
		}
	}
}

func TestWaitForHealth(t *testing.T) {
	t.Run("serving", func(t *testing.T) {
		peer := startPeer(t, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := WaitForHealth(ctx, peer.dial(t), testService, t.Logf); err != nil {
			t.Fatalf("wait for health: %v", err)
		}
	})

	t.Run("transition", func(t *testing.T) {
		peer := startPeer(t, nil)
		peer.health.SetServingStatus(testService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		time.AfterFunc(150*time.Millisecond, func() {
			peer.health.SetServingStatus(testService, grpc_health_v1.HealthCheckResponse_SERVING)
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := WaitForHealth(ctx, peer.dial(t), testService, t.Logf); err != nil {
			t.Fatalf("wait for health after transition: %v", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		peer := startPeer(t, nil)
		peer.health.SetServingStatus(testService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		err := WaitForHealth(ctx, peer.dial(t), testService, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want deadline exceeded", err)
		}
	})

	t.Run("check fallback", func(t *testing.T) {
		server := &checkOnly{notServing: make(chan struct{}, 1)}
		server.notServing <- struct{}{}
		peer := startPeer(t, server)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := WaitForHealth(ctx, peer.dial(t), testService, t.Logf); err != nil {
			t.Fatalf("wait for health via check: %v", err)
		}
	})

	t.Run("nil connection", func(t *testing.T) {
		if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
			t.Fatal("expected error for nil connection")
		}
	})
}

func TestDialWithHealth(t *testing.T) {
	peer := startPeer(t, nil)
	conn, err := DialWithHealth(context.Background(), HealthDial{
		Addr:    "passthrough:///bufnet",
		Service: testService,
		Timeout: 2 * time.Second,
		Options: peer.dialOptions(),
	})
	if err != nil {
		t.Fatalf("dial with health: %v", err)
	}
	_ = conn.Close()
}

func TestDialWithHealthStages(t *testing.T) {
	_, err := DialWithHealth(context.Background(), HealthDial{Addr: "  "})
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageConnect {
		t.Fatalf("empty address err = %v, want connect stage", err)
	}

	peer := startPeer(t, nil)
	peer.health.SetServingStatus(testService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	start := time.Now()
	conn, err := DialWithHealth(context.Background(), HealthDial{
		Addr:    "passthrough:///bufnet",
		Service: testService,
		Timeout: 150 * time.Millisecond,
		Options: peer.dialOptions(),
	})
	if conn != nil {
		t.Fatal("expected nil connection on health failure")
	}
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageHealth {
		t.Fatalf("not serving err = %v, want health stage", err)
	}
	if !strings.Contains(err.Error(), "gRPC health error") {
		t.Fatalf("error text = %q", err.Error())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("dial took %s, want timeout near 150ms", elapsed)
	}
}

func TestDialErrorNilSafe(t *testing.T) {
	var err *DialError
	if err.Error() != "gRPC dial error" || err.Unwrap() != nil {
		t.Fatal("nil DialError should be safe to use")
	}
}
