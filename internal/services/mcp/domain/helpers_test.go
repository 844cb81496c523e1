package domain

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
	rulesservice "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/rules"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/manifest"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/engine"
)

// newRulesClient serves the built-in catalogs over bufconn.
func newRulesClient(t *testing.T) *rulesservice.Client {
	t.Helper()
	reg := registry.New()
	if err := manifest.RegisterAll(reg); err != nil {
		t.Fatalf("register catalogs: %v", err)
	}
	eng, err := engine.New(reg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcmeta.UnaryServerInterceptor(nil)))
	rulesservice.RegisterRuleServiceServer(srv, rulesservice.NewService(eng))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return rulesservice.NewClient(conn)
}

// sessionContext is an in-memory stand-in for the server context store.
type sessionContext struct {
	current Context
}

func (s *sessionContext) set(ctx Context) { s.current = ctx }
func (s *sessionContext) get() Context    { return s.current }

type recordingNotifier struct {
	uris []string
}

func (r *recordingNotifier) notify(_ context.Context, uri string) {
	r.uris = append(r.uris, uri)
}

// failingClient fails every call with a transport level error.
type failingClient struct {
	RulesClient
	err error
}

func (f failingClient) ListGames(context.Context, ...grpc.CallOption) ([]string, error) {
	return nil, f.err
}

func createChess(t *testing.T, client RulesClient) ConfigurationResult {
	t.Helper()
	_, result, err := ConfigurationCreateHandler(client, nil)(context.Background(), nil, ConfigurationCreateInput{
		BaseGame: "chess",
		Name:     "Club night",
	})
	if err != nil {
		t.Fatalf("create configuration: %v", err)
	}
	return result
}
