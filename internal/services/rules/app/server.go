// Package server wires the rule engine, its gRPC API, and the HTTP surface
// (websocket hot-reload, health, metrics).
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	platformgrpc "github.com/louisbranch/ruleforge/internal/platform/grpc"
	"github.com/louisbranch/ruleforge/internal/platform/timeouts"
	"github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/interceptors"
	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
	rulesservice "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/rules"
	"github.com/louisbranch/ruleforge/internal/services/rules/api/ws"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/manifest"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/engine"
	"github.com/louisbranch/ruleforge/internal/services/rules/metrics"
	catalogsqlite "github.com/louisbranch/ruleforge/internal/services/rules/storage/sqlite"
)

// Config controls the rules server.
type Config struct {
	// GRPCAddr is the gRPC listen address.
	GRPCAddr string
	// HTTPAddr is the websocket and metrics listen address.
	HTTPAddr string
	// CatalogDBPath seeds the registry from a catalog database. Empty uses
	// the built-in catalogs.
	CatalogDBPath string
	// Verbose logs every gRPC call instead of failures only.
	Verbose bool
}

// Server hosts the rules gRPC API and HTTP surface.
type Server struct {
	grpcListener net.Listener
	httpListener net.Listener
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	engine       *engine.Engine
	metrics      *metrics.Collector
}

// New builds the registry, engine, and listeners described by cfg.
func New(ctx context.Context, cfg Config) (*Server, error) {
	reg, source, err := buildRegistry(ctx, cfg.CatalogDBPath)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(metrics.DefaultNamespace)
	eng, err := engine.New(reg, engine.WithObserver(collector))
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	log.Printf("loaded rules for %s from %s", strings.Join(eng.ListGames(), ", "), source)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcListener.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcmeta.UnaryServerInterceptor(nil),
			interceptors.LoggingInterceptor(log.Printf, cfg.Verbose),
		),
		grpc.ChainStreamInterceptor(
			grpcmeta.StreamServerInterceptor(nil),
			interceptors.StreamLoggingInterceptor(log.Printf, cfg.Verbose),
		),
	)
	rulesservice.RegisterRuleServiceServer(grpcServer, rulesservice.NewService(eng))
	healthServer := platformgrpc.RegisterHealth(grpcServer, rulesservice.ServiceName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/", ws.NewHandler(eng))

	return &Server{
		grpcListener: grpcListener,
		httpListener: httpListener,
		grpcServer:   grpcServer,
		httpServer:   &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader},
		health:       healthServer,
		engine:       eng,
		metrics:      collector,
	}, nil
}

// Run creates and serves a rules server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// GRPCAddr returns the gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Engine returns the engine behind the server.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Serve runs the gRPC and HTTP servers until ctx ends or either fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("rules gRPC server listening at %v", s.grpcListener.Addr())
	log.Printf("rules HTTP server listening at %v", s.httpListener.Addr())
	grpcErr := make(chan error, 1)
	httpErr := make(chan error, 1)
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-grpcErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		} else {
			err = fmt.Errorf("serve gRPC: %w", err)
		}
	case err = <-httpErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = fmt.Errorf("serve HTTP: %w", err)
		}
	}

	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("shutdown HTTP server: %v", shutdownErr)
	}
	s.grpcServer.GracefulStop()
	return err
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
}

// buildRegistry loads the catalog database at path, or the built-in catalogs
// when path is empty.
func buildRegistry(ctx context.Context, path string) (*registry.Registry, string, error) {
	reg := registry.New()
	path = strings.TrimSpace(path)
	if path == "" {
		if err := manifest.RegisterAll(reg); err != nil {
			return nil, "", err
		}
		return reg, "built-in catalogs", nil
	}

	store, err := catalogsqlite.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open catalog sqlite store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close catalog store: %v", err)
		}
	}()
	count, err := store.RegisterInto(ctx, reg)
	if err != nil {
		return nil, "", fmt.Errorf("load catalog %s: %w", path, err)
	}
	if count == 0 {
		return nil, "", fmt.Errorf("catalog %s holds no rules", path)
	}
	return reg, path, nil
}
