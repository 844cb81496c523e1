package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/ruleforge/internal/platform/config"
	"github.com/louisbranch/ruleforge/internal/platform/timeouts"
)

// mcpHTTPEnv holds env-parsed configuration for the MCP HTTP transport.
type mcpHTTPEnv struct {
	AllowedHosts []string `env:"RULEFORGE_MCP_ALLOWED_HOSTS" envSeparator:","`
}

// defaultHTTPAddr keeps the HTTP transport local unless configured otherwise.
const defaultHTTPAddr = "localhost:8081"

// HTTPTransport serves an MCP server over streamable HTTP on /mcp.
type HTTPTransport struct {
	addr         string
	server       *Server
	allowedHosts map[string]struct{}
	httpServer   *http.Server
}

// NewHTTPTransport creates a streamable HTTP transport for server.
func NewHTTPTransport(addr string, server *Server) *HTTPTransport {
	if strings.TrimSpace(addr) == "" {
		addr = defaultHTTPAddr
	}
	var raw mcpHTTPEnv
	if err := config.ParseEnv(&raw); err != nil {
		log.Printf("parse MCP HTTP env: %v", err)
	}
	return &HTTPTransport{
		addr:         addr,
		server:       server,
		allowedHosts: parseAllowedHosts(raw.AllowedHosts),
	}
}

// Handler returns the HTTP routes of the transport.
func (t *HTTPTransport) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return t.server.mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.HandleFunc("/mcp/health", t.handleHealth)
	return t.hostGuard(mux)
}

// Start serves HTTP until ctx ends, then shuts down gracefully.
func (t *HTTPTransport) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}
	return t.serve(ctx, listener)
}

func (t *HTTPTransport) serve(ctx context.Context, listener net.Listener) error {
	t.httpServer = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	log.Printf("MCP HTTP server listening at %v", listener.Addr())

	errChan := make(chan error, 1)
	go func() {
		errChan <- t.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.StreamShutdown)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// hostGuard rejects requests whose Host is outside the allow list. An empty
// list allows every host.
func (t *HTTPTransport) hostGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(t.allowedHosts) > 0 {
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if _, ok := t.allowedHosts[strings.ToLower(host)]; !ok {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func parseAllowedHosts(hosts []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(hosts))
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			allowed[host] = struct{}{}
		}
	}
	return allowed
}
