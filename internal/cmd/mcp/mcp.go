// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/ruleforge/internal/platform/cmd"
	"github.com/louisbranch/ruleforge/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	RulesAddr string `env:"RULEFORGE_RULES_ADDR"     envDefault:"localhost:8090"`
	HTTPAddr  string `env:"RULEFORGE_MCP_HTTP_ADDR"  envDefault:"localhost:8081"`
	Transport string `env:"RULEFORGE_MCP_TRANSPORT"  envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.RulesAddr, "addr", cfg.RulesAddr, "rules server address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{
			RulesAddr: cfg.RulesAddr,
			HTTPAddr:  cfg.HTTPAddr,
			Transport: service.TransportKind(cfg.Transport),
		})
	})
}
