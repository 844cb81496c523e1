// Package rules parses rules service flags and launches the service.
package rules

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/ruleforge/internal/platform/cmd"
	server "github.com/louisbranch/ruleforge/internal/services/rules/app"
)

// Config holds rules command configuration.
type Config struct {
	GRPCAddr      string `env:"RULEFORGE_RULES_ADDR"      envDefault:":8090"`
	HTTPAddr      string `env:"RULEFORGE_RULES_HTTP_ADDR" envDefault:":8091"`
	CatalogDBPath string `env:"RULEFORGE_CATALOG_DB_PATH"`
	Verbose       bool   `env:"RULEFORGE_RULES_VERBOSE"   envDefault:"false"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GRPCAddr, "addr", cfg.GRPCAddr, "The rules gRPC listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The websocket and metrics listen address")
	fs.StringVar(&cfg.CatalogDBPath, "catalog-db", cfg.CatalogDBPath, "Catalog database to seed rules from (built-in catalogs when empty)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Log every gRPC call")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the rules gRPC API and HTTP surface.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRules, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			GRPCAddr:      cfg.GRPCAddr,
			HTTPAddr:      cfg.HTTPAddr,
			CatalogDBPath: cfg.CatalogDBPath,
			Verbose:       cfg.Verbose,
		})
	})
}
