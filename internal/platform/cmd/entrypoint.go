// Package cmd holds the startup steps shared by the service commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/ruleforge/internal/platform/config"
	"github.com/louisbranch/ruleforge/internal/platform/otel"
)

// Service names used for telemetry resources and log prefixes.
const (
	ServiceRules = "rules"
	ServiceMCP   = "mcp"
)

// telemetryShutdownTimeout bounds flushing spans after the run loop returns.
const telemetryShutdownTimeout = 5 * time.Second

// ParseConfig fills cfg from RULEFORGE_* environment variables and defaults.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses args into fs. Flags registered with env-derived defaults
// therefore override the environment.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag set is required")
	}
	return fs.Parse(append([]string{}, args...))
}

// LogPrefix sets and returns the standard logger prefix for service, e.g.
// "[RULES] ".
func LogPrefix(service string) string {
	prefix := "[" + strings.ToUpper(strings.TrimSpace(service)) + "] "
	log.SetPrefix(prefix)
	return prefix
}

// RunWithTelemetry installs tracing for service, runs run, and flushes
// tracing once run returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case run == nil:
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s telemetry shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
