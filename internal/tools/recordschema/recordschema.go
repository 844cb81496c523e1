// Package recordschema writes the JSON Schema of configuration records.
package recordschema

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/louisbranch/ruleforge/internal/platform/config"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/record"
)

// Config holds record-schema command configuration.
type Config struct {
	// Out is the output file. Empty writes to the command's stdout.
	Out string
	// Check fails when Out differs from the current schema instead of
	// rewriting it.
	Check bool
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.Out, "out", "", "output path for the schema (stdout when empty)")
	fs.BoolVar(&cfg.Check, "check", false, "verify -out is up to date without writing")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Check && strings.TrimSpace(cfg.Out) == "" {
		return Config{}, fmt.Errorf("-check requires -out")
	}
	return cfg, nil
}

// Run renders the schema according to cfg.
func Run(cfg Config, stdout io.Writer) error {
	schema, err := record.SchemaJSON()
	if err != nil {
		return err
	}

	out := strings.TrimSpace(cfg.Out)
	if out == "" {
		if stdout == nil {
			stdout = io.Discard
		}
		_, err := stdout.Write(schema)
		return err
	}

	if cfg.Check {
		current, err := os.ReadFile(out)
		if err != nil {
			return fmt.Errorf("read %s: %w", out, err)
		}
		if !bytes.Equal(current, schema) {
			return fmt.Errorf("%s is out of date; rerun record-schema -out %s", out, out)
		}
		return nil
	}

	if err := config.EnsureParentDir(out); err != nil {
		return err
	}
	if err := os.WriteFile(out, schema, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}
