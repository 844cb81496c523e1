// Package main writes the built-in rule catalogs into a SQLite catalog file.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/ruleforge/internal/platform/config"
	catalogimporter "github.com/louisbranch/ruleforge/internal/tools/importer/catalog"
)

func main() {
	cfg, err := catalogimporter.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := catalogimporter.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
