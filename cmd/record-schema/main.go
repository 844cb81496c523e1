// Package main prints the configuration record JSON Schema.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/ruleforge/internal/platform/config"
	"github.com/louisbranch/ruleforge/internal/tools/recordschema"
)

func main() {
	cfg, err := recordschema.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if err := recordschema.Run(cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
