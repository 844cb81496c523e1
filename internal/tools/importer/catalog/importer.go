// Package catalogimporter writes built-in rule catalogs into a SQLite
// catalog file the rules service can seed from.
package catalogimporter

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/louisbranch/ruleforge/internal/platform/config"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/manifest"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	catalogsqlite "github.com/louisbranch/ruleforge/internal/services/rules/storage/sqlite"
)

// Config holds configuration for the catalog importer.
type Config struct {
	DBPath string `env:"RULEFORGE_CATALOG_DB_PATH"`
	// Games limits the import to these base games. Empty imports every
	// built-in catalog.
	Games  []string
	DryRun bool
}

// ParseConfig parses environment and CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "rule-catalog.db")
	}

	var games string
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "catalog database path")
	fs.StringVar(&games, "games", "", "comma-separated base games to import (all when empty)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	for _, game := range strings.Split(games, ",") {
		if game = strings.TrimSpace(game); game != "" {
			cfg.Games = append(cfg.Games, game)
		}
	}
	if strings.TrimSpace(cfg.DBPath) == "" && !cfg.DryRun {
		return Config{}, errors.New("db is required")
	}
	return cfg, nil
}

// Run executes the importer using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	games, err := selectGames(cfg.Games)
	if err != nil {
		return err
	}
	var rules []rule.Rule
	for _, game := range games {
		rules = append(rules, game.Rules()...)
	}
	if err := validate(rules); err != nil {
		return err
	}

	if cfg.DryRun {
		_, err := fmt.Fprintf(out, "validated %d rule(s) across %d game(s)\n", len(rules), len(games))
		return err
	}

	if err := config.EnsureParentDir(cfg.DBPath); err != nil {
		return fmt.Errorf("prepare catalog path: %w", err)
	}
	store, err := catalogsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer store.Close()

	if err := store.SaveRules(ctx, rules); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	_, err = fmt.Fprintf(out, "imported %d rule(s) across %d game(s) into %s\n", len(rules), len(games), cfg.DBPath)
	return err
}

func selectGames(names []string) ([]manifest.Game, error) {
	all := manifest.Games()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]manifest.Game, len(all))
	for _, game := range all {
		byName[game.BaseGame] = game
	}

	seen := make(map[string]struct{}, len(names))
	var selected []manifest.Game
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		game, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown base game %q (known: %s)", name, strings.Join(knownGames(all), ", "))
		}
		selected = append(selected, game)
	}
	return selected, nil
}

// validate registers rules into a scratch registry so a broken catalog never
// reaches the database.
func validate(rules []rule.Rule) error {
	reg := registry.New()
	if err := reg.RegisterAll(rules...); err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}
	if err := reg.CheckReferences(); err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}
	return nil
}

func knownGames(games []manifest.Game) []string {
	names := make([]string, 0, len(games))
	for _, game := range games {
		names = append(names, game.BaseGame)
	}
	sort.Strings(names)
	return names
}
