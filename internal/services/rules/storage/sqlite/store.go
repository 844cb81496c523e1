// Package sqlite provides a SQLite-backed rule catalog store.
//
// Only rule definitions are stored. Configurations live in memory for the
// lifetime of the engine and are never written here.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/ruleforge/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/storage/sqlite/migrations"
)

// Store persists rule catalogs in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Open opens a SQLite catalog store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveRules replaces the stored catalog of every base game present in
// rules. Rules are stored in the given order. The write is atomic: an
// invalid or duplicate rule leaves the store untouched.
func (s *Store) SaveRules(ctx context.Context, rules []rule.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	var games []string
	seenGame := make(map[string]bool)
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return apperrors.WrapWithMetadata(apperrors.CodeRuleDefinitionInvalid,
				fmt.Sprintf("rule %q: %v", r.ID, err), map[string]string{"RuleID": r.ID}, err)
		}
		if !seenGame[r.BaseGame] {
			seenGame[r.BaseGame] = true
			games = append(games, r.BaseGame)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save rules: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, game := range games {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_definitions WHERE base_game = ?`, game); err != nil {
			return fmt.Errorf("clear %s rules: %w", game, err)
		}
	}

	now := s.clock().UTC().UnixMilli()
	for _, r := range rules {
		definition, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rule_definitions (id, base_game, definition, updated_at) VALUES (?, ?, ?, ?)`,
			r.ID, r.BaseGame, string(definition), now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.WrapWithMetadata(apperrors.CodeRuleDuplicateRegistration,
					fmt.Sprintf("rule %q is already stored", r.ID), map[string]string{"RuleID": r.ID}, err)
			}
			return fmt.Errorf("insert rule %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save rules: %w", err)
	}
	return nil
}

// LoadRules returns every stored rule in storage order.
func (s *Store) LoadRules(ctx context.Context) ([]rule.Rule, error) {
	return s.query(ctx, `SELECT id, definition FROM rule_definitions ORDER BY seq`)
}

// LoadGameRules returns the stored rules of one base game.
func (s *Store) LoadGameRules(ctx context.Context, baseGame string) ([]rule.Rule, error) {
	return s.query(ctx, `SELECT id, definition FROM rule_definitions WHERE base_game = ? ORDER BY seq`, baseGame)
}

// Games lists stored base games in the order their first rule was saved.
func (s *Store) Games(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT base_game FROM rule_definitions GROUP BY base_game ORDER BY MIN(seq)`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []string
	for rows.Next() {
		var game string
		if err := rows.Scan(&game); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

// RegisterInto loads every stored rule into reg as one atomic batch.
func (s *Store) RegisterInto(ctx context.Context, reg *registry.Registry) (int, error) {
	rules, err := s.LoadRules(ctx)
	if err != nil {
		return 0, err
	}
	if err := reg.RegisterAll(rules...); err != nil {
		return 0, err
	}
	return len(rules), nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]rule.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []rule.Rule
	for rows.Next() {
		var (
			id         string
			definition string
		)
		if err := rows.Scan(&id, &definition); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var r rule.Rule
		if err := json.Unmarshal([]byte(definition), &r); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", id, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "rule_definitions.id")
}
