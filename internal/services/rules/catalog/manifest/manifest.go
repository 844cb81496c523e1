// Package manifest lists the built-in rule catalogs.
package manifest

import (
	"fmt"

	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/chess"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/platformer"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// Game is a built-in catalog and its registration entry point.
type Game struct {
	BaseGame string
	Register func(*registry.Registry) error
	Rules    func() []rule.Rule
}

// Games returns every built-in catalog.
func Games() []Game {
	return []Game{
		{BaseGame: chess.BaseGame, Register: chess.Register, Rules: chess.Rules},
		{BaseGame: platformer.BaseGame, Register: platformer.Register, Rules: platformer.Rules},
	}
}

// RegisterAll runs every built-in entry point against reg.
func RegisterAll(reg *registry.Registry) error {
	for _, game := range Games() {
		if err := game.Register(reg); err != nil {
			return fmt.Errorf("register %s rules: %w", game.BaseGame, err)
		}
	}
	return nil
}

// Rules returns every built-in rule in catalog order.
func Rules() []rule.Rule {
	var out []rule.Rule
	for _, game := range Games() {
		out = append(out, game.Rules()...)
	}
	return out
}
