// Package chess provides the chess rule catalog.
package chess

import (
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// BaseGame identifies chess configurations.
const BaseGame = "chess"

// Rule ids.
const (
	RuleClock         = "chess-clock"
	RuleBoardTheme    = "chess-board-theme"
	RuleBoardSize     = "chess-board-size"
	RulePieceMovement = "chess-piece-movement"
	RuleWinConditions = "chess-win-conditions"
	RuleBlitz         = "chess-blitz"
	RuleMoveHints     = "chess-move-hints"
	RulePlayerNames   = "chess-player-names"
	RulePawnPromotion = "chess-pawn-promotion"
	RuleFogOfWar      = "chess-fog-of-war"
)

// Register adds the chess catalog to reg.
func Register(reg *registry.Registry) error {
	return reg.RegisterAll(Rules()...)
}

// Rules returns the chess catalog in display order.
func Rules() []rule.Rule {
	return []rule.Rule{
		{
			ID:          RuleClock,
			Name:        "Game clock",
			Description: "Each player gets a fixed amount of thinking time.",
			Category:    "timing",
			BaseGame:    BaseGame,
			Tags:        []string{rule.TagDefault},
			Parameters: []rule.Parameter{
				{Key: "minutes", Name: "Minutes per player", Type: rule.TypeNumber, DefaultValue: rule.Number(10), Constraints: rule.NumberRange(1, 180, 1)},
				{Key: "increment", Name: "Increment (seconds)", Description: "Time added after each move.", Type: rule.TypeNumber, DefaultValue: rule.Number(0), Constraints: rule.NumberRange(0, 60, 1)},
				{Key: "sound", Name: "Low time warning sound", Type: rule.TypeBoolean, DefaultValue: rule.Bool(true)},
			},
		},
		{
			ID:          RuleBoardTheme,
			Name:        "Board theme",
			Description: "Square colors of the board.",
			Category:    "appearance",
			BaseGame:    BaseGame,
			Tags:        []string{rule.TagDefault},
			Parameters: []rule.Parameter{
				{Key: "light", Name: "Light squares", Type: rule.TypeColor, DefaultValue: rule.String("#f0d9b5")},
				{Key: "dark", Name: "Dark squares", Type: rule.TypeColor, DefaultValue: rule.String("#b58863")},
			},
		},
		{
			ID:          RuleBoardSize,
			Name:        "Board size",
			Description: "Play on a board other than 8x8.",
			Category:    "board",
			BaseGame:    BaseGame,
			Parameters: []rule.Parameter{
				{Key: "width", Name: "Width", Type: rule.TypeNumber, DefaultValue: rule.Number(8), Constraints: rule.NumberRange(4, 16, 1)},
				{Key: "height", Name: "Height", Type: rule.TypeNumber, DefaultValue: rule.Number(8), Constraints: rule.NumberRange(4, 16, 1)},
			},
		},
		{
			ID:          RulePieceMovement,
			Name:        "Piece movement variant",
			Description: "Replace how pieces move.",
			Category:    "variant",
			BaseGame:    BaseGame,
			Conflicts:   []string{RuleWinConditions},
			Parameters: []rule.Parameter{
				{Key: "variant", Name: "Variant", Type: rule.TypeSelect, DefaultValue: rule.String("knightmare"), Constraints: rule.SelectConstraints{Options: []string{"knightmare", "grasshopper", "berolina"}}},
			},
		},
		{
			ID:          RuleWinConditions,
			Name:        "Alternative win condition",
			Description: "Win by something other than checkmate.",
			Category:    "variant",
			BaseGame:    BaseGame,
			Conflicts:   []string{RulePieceMovement},
			Parameters: []rule.Parameter{
				{Key: "condition", Name: "Condition", Type: rule.TypeSelect, DefaultValue: rule.String("king-of-the-hill"), Constraints: rule.SelectConstraints{Options: []string{"king-of-the-hill", "three-check", "racing-kings"}}},
			},
		},
		{
			ID:          RuleBlitz,
			Name:        "Blitz flagging",
			Description: "A player whose clock runs out loses immediately.",
			Category:    "timing",
			BaseGame:    BaseGame,
			Requires:    []string{RuleClock},
			Parameters: []rule.Parameter{
				{Key: "warning", Name: "Warning threshold (seconds)", Type: rule.TypeNumber, DefaultValue: rule.Number(10), Constraints: rule.NumberRange(0, 120, 5)},
			},
		},
		{
			ID:          RuleMoveHints,
			Name:        "Move hints",
			Description: "Highlight legal moves and threatened pieces.",
			Category:    "assist",
			BaseGame:    BaseGame,
			Conflicts:   []string{RuleFogOfWar},
			Parameters: []rule.Parameter{
				{Key: "threats", Name: "Show threatened pieces", Type: rule.TypeBoolean, DefaultValue: rule.Bool(false)},
				{Key: "color", Name: "Highlight color", Type: rule.TypeColor, DefaultValue: rule.String("#66cc66")},
			},
		},
		{
			ID:          RulePlayerNames,
			Name:        "Player names",
			Category:    "appearance",
			BaseGame:    BaseGame,
			Parameters: []rule.Parameter{
				{Key: "white", Name: "White", Type: rule.TypeText, DefaultValue: rule.String("White"), Constraints: rule.TextConstraints{MaxLength: 24}},
				{Key: "black", Name: "Black", Type: rule.TypeText, DefaultValue: rule.String("Black"), Constraints: rule.TextConstraints{MaxLength: 24}},
			},
		},
		{
			ID:          RulePawnPromotion,
			Name:        "Restricted promotion",
			Description: "Limit which piece a pawn promotes to.",
			Category:    "variant",
			BaseGame:    BaseGame,
			Parameters: []rule.Parameter{
				{Key: "piece", Name: "Promotion piece", Type: rule.TypeSelect, DefaultValue: rule.String("queen"), Constraints: rule.SelectConstraints{Options: []string{"queen", "rook", "bishop", "knight"}}},
			},
		},
		{
			ID:          RuleFogOfWar,
			Name:        "Fog of war",
			Description: "Players only see squares their pieces can reach.",
			Category:    "variant",
			BaseGame:    BaseGame,
			Tags:        []string{"experimental"},
		},
	}
}
