// Package platformer provides the platformer rule catalog.
package platformer

import (
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// BaseGame identifies platformer configurations.
const BaseGame = "platformer"

// Rule ids.
const (
	RuleGravity     = "platformer-gravity"
	RuleLives       = "platformer-lives"
	RulePalette     = "platformer-palette"
	RuleDoubleJump  = "platformer-double-jump"
	RuleWallJump    = "platformer-wall-jump"
	RuleZeroGravity = "platformer-zero-gravity"
	RuleTimer       = "platformer-speedrun-timer"
	RuleLevelTitle  = "platformer-level-title"
)

// Register adds the platformer catalog to reg.
func Register(reg *registry.Registry) error {
	return reg.RegisterAll(Rules()...)
}

// Rules returns the platformer catalog in display order.
func Rules() []rule.Rule {
	return []rule.Rule{
		{
			ID:          RuleGravity,
			Name:        "Gravity",
			Description: "Downward pull applied every tick.",
			Category:    "physics",
			BaseGame:    BaseGame,
			Tags:        []string{rule.TagDefault},
			Parameters: []rule.Parameter{
				{Key: "strength", Name: "Strength", Type: rule.TypeNumber, DefaultValue: rule.Number(1), Constraints: rule.NumberRange(0.1, 3, 0.1)},
				{Key: "terminalVelocity", Name: "Terminal velocity", Type: rule.TypeNumber, DefaultValue: rule.Number(12), Constraints: rule.NumberRange(1, 40, 1)},
			},
		},
		{
			ID:       RuleLives,
			Name:     "Lives",
			Category: "difficulty",
			BaseGame: BaseGame,
			Tags:     []string{rule.TagDefault},
			Parameters: []rule.Parameter{
				{Key: "count", Name: "Lives", Type: rule.TypeNumber, DefaultValue: rule.Number(3), Constraints: rule.NumberRange(1, 9, 1)},
				{Key: "checkpoints", Name: "Respawn at checkpoints", Type: rule.TypeBoolean, DefaultValue: rule.Bool(true)},
			},
		},
		{
			ID:       RulePalette,
			Name:     "Palette",
			Category: "appearance",
			BaseGame: BaseGame,
			Tags:     []string{rule.TagDefault},
			Parameters: []rule.Parameter{
				{Key: "sky", Name: "Sky", Type: rule.TypeColor, DefaultValue: rule.String("#87ceeb")},
				{Key: "player", Name: "Player", Type: rule.TypeColor, DefaultValue: rule.String("#e63946")},
			},
		},
		{
			ID:          RuleDoubleJump,
			Name:        "Extra jumps",
			Description: "Jump again while airborne.",
			Category:    "movement",
			BaseGame:    BaseGame,
			Parameters: []rule.Parameter{
				{Key: "jumps", Name: "Jumps", Type: rule.TypeNumber, DefaultValue: rule.Number(2), Constraints: rule.NumberRange(2, 5, 1)},
			},
		},
		{
			ID:          RuleWallJump,
			Name:        "Wall jump",
			Description: "Kick off walls to regain a jump.",
			Category:    "movement",
			BaseGame:    BaseGame,
			Requires:    []string{RuleDoubleJump, RuleGravity},
			Parameters: []rule.Parameter{
				{Key: "slide", Name: "Wall slide", Type: rule.TypeBoolean, DefaultValue: rule.Bool(true)},
			},
		},
		{
			ID:          RuleZeroGravity,
			Name:        "Zero gravity",
			Description: "Float freely through the level.",
			Category:    "physics",
			BaseGame:    BaseGame,
			Conflicts:   []string{RuleGravity, RuleWallJump},
		},
		{
			ID:       RuleTimer,
			Name:     "Speedrun timer",
			Category: "interface",
			BaseGame: BaseGame,
			Parameters: []rule.Parameter{
				{Key: "position", Name: "Position", Type: rule.TypeSelect, DefaultValue: rule.String("corner"), Constraints: rule.SelectConstraints{Options: []string{"corner", "center", "hidden"}}},
				{Key: "splits", Name: "Show splits", Type: rule.TypeBoolean, DefaultValue: rule.Bool(false)},
			},
		},
		{
			ID:       RuleLevelTitle,
			Name:     "Level title",
			Category: "interface",
			BaseGame: BaseGame,
			Parameters: []rule.Parameter{
				{Key: "text", Name: "Title", Type: rule.TypeText, DefaultValue: rule.String("World 1-1"), Constraints: rule.TextConstraints{MaxLength: 32}},
			},
		},
	}
}
