package registry

import (
	"errors"
	"testing"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

func sampleRule(id, game string) rule.Rule {
	return rule.Rule{
		ID:       id,
		Name:     id,
		BaseGame: game,
		Parameters: []rule.Parameter{
			{Key: "enabled", Name: "Enabled", Type: rule.TypeBoolean, DefaultValue: rule.Bool(true)},
		},
		Tags: []string{rule.TagDefault},
	}
}

func TestRegisterIdenticalDefinitionIsNoOp(t *testing.T) {
	reg := New()
	if err := reg.Register(sampleRule("chess-clock", "chess")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(sampleRule("chess-clock", "chess")); err != nil {
		t.Fatalf("re-register identical: %v", err)
	}
	if got := len(reg.RulesForGame("chess")); got != 1 {
		t.Fatalf("rules for chess = %d, want 1", got)
	}
}

func TestRegisterDifferentDefinitionFails(t *testing.T) {
	reg := New()
	if err := reg.Register(sampleRule("chess-clock", "chess")); err != nil {
		t.Fatalf("register: %v", err)
	}
	changed := sampleRule("chess-clock", "chess")
	changed.Description = "different"

	err := reg.Register(changed)
	if !apperrors.IsKind(err, apperrors.KindDuplicateRegistration) {
		t.Fatalf("expected duplicate registration, got %v", err)
	}
	got, _ := reg.Rule("chess-clock")
	if got.Description != "" {
		t.Fatal("original definition must survive")
	}
}

func TestRegisterAllIsAtomic(t *testing.T) {
	reg := New()
	bad := sampleRule("chess-b", "chess")
	bad.Name = ""

	err := reg.RegisterAll(sampleRule("chess-a", "chess"), bad)
	if !errors.Is(err, apperrors.New(apperrors.CodeRuleDefinitionInvalid, "")) {
		t.Fatalf("expected invalid definition, got %v", err)
	}
	if _, ok := reg.Rule("chess-a"); ok {
		t.Fatal("first rule of a failed batch must not be registered")
	}
	if reg.HasGame("chess") {
		t.Fatal("game must not be indexed after a failed batch")
	}
}

func TestRegisterAllDetectsDuplicateWithinBatch(t *testing.T) {
	reg := New()
	other := sampleRule("chess-a", "chess")
	other.Category = "other"
	err := reg.RegisterAll(sampleRule("chess-a", "chess"), other)
	if apperrors.CodeOf(err) != apperrors.CodeRuleDuplicateRegistration {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}
}

func TestRulesForGameKeepsRegistrationOrder(t *testing.T) {
	reg := New()
	if err := reg.RegisterAll(
		sampleRule("chess-z", "chess"),
		sampleRule("platformer-a", "platformer"),
		sampleRule("chess-a", "chess"),
	); err != nil {
		t.Fatalf("register: %v", err)
	}
	rules := reg.RulesForGame("chess")
	if len(rules) != 2 || rules[0].ID != "chess-z" || rules[1].ID != "chess-a" {
		t.Fatalf("order = %v", rules)
	}
	games := reg.Games()
	if len(games) != 2 || games[0] != "chess" || games[1] != "platformer" {
		t.Fatalf("games = %v", games)
	}
	if len(reg.RulesForGame("checkers")) != 0 {
		t.Fatal("unknown game must list nothing")
	}
	if !reg.BelongsTo("platformer-a", "platformer") || reg.BelongsTo("platformer-a", "chess") {
		t.Fatal("BelongsTo mismatch")
	}
}

func TestRuleReturnsCopy(t *testing.T) {
	reg := New()
	if err := reg.Register(sampleRule("chess-a", "chess")); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, ok := reg.Rule("chess-a")
	if !ok {
		t.Fatal("expected rule")
	}
	got.Tags[0] = "mutated"
	again, _ := reg.Rule("chess-a")
	if again.Tags[0] != rule.TagDefault {
		t.Fatal("caller mutated registry state")
	}
	if _, ok := reg.Rule("missing"); ok {
		t.Fatal("expected miss")
	}
}

func TestNumberBoundsAreNotShared(t *testing.T) {
	def := rule.Rule{
		ID: "chess-board-size", Name: "Board size", BaseGame: "chess",
		Parameters: []rule.Parameter{
			{Key: "width", Name: "Width", Type: rule.TypeNumber, DefaultValue: rule.Number(8), Constraints: rule.NumberRange(4, 16, 1)},
		},
	}
	reg := New()
	if err := reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Neither the registering catalog nor a reader may move the stored bounds.
	*def.Parameters[0].Constraints.(rule.NumberConstraints).Max = 99
	read, _ := reg.Rule("chess-board-size")
	*read.Parameters[0].Constraints.(rule.NumberConstraints).Min = -1
	for _, listed := range reg.RulesForGame("chess") {
		*listed.Parameters[0].Constraints.(rule.NumberConstraints).Step = 5
	}

	stored, _ := reg.Rule("chess-board-size")
	bounds := stored.Parameters[0].Constraints.(rule.NumberConstraints)
	if *bounds.Min != 4 || *bounds.Max != 16 || *bounds.Step != 1 {
		t.Fatalf("stored bounds = [%g, %g] step %g, want [4, 16] step 1", *bounds.Min, *bounds.Max, *bounds.Step)
	}
}

func TestSealRejectsRegistration(t *testing.T) {
	reg := New()
	reg.Seal()
	if !reg.Sealed() {
		t.Fatal("expected sealed")
	}
	err := reg.Register(sampleRule("chess-a", "chess"))
	if apperrors.CodeOf(err) != apperrors.CodeRegistrySealed {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}
}

func TestCheckReferences(t *testing.T) {
	reg := New()
	a := sampleRule("chess-a", "chess")
	a.Requires = []string{"chess-b"}
	b := sampleRule("chess-b", "chess")
	if err := reg.RegisterAll(a, b); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.CheckReferences(); err != nil {
		t.Fatalf("check: %v", err)
	}

	c := sampleRule("platformer-c", "platformer")
	c.Conflicts = []string{"chess-a"}
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if code := apperrors.CodeOf(reg.CheckReferences()); code != apperrors.CodeRuleCatalogReferenceBroken {
		t.Fatalf("code = %s", code)
	}
}
