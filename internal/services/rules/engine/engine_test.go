package engine

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/chess"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/manifest"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/platformer"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

type recordingObserver struct {
	mu     sync.Mutex
	calls  []string
	rounds []int
	live   int
}

func (o *recordingObserver) CallCompleted(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s:%s", op, apperrors.CodeOf(err)))
}

func (o *recordingObserver) NotificationRound(delivered int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rounds = append(o.rounds, delivered)
}

func (o *recordingObserver) ConfigurationsLive(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.live = count
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	reg := registry.New()
	if err := manifest.RegisterAll(reg); err != nil {
		t.Fatalf("register catalogs: %v", err)
	}
	e, err := New(reg, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestCreateConfigurationActivatesChessDefaults(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("chess", "My Chess", "desc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var want []string
	for _, r := range e.GetRulesForGame("chess") {
		if r.HasTag(rule.TagDefault) {
			want = append(want, r.ID)
		}
	}
	slices.Sort(want)
	if diff := cmp.Diff(want, snap.ActiveRules); diff != "" {
		t.Fatalf("active rules (-want +got):\n%s", diff)
	}
}

func TestEnableAndSetBoardWidth(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("chess", "My Chess", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnableRule(snap.GameID, chess.RuleBoardSize); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := e.SetRuleParameter(snap.GameID, chess.RuleBoardSize, "width", rule.Number(12)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := e.GetRuleParameterValue(snap.GameID, chess.RuleBoardSize, "width")
	if !ok || !got.Equal(rule.Number(12)) {
		t.Fatalf("width = %s, %v; want 12", got, ok)
	}
}

func TestConflictingChessRulesInvalidateConfiguration(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("chess", "Variant", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{chess.RulePieceMovement, chess.RuleWinConditions} {
		if _, err := e.EnableRule(snap.GameID, id); err != nil {
			t.Fatalf("enable %s: %v", id, err)
		}
	}
	result, ok := e.ValidateConfiguration(snap.GameID)
	if !ok {
		t.Fatal("expected configuration")
	}
	if result.Valid {
		t.Fatal("expected invalid configuration")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %v, want one per declared direction", result.Errors)
	}
}

func TestImportRejectsRuleFromAnotherGame(t *testing.T) {
	e := newTestEngine(t)
	data := []byte(`{"schemaVersion":1,"gameId":"x","baseGame":"platformer","name":"Bad","description":"",` +
		`"activeRules":["platformer-gravity","chess-clock"],"parameterOverrides":{}}`)

	_, err := e.ImportConfiguration(data)
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := e.GetConfiguration("x"); ok {
		t.Fatal("imported id must never be used")
	}
	if e.store.Len() != 0 {
		t.Fatalf("import created %d configurations", e.store.Len())
	}
}

func TestImportRejectsMalformedRecord(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ImportConfiguration([]byte("not json"))
	if !apperrors.IsKind(err, apperrors.KindParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("platformer", "Speed Run", "fast")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnableRule(snap.GameID, platformer.RuleDoubleJump); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetRuleParameter(snap.GameID, platformer.RuleDoubleJump, "jumps", rule.Number(4)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetRuleParameter(snap.GameID, platformer.RulePalette, "sky", rule.String("#000")); err != nil {
		t.Fatal(err)
	}
	original, _ := e.GetConfiguration(snap.GameID)

	exported, err := e.ExportConfiguration(snap.GameID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Filename != "speed-run.rules.json" {
		t.Fatalf("filename = %q", exported.Filename)
	}
	newID, err := e.ImportConfiguration(exported.Data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if newID == snap.GameID {
		t.Fatal("import must mint a new id")
	}
	imported, ok := e.GetConfiguration(newID)
	if !ok {
		t.Fatal("imported configuration missing")
	}
	if diff := cmp.Diff(original.ActiveRules, imported.ActiveRules); diff != "" {
		t.Fatalf("active rules (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original.ParameterOverrides, imported.ParameterOverrides, cmp.AllowUnexported(rule.Value{})); diff != "" {
		t.Fatalf("overrides (-want +got):\n%s", diff)
	}
	if imported.Name != "Speed Run" || imported.Description != "fast" {
		t.Fatalf("imported metadata = %q/%q", imported.Name, imported.Description)
	}
}

func TestExportUnknownConfiguration(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ExportConfiguration("missing"); apperrors.CodeOf(err) != apperrors.CodeConfigurationNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestOnConfigurationChangeDeliversEachMutation(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("chess", "Live", "")
	if err != nil {
		t.Fatal(err)
	}
	var editor, loop []configuration.Snapshot
	subEditor, err := e.OnConfigurationChange(snap.GameID, func(s configuration.Snapshot) { editor = append(editor, s) })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.OnConfigurationChange(snap.GameID, func(s configuration.Snapshot) { loop = append(loop, s) }); err != nil {
		t.Fatal(err)
	}

	if _, err := e.SetRuleParameter(snap.GameID, chess.RuleClock, "minutes", rule.Number(3)); err != nil {
		t.Fatal(err)
	}
	subEditor.Unsubscribe()
	if _, err := e.DisableRule(snap.GameID, chess.RuleClock); err != nil {
		t.Fatal(err)
	}

	if len(editor) != 1 || len(loop) != 2 {
		t.Fatalf("editor=%d loop=%d", len(editor), len(loop))
	}
	if !loop[0].Values[chess.RuleClock]["minutes"].Equal(rule.Number(3)) {
		t.Fatalf("first round values = %v", loop[0].Values)
	}
	if loop[1].IsActive(chess.RuleClock) {
		t.Fatal("second round must reflect the disable")
	}
	if _, err := e.OnConfigurationChange("missing", func(configuration.Snapshot) {}); err == nil {
		t.Fatal("expected not found")
	}
}

func TestDisposeConfiguration(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, WithObserver(obs))
	snap, err := e.CreateConfiguration("chess", "Temp", "")
	if err != nil {
		t.Fatal(err)
	}
	sub, err := e.OnConfigurationChange(snap.GameID, func(configuration.Snapshot) {})
	if err != nil {
		t.Fatal(err)
	}
	if e.Subscribers(snap.GameID) != 1 {
		t.Fatal("expected one subscriber")
	}
	if !e.DisposeConfiguration(snap.GameID) {
		t.Fatal("expected dispose")
	}
	<-sub.Done()
	if e.DisposeConfiguration(snap.GameID) {
		t.Fatal("second dispose must fail")
	}
	if obs.live != 0 {
		t.Fatalf("live = %d", obs.live)
	}
}

func TestObserverSeesCallsAndRounds(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, WithObserver(obs))
	snap, err := e.CreateConfiguration("chess", "Watched", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.OnConfigurationChange(snap.GameID, func(configuration.Snapshot) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnableRule(snap.GameID, chess.RuleFogOfWar); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetRuleParameter(snap.GameID, chess.RuleBoardSize, "width", rule.Number(9)); err == nil {
		t.Fatal("expected inactive rule error")
	}

	want := []string{
		"create_configuration:UNKNOWN",
		"enable_rule:UNKNOWN",
		"set_rule_parameter:RULE_NOT_ACTIVE",
	}
	if diff := cmp.Diff(want, obs.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, obs.rounds); diff != "" {
		t.Fatalf("rounds (-want +got):\n%s", diff)
	}
	if obs.live != 1 {
		t.Fatalf("live = %d", obs.live)
	}
}

func TestNewRejectsBrokenCatalog(t *testing.T) {
	reg := registry.New()
	if err := reg.Register(rule.Rule{ID: "chess-a", Name: "A", BaseGame: "chess", Requires: []string{"chess-missing"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); apperrors.CodeOf(err) != apperrors.CodeRuleCatalogReferenceBroken {
		t.Fatalf("err = %v", err)
	}
	if _, err := New(nil); err == nil {
		t.Fatal("expected nil registry error")
	}
}

func TestNewSealsRegistry(t *testing.T) {
	reg := registry.New()
	if err := chess.Register(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if err := platformer.Register(reg); apperrors.CodeOf(err) != apperrors.CodeRegistrySealed {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentCallersAreSerialized(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("platformer", "Shared", "")
	if err != nil {
		t.Fatal(err)
	}
	rounds := 0
	if _, err := e.OnConfigurationChange(snap.GameID, func(configuration.Snapshot) { rounds++ }); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.SetRuleParameter(snap.GameID, platformer.RuleLives, "count", rule.Number(float64(i%9+1))); err != nil {
				t.Errorf("set: %v", err)
			}
			e.GetConfiguration(snap.GameID)
		}(i)
	}
	wg.Wait()
	if rounds != 20 {
		t.Fatalf("rounds = %d, want 20", rounds)
	}
	if games := e.ListGames(); len(games) != 2 {
		t.Fatalf("games = %v", games)
	}
}

func TestListenerCanReadEngineDuringDelivery(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("chess", "Loop", "")
	if err != nil {
		t.Fatal(err)
	}

	var (
		width rule.Value
		valid bool
		seen  bool
	)
	if _, err := e.OnConfigurationChange(snap.GameID, func(s configuration.Snapshot) {
		width, _ = e.GetRuleParameterValue(s.GameID, chess.RuleBoardSize, "width")
		result, _ := e.ValidateConfiguration(s.GameID)
		valid = result.Valid
		_, seen = e.GetConfiguration(s.GameID)
	}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.EnableRule(snap.GameID, chess.RuleBoardSize)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("enable: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("enable blocked while its listener read the engine")
	}

	if !seen || !valid {
		t.Fatalf("listener saw configuration=%v valid=%v", seen, valid)
	}
	if !width.Equal(rule.Number(8)) {
		t.Fatalf("width read in listener = %s, want 8", width)
	}
}

func TestRoundsFollowCallOrder(t *testing.T) {
	e := newTestEngine(t)
	snap, err := e.CreateConfiguration("chess", "Ordered", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnableRule(snap.GameID, chess.RuleBoardSize); err != nil {
		t.Fatal(err)
	}

	var (
		mu   sync.Mutex
		seen []float64
	)
	if _, err := e.OnConfigurationChange(snap.GameID, func(s configuration.Snapshot) {
		n, _ := s.Values[chess.RuleBoardSize]["width"].NumberValue()
		// Reading back must agree with the delivered snapshot.
		current, _ := e.GetRuleParameterValue(s.GameID, chess.RuleBoardSize, "width")
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		if !current.Equal(rule.Number(n)) {
			t.Errorf("engine width %s while delivering %g", current, n)
		}
	}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 4; i <= 16; i++ {
		wg.Add(1)
		go func(width int) {
			defer wg.Done()
			if _, err := e.SetRuleParameter(snap.GameID, chess.RuleBoardSize, "width", rule.Number(float64(width))); err != nil {
				t.Errorf("set: %v", err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 13 {
		t.Fatalf("rounds = %d, want 13", len(seen))
	}
	last, _ := e.GetRuleParameterValue(snap.GameID, chess.RuleBoardSize, "width")
	if !last.Equal(rule.Number(seen[len(seen)-1])) {
		t.Fatalf("last round width %g, engine width %s", seen[len(seen)-1], last)
	}
}

func TestGetRuleDoesNotExposeCatalogBounds(t *testing.T) {
	e := newTestEngine(t)
	def, ok := e.GetRule(chess.RuleBoardSize)
	if !ok {
		t.Fatal("expected board size rule")
	}
	*def.Parameters[0].Constraints.(rule.NumberConstraints).Max = 1000

	snap, err := e.CreateConfiguration("chess", "Bounds", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnableRule(snap.GameID, chess.RuleBoardSize); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetRuleParameter(snap.GameID, chess.RuleBoardSize, "width", rule.Number(500)); err != nil {
		t.Fatal(err)
	}
	got, _ := e.GetRuleParameterValue(snap.GameID, chess.RuleBoardSize, "width")
	if !got.Equal(rule.Number(16)) {
		t.Fatalf("width = %s, want clamp to 16", got)
	}
}
