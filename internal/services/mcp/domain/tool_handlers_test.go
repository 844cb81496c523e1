package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
)

func TestConfigurationCreateHandler(t *testing.T) {
	client := newRulesClient(t)

	t.Run("success", func(t *testing.T) {
		notifier := &recordingNotifier{}
		toolResult, result, err := ConfigurationCreateHandler(client, notifier.notify)(context.Background(), nil, ConfigurationCreateInput{
			BaseGame: "chess",
			Name:     "Club night",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if toolResult == nil {
			t.Fatal("expected non-nil tool result")
		}
		if requestID, _ := toolResult.Meta[grpcmeta.RequestIDHeader].(string); requestID == "" {
			t.Fatal("expected request id in tool result metadata")
		}
		if invocationID, _ := toolResult.Meta[grpcmeta.InvocationIDHeader].(string); invocationID == "" {
			t.Fatal("expected invocation id in tool result metadata")
		}
		if diff := cmp.Diff([]string{"chess-board-theme", "chess-clock"}, result.ActiveRules); diff != "" {
			t.Fatalf("active rules mismatch (-want +got):\n%s", diff)
		}
		if !result.Valid {
			t.Fatalf("expected valid default configuration, errors: %v", result.Errors)
		}
		if got := result.Parameters["chess-clock"]["minutes"]; got != float64(10) {
			t.Fatalf("minutes = %v, want 10", got)
		}
		if diff := cmp.Diff([]string{ConfigurationResourceURI(result.GameID)}, notifier.uris); diff != "" {
			t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing base game", func(t *testing.T) {
		_, _, err := ConfigurationCreateHandler(client, nil)(context.Background(), nil, ConfigurationCreateInput{Name: "X"})
		if err == nil || !strings.Contains(err.Error(), "base_game is required") {
			t.Fatalf("err = %v, want base_game error", err)
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		_, _, err := ConfigurationCreateHandler(client, nil)(context.Background(), nil, ConfigurationCreateInput{BaseGame: "go", Name: "X"})
		if err == nil || !strings.Contains(err.Error(), "GAME_UNKNOWN") {
			t.Fatalf("err = %v, want GAME_UNKNOWN", err)
		}
	})
}

func TestRuleHandlersUseSessionContext(t *testing.T) {
	client := newRulesClient(t)
	created := createChess(t, client)
	session := &sessionContext{}

	if _, _, err := ConfigurationGetHandler(client, session.get)(context.Background(), nil, ConfigurationTargetInput{}); err == nil {
		t.Fatal("expected error without game_id or context")
	}

	notifier := &recordingNotifier{}
	_, setResult, err := SetContextHandler(client, session.set, notifier.notify)(context.Background(), nil, SetContextInput{GameID: created.GameID})
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	if setResult.Context.BaseGame != "chess" {
		t.Fatalf("base game = %q, want chess", setResult.Context.BaseGame)
	}
	if diff := cmp.Diff([]string{ContextResource().URI}, notifier.uris); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}

	_, enabled, err := RuleEnableHandler(client, session.get, nil)(context.Background(), nil, RuleToggleInput{RuleID: "chess-board-size"})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if enabled.GameID != created.GameID {
		t.Fatalf("game id = %q, want %q", enabled.GameID, created.GameID)
	}
	if got := enabled.Parameters["chess-board-size"]["width"]; got != float64(8) {
		t.Fatalf("width = %v, want default 8", got)
	}

	_, disabled, err := RuleDisableHandler(client, session.get, nil)(context.Background(), nil, RuleToggleInput{RuleID: "chess-clock"})
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if diff := cmp.Diff([]string{"chess-board-size", "chess-board-theme"}, disabled.ActiveRules); diff != "" {
		t.Fatalf("active rules mismatch (-want +got):\n%s", diff)
	}
}

func TestSetContextHandlerUnknownConfiguration(t *testing.T) {
	client := newRulesClient(t)
	session := &sessionContext{}
	_, _, err := SetContextHandler(client, session.set, nil)(context.Background(), nil, SetContextInput{GameID: "missing"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
	if session.current.GameID != "" {
		t.Fatalf("context changed to %q", session.current.GameID)
	}
	if _, _, err := SetContextHandler(client, session.set, nil)(context.Background(), nil, SetContextInput{GameID: "  "}); err == nil {
		t.Fatal("expected error for blank game_id")
	}
}

func TestRuleParameterSetHandler(t *testing.T) {
	client := newRulesClient(t)
	created := createChess(t, client)

	t.Run("clamps to range", func(t *testing.T) {
		_, result, err := RuleParameterSetHandler(client, nil, nil)(context.Background(), nil, RuleParameterSetInput{
			GameID: created.GameID,
			RuleID: "chess-clock",
			Key:    "minutes",
			Value:  float64(500),
		})
		if err != nil {
			t.Fatalf("set parameter: %v", err)
		}
		if got := result.ParameterOverrides["chess-clock"]["minutes"]; got != float64(180) {
			t.Fatalf("minutes = %v, want 180", got)
		}
	})

	t.Run("inactive rule", func(t *testing.T) {
		_, _, err := RuleParameterSetHandler(client, nil, nil)(context.Background(), nil, RuleParameterSetInput{
			GameID: created.GameID,
			RuleID: "chess-board-size",
			Key:    "width",
			Value:  float64(10),
		})
		if err == nil || !strings.Contains(err.Error(), "RULE_NOT_ACTIVE") {
			t.Fatalf("err = %v, want RULE_NOT_ACTIVE", err)
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		_, _, err := RuleParameterSetHandler(client, nil, nil)(context.Background(), nil, RuleParameterSetInput{
			GameID: created.GameID,
			RuleID: "chess-clock",
			Key:    "minutes",
			Value:  []any{1},
		})
		if err == nil || !strings.Contains(err.Error(), "value") {
			t.Fatalf("err = %v, want value error", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		_, _, err := RuleParameterSetHandler(client, nil, nil)(context.Background(), nil, RuleParameterSetInput{
			GameID: created.GameID,
			RuleID: "chess-clock",
		})
		if err == nil || !strings.Contains(err.Error(), "key is required") {
			t.Fatalf("err = %v, want key error", err)
		}
	})
}

func TestConfigurationValidateHandlerReportsConflicts(t *testing.T) {
	client := newRulesClient(t)
	created := createChess(t, client)
	for _, ruleID := range []string{"chess-piece-movement", "chess-win-conditions"} {
		if _, _, err := RuleEnableHandler(client, nil, nil)(context.Background(), nil, RuleToggleInput{GameID: created.GameID, RuleID: ruleID}); err != nil {
			t.Fatalf("enable %s: %v", ruleID, err)
		}
	}

	_, result, err := ConfigurationValidateHandler(client, nil)(context.Background(), nil, ConfigurationTargetInput{GameID: created.GameID})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("expected conflicting configuration to be invalid")
	}
	if len(result.Issues) == 0 || result.Issues[0].Kind != "conflict" {
		t.Fatalf("issues = %+v, want conflict", result.Issues)
	}
	if len(result.Errors) != len(result.Issues) {
		t.Fatalf("errors = %v, issues = %v", result.Errors, result.Issues)
	}
}

func TestConfigurationExportImportRoundTrip(t *testing.T) {
	client := newRulesClient(t)
	created := createChess(t, client)
	if _, _, err := RuleParameterSetHandler(client, nil, nil)(context.Background(), nil, RuleParameterSetInput{
		GameID: created.GameID, RuleID: "chess-clock", Key: "increment", Value: float64(5),
	}); err != nil {
		t.Fatalf("set parameter: %v", err)
	}

	_, exported, err := ConfigurationExportHandler(client, nil)(context.Background(), nil, ConfigurationTargetInput{GameID: created.GameID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Filename == "" || !strings.Contains(exported.Data, "chess-clock") {
		t.Fatalf("export = %+v", exported)
	}

	notifier := &recordingNotifier{}
	_, imported, err := ConfigurationImportHandler(client, notifier.notify)(context.Background(), nil, ConfigurationImportInput{Data: exported.Data})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.GameID == created.GameID {
		t.Fatal("expected import to mint a new game id")
	}
	if got := imported.ParameterOverrides["chess-clock"]["increment"]; got != float64(5) {
		t.Fatalf("increment = %v, want 5", got)
	}
	if len(notifier.uris) != 1 {
		t.Fatalf("notifications = %v, want one", notifier.uris)
	}

	if _, _, err := ConfigurationImportHandler(client, nil)(context.Background(), nil, ConfigurationImportInput{Data: "{"}); err == nil || !strings.Contains(err.Error(), "RECORD_MALFORMED") {
		t.Fatalf("err = %v, want RECORD_MALFORMED", err)
	}
	if _, _, err := ConfigurationImportHandler(client, nil)(context.Background(), nil, ConfigurationImportInput{}); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestListRulesHandler(t *testing.T) {
	client := newRulesClient(t)

	_, games, err := ListGamesHandler(client)(context.Background(), nil, ListGamesInput{})
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if diff := cmp.Diff([]string{"chess", "platformer"}, games.Games); diff != "" {
		t.Fatalf("games mismatch (-want +got):\n%s", diff)
	}

	_, result, err := ListRulesHandler(client)(context.Background(), nil, ListRulesInput{
		BaseGame: "chess",
		Filter:   `tag = "default"`,
	})
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	var ids []string
	for _, entry := range result.Rules {
		ids = append(ids, entry.ID)
	}
	if diff := cmp.Diff([]string{"chess-clock", "chess-board-theme"}, ids); diff != "" {
		t.Fatalf("rule ids mismatch (-want +got):\n%s", diff)
	}

	_, page, err := ListRulesHandler(client)(context.Background(), nil, ListRulesInput{BaseGame: "chess", PageSize: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Rules) != 2 || page.NextPageToken == "" {
		t.Fatalf("page = %d rules, token %q", len(page.Rules), page.NextPageToken)
	}

	if _, _, err := ListRulesHandler(client)(context.Background(), nil, ListRulesInput{Filter: "tag ="}); err == nil || !strings.Contains(err.Error(), "FILTER_INVALID") {
		t.Fatalf("err = %v, want FILTER_INVALID", err)
	}
	if _, _, err := ListRulesHandler(client)(context.Background(), nil, ListRulesInput{PageSize: -1}); err == nil {
		t.Fatal("expected error for negative page size")
	}
}

func TestGetRuleHandler(t *testing.T) {
	client := newRulesClient(t)

	_, entry, err := GetRuleHandler(client)(context.Background(), nil, GetRuleInput{RuleID: "chess-board-size"})
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if len(entry.Parameters) != 2 {
		t.Fatalf("parameters = %d, want 2", len(entry.Parameters))
	}
	width := entry.Parameters[0]
	if width.Key != "width" || width.Type != "number" || width.DefaultValue != float64(8) {
		t.Fatalf("width parameter = %+v", width)
	}
	if width.Constraints["max"] != float64(16) {
		t.Fatalf("width constraints = %v", width.Constraints)
	}

	if _, _, err := GetRuleHandler(client)(context.Background(), nil, GetRuleInput{RuleID: "nope"}); err == nil || !strings.Contains(err.Error(), "RULE_NOT_FOUND") {
		t.Fatalf("err = %v, want RULE_NOT_FOUND", err)
	}
}

func TestToolErrorWithoutStatus(t *testing.T) {
	client := failingClient{err: errors.New("connection refused")}
	_, _, err := ListGamesHandler(client)(context.Background(), nil, ListGamesInput{})
	if err == nil || !strings.Contains(err.Error(), "list games failed: connection refused") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigurationResourceHandler(t *testing.T) {
	client := newRulesClient(t)
	created := createChess(t, client)
	handler := ConfigurationResourceHandler(client)

	uri := ConfigurationResourceURI(created.GameID)
	result, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(result.Contents) != 1 || !strings.Contains(result.Contents[0].Text, created.GameID) {
		t.Fatalf("contents = %+v", result.Contents)
	}

	if _, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "configuration://missing"}}); err == nil {
		t.Fatal("expected not found error")
	}
	if _, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "session://x"}}); err == nil {
		t.Fatal("expected URI error")
	}
}

func TestRuleCatalogResourceHandler(t *testing.T) {
	client := newRulesClient(t)
	handler := RuleCatalogResourceHandler(client)

	result, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "rules://platformer"}})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if !strings.Contains(result.Contents[0].Text, `"base_game": "platformer"`) {
		t.Fatalf("contents = %s", result.Contents[0].Text)
	}
	if _, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "rules://go"}}); err == nil {
		t.Fatal("expected not found for unknown game")
	}
}

func TestContextResourceHandler(t *testing.T) {
	session := &sessionContext{}
	handler := ContextResourceHandler(session.get)

	result, err := handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("read context: %v", err)
	}
	if !strings.Contains(result.Contents[0].Text, `"game_id": null`) {
		t.Fatalf("contents = %s", result.Contents[0].Text)
	}

	session.set(Context{GameID: "g-1"})
	result, err = handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "context://current"}})
	if err != nil {
		t.Fatalf("read context: %v", err)
	}
	if !strings.Contains(result.Contents[0].Text, `"game_id": "g-1"`) {
		t.Fatalf("contents = %s", result.Contents[0].Text)
	}

	if _, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "context://other"}}); err == nil {
		t.Fatal("expected URI error")
	}
}
