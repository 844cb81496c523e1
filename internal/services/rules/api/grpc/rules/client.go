package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/record"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/validation"
)

// Client is a typed RuleService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ListRulesRequest selects a page of rules.
type ListRulesRequest struct {
	BaseGame  string
	Filter    string
	PageSize  int32
	PageToken string
}

// ListRulesResponse is one page of rules.
type ListRulesResponse struct {
	Rules         []rule.Rule
	NextPageToken string
	TotalSize     int
}

// Export is a downloaded configuration record.
type Export struct {
	Filename string
	Data     []byte
	Record   record.Record
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) snapshotCall(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	out, err := c.call(ctx, method, fields, opts...)
	if err != nil {
		return configuration.Snapshot{}, err
	}
	return decodeSnapshot(out)
}

func decodeSnapshot(out *structpb.Struct) (configuration.Snapshot, error) {
	var snap configuration.Snapshot
	if err := decodeJSON(out.GetFields()[fieldConfiguration], &snap); err != nil {
		return configuration.Snapshot{}, err
	}
	return snap, nil
}

// CreateConfiguration starts a configuration of baseGame.
func (c *Client) CreateConfiguration(ctx context.Context, baseGame, name, description string, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	return c.snapshotCall(ctx, MethodCreateConfiguration, map[string]any{
		fieldBaseGame:    baseGame,
		fieldName:        name,
		fieldDescription: description,
	}, opts...)
}

// GetConfiguration returns the current snapshot of gameID.
func (c *Client) GetConfiguration(ctx context.Context, gameID string, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	return c.snapshotCall(ctx, MethodGetConfiguration, map[string]any{fieldGameID: gameID}, opts...)
}

// EnableRule activates ruleID in gameID.
func (c *Client) EnableRule(ctx context.Context, gameID, ruleID string, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	return c.snapshotCall(ctx, MethodEnableRule, map[string]any{fieldGameID: gameID, fieldRuleID: ruleID}, opts...)
}

// DisableRule deactivates ruleID in gameID.
func (c *Client) DisableRule(ctx context.Context, gameID, ruleID string, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	return c.snapshotCall(ctx, MethodDisableRule, map[string]any{fieldGameID: gameID, fieldRuleID: ruleID}, opts...)
}

// SetRuleParameter stores value for a parameter of an active rule.
func (c *Client) SetRuleParameter(ctx context.Context, gameID, ruleID, key string, value rule.Value, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	return c.snapshotCall(ctx, MethodSetRuleParameter, map[string]any{
		fieldGameID: gameID,
		fieldRuleID: ruleID,
		fieldKey:    key,
		fieldValue:  value.Any(),
	}, opts...)
}

// GetRuleParameterValue returns the effective value of a parameter.
func (c *Client) GetRuleParameterValue(ctx context.Context, gameID, ruleID, key string, opts ...grpc.CallOption) (rule.Value, bool, error) {
	out, err := c.call(ctx, MethodGetRuleParameterValue, map[string]any{
		fieldGameID: gameID,
		fieldRuleID: ruleID,
		fieldKey:    key,
	}, opts...)
	if err != nil {
		return rule.Value{}, false, err
	}
	if !out.GetFields()[fieldFound].GetBoolValue() {
		return rule.Value{}, false, nil
	}
	value, err := rule.FromAny(out.GetFields()[fieldValue].AsInterface())
	if err != nil {
		return rule.Value{}, false, fmt.Errorf("decode parameter value: %w", err)
	}
	return value, true, nil
}

// GetRule returns the definition of ruleID.
func (c *Client) GetRule(ctx context.Context, ruleID string, opts ...grpc.CallOption) (rule.Rule, error) {
	out, err := c.call(ctx, MethodGetRule, map[string]any{fieldRuleID: ruleID}, opts...)
	if err != nil {
		return rule.Rule{}, err
	}
	var def rule.Rule
	if err := decodeJSON(out.GetFields()[fieldRule], &def); err != nil {
		return rule.Rule{}, err
	}
	return def, nil
}

// ListRules returns a page of rules.
func (c *Client) ListRules(ctx context.Context, req ListRulesRequest, opts ...grpc.CallOption) (ListRulesResponse, error) {
	fields := map[string]any{}
	if req.BaseGame != "" {
		fields[fieldBaseGame] = req.BaseGame
	}
	if req.Filter != "" {
		fields[fieldFilter] = req.Filter
	}
	if req.PageSize > 0 {
		fields[fieldPageSize] = req.PageSize
	}
	if req.PageToken != "" {
		fields[fieldPageToken] = req.PageToken
	}
	out, err := c.call(ctx, MethodListRules, fields, opts...)
	if err != nil {
		return ListRulesResponse{}, err
	}
	var resp ListRulesResponse
	if err := decodeJSON(out.GetFields()[fieldRules], &resp.Rules); err != nil {
		return ListRulesResponse{}, err
	}
	resp.NextPageToken = out.GetFields()[fieldNextPageToken].GetStringValue()
	resp.TotalSize = int(out.GetFields()[fieldTotalSize].GetNumberValue())
	return resp, nil
}

// ListGames lists the base games with registered rules.
func (c *Client) ListGames(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	out, err := c.call(ctx, MethodListGames, map[string]any{}, opts...)
	if err != nil {
		return nil, err
	}
	var games []string
	if err := decodeJSON(out.GetFields()[fieldGames], &games); err != nil {
		return nil, err
	}
	return games, nil
}

// ValidateConfiguration reports conflicts and missing dependencies.
func (c *Client) ValidateConfiguration(ctx context.Context, gameID string, opts ...grpc.CallOption) (validation.Result, error) {
	out, err := c.call(ctx, MethodValidateConfiguration, map[string]any{fieldGameID: gameID}, opts...)
	if err != nil {
		return validation.Result{}, err
	}
	var result validation.Result
	if err := decodeJSON(out.GetFields()[fieldValidation], &result); err != nil {
		return validation.Result{}, err
	}
	return result, nil
}

// ExportConfiguration downloads the record of gameID.
func (c *Client) ExportConfiguration(ctx context.Context, gameID string, opts ...grpc.CallOption) (Export, error) {
	out, err := c.call(ctx, MethodExportConfiguration, map[string]any{fieldGameID: gameID}, opts...)
	if err != nil {
		return Export{}, err
	}
	export := Export{
		Filename: out.GetFields()[fieldFilename].GetStringValue(),
		Data:     []byte(out.GetFields()[fieldData].GetStringValue()),
	}
	if err := decodeJSON(out.GetFields()[fieldRecord], &export.Record); err != nil {
		return Export{}, err
	}
	return export, nil
}

// ImportConfiguration registers the record in data and returns its snapshot.
func (c *Client) ImportConfiguration(ctx context.Context, data []byte, opts ...grpc.CallOption) (configuration.Snapshot, error) {
	return c.snapshotCall(ctx, MethodImportConfiguration, map[string]any{fieldData: string(data)}, opts...)
}

// DisposeConfiguration removes gameID.
func (c *Client) DisposeConfiguration(ctx context.Context, gameID string) error {
	_, err := c.call(ctx, MethodDisposeConfiguration, map[string]any{fieldGameID: gameID})
	return err
}

// GetRecordSchema returns the record JSON Schema document.
func (c *Client) GetRecordSchema(ctx context.Context, opts ...grpc.CallOption) (json.RawMessage, error) {
	out, err := c.call(ctx, MethodGetRecordSchema, map[string]any{}, opts...)
	if err != nil {
		return nil, err
	}
	var schema json.RawMessage
	if err := decodeJSON(out.GetFields()[fieldSchema], &schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// Watcher receives snapshots from a WatchConfiguration stream.
type Watcher struct {
	stream grpc.ClientStream
}

// WatchConfiguration opens a change stream for gameID. Cancel ctx to stop it.
func (c *Client) WatchConfiguration(ctx context.Context, gameID string) (*Watcher, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodWatchConfiguration))
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(map[string]any{fieldGameID: gameID})
	if err != nil {
		return nil, fmt.Errorf("build watch request: %w", err)
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Watcher{stream: stream}, nil
}

// Recv blocks for the next snapshot. It returns io.EOF once the
// configuration is disposed.
func (w *Watcher) Recv() (configuration.Snapshot, error) {
	out := new(structpb.Struct)
	if err := w.stream.RecvMsg(out); err != nil {
		return configuration.Snapshot{}, err
	}
	return decodeSnapshot(out)
}
