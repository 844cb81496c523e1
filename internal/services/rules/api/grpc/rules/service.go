// Package rules implements the ruleforge.rules.v1.RuleService gRPC API over
// the rule engine.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/platform/grpc/pagination"
	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/filter"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/record"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/engine"
)

const (
	defaultListRulesPageSize = 25
	maxListRulesPageSize     = 100
)

// Service implements RuleServiceServer.
type Service struct {
	engine *engine.Engine
	logf   func(string, ...any)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogf replaces log.Printf for stream diagnostics.
func WithLogf(logf func(string, ...any)) ServiceOption {
	return func(s *Service) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// NewService creates a Service over eng.
func NewService(eng *engine.Engine, opts ...ServiceOption) *Service {
	s := &Service{engine: eng, logf: log.Printf}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConfiguration starts a configuration with the default rules active.
func (s *Service) CreateConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	baseGame, err := requiredString(in, fieldBaseGame)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	snap, err := s.engine.CreateConfiguration(baseGame, stringField(in, fieldName), stringField(in, fieldDescription))
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return response(map[string]any{fieldConfiguration: snap})
}

// GetConfiguration returns the current snapshot of a configuration.
func (s *Service) GetConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requiredString(in, fieldGameID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	snap, ok := s.engine.GetConfiguration(gameID)
	if !ok {
		return nil, handleDomainError(ctx, configurationNotFound(gameID))
	}
	return response(map[string]any{fieldConfiguration: snap})
}

// EnableRule activates a rule.
func (s *Service) EnableRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.toggle(ctx, in, s.engine.EnableRule)
}

// DisableRule deactivates a rule.
func (s *Service) DisableRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.toggle(ctx, in, s.engine.DisableRule)
}

func (s *Service) toggle(ctx context.Context, in *structpb.Struct, apply func(gameID, ruleID string) (configuration.Snapshot, error)) (*structpb.Struct, error) {
	gameID, err := requiredString(in, fieldGameID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	ruleID, err := requiredString(in, fieldRuleID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	snap, err := apply(gameID, ruleID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return response(map[string]any{fieldConfiguration: snap})
}

// SetRuleParameter stores a parameter value of an active rule.
func (s *Service) SetRuleParameter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gameID, ruleID, key, err := parameterAddress(in)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	value, err := valueField(in, fieldValue)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	snap, err := s.engine.SetRuleParameter(gameID, ruleID, key, value)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return response(map[string]any{fieldConfiguration: snap})
}

// GetRuleParameterValue returns the effective value of a parameter. Unknown
// addresses answer found=false rather than an error.
func (s *Service) GetRuleParameterValue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gameID, ruleID, key, err := parameterAddress(in)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	value, ok := s.engine.GetRuleParameterValue(gameID, ruleID, key)
	if !ok {
		return response(map[string]any{fieldFound: false})
	}
	return response(map[string]any{fieldFound: true, fieldValue: value})
}

// GetRule returns one rule definition.
func (s *Service) GetRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ruleID, err := requiredString(in, fieldRuleID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	def, ok := s.engine.GetRule(ruleID)
	if !ok {
		return nil, handleDomainError(ctx, apperrors.WithMetadata(apperrors.CodeRuleNotFound,
			fmt.Sprintf("rule %s not found", ruleID), map[string]string{"RuleID": ruleID}))
	}
	return response(map[string]any{fieldRule: def})
}

// ListRules returns a page of rules, optionally scoped to one base game and
// narrowed by an AIP-160 filter.
func (s *Service) ListRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	expr := stringField(in, fieldFilter)
	f, err := filter.Parse(expr)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}

	var candidates []rule.Rule
	baseGame := stringField(in, fieldBaseGame)
	if baseGame != "" {
		candidates = s.engine.GetRulesForGame(baseGame)
	} else {
		for _, game := range s.engine.ListGames() {
			candidates = append(candidates, s.engine.GetRulesForGame(game)...)
		}
	}
	matched, err := f.Apply(candidates)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}

	scope := baseGame + "\x00" + expr
	page, err := pagination.OffsetPage(stringField(in, fieldPageToken), int32Field(in, fieldPageSize), len(matched), scope, pagination.PageSizeConfig{
		Default: defaultListRulesPageSize,
		Max:     maxListRulesPageSize,
	})
	if err != nil {
		return nil, handleDomainError(ctx, apperrors.Wrap(apperrors.CodePageTokenInvalid, err.Error(), err))
	}
	return response(map[string]any{
		fieldRules:         matched[page.Offset : page.Offset+page.Limit],
		fieldNextPageToken: page.NextPageToken,
		fieldTotalSize:     len(matched),
	})
}

// ListGames lists the base games with registered rules.
func (s *Service) ListGames(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	games := s.engine.ListGames()
	if games == nil {
		games = []string{}
	}
	return response(map[string]any{fieldGames: games})
}

// ValidateConfiguration reports conflicts and missing dependencies.
func (s *Service) ValidateConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requiredString(in, fieldGameID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	result, ok := s.engine.ValidateConfiguration(gameID)
	if !ok {
		return nil, handleDomainError(ctx, configurationNotFound(gameID))
	}
	return response(map[string]any{fieldValidation: result})
}

// ExportConfiguration returns the record file of a configuration.
func (s *Service) ExportConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requiredString(in, fieldGameID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	out, err := s.engine.ExportConfiguration(gameID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return response(map[string]any{
		fieldFilename: out.Filename,
		fieldData:     string(out.Data),
		fieldRecord:   out.Record,
	})
}

// ImportConfiguration registers a record under a new id.
func (s *Service) ImportConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	data, err := importPayload(in)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	gameID, err := s.engine.ImportConfiguration(data)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	snap, _ := s.engine.GetConfiguration(gameID)
	return response(map[string]any{fieldGameID: gameID, fieldConfiguration: snap})
}

// importPayload accepts the record file as a string under "data" or as an
// object under "record".
func importPayload(in *structpb.Struct) ([]byte, error) {
	if data := stringField(in, fieldData); data != "" {
		return []byte(data), nil
	}
	if v, ok := structField(in, fieldRecord); ok && v.GetStructValue() != nil {
		data, err := json.Marshal(v.GetStructValue().AsMap())
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeRecordMalformed, "encode record", err)
		}
		return data, nil
	}
	return nil, apperrors.WithMetadata(apperrors.CodeArgumentMissing,
		"data or record is required", map[string]string{"Field": fieldData})
}

// DisposeConfiguration removes a configuration and ends its watchers.
func (s *Service) DisposeConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requiredString(in, fieldGameID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	if !s.engine.DisposeConfiguration(gameID) {
		return nil, handleDomainError(ctx, configurationNotFound(gameID))
	}
	return response(map[string]any{fieldDisposed: true})
}

// GetRecordSchema returns the JSON Schema of exported records.
func (s *Service) GetRecordSchema(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return response(map[string]any{fieldSchema: record.Schema()})
}

func parameterAddress(in *structpb.Struct) (gameID, ruleID, key string, err error) {
	if gameID, err = requiredString(in, fieldGameID); err != nil {
		return "", "", "", err
	}
	if ruleID, err = requiredString(in, fieldRuleID); err != nil {
		return "", "", "", err
	}
	if key, err = requiredString(in, fieldKey); err != nil {
		return "", "", "", err
	}
	return gameID, ruleID, key, nil
}

func configurationNotFound(gameID string) error {
	return apperrors.WithMetadata(apperrors.CodeConfigurationNotFound,
		fmt.Sprintf("configuration %s not found", gameID), map[string]string{"GameID": gameID})
}

// handleDomainError maps domain errors to gRPC status errors localized for
// the caller's accept-language metadata.
func handleDomainError(ctx context.Context, err error) error {
	return apperrors.HandleError(err, grpcmeta.LocaleFromContext(ctx))
}
