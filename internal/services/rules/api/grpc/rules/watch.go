package rules

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcmeta "github.com/louisbranch/ruleforge/internal/services/rules/api/grpc/metadata"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/notify"
)

// WatchConfiguration streams the current snapshot followed by one message per
// change. Slow receivers only see the latest pending snapshot. The stream
// ends cleanly when the configuration is disposed.
func (s *Service) WatchConfiguration(in *structpb.Struct, stream WatchConfigurationServer) error {
	ctx := stream.Context()
	gameID, err := requiredString(in, fieldGameID)
	if err != nil {
		return handleDomainError(ctx, err)
	}

	updates := notify.NewLatest[configuration.Snapshot]()
	sub, err := s.engine.OnConfigurationChange(gameID, updates.Offer)
	if err != nil {
		return handleDomainError(ctx, err)
	}
	defer sub.Unsubscribe()

	current, ok := s.engine.GetConfiguration(gameID)
	if !ok {
		return handleDomainError(ctx, configurationNotFound(gameID))
	}
	if err := sendSnapshot(stream, current); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case snap := <-updates.C():
			if err := sendSnapshot(stream, snap); err != nil {
				return err
			}
		case <-sub.Done():
			select {
			case snap := <-updates.C():
				if err := sendSnapshot(stream, snap); err != nil {
					return err
				}
			default:
			}
			s.logf("watch %s ended: configuration disposed (request_id=%s)", gameID, grpcmeta.RequestIDFromContext(ctx))
			return nil
		}
	}
}

func sendSnapshot(stream WatchConfigurationServer, snap configuration.Snapshot) error {
	msg, err := response(map[string]any{fieldConfiguration: snap})
	if err != nil {
		return status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	return stream.Send(msg)
}
