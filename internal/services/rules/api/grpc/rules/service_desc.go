package rules

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ruleforge.rules.v1.RuleService"

// Method names. Requests and responses are google.protobuf.Struct messages
// with snake_case fields.
const (
	MethodCreateConfiguration   = "CreateConfiguration"
	MethodGetConfiguration      = "GetConfiguration"
	MethodEnableRule            = "EnableRule"
	MethodDisableRule           = "DisableRule"
	MethodSetRuleParameter      = "SetRuleParameter"
	MethodGetRuleParameterValue = "GetRuleParameterValue"
	MethodGetRule               = "GetRule"
	MethodListRules             = "ListRules"
	MethodListGames             = "ListGames"
	MethodValidateConfiguration = "ValidateConfiguration"
	MethodExportConfiguration   = "ExportConfiguration"
	MethodImportConfiguration   = "ImportConfiguration"
	MethodDisposeConfiguration  = "DisposeConfiguration"
	MethodGetRecordSchema       = "GetRecordSchema"
	MethodWatchConfiguration    = "WatchConfiguration"
)

// FullMethod returns the wire path of a RuleService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RuleServiceServer is the server API for RuleService.
type RuleServiceServer interface {
	CreateConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnableRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DisableRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetRuleParameter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRuleParameterValue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGames(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImportConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DisposeConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRecordSchema(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchConfiguration(*structpb.Struct, WatchConfigurationServer) error
}

// WatchConfigurationServer is the server side of a WatchConfiguration stream.
type WatchConfigurationServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

// RegisterRuleServiceServer registers srv on s.
func RegisterRuleServiceServer(s grpc.ServiceRegistrar, srv RuleServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes RuleService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateConfiguration, RuleServiceServer.CreateConfiguration),
		unary(MethodGetConfiguration, RuleServiceServer.GetConfiguration),
		unary(MethodEnableRule, RuleServiceServer.EnableRule),
		unary(MethodDisableRule, RuleServiceServer.DisableRule),
		unary(MethodSetRuleParameter, RuleServiceServer.SetRuleParameter),
		unary(MethodGetRuleParameterValue, RuleServiceServer.GetRuleParameterValue),
		unary(MethodGetRule, RuleServiceServer.GetRule),
		unary(MethodListRules, RuleServiceServer.ListRules),
		unary(MethodListGames, RuleServiceServer.ListGames),
		unary(MethodValidateConfiguration, RuleServiceServer.ValidateConfiguration),
		unary(MethodExportConfiguration, RuleServiceServer.ExportConfiguration),
		unary(MethodImportConfiguration, RuleServiceServer.ImportConfiguration),
		unary(MethodDisposeConfiguration, RuleServiceServer.DisposeConfiguration),
		unary(MethodGetRecordSchema, RuleServiceServer.GetRecordSchema),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchConfiguration,
			Handler:       watchConfigurationHandler,
			ServerStreams: true,
		},
	},
	Metadata: "ruleforge/rules/v1/rules.proto",
}

type unaryCall func(RuleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RuleServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RuleServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchConfigurationHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RuleServiceServer).WatchConfiguration(in, &watchConfigurationServer{stream})
}

type watchConfigurationServer struct {
	grpc.ServerStream
}

func (x *watchConfigurationServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}
