package telemetry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "smokewatch.v1.TelemetryQueryService"

// Full method names used by clients.
const (
	ListDevicesMethod  = "/" + ServiceName + "/ListDevices"
	GetDeviceMethod    = "/" + ServiceName + "/GetDevice"
	LatestDeviceMethod = "/" + ServiceName + "/LatestDevice"
	ListAlarmsMethod   = "/" + ServiceName + "/ListAlarms"
)

// QueryServer is the server side of TelemetryQueryService.
type QueryServer interface {
	ListDevices(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	GetDevice(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	LatestDevice(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ListAlarms(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error)
}

// ServiceDesc describes TelemetryQueryService for grpc.ServiceRegistrar.
//
//nolint:gochecknoglobals // Mirrors generated service descriptors.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListDevices",
			Handler:    unary(ListDevicesMethod, newEmpty, QueryServer.ListDevices),
		},
		{
			MethodName: "GetDevice",
			Handler:    unary(GetDeviceMethod, newString, QueryServer.GetDevice),
		},
		{
			MethodName: "LatestDevice",
			Handler:    unary(LatestDeviceMethod, newEmpty, QueryServer.LatestDevice),
		},
		{
			MethodName: "ListAlarms",
			Handler:    unary(ListAlarmsMethod, newString, QueryServer.ListAlarms),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smokewatch/v1/telemetry.proto",
}

// Register attaches srv to the registrar.
func Register(registrar grpc.ServiceRegistrar, srv QueryServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// unary builds a method handler that decodes Req, runs interceptors and dispatches to call.
func unary[Req, Resp any](
	method string,
	newReq func() Req,
	call func(QueryServer, context.Context, Req) (Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(QueryServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(Req)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}
