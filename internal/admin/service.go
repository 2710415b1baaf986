package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "streamvault.admin.v1.Admin"

const (
	dumpMethod  = "/" + ServiceName + "/Dump"
	saveMethod  = "/" + ServiceName + "/Save"
	clearMethod = "/" + ServiceName + "/Clear"
)

// AdminServer is the server API for the Admin service. Messages are protobuf
// well-known types so no generated code is needed.
type AdminServer interface {
	Dump(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Save(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Clear(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dump", Handler: dumpHandler},
		{MethodName: "Save", Handler: saveHandler},
		{MethodName: "Clear", Handler: clearHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&serviceDesc, srv)
}

func dumpHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Dump(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dumpMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Dump(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func saveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Save(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: saveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Save(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func clearHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Clear(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: clearMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Clear(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
