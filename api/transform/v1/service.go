// Package transformv1 is the wire protocol between a pipeline and an
// out-of-process transform plugin.
//
// The service is described by hand rather than generated, and its messages
// are protobuf well-known Structs:
//
//	Transform(Struct{tag, time, record}) -> Struct{record}
//	Metadata(Empty)                      -> Struct{name, version, mode}
//
// "record" is JSON text so numbers survive the trip unchanged. Liveness is
// served by the standard grpc.health.v1 service under ServiceName.
package transformv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "gkefilter.v1.TransformService"

	TransformFullMethodName = "/" + ServiceName + "/Transform"
	MetadataFullMethodName  = "/" + ServiceName + "/Metadata"
)

// TransformServiceServer is implemented by plugins.
type TransformServiceServer interface {
	Transform(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Metadata(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// TransformServiceClient is the caller side of TransformServiceServer.
type TransformServiceClient interface {
	Transform(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Metadata(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type transformServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTransformServiceClient(cc grpc.ClientConnInterface) TransformServiceClient {
	return &transformServiceClient{cc}
}

func (c *transformServiceClient) Transform(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TransformFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transformServiceClient) Metadata(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MetadataFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterTransformServiceServer(s grpc.ServiceRegistrar, srv TransformServiceServer) {
	s.RegisterService(&TransformService_ServiceDesc, srv)
}

func transformHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransformServiceServer).Transform(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TransformFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransformServiceServer).Transform(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func metadataHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransformServiceServer).Metadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MetadataFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransformServiceServer).Metadata(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var TransformService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransformServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transform", Handler: transformHandler},
		{MethodName: "Metadata", Handler: metadataHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gkefilter/v1/transform",
}
