package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "conctree.v1.Tree"

// TreeServer is the server API of conctree.v1.Tree. Messages are protobuf
// well-known types, so no generated code is needed.
type TreeServer interface {
	Put(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	Get(context.Context, *wrapperspb.Int64Value) (*wrapperspb.BytesValue, error)
	Delete(context.Context, *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	PopMin(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PopMax(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Len(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	Checkpoint(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TreeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Put", newMsg[structpb.Struct], TreeServer.Put),
		unary("Get", newMsg[wrapperspb.Int64Value], TreeServer.Get),
		unary("Delete", newMsg[wrapperspb.Int64Value], TreeServer.Delete),
		unary("PopMin", newMsg[emptypb.Empty], TreeServer.PopMin),
		unary("PopMax", newMsg[emptypb.Empty], TreeServer.PopMax),
		unary("Len", newMsg[emptypb.Empty], TreeServer.Len),
		unary("Checkpoint", newMsg[emptypb.Empty], TreeServer.Checkpoint),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "conctree/v1/tree.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv TreeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newMsg[T any]() *T { return new(T) }

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(TreeServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TreeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(TreeServer), ctx, req.(Req))
			})
		},
	}
}
