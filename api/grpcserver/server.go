// Package grpcserver exposes a TreeService over gRPC as conctree.v1.Tree.
package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"conctree/infra/logutil"
	"conctree/service"
)

// Server adapts TreeService to gRPC.
type Server struct {
	svc    *service.TreeService
	logger *zap.Logger
}

var _ TreeServer = (*Server)(nil)

func NewServer(svc *service.TreeService, logger *zap.Logger) *Server {
	return &Server{svc: svc, logger: logutil.Adjust(logger, "grpc")}
}

// -------------------- Commands --------------------

func (s *Server) Put(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	key, value, err := parseEntry(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ok, err := s.svc.Put(key, value)
	if err != nil {
		return nil, s.internal("put", err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) Delete(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	ok, err := s.svc.Delete(req.GetValue())
	if err != nil {
		return nil, s.internal("delete", err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) PopMin(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.pop("pop min", s.svc.PopMin)
}

func (s *Server) PopMax(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.pop("pop max", s.svc.PopMax)
}

func (s *Server) pop(op string, fn func() (int64, []byte, bool, error)) (*structpb.Struct, error) {
	key, value, ok, err := fn()
	if err != nil {
		return nil, s.internal(op, err)
	}
	if !ok {
		return nil, status.Error(codes.NotFound, "tree is empty")
	}
	return entryStruct(key, value), nil
}

func (s *Server) Checkpoint(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	seq, err := s.svc.Checkpoint()
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return wrapperspb.UInt64(seq), nil
}

// -------------------- Queries --------------------

func (s *Server) Get(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BytesValue, error) {
	v, ok := s.svc.Get(req.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "key %d not found", req.GetValue())
	}
	return wrapperspb.Bytes(v), nil
}

func (s *Server) Len(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(int64(s.svc.Len())), nil
}

func (s *Server) internal(op string, err error) error {
	s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every call at debug level and failures at warn.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logutil.Adjust(logger, "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil && status.Code(err) != codes.NotFound {
			logger.Warn("call failed", zap.String("method", info.FullMethod), zap.Error(err))
		} else {
			logger.Debug("call", zap.String("method", info.FullMethod))
		}
		return resp, err
	}
}
