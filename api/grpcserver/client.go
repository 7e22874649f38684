package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a typed client for conctree.v1.Tree.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Put(ctx context.Context, key int64, value []byte) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, fullMethod("Put"), entryStruct(key, value), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Get reports false, with a nil error, when key is absent.
func (c *Client) Get(ctx context.Context, key int64) ([]byte, bool, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, fullMethod("Get"), wrapperspb.Int64(key), out)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out.GetValue(), true, nil
}

func (c *Client) Delete(ctx context.Context, key int64) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, fullMethod("Delete"), wrapperspb.Int64(key), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) PopMin(ctx context.Context) (int64, []byte, bool, error) {
	return c.pop(ctx, "PopMin")
}

func (c *Client) PopMax(ctx context.Context) (int64, []byte, bool, error) {
	return c.pop(ctx, "PopMax")
}

func (c *Client) pop(ctx context.Context, method string) (int64, []byte, bool, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, fullMethod(method), &emptypb.Empty{}, out)
	if status.Code(err) == codes.NotFound {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	key, value, err := parseEntry(out)
	return key, value, err == nil, err
}

func (c *Client) Len(ctx context.Context) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, fullMethod("Len"), &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) Checkpoint(ctx context.Context) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, fullMethod("Checkpoint"), &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
