package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"conctree/infra/snapshot"
	"conctree/service"
	"conctree/smr"
)

func startServer(t *testing.T, opts service.Options) *Client {
	scheme, err := smr.New(smr.KindHP, smr.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	svc := service.New(scheme, opts)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogger(zaptest.NewLogger(t))))
	Register(srv, NewServer(svc, zaptest.NewLogger(t)))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = svc.Close()
		_ = scheme.Close()
	})
	return NewClient(conn)
}

func TestTreeOverGRPC(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, service.Options{})

	for _, k := range []int64{3, 1, 2} {
		ok, err := c.Put(ctx, k, []byte{byte(k)})
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := c.Put(ctx, 2, nil)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	v, found, err := c.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{2}, v)

	_, found, err = c.Get(ctx, 99)
	require.NoError(t, err)
	require.False(t, found)

	k, v, found, err := c.PopMin(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 1, k)
	require.Equal(t, []byte{1}, v)

	k, _, found, err = c.PopMax(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 3, k)

	ok, err = c.Delete(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, found, err = c.PopMin(ctx)
	require.NoError(t, err)
	require.False(t, found)

	_, err = c.Checkpoint(ctx)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestCheckpointOverGRPC(t *testing.T) {
	store, err := snapshot.Open(filepath.Join(t.TempDir(), "snap"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	c := startServer(t, service.Options{Store: store})
	_, err = c.Put(ctx, 10, []byte("x"))
	require.NoError(t, err)

	seq, err := c.Checkpoint(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, seq)
}

func TestParseEntry(t *testing.T) {
	key, value, err := parseEntry(entryStruct(-9007199254740993, []byte("v")))
	require.NoError(t, err)
	require.EqualValues(t, -9007199254740993, key)
	require.Equal(t, []byte("v"), value)

	s, err := structpb.NewStruct(map[string]any{"key": 12})
	require.NoError(t, err)
	key, value, err = parseEntry(s)
	require.NoError(t, err)
	require.EqualValues(t, 12, key)
	require.Empty(t, value)

	for _, bad := range []map[string]any{
		{},
		{"key": 1.5},
		{"key": "x"},
		{"key": true},
		{"key": "1", "value": "!!"},
	} {
		s, err := structpb.NewStruct(bad)
		require.NoError(t, err)
		_, _, err = parseEntry(s)
		require.Error(t, err)
	}
}
