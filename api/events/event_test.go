package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	for _, e := range []Event{
		{Kind: KindDelete, Key: -42, Seq: 7, Value: []byte("x")},
		{Kind: KindPopMax, Key: math.MaxInt64, Seq: math.MaxUint64},
	} {
		b, err := Encode(e)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		require.Equal(t, e, got)
	}

	_, err := Decode([]byte{0xff, 0x01})
	require.Error(t, err)
}

func TestPartitionKey(t *testing.T) {
	require.Len(t, PartitionKey(5), 8)
	require.NotEqual(t, PartitionKey(5), PartitionKey(6))
}
