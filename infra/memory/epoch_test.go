package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderEpochZeroValueIsInactive(t *testing.T) {
	var r ReaderEpoch
	require.False(t, r.Active())
	require.Equal(t, Inactive, r.Value())
}

func TestReaderEpochEnterExit(t *testing.T) {
	var clock Epoch
	clock.Advance()
	clock.Advance()

	var r ReaderEpoch
	require.Equal(t, uint64(2), r.Enter(&clock))
	require.True(t, r.Active())
	require.Equal(t, uint64(2), r.Value())

	r.Exit()
	require.Equal(t, Inactive, r.Value())
}

func TestMinReaderEpoch(t *testing.T) {
	var clock Epoch
	var a, b, idle ReaderEpoch

	require.Equal(t, Inactive, MinReaderEpoch())
	require.Equal(t, Inactive, MinReaderEpoch(&idle, nil))

	a.Enter(&clock)
	clock.Advance()
	b.Enter(&clock)
	require.Equal(t, uint64(0), MinReaderEpoch(&a, &b, &idle))

	a.Exit()
	require.Equal(t, uint64(1), MinReaderEpoch(&a, &b, &idle))
}
