package logutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdjustNil(t *testing.T) {
	l := Adjust(nil)
	require.NotNil(t, l)
	require.NotPanics(t, func() { l.Info("dropped") })
}

func TestAdjustNames(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Adjust(zap.New(core), "smr", "rcu")
	l.Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "smr.rcu", entries[0].LoggerName)
}

func TestNewLevels(t *testing.T) {
	l, err := New("warn")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New("loud")
	require.Error(t, err)
}
