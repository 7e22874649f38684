package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conctree/smr"
)

func TestVerifyBothSchemes(t *testing.T) {
	for _, k := range []smr.Kind{smr.KindRCU, smr.KindHP} {
		t.Run(k.String(), func(t *testing.T) {
			require.NoError(t, verify(k, 100, zaptest.NewLogger(t)))
		})
	}
}

func TestStressSmall(t *testing.T) {
	cfg := stressConfig{Workers: 4, Readers: 2, Keys: 200, Rounds: 3}
	for _, k := range []smr.Kind{smr.KindRCU, smr.KindHP} {
		t.Run(k.String(), func(t *testing.T) {
			res, err := stress(context.Background(), k, cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			require.EqualValues(t, 2*cfg.Workers*cfg.Keys*cfg.Rounds, res.Ops)
			require.Equal(t, cfg.Workers*cfg.Keys*cfg.Rounds, res.Disposed)
		})
	}
}

func TestCommands(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"verify", "--keys", "30"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "rcu  ok")
	require.Contains(t, out.String(), "hp   ok")

	out.Reset()
	cmd = rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"stress", "--scheme", "hp", "--workers", "2", "--keys", "50", "--rounds", "2"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "disposed=200")

	cmd = rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"verify", "--scheme", "gc"})
	require.Error(t, cmd.Execute())
}
