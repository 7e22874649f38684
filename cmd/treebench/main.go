// Command treebench exercises the concurrent tree under both reclamation
// schemes and checks that every removed node is disposed exactly once.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conctree/infra/logutil"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var level string
	logger := zap.NewNop()
	log := func() *zap.Logger { return logger }

	cmd := &cobra.Command{
		Use:           "treebench",
		Short:         "Stress and verify the concurrent ordered tree",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			logger, err = logutil.New(level)
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&level, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(stressCommand(log), verifyCommand(log))
	return cmd
}
