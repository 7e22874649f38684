package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"conctree/smr"
)

type stressConfig struct {
	Workers int
	Readers int
	Keys    int
	Rounds  int
}

type stressResult struct {
	Kind     smr.Kind
	Ops      int64
	Reads    int64
	Elapsed  time.Duration
	Disposed int
}

func stressCommand(log func() *zap.Logger) *cobra.Command {
	var scheme string
	cfg := stressConfig{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent writers over disjoint key ranges with readers scanning the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Workers <= 0 || cfg.Keys <= 0 || cfg.Rounds <= 0 {
				return errors.New("workers, keys and rounds must be positive")
			}
			kinds, err := schemesFor(scheme)
			if err != nil {
				return err
			}
			for _, k := range kinds {
				res, err := stress(cmd.Context(), k, cfg, log())
				if err != nil {
					return errors.Wrapf(err, "%s", k)
				}
				secs := res.Elapsed.Seconds()
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s ops=%d (%.0f/s) reads=%d (%.0f/s) disposed=%d in %s\n",
					res.Kind, res.Ops, float64(res.Ops)/secs, res.Reads, float64(res.Reads)/secs,
					res.Disposed, res.Elapsed.Round(time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "all", "reclamation scheme: rcu, hp or all")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 8, "writer goroutines")
	cmd.Flags().IntVar(&cfg.Readers, "readers", 2, "reader goroutines")
	cmd.Flags().IntVar(&cfg.Keys, "keys", 1000, "keys per writer")
	cmd.Flags().IntVar(&cfg.Rounds, "rounds", 10, "insert/extract rounds per writer")
	return cmd
}

func stress(ctx context.Context, kind smr.Kind, cfg stressConfig, logger *zap.Logger) (stressResult, error) {
	s, err := smr.New(kind, smr.Options{Logger: logger})
	if err != nil {
		return stressResult{}, err
	}
	defer s.Close()

	t := newTree(s, logger)
	all := make([][]*node, cfg.Workers*cfg.Rounds)

	var ops, reads atomic.Int64
	var writersDone atomic.Bool
	start := time.Now()

	writers, wctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		writers.Go(func() error {
			for r := 0; r < cfg.Rounds; r++ {
				if err := wctx.Err(); err != nil {
					return err
				}
				nodes := newNodes(w*cfg.Keys, cfg.Keys)
				all[w*cfg.Rounds+r] = nodes
				for _, n := range nodes {
					if !t.Insert(n) {
						return errors.Newf("key %d already present", n.Key)
					}
				}
				for _, n := range nodes {
					if !extractRotating(t, n) {
						return errors.Newf("key %d missing", n.Key)
					}
				}
				ops.Add(int64(2 * len(nodes)))
			}
			return nil
		})
	}

	var readers errgroup.Group
	for i := 0; i < cfg.Readers; i++ {
		readers.Go(func() error {
			for !writersDone.Load() {
				g := s.Enter()
				prev, first := 0, true
				var err error
				t.Ascend(g, func(n *node) bool {
					if !first && n.Key <= prev {
						err = errors.Newf("ascend out of order: %d after %d", n.Key, prev)
						return false
					}
					prev, first = n.Key, false
					reads.Add(1)
					return true
				})
				g.Exit()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	werr := writers.Wait()
	writersDone.Store(true)
	rerr := readers.Wait()
	if err := errors.CombineErrors(werr, rerr); err != nil {
		return stressResult{}, err
	}
	elapsed := time.Since(start)

	if !t.Empty() {
		return stressResult{}, errors.Newf("tree holds %d keys after stress", t.Size())
	}
	s.ForceDispose()

	disposed := 0
	for _, nodes := range all {
		if err := checkDisposed(nodes, 1); err != nil {
			return stressResult{}, err
		}
		disposed += len(nodes)
	}
	return stressResult{Kind: kind, Ops: ops.Load(), Reads: reads.Load(), Elapsed: elapsed, Disposed: disposed}, nil
}
