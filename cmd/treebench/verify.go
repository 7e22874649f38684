package main

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"conctree/smr"
)

func verifyCommand(log func() *zap.Logger) *cobra.Command {
	var scheme string
	var keys int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Insert keys in random order, extract them from two goroutines and check disposal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := schemesFor(scheme)
			if err != nil {
				return err
			}
			for _, k := range kinds {
				if err := verify(k, keys, log()); err != nil {
					return errors.Wrapf(err, "%s", k)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s ok  keys=%d\n", k, keys)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "all", "reclamation scheme: rcu, hp or all")
	cmd.Flags().IntVar(&keys, "keys", 100, "number of keys")
	return cmd
}

func verify(kind smr.Kind, keys int, logger *zap.Logger) error {
	s, err := smr.New(kind, smr.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()

	t := newTree(s, logger)
	nodes := newNodes(0, keys)
	for _, i := range rand.Perm(keys) {
		if !t.Insert(nodes[i]) {
			return errors.Newf("key %d already present", i)
		}
	}
	if t.Size() != keys {
		return errors.Newf("size %d after inserting %d keys", t.Size(), keys)
	}

	var extracted atomic.Int64
	var eg errgroup.Group
	for w := 0; w < 2; w++ {
		eg.Go(func() error {
			for _, n := range nodes {
				if extractRotating(t, n) {
					extracted.Add(1)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if got := extracted.Load(); got != int64(keys) {
		return errors.Newf("extracted %d of %d keys", got, keys)
	}
	if !t.Empty() {
		return errors.Newf("tree holds %d keys after extraction", t.Size())
	}

	s.ForceDispose()
	return checkDisposed(nodes, 1)
}

func checkDisposed(nodes []*node, want int32) error {
	for _, n := range nodes {
		if got := n.Value.disposed.Load(); got != want {
			return errors.Newf("key %d disposed %d times, want %d", n.Key, got, want)
		}
	}
	return nil
}
