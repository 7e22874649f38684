package main

import (
	"sync/atomic"

	"go.uber.org/zap"

	"conctree/domain/tree"
	"conctree/smr"
)

type item struct {
	disposed atomic.Int32
}

type node = tree.Node[int, *item]

func newTree(s smr.Scheme, logger *zap.Logger) *tree.Tree[int, *item] {
	return tree.NewOrdered(s,
		tree.WithDisposer(func(n *node) { n.Value.disposed.Add(1) }),
		tree.WithLogger[int, *item](logger),
	)
}

func newNodes(base, n int) []*node {
	nodes := make([]*node, n)
	for i := range nodes {
		nodes[i] = &node{Key: base + i, Value: &item{}}
	}
	return nodes
}

func cmpInt(q, k int) int {
	switch {
	case q < k:
		return -1
	case q > k:
		return 1
	}
	return 0
}

// extractRotating removes n using one of the three removal forms, chosen by
// the key modulo three.
func extractRotating(t *tree.Tree[int, *item], n *node) bool {
	var x *smr.Exempt[node]
	switch n.Key % 3 {
	case 0:
		x = t.Extract(n.Key)
	case 1:
		x = t.ExtractNode(n)
	default:
		x = t.ExtractWith(tree.Probe(n.Key, cmpInt))
	}
	if x.Empty() {
		return false
	}
	x.Release()
	return true
}

func schemesFor(name string) ([]smr.Kind, error) {
	if name == "all" || name == "" {
		return []smr.Kind{smr.KindRCU, smr.KindHP}, nil
	}
	k, err := smr.ParseKind(name)
	if err != nil {
		return nil, err
	}
	return []smr.Kind{k}, nil
}
