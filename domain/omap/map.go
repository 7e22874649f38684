// Package omap provides a concurrent ordered map and set that own their
// nodes. Nodes are drawn from a pool and returned to it only after the
// reclamation scheme has disposed of them.
package omap

import (
	"cmp"

	"go.uber.org/zap"

	"conctree/domain/tree"
	"conctree/infra/memory"
	"conctree/smr"
)

type Map[K, V any] struct {
	tree  *tree.Tree[K, V]
	nodes *memory.Pool[tree.Node[K, V]]
}

func New[K, V any](cmp func(a, b K) int, scheme smr.Scheme, logger *zap.Logger) *Map[K, V] {
	m := &Map[K, V]{
		nodes: memory.NewPool(
			func() *tree.Node[K, V] { return new(tree.Node[K, V]) },
			func(n *tree.Node[K, V]) { n.Reset() },
		),
	}
	m.tree = tree.New(cmp, scheme,
		tree.WithDisposer(m.nodes.Put),
		tree.WithLogger[K, V](logger),
	)
	return m
}

func NewOrdered[K cmp.Ordered, V any](scheme smr.Scheme, logger *zap.Logger) *Map[K, V] {
	return New[K, V](cmp.Compare[K], scheme, logger)
}

// Insert adds key with value. It reports false if key is already present.
func (m *Map[K, V]) Insert(key K, value V) bool {
	n := m.nodes.Get()
	n.Key, n.Value = key, value
	if !m.tree.Insert(n) {
		m.nodes.Put(n)
		return false
	}
	return true
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	g := m.tree.Scheme().Enter()
	defer g.Exit()
	if n := m.tree.Get(g, key); n != nil {
		return n.Value, true
	}
	var zero V
	return zero, false
}

func (m *Map[K, V]) Contains(key K) bool {
	return m.tree.Contains(key)
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	x := m.tree.Extract(key)
	if x.Empty() {
		return false
	}
	x.Release()
	return true
}

// Take removes key and returns its value.
func (m *Map[K, V]) Take(key K) (V, bool) {
	_, v, ok := take(m.tree.Extract(key))
	return v, ok
}

func (m *Map[K, V]) PopMin() (K, V, bool) {
	return take(m.tree.ExtractMin())
}

func (m *Map[K, V]) PopMax() (K, V, bool) {
	return take(m.tree.ExtractMax())
}

// Range calls fn in key order for each entry with a key not less than
// from, until fn returns false.
func (m *Map[K, V]) Range(from K, fn func(K, V) bool) {
	g := m.tree.Scheme().Enter()
	defer g.Exit()
	m.tree.AscendFrom(g, from, func(n *tree.Node[K, V]) bool {
		return fn(n.Key, n.Value)
	})
}

// Each calls fn for every entry in key order until fn returns false.
func (m *Map[K, V]) Each(fn func(K, V) bool) {
	g := m.tree.Scheme().Enter()
	defer g.Exit()
	m.tree.Ascend(g, func(n *tree.Node[K, V]) bool {
		return fn(n.Key, n.Value)
	})
}

func (m *Map[K, V]) Len() int {
	return m.tree.Size()
}

func (m *Map[K, V]) Scheme() smr.Scheme {
	return m.tree.Scheme()
}

// Close removes every entry and waits until their nodes are reclaimed.
// The scheme itself stays open.
func (m *Map[K, V]) Close() error {
	m.tree.Clear()
	m.tree.Scheme().ForceDispose()
	return nil
}

func take[K, V any](x *smr.Exempt[tree.Node[K, V]]) (K, V, bool) {
	n := x.Node()
	if n == nil {
		var (
			zk K
			zv V
		)
		return zk, zv, false
	}
	k, v := n.Key, n.Value
	x.Release()
	return k, v, true
}
