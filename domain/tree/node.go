package tree

import (
	"sync"
	"sync/atomic"

	"conctree/smr"
)

const (
	left  = 0
	right = 1
)

// sentinel ranks; user keys are finite.
const (
	finite uint8 = iota
	inf1
	inf2
)

// Node is a tree entry. Callers allocate leaves, fill Key and Value, and
// hand them to Insert. Routers are allocated by the tree.
type Node[K, V any] struct {
	Key   K
	Value V

	hdr   smr.Header
	inf   uint8
	leaf  bool
	mu    sync.Mutex
	child [2]atomic.Pointer[Node[K, V]]
}

// State returns the node's reclamation state.
func (n *Node[K, V]) State() smr.State {
	return n.hdr.State()
}

// Reset clears a disposed node so it can be inserted again.
func (n *Node[K, V]) Reset() {
	n.hdr.Reset()
	var zk K
	var zv V
	n.Key, n.Value = zk, zv
	n.inf = finite
	n.leaf = false
	n.child[left].Store(nil)
	n.child[right].Store(nil)
}

func newSentinel[K, V any](rank uint8) *Node[K, V] {
	n := &Node[K, V]{inf: rank, leaf: true}
	n.hdr.Link()
	return n
}
