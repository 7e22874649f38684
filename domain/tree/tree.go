package tree

import (
	"cmp"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"conctree/infra/logutil"
	"conctree/infra/memory"
	"conctree/smr"
)

// Hazard slots used by traversals. Slots 0-2 rotate along the search path
// so grandparent, parent and leaf stay protected together.
const (
	slotAnchor = 3
	slotCursor = 4
	slotResult = 5
)

// Tree is a concurrent ordered map from K to leaves of type *Node[K, V].
type Tree[K, V any] struct {
	cmp     func(a, b K) int
	scheme  smr.Scheme
	root    *Node[K, V]
	size    atomic.Int64
	dispose func(*Node[K, V])
	routers *memory.Pool[Node[K, V]]
	logger  *zap.Logger
}

type Option[K, V any] func(*Tree[K, V])

// WithDisposer sets the callback run once per extracted leaf when the
// scheme reclaims it.
func WithDisposer[K, V any](fn func(*Node[K, V])) Option[K, V] {
	return func(t *Tree[K, V]) { t.dispose = fn }
}

func WithLogger[K, V any](logger *zap.Logger) Option[K, V] {
	return func(t *Tree[K, V]) { t.logger = logger }
}

// New creates an empty tree ordered by cmp whose removed nodes are
// reclaimed through scheme.
func New[K, V any](cmp func(a, b K) int, scheme smr.Scheme, opts ...Option[K, V]) *Tree[K, V] {
	t := &Tree[K, V]{cmp: cmp, scheme: scheme}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logutil.Adjust(t.logger, "tree")
	t.routers = memory.NewPool(
		func() *Node[K, V] { return new(Node[K, V]) },
		func(n *Node[K, V]) { n.Reset() },
	)

	t.root = &Node[K, V]{inf: inf2}
	t.root.hdr.Link()
	t.root.child[left].Store(newSentinel[K, V](inf1))
	t.root.child[right].Store(newSentinel[K, V](inf2))

	t.logger.Debug("tree created", zap.Stringer("scheme", scheme.Kind()))
	return t
}

// NewOrdered creates a tree over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any](scheme smr.Scheme, opts ...Option[K, V]) *Tree[K, V] {
	return New(cmp.Compare[K], scheme, opts...)
}

// Probe adapts a key of another type and a comparator to a lookup probe.
// The probe returns cmp(q, k) for a tree key k.
func Probe[Q, K any](q Q, cmp func(q Q, k K) int) func(K) int {
	return func(k K) int { return cmp(q, k) }
}

func (t *Tree[K, V]) Scheme() smr.Scheme { return t.scheme }

// Size is the number of linked leaves.
func (t *Tree[K, V]) Size() int {
	return int(t.size.Load())
}

func (t *Tree[K, V]) Empty() bool {
	return t.size.Load() == 0
}

// Insert links n. It reports false, leaving n untouched, if a leaf with an
// equal key is already present.
func (t *Tree[K, V]) Insert(n *Node[K, V]) bool {
	if n.hdr.State() != smr.StateUnlinked {
		panic(errors.AssertionFailedf("tree: insert of node in state %s", n.hdr.State()))
	}
	n.leaf = true
	n.inf = finite

	g := t.scheme.Enter()
	defer g.Exit()

	route := t.router(t.probe(n.Key))
	for {
		pt := t.search(g, route, false)
		l := pt.l
		if l.inf == finite && t.cmp(n.Key, l.Key) == 0 {
			return false
		}
		if t.link(pt, n) {
			t.size.Add(1)
			return true
		}
	}
}

func (t *Tree[K, V]) link(pt path[K, V], n *Node[K, V]) bool {
	p, l := pt.p, pt.l
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hdr.Linked() || p.child[pt.ldir].Load() != l {
		return false
	}

	r := t.routers.Get()
	switch {
	case l.inf != finite:
		r.inf = l.inf
		r.child[left].Store(n)
		r.child[right].Store(l)
	case t.cmp(n.Key, l.Key) < 0:
		r.Key = l.Key
		r.child[left].Store(n)
		r.child[right].Store(l)
	default:
		r.Key = n.Key
		r.child[left].Store(l)
		r.child[right].Store(n)
	}
	n.hdr.Link()
	r.hdr.Link()
	p.child[pt.ldir].Store(r)
	return true
}

// Get returns the leaf with key, or nil. The leaf is valid until g exits.
func (t *Tree[K, V]) Get(g smr.Guard, key K) *Node[K, V] {
	return t.GetWith(g, t.probe(key))
}

// GetWith looks up the leaf for which probe returns 0. probe must order
// keys consistently with the tree's comparator.
func (t *Tree[K, V]) GetWith(g smr.Guard, probe func(K) int) *Node[K, V] {
	mustGuard(g)
	pt := t.search(g, t.router(probe), false)
	if pt.l.inf != finite || probe(pt.l.Key) != 0 {
		return nil
	}
	return t.retain(g, pt.l)
}

// Contains reports whether key is present.
func (t *Tree[K, V]) Contains(key K) bool {
	g := t.scheme.Enter()
	defer g.Exit()
	return t.Get(g, key) != nil
}

// Min returns the leaf with the smallest key, or nil if the tree is empty.
func (t *Tree[K, V]) Min(g smr.Guard) *Node[K, V] {
	mustGuard(g)
	pt := t.search(g, routeMin[K, V], false)
	if pt.l.inf != finite {
		return nil
	}
	return t.retain(g, pt.l)
}

// Max returns the leaf with the largest key, or nil if the tree is empty.
func (t *Tree[K, V]) Max(g smr.Guard) *Node[K, V] {
	mustGuard(g)
	pt := t.search(g, routeMax[K, V], false)
	if pt.l.inf != finite {
		return nil
	}
	return t.retain(g, pt.l)
}

// Next returns the leaf with the smallest key greater than key, or nil.
func (t *Tree[K, V]) Next(g smr.Guard, key K) *Node[K, V] {
	mustGuard(g)
	n := t.successor(g, t.probe(key), false)
	if n == nil {
		return nil
	}
	return t.retain(g, n)
}

// Ascend calls fn for each leaf in key order until fn returns false. A leaf
// passed to fn is only valid during that call. Concurrent updates may or
// may not be observed; keys are always strictly increasing.
func (t *Tree[K, V]) Ascend(g smr.Guard, fn func(*Node[K, V]) bool) {
	mustGuard(g)
	pt := t.search(g, routeMin[K, V], false)
	if pt.l.inf != finite {
		return
	}
	g.Protect(slotCursor, &pt.l.hdr)
	t.ascend(g, pt.l, fn)
}

// AscendFrom is Ascend starting at the first key not less than from.
func (t *Tree[K, V]) AscendFrom(g smr.Guard, from K, fn func(*Node[K, V]) bool) {
	mustGuard(g)
	n := t.successor(g, t.probe(from), true)
	if n == nil {
		return
	}
	t.ascend(g, n, fn)
}

func (t *Tree[K, V]) ascend(g smr.Guard, n *Node[K, V], fn func(*Node[K, V]) bool) {
	for n != nil {
		if !fn(n) {
			return
		}
		n = t.successor(g, t.probe(n.Key), false)
	}
}

// Clear extracts and releases every leaf. It returns the number removed.
func (t *Tree[K, V]) Clear() int {
	n := 0
	for x := t.ExtractMin(); !x.Empty(); x = t.ExtractMin() {
		x.Release()
		n++
	}
	t.logger.Debug("tree cleared", zap.Int("removed", n))
	return n
}

func (t *Tree[K, V]) probe(key K) func(K) int {
	return func(k K) int { return t.cmp(key, k) }
}

func (t *Tree[K, V]) retain(g smr.Guard, n *Node[K, V]) *Node[K, V] {
	g.Protect(slotResult, &n.hdr)
	g.Retain(slotResult)
	return n
}

func mustGuard(g smr.Guard) {
	if g == nil {
		panic(errors.AssertionFailedf("tree: read without a guard"))
	}
}
