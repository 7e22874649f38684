package tree

import "conctree/smr"

// path is the tail of a search: the leaf reached, its parent and
// grandparent, and the directions taken from each.
type path[K, V any] struct {
	gp, p, l   *Node[K, V]
	pdir, ldir int

	// anchor is the deepest node whose left branch was taken. It is only
	// tracked when asked for and is protected in slotAnchor.
	anchor *Node[K, V]
}

func (t *Tree[K, V]) router(probe func(K) int) func(*Node[K, V]) int {
	return func(n *Node[K, V]) int {
		if n.inf != finite || probe(n.Key) < 0 {
			return left
		}
		return right
	}
}

func routeMin[K, V any](*Node[K, V]) int { return left }

func routeMax[K, V any](n *Node[K, V]) int {
	if n.inf != finite {
		return left
	}
	return right
}

// search walks from the root to a leaf, choosing each branch with route.
// Every node stepped onto is protected before it is read, and the step is
// accepted only if the parent is still linked and still points at it.
func (t *Tree[K, V]) search(g smr.Guard, route func(*Node[K, V]) int, anchored bool) path[K, V] {
retry:
	for {
		pt := path[K, V]{p: t.root, ldir: route(t.root)}
		if anchored && pt.ldir == left {
			pt.anchor = t.root
		}
		for depth := 0; ; depth++ {
			l := pt.p.child[pt.ldir].Load()
			g.Protect(depth%3, &l.hdr)
			if !pt.p.hdr.Linked() || pt.p.child[pt.ldir].Load() != l {
				continue retry
			}
			pt.l = l
			if l.leaf {
				return pt
			}
			pt.gp, pt.pdir = pt.p, pt.ldir
			pt.p, pt.ldir = l, route(l)
			if anchored && pt.ldir == left {
				g.Protect(slotAnchor, &l.hdr)
				pt.anchor = l
			}
		}
	}
}

// successor returns the first leaf after the position of probe, including
// an exact match when inclusive is set. The result is protected in
// slotCursor.
func (t *Tree[K, V]) successor(g smr.Guard, probe func(K) int, inclusive bool) *Node[K, V] {
	route := t.router(probe)
	for {
		pt := t.search(g, route, true)
		if l := pt.l; l.inf == finite {
			if c := probe(l.Key); c < 0 || (inclusive && c == 0) {
				g.Protect(slotCursor, &l.hdr)
				return l
			}
		}
		// The reached leaf is the rightmost of the anchor's left subtree, so
		// the successor is the leftmost leaf of its right subtree.
		n, ok := t.leftmost(g, pt.anchor)
		if !ok {
			continue
		}
		if n.inf != finite {
			return nil
		}
		g.Protect(slotCursor, &n.hdr)
		return n
	}
}

// leftmost descends into from's right child, then left to a leaf. from must
// be protected in slotAnchor. It reports false if from changed underneath.
func (t *Tree[K, V]) leftmost(g smr.Guard, from *Node[K, V]) (*Node[K, V], bool) {
	p, dir := from, right
	for depth := 0; ; depth++ {
		n := p.child[dir].Load()
		g.Protect(depth%3, &n.hdr)
		if !p.hdr.Linked() || p.child[dir].Load() != n {
			return nil, false
		}
		if n.leaf {
			return n, true
		}
		p, dir = n, left
	}
}
