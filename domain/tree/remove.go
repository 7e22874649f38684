package tree

import "conctree/smr"

// Extract unlinks the leaf with key. The returned handle is empty if key is
// absent.
func (t *Tree[K, V]) Extract(key K) *smr.Exempt[Node[K, V]] {
	return t.ExtractWith(t.probe(key))
}

// ExtractWith unlinks the leaf for which probe returns 0.
func (t *Tree[K, V]) ExtractWith(probe func(K) int) *smr.Exempt[Node[K, V]] {
	return t.extract(t.router(probe), func(l *Node[K, V]) bool { return probe(l.Key) == 0 })
}

// ExtractNode unlinks n itself. It returns an empty handle if n is not
// linked in this tree, even when another leaf holds an equal key.
func (t *Tree[K, V]) ExtractNode(n *Node[K, V]) *smr.Exempt[Node[K, V]] {
	if !n.hdr.Linked() {
		return nil
	}
	return t.extract(t.router(t.probe(n.Key)), func(l *Node[K, V]) bool { return l == n })
}

// ExtractMin unlinks the leaf with the smallest key.
func (t *Tree[K, V]) ExtractMin() *smr.Exempt[Node[K, V]] {
	return t.extract(routeMin[K, V], nil)
}

// ExtractMax unlinks the leaf with the largest key.
func (t *Tree[K, V]) ExtractMax() *smr.Exempt[Node[K, V]] {
	return t.extract(routeMax[K, V], nil)
}

func (t *Tree[K, V]) extract(route func(*Node[K, V]) int, match func(*Node[K, V]) bool) *smr.Exempt[Node[K, V]] {
	g := t.scheme.Enter()
	defer g.Exit()

	for {
		pt := t.search(g, route, false)
		if pt.l.inf != finite || (match != nil && !match(pt.l)) {
			return nil
		}
		if t.unlink(pt) {
			t.size.Add(-1)
			p := pt.p
			t.scheme.Retire(&p.hdr, func() { t.routers.Put(p) })
			return smr.NewExempt(t.scheme, pt.l, &pt.l.hdr, t.dispose)
		}
	}
}

// unlink removes pt.l and its parent by pointing the grandparent at the
// sibling. Locks are taken ancestor first.
func (t *Tree[K, V]) unlink(pt path[K, V]) bool {
	gp, p, l := pt.gp, pt.p, pt.l
	gp.mu.Lock()
	defer gp.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !gp.hdr.Linked() || gp.child[pt.pdir].Load() != p ||
		!p.hdr.Linked() || p.child[pt.ldir].Load() != l || !l.hdr.Linked() {
		return false
	}
	sibling := p.child[1-pt.ldir].Load()
	l.hdr.Unlink()
	p.hdr.Unlink()
	gp.child[pt.pdir].Store(sibling)
	return true
}
