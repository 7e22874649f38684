package smr

import (
	"runtime"
	"sync/atomic"
)

// Exempt owns a node that was removed from a structure. The node stays
// valid outside any Guard until Release hands it to the Scheme.
//
// A handle that becomes unreachable without Release is released by a
// runtime cleanup, so dropped handles do not leak their node.
type Exempt[T any] struct {
	node    atomic.Pointer[T]
	release exemptRelease[T]
	cleanup runtime.Cleanup
}

type exemptRelease[T any] struct {
	scheme  Scheme
	hdr     *Header
	node    *T
	dispose func(*T)
}

func (r exemptRelease[T]) run() {
	r.scheme.Retire(r.hdr, func() {
		if r.dispose != nil {
			r.dispose(r.node)
		}
	})
}

// NewExempt wraps node, whose header must be in StateRemoved.
func NewExempt[T any](s Scheme, node *T, hdr *Header, dispose func(*T)) *Exempt[T] {
	x := &Exempt[T]{release: exemptRelease[T]{scheme: s, hdr: hdr, node: node, dispose: dispose}}
	x.node.Store(node)
	x.cleanup = runtime.AddCleanup(x, exemptRelease[T].run, x.release)
	return x
}

// Node returns the owned node, or nil once released.
func (x *Exempt[T]) Node() *T {
	if x == nil {
		return nil
	}
	return x.node.Load()
}

// Empty reports whether the handle owns nothing.
func (x *Exempt[T]) Empty() bool {
	return x.Node() == nil
}

// Release retires the node. Only the first call has an effect.
func (x *Exempt[T]) Release() {
	if x == nil || x.node.Swap(nil) == nil {
		return
	}
	x.cleanup.Stop()
	x.release.run()
}
