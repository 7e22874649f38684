package memory

import "sync"

// Pool is a typed object pool.
// Objects put back are passed through the reset hook first, so a node
// handed out by Get never carries state from its previous life.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

// Put recycles v. It must only be called once nothing can reach v,
// which for tree nodes means from a reclamation scheme's disposer.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}
