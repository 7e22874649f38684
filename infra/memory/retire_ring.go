package memory

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

type retireSlot[T any] struct {
	seq atomic.Uint64
	val T
}

// RetireRing is a bounded lock-free MPMC ring for retired objects.
// Any number of goroutines may retire into it concurrently; slots carry a
// sequence number so producers and consumers never overwrite each other.
type RetireRing[T any] struct {
	mask  uint64
	_pad0 [56]byte
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte
	slots []retireSlot[T]
}

// NewRetireRing allocates a ring with power-of-two size.
func NewRetireRing[T any](size uint64) *RetireRing[T] {
	if size < 2 || size&(size-1) != 0 {
		panic("RetireRing size must be a power of two >= 2")
	}
	r := &RetireRing[T]{
		mask:  size - 1,
		slots: make([]retireSlot[T], size),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// Enqueue adds an element; returns false if full.
func (r *RetireRing[T]) Enqueue(v T) bool {
	for {
		pos := r.tail.Load()
		s := &r.slots[pos&r.mask]
		diff := int64(s.seq.Load()) - int64(pos)
		switch {
		case diff == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// Dequeue removes one element; returns false if empty.
func (r *RetireRing[T]) Dequeue() (T, bool) {
	var zero T
	for {
		pos := r.head.Load()
		s := &r.slots[pos&r.mask]
		diff := int64(s.seq.Load()) - int64(pos+1)
		switch {
		case diff == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				v := s.val
				s.val = zero
				s.seq.Store(pos + r.mask + 1)
				return v, true
			}
		case diff < 0:
			return zero, false
		default:
			runtime.Gosched()
		}
	}
}

// Len returns the approximate number of buffered elements.
func (r *RetireRing[T]) Len() int {
	t := r.tail.Load()
	h := r.head.Load()
	if t < h {
		return 0
	}
	return int(t - h)
}

// Cap returns the total capacity of the ring.
func (r *RetireRing[T]) Cap() int { return len(r.slots) }

// IsEmpty reports whether the ring is empty.
func (r *RetireRing[T]) IsEmpty() bool { return r.Len() == 0 }

func (r *RetireRing[T]) String() string {
	return fmt.Sprintf("RetireRing{len=%d, cap=%d, head=%d, tail=%d}",
		r.Len(), r.Cap(), r.head.Load(), r.tail.Load())
}
