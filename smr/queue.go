package smr

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"conctree/infra/memory"
)

// retired is one node waiting for its grace period. tag is the epoch (RCU)
// or retire sequence (HP) at the time of Retire.
type retired struct {
	hdr     *Header
	dispose func()
	tag     uint64
}

// retireQueue buffers retired nodes. Producers are lock-free unless the
// ring is full; then they take a short lock to spill into overflow.
// drain must only be called by one goroutine at a time.
type retireQueue struct {
	ring    *memory.RetireRing[retired]
	pending atomic.Int64

	mu       sync.Mutex
	overflow []retired
}

func newRetireQueue(size uint64) *retireQueue {
	return &retireQueue{ring: memory.NewRetireRing[retired](size)}
}

func (q *retireQueue) push(e retired) {
	q.pending.Add(1)
	q.requeue(e)
}

func (q *retireQueue) requeue(e retired) {
	if q.ring.Enqueue(e) {
		return
	}
	q.mu.Lock()
	q.overflow = append(q.overflow, e)
	q.mu.Unlock()
}

// drain visits every entry queued before the call. Entries accepted by
// safe are returned in ready; the rest are queued again and returned in kept.
func (q *retireQueue) drain(safe func(retired) bool) (ready, kept []retired) {
	q.mu.Lock()
	spill := q.overflow
	q.overflow = nil
	q.mu.Unlock()

	classify := func(e retired) {
		if safe(e) {
			ready = append(ready, e)
		} else {
			kept = append(kept, e)
		}
	}

	for n := q.ring.Len(); n > 0; n-- {
		e, ok := q.ring.Dequeue()
		if !ok {
			break
		}
		classify(e)
	}
	for _, e := range spill {
		classify(e)
	}

	for _, e := range kept {
		q.requeue(e)
	}
	q.pending.Add(-int64(len(ready)))
	return ready, kept
}

func (q *retireQueue) len() int {
	return int(q.pending.Load())
}

// dispose runs the callback of every entry. Each header must be Retired;
// anything else means a node was retired twice.
func dispose(entries []retired) {
	for _, e := range entries {
		if !e.hdr.CompareAndSwap(StateRetired, StateDisposed) {
			panic(errors.AssertionFailedf("smr: dispose of node in state %s", e.hdr.State()))
		}
		if e.dispose != nil {
			e.dispose()
		}
	}
}

// hasTagAtMost reports whether any entry was retired at or before tag.
func hasTagAtMost(entries []retired, tag uint64) bool {
	for _, e := range entries {
		if e.tag <= tag {
			return true
		}
	}
	return false
}
