package smr

import (
	"sync"
	"sync/atomic"

	"conctree/infra/memory"
)

// HazardSlots is the number of hazard pointers each guard can publish.
const HazardSlots = 8

// record is one participant's published read state. Records are never
// freed; a released record is reused by the next Enter.
type record struct {
	owned  atomic.Bool
	reader memory.ReaderEpoch
	slots  [HazardSlots]atomic.Pointer[Header]

	mu       sync.Mutex
	retained []*Header

	next *record
}

// registry is a push-only lock-free list of records.
type registry struct {
	head  atomic.Pointer[record]
	size  atomic.Int64
	cache sync.Pool
}

func (r *registry) acquire() *record {
	if rec, ok := r.cache.Get().(*record); ok && rec.owned.CompareAndSwap(false, true) {
		return rec
	}
	for rec := r.head.Load(); rec != nil; rec = rec.next {
		if !rec.owned.Load() && rec.owned.CompareAndSwap(false, true) {
			return rec
		}
	}

	rec := &record{}
	rec.owned.Store(true)
	for {
		head := r.head.Load()
		rec.next = head
		if r.head.CompareAndSwap(head, rec) {
			break
		}
	}
	r.size.Add(1)
	return rec
}

func (r *registry) release(rec *record) {
	rec.owned.Store(false)
	r.cache.Put(rec)
}

func (r *registry) each(fn func(*record)) {
	for rec := r.head.Load(); rec != nil; rec = rec.next {
		fn(rec)
	}
}
