package smr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// HP is a hazard pointer Scheme. Readers publish each node they hold, so a
// stalled reader pins only those nodes.
type HP struct {
	opts    Options
	logger  *zap.Logger
	records registry
	queue   *retireQueue
	seq     atomic.Uint64
	reclaim sync.Mutex
	closed  atomic.Bool
}

func NewHP(opts Options) *HP {
	opts.adjust(KindHP)
	return &HP{
		opts:   opts,
		logger: opts.Logger,
		queue:  newRetireQueue(opts.RingSize),
	}
}

func (s *HP) Kind() Kind { return KindHP }

func (s *HP) Enter() Guard {
	if s.closed.Load() {
		panic(errors.AssertionFailedf("smr: enter on closed hp scheme"))
	}
	return &hpGuard{s: s, rec: s.records.acquire()}
}

func (s *HP) Retire(h *Header, dispose func()) {
	if !h.CompareAndSwap(StateRemoved, StateRetired) {
		panic(errors.AssertionFailedf("smr: retire of node in state %s", h.State()))
	}
	s.queue.push(retired{hdr: h, dispose: dispose, tag: s.seq.Add(1)})
	s.opts.Metrics.observeRetire(KindHP)
	if s.queue.len() >= s.opts.Threshold {
		s.Collect()
	}
}

func (s *HP) Collect() int {
	if !s.reclaim.TryLock() {
		return 0
	}
	defer s.reclaim.Unlock()
	n, _ := s.pass()
	return n
}

// pass must be called with reclaim held.
func (s *HP) pass() (int, []retired) {
	hazards := s.hazards()
	ready, kept := s.queue.drain(func(e retired) bool {
		_, busy := hazards[e.hdr]
		return !busy
	})
	dispose(ready)
	s.opts.Metrics.observePass(KindHP, len(ready), s.queue.len())
	return len(ready), kept
}

// hazards snapshots every published slot and retained node. Slots are read
// before retained lists so a node moved from a slot to Retain by a reader
// is seen in at least one of them.
func (s *HP) hazards() map[*Header]struct{} {
	set := make(map[*Header]struct{})
	s.records.each(func(rec *record) {
		for i := range rec.slots {
			if h := rec.slots[i].Load(); h != nil {
				set[h] = struct{}{}
			}
		}
	})
	s.records.each(func(rec *record) {
		rec.mu.Lock()
		for _, h := range rec.retained {
			set[h] = struct{}{}
		}
		rec.mu.Unlock()
	})
	return set
}

func (s *HP) ForceDispose() {
	s.reclaim.Lock()
	defer s.reclaim.Unlock()

	target := s.seq.Load()
	start := time.Now()
	warned := start
	total := 0
	var b backoff
	for {
		n, kept := s.pass()
		total += n
		if !hasTagAtMost(kept, target) {
			break
		}
		b.wait()
		if time.Since(warned) >= s.opts.WarnAfter {
			s.logger.Warn("force dispose waiting for hazards",
				zap.Uint64("seq", target),
				zap.Int("pinned", len(kept)),
				zap.Duration("waited", time.Since(start)))
			warned = time.Now()
		}
	}
	s.opts.Metrics.observeForce(KindHP, time.Since(start).Seconds())
	s.logger.Debug("force dispose", zap.Uint64("seq", target), zap.Int("disposed", total), zap.Int("pending", s.Pending()))
}

func (s *HP) Pending() int {
	return s.queue.len()
}

func (s *HP) Close() error {
	s.closed.Store(true)
	s.ForceDispose()
	return nil
}

type hpGuard struct {
	s   *HP
	rec *record
}

func (g *hpGuard) Protect(slot int, h *Header) {
	g.check()
	checkSlot(slot)
	g.rec.slots[slot].Store(h)
}

func (g *hpGuard) Retain(slot int) {
	g.check()
	checkSlot(slot)
	h := g.rec.slots[slot].Load()
	if h == nil {
		return
	}
	g.rec.mu.Lock()
	g.rec.retained = append(g.rec.retained, h)
	g.rec.mu.Unlock()
}

func (g *hpGuard) Exit() {
	if g.rec == nil {
		return
	}
	g.rec.mu.Lock()
	clear(g.rec.retained)
	g.rec.retained = g.rec.retained[:0]
	g.rec.mu.Unlock()
	for i := range g.rec.slots {
		g.rec.slots[i].Store(nil)
	}
	g.s.records.release(g.rec)
	g.rec = nil
}

func (g *hpGuard) check() {
	if g.rec == nil {
		panic(errors.AssertionFailedf("smr: hp guard used after Exit"))
	}
}
