package smr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"conctree/infra/memory"
)

// RCU is an epoch based Scheme. Readers pay one store on Enter and one on
// Exit; individual nodes are never published.
type RCU struct {
	opts    Options
	logger  *zap.Logger
	clock   memory.Epoch
	readers registry
	queue   *retireQueue
	reclaim sync.Mutex
	closed  atomic.Bool
}

func NewRCU(opts Options) *RCU {
	opts.adjust(KindRCU)
	return &RCU{
		opts:   opts,
		logger: opts.Logger,
		queue:  newRetireQueue(opts.RingSize),
	}
}

func (s *RCU) Kind() Kind { return KindRCU }

func (s *RCU) Enter() Guard {
	if s.closed.Load() {
		panic(errors.AssertionFailedf("smr: enter on closed rcu scheme"))
	}
	rec := s.readers.acquire()
	rec.reader.Enter(&s.clock)
	return &rcuGuard{s: s, rec: rec}
}

func (s *RCU) Retire(h *Header, dispose func()) {
	if !h.CompareAndSwap(StateRemoved, StateRetired) {
		panic(errors.AssertionFailedf("smr: retire of node in state %s", h.State()))
	}
	s.queue.push(retired{hdr: h, dispose: dispose, tag: s.clock.Load()})
	s.opts.Metrics.observeRetire(KindRCU)
	if s.queue.len() >= s.opts.Threshold {
		s.Collect()
	}
}

func (s *RCU) Collect() int {
	if !s.reclaim.TryLock() {
		return 0
	}
	defer s.reclaim.Unlock()
	n, _ := s.pass()
	return n
}

// pass must be called with reclaim held.
func (s *RCU) pass() (int, []retired) {
	s.clock.Advance()
	min := s.minActive()
	ready, kept := s.queue.drain(func(e retired) bool { return e.tag < min })
	dispose(ready)
	s.opts.Metrics.observePass(KindRCU, len(ready), s.queue.len())
	return len(ready), kept
}

func (s *RCU) ForceDispose() {
	s.reclaim.Lock()
	defer s.reclaim.Unlock()

	target := s.clock.Load()
	s.clock.Advance()

	start := time.Now()
	warned := start
	total := 0
	var b backoff
	// A reader that read the clock before the advance may publish target
	// late, so keep passing until nothing at or before target is left.
	for {
		if s.minActive() > target {
			n, kept := s.pass()
			total += n
			if !hasTagAtMost(kept, target) {
				break
			}
		}
		b.wait()
		if time.Since(warned) >= s.opts.WarnAfter {
			s.logger.Warn("force dispose waiting for readers",
				zap.Uint64("epoch", target),
				zap.Int("active", s.activeReaders()),
				zap.Duration("waited", time.Since(start)))
			warned = time.Now()
		}
	}
	s.opts.Metrics.observeForce(KindRCU, time.Since(start).Seconds())
	s.logger.Debug("force dispose", zap.Uint64("epoch", target), zap.Int("disposed", total), zap.Int("pending", s.Pending()))
}

func (s *RCU) Pending() int {
	return s.queue.len()
}

func (s *RCU) Close() error {
	s.closed.Store(true)
	s.ForceDispose()
	return nil
}

func (s *RCU) minActive() uint64 {
	min := memory.Inactive
	s.readers.each(func(rec *record) {
		if v := rec.reader.Value(); v < min {
			min = v
		}
	})
	return min
}

func (s *RCU) activeReaders() int {
	n := 0
	s.readers.each(func(rec *record) {
		if rec.reader.Active() {
			n++
		}
	})
	return n
}

type rcuGuard struct {
	s   *RCU
	rec *record
}

func (g *rcuGuard) Protect(slot int, _ *Header) {
	g.check()
	checkSlot(slot)
}

func (g *rcuGuard) Retain(slot int) {
	g.check()
	checkSlot(slot)
}

func (g *rcuGuard) Exit() {
	if g.rec == nil {
		return
	}
	g.rec.reader.Exit()
	g.s.readers.release(g.rec)
	g.rec = nil
}

func (g *rcuGuard) check() {
	if g.rec == nil {
		panic(errors.AssertionFailedf("smr: rcu guard used after Exit"))
	}
}
