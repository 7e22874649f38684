package service

import (
	"bytes"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"conctree/api/events"
	"conctree/domain/omap"
	"conctree/infra/logutil"
	"conctree/infra/sequence"
	"conctree/infra/snapshot"
	"conctree/infra/wal"
	"conctree/smr"
)

// EventSink receives encoded change events keyed by mutation sequence.
// LastSeq reports the newest sequence it still holds, so a restart never
// reuses it. *outbox.Outbox implements it.
type EventSink interface {
	Put(seq uint64, payload []byte) error
	LastSeq() (uint64, error)
}

// Options wires the optional durability components. Any of them may be nil.
type Options struct {
	WAL    *wal.WAL
	Store  *snapshot.Store
	Events EventSink
	Logger *zap.Logger
}

/*
TreeService is the only write entry point into the tree.

Reads go straight to the lock-free map. When a WAL or event sink is
configured, mutations are serialized so that log order matches the order
in which they took effect; without them, mutations run fully concurrently.
*/
type TreeService struct {
	m      *omap.Map[int64, []byte]
	scheme smr.Scheme
	seq    *sequence.Sequencer
	wal    *wal.WAL
	store  *snapshot.Store
	sink   EventSink
	logger *zap.Logger

	serial bool
	wmu    sync.Mutex
}

func New(scheme smr.Scheme, opts Options) *TreeService {
	logger := logutil.Adjust(opts.Logger, "service")
	return &TreeService{
		m:      omap.NewOrdered[int64, []byte](scheme, logger),
		scheme: scheme,
		seq:    sequence.New(0),
		wal:    opts.WAL,
		store:  opts.Store,
		sink:   opts.Events,
		logger: logger,
		serial: opts.WAL != nil || opts.Events != nil,
	}
}

func (s *TreeService) lock() func() {
	if !s.serial {
		return func() {}
	}
	s.wmu.Lock()
	return s.wmu.Unlock
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Put inserts key if it is absent. It reports whether the key was added.
func (s *TreeService) Put(key int64, value []byte) (bool, error) {
	defer s.lock()()

	value = bytes.Clone(value)
	seq := s.seq.Next()
	if err := s.log(wal.NewRecord(wal.RecordPut, seq, key, value)); err != nil {
		return false, err
	}
	return s.m.Insert(key, value), nil
}

// Delete removes key and reports whether it was present.
func (s *TreeService) Delete(key int64) (bool, error) {
	defer s.lock()()

	seq := s.seq.Next()
	if err := s.log(wal.NewRecord(wal.RecordDelete, seq, key, nil)); err != nil {
		return false, err
	}
	value, ok := s.m.Take(key)
	if !ok {
		return false, nil
	}
	return true, s.emit(events.Event{Kind: events.KindDelete, Key: key, Seq: seq, Value: value})
}

// PopMin removes and returns the smallest entry.
func (s *TreeService) PopMin() (int64, []byte, bool, error) {
	return s.pop(events.KindPopMin, s.m.PopMin)
}

// PopMax removes and returns the largest entry.
func (s *TreeService) PopMax() (int64, []byte, bool, error) {
	return s.pop(events.KindPopMax, s.m.PopMax)
}

func (s *TreeService) pop(kind events.Kind, take func() (int64, []byte, bool)) (int64, []byte, bool, error) {
	defer s.lock()()

	key, value, ok := take()
	if !ok {
		return 0, nil, false, nil
	}
	seq := s.seq.Next()
	if err := s.log(wal.NewRecord(wal.RecordDelete, seq, key, nil)); err != nil {
		return key, value, true, err
	}
	return key, value, true, s.emit(events.Event{Kind: kind, Key: key, Seq: seq, Value: value})
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Get returns the value stored under key. The slice must not be modified.
func (s *TreeService) Get(key int64) ([]byte, bool) {
	return s.m.Load(key)
}

func (s *TreeService) Len() int {
	return s.m.Len()
}

// Range calls fn in key order from the first key not less than from.
func (s *TreeService) Range(from int64, fn func(key int64, value []byte) bool) {
	s.m.Range(from, fn)
}

// Seq returns the last issued mutation sequence number.
func (s *TreeService) Seq() uint64 {
	return s.seq.Current()
}

//
// ──────────────────────────────────────────────────────────
// Reclamation
// ──────────────────────────────────────────────────────────
//

// Collect runs one non-blocking reclamation pass.
func (s *TreeService) Collect() int {
	return s.scheme.Collect()
}

// Close drops every entry and waits for their nodes to be reclaimed.
func (s *TreeService) Close() error {
	return s.m.Close()
}

func (s *TreeService) log(r *wal.Record) error {
	if s.wal == nil {
		return nil
	}
	return errors.Wrapf(s.wal.Append(r), "log %s %d", r.Type, r.Key)
}

func (s *TreeService) emit(e events.Event) error {
	if s.sink == nil {
		return nil
	}
	payload, err := events.Encode(e)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.sink.Put(e.Seq, payload), "emit %s %d", e.Kind, e.Key)
}
