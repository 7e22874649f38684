// Package outbox is a durable queue of change events waiting to be
// published. Events are written in the same step as the mutation that
// caused them and removed only after the broker acknowledges them.
package outbox

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"conctree/infra/logutil"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value layout: [state:1][retries:4][lastAttempt:8][payload]
const metaSize = 1 + 4 + 8

func encodeRecord(r *Record) []byte {
	buf := make([]byte, metaSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[metaSize:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (*Record, error) {
	if len(b) < metaSize {
		return nil, errors.Newf("outbox: record %d too short (%d bytes)", seq, len(b))
	}
	return &Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[metaSize:]...),
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db     *pebble.DB
	logger *zap.Logger
}

func Open(dir string, logger *zap.Logger) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	return &Outbox{db: db, logger: logutil.Adjust(logger, "outbox")}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores a new event under its mutation sequence number.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	rec := &Record{Seq: seq, State: StateNew, Payload: payload}
	return errors.Wrapf(o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync), "put event %d", seq)
}

func (o *Outbox) Get(seq uint64) (*Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return nil, errors.Wrapf(err, "get event %d", seq)
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

func (o *Outbox) update(rec *Record, state State, retries uint32) error {
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return errors.Wrapf(o.db.Set(keyFor(rec.Seq), encodeRecord(rec), pebble.Sync), "update event %d", rec.Seq)
}

// MarkSent records that a publish attempt is in flight.
func (o *Outbox) MarkSent(rec *Record) error {
	return o.update(rec, StateSent, rec.Retries)
}

// MarkFailed records a failed attempt; the event stays pending.
func (o *Outbox) MarkFailed(rec *Record) error {
	return o.update(rec, StateFailed, rec.Retries+1)
}

// MarkAcked removes an acknowledged event.
func (o *Outbox) MarkAcked(seq uint64) error {
	return errors.Wrapf(o.db.Delete(keyFor(seq), pebble.Sync), "ack event %d", seq)
}

// -------------------- Scan --------------------

// ScanPending visits up to limit pending events in sequence order. A
// limit of 0 visits all of them. Records left in StateSent by a crash are
// pending too, so delivery is at least once.
func (o *Outbox) ScanPending(limit int, fn func(*Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event0"),
	})
	if err != nil {
		return errors.Wrap(err, "open iterator")
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && n >= limit {
			break
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		n++
	}
	return iter.Error()
}

// LastSeq returns the highest sequence number still held, or 0 when the
// outbox is empty.
func (o *Outbox) LastSeq() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event0"),
	})
	if err != nil {
		return 0, errors.Wrap(err, "open iterator")
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// Len counts pending events.
func (o *Outbox) Len() (int, error) {
	n := 0
	err := o.ScanPending(0, func(*Record) error {
		n++
		return nil
	})
	return n, err
}

// -------------------- Helpers --------------------

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("event/%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	const prefix = len("event/")
	if len(b) <= prefix {
		return 0, errors.Newf("outbox: bad key %q", b)
	}
	seq, err := strconv.ParseUint(string(b[prefix:]), 10, 64)
	return seq, errors.Wrapf(err, "outbox: bad key %q", b)
}
