package wal

import (
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
)

// RecordType is the mutation a record logs.
type RecordType uint8

const (
	RecordPut RecordType = iota + 1
	RecordDelete
)

func (t RecordType) String() string {
	switch t {
	case RecordPut:
		return "PUT"
	case RecordDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Record is one logged mutation.
type Record struct {
	Type  RecordType
	Seq   uint64
	Time  int64
	Key   int64
	Value []byte
}

func NewRecord(t RecordType, seq uint64, key int64, value []byte) *Record {
	return &Record{
		Type:  t,
		Seq:   seq,
		Time:  time.Now().UnixNano(),
		Key:   key,
		Value: value,
	}
}

// Payload layout inside a pebble record:
// [type:1][seq:8][time:8][key:8][value...]
const payloadHeader = 1 + 8 + 8 + 8

func (r *Record) encode() []byte {
	buf := make([]byte, payloadHeader+len(r.Value))
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint64(buf[17:25], uint64(r.Key))
	copy(buf[payloadHeader:], r.Value)
	return buf
}

func decodeRecord(b []byte) (*Record, error) {
	if len(b) < payloadHeader {
		return nil, errors.Newf("wal: short record of %d bytes", len(b))
	}
	rec := &Record{
		Type: RecordType(b[0]),
		Seq:  binary.BigEndian.Uint64(b[1:9]),
		Time: int64(binary.BigEndian.Uint64(b[9:17])),
		Key:  int64(binary.BigEndian.Uint64(b[17:25])),
	}
	if len(b) > payloadHeader {
		rec.Value = b[payloadHeader:]
	}
	return rec, nil
}
