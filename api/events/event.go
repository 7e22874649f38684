// Package events defines the change events a tree server publishes and
// their protobuf encoding.
package events

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Kind string

const (
	KindDelete Kind = "delete"
	KindPopMin Kind = "pop_min"
	KindPopMax Kind = "pop_max"
)

// Event reports that Key left the tree at mutation Seq.
type Event struct {
	Kind  Kind
	Key   int64
	Seq   uint64
	Value []byte
}

// Encode marshals e as a google.protobuf.Struct. Seq travels as a decimal
// string because Struct numbers are doubles.
func Encode(e Event) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"v":     1,
		"kind":  string(e.Kind),
		"key":   float64(e.Key),
		"key_s": formatInt(e.Key),
		"seq":   formatUint(e.Seq),
		"value": base64.StdEncoding.EncodeToString(e.Value),
	})
	if err != nil {
		return nil, errors.Wrap(err, "build event")
	}
	return proto.Marshal(s)
}

func Decode(b []byte) (Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return Event{}, errors.Wrap(err, "unmarshal event")
	}
	f := s.GetFields()
	key, err := parseInt(f["key_s"].GetStringValue())
	if err != nil {
		return Event{}, err
	}
	seq, err := parseUint(f["seq"].GetStringValue())
	if err != nil {
		return Event{}, err
	}
	value, err := base64.StdEncoding.DecodeString(f["value"].GetStringValue())
	if err != nil {
		return Event{}, errors.Wrap(err, "event value")
	}
	if len(value) == 0 {
		value = nil
	}
	return Event{
		Kind:  Kind(f["kind"].GetStringValue()),
		Key:   key,
		Seq:   seq,
		Value: value,
	}, nil
}

// PartitionKey is the message key used for an event, so that events for
// one tree key stay ordered within a partition.
func PartitionKey(key int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(key))
	return b[:]
}
