// Package snapshot keeps checkpoints of a tree's contents in pebble. A
// checkpoint is the full key set plus the mutation sequence number it
// reflects; the WAL supplies everything after it.
package snapshot

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"conctree/infra/logutil"
)

var (
	entryPrefix = []byte("entry/")
	entryUpper  = []byte("entry0") // '0' follows '/'
	seqKey      = []byte("meta/seq")
)

type Store struct {
	db     *pebble.DB
	logger *zap.Logger
}

func Open(dir string, logger *zap.Logger) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot store %s", dir)
	}
	return &Store{db: db, logger: logutil.Adjust(logger, "snapshot")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Batch stages a checkpoint. Nothing is visible until Commit.
type Batch struct {
	s     *Store
	b     *pebble.Batch
	count int
}

// NewBatch starts a checkpoint that replaces the stored one.
func (s *Store) NewBatch() (*Batch, error) {
	b := s.db.NewBatch()
	if err := b.DeleteRange(entryPrefix, entryUpper, nil); err != nil {
		_ = b.Close()
		return nil, errors.Wrap(err, "stage delete")
	}
	return &Batch{s: s, b: b}, nil
}

func (b *Batch) Put(key int64, value []byte) error {
	b.count++
	return b.b.Set(encodeKey(key), value, nil)
}

// Commit makes the staged entries the checkpoint at seq.
func (b *Batch) Commit(seq uint64) error {
	defer b.b.Close()
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], seq)
	if err := b.b.Set(seqKey, v[:], nil); err != nil {
		return errors.Wrap(err, "stage seq")
	}
	if err := b.b.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "commit checkpoint %d", seq)
	}
	b.s.logger.Info("checkpoint saved", zap.Uint64("seq", seq), zap.Int("entries", b.count))
	return nil
}

// Abort drops a staged checkpoint.
func (b *Batch) Abort() {
	_ = b.b.Close()
}

// Seq returns the sequence number of the stored checkpoint, 0 if none.
func (s *Store) Seq() (uint64, error) {
	val, closer, err := s.db.Get(seqKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read checkpoint seq")
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.Newf("snapshot: bad seq length %d", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// Load calls fn for every entry of the stored checkpoint in key order and
// returns its sequence number.
func (s *Store) Load(fn func(key int64, value []byte) error) (uint64, error) {
	seq, err := s.Seq()
	if err != nil {
		return 0, err
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: entryPrefix,
		UpperBound: entryUpper,
	})
	if err != nil {
		return 0, errors.Wrap(err, "open iterator")
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		key, err := decodeKey(iter.Key())
		if err != nil {
			return 0, err
		}
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return 0, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, errors.Wrap(err, "scan checkpoint")
	}
	s.logger.Info("checkpoint loaded", zap.Uint64("seq", seq), zap.Int("entries", n))
	return seq, nil
}

// Keys sort like the signed integers they encode.
func encodeKey(k int64) []byte {
	out := make([]byte, len(entryPrefix)+8)
	copy(out, entryPrefix)
	binary.BigEndian.PutUint64(out[len(entryPrefix):], uint64(k)^(1<<63))
	return out
}

func decodeKey(b []byte) (int64, error) {
	if len(b) != len(entryPrefix)+8 {
		return 0, errors.Newf("snapshot: bad key length %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b[len(entryPrefix):]) ^ (1 << 63)), nil
}
