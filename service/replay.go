package service

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"conctree/infra/wal"
)

/*
Restore rebuilds the map from the last checkpoint and the WAL records after
it, then resumes sequencing after the newest record or pending event.

It MUST run before the service accepts traffic. Outbox events are not
replayed; they are still pending in the outbox if they were not published.
*/
func (s *TreeService) Restore() (uint64, error) {
	if s.m.Len() != 0 {
		return 0, errors.New("service: restore into a non-empty tree")
	}

	var last uint64
	if s.store != nil {
		seq, err := s.store.Load(func(key int64, value []byte) error {
			s.m.Insert(key, value)
			return nil
		})
		if err != nil {
			return 0, errors.Wrap(err, "load checkpoint")
		}
		last = seq
	}

	replayed := 0
	if s.wal != nil {
		seq, err := wal.Replay(s.wal.Dir(), last, func(r *wal.Record) error {
			replayed++
			switch r.Type {
			case wal.RecordPut:
				s.m.Insert(r.Key, r.Value)
			case wal.RecordDelete:
				s.m.Delete(r.Key)
			default:
				return errors.Newf("unknown wal record type %d at seq %d", r.Type, r.Seq)
			}
			return nil
		})
		if err != nil {
			return 0, errors.Wrap(err, "replay wal")
		}
		last = seq
	}

	s.seq.Reset(last)

	// Without a WAL the checkpoint can lag events still waiting in the sink.
	if s.sink != nil {
		pending, err := s.sink.LastSeq()
		if err != nil {
			return 0, errors.Wrap(err, "read event sink position")
		}
		s.seq.Observe(pending)
		last = s.seq.Current()
	}

	s.logger.Info("restore completed",
		zap.Uint64("seq", last),
		zap.Int("entries", s.m.Len()),
		zap.Int("replayed", replayed))
	return last, nil
}
