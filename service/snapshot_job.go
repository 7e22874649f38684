package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Checkpoint writes the current contents to the snapshot store and drops
// WAL segments it covers. It returns the checkpoint's sequence number.
func (s *TreeService) Checkpoint() (uint64, error) {
	if s.store == nil {
		return 0, errors.New("service: no snapshot store configured")
	}
	b, err := s.store.NewBatch()
	if err != nil {
		return 0, err
	}

	unlock := s.lock()
	var putErr error
	s.m.Each(func(key int64, value []byte) bool {
		putErr = b.Put(key, value)
		return putErr == nil
	})
	seq := s.seq.Current()
	unlock()

	if putErr != nil {
		b.Abort()
		return 0, errors.Wrap(putErr, "stage checkpoint")
	}
	if err := b.Commit(seq); err != nil {
		return 0, err
	}
	if s.wal != nil {
		if err := s.wal.TruncateBefore(seq); err != nil {
			return seq, errors.Wrap(err, "truncate wal")
		}
	}
	return seq, nil
}

// RunSnapshots checkpoints every interval until ctx is done. A non-positive
// interval disables periodic checkpoints.
func (s *TreeService) RunSnapshots(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Checkpoint(); err != nil {
				s.logger.Warn("checkpoint failed", zap.Error(err))
			}
		}
	}
}
