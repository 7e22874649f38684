// Package wal is a segmented, checksummed log of tree mutations. Records are
// appended in sequence order; a checkpoint lets older segments be dropped.
package wal

import (
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"conctree/infra/logutil"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncEachWrite fsyncs after every Append.
	SyncEachWrite bool
}

type WAL struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	current    *segment
	lastSeq    uint64
	lastRotate time.Time
}

// Open appends to a fresh segment after any existing ones. A torn tail left
// in the newest segment by a crash is cut off first.
func Open(cfg Config, logger *zap.Logger) (*WAL, error) {
	logger = logutil.Adjust(logger, "wal")
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create wal dir %s", cfg.Dir)
	}
	idx, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "list wal segments")
	}
	next := 0
	if len(idx) > 0 {
		last := idx[len(idx)-1]
		cut, err := repairSegment(segmentPath(cfg.Dir, last))
		if err != nil {
			return nil, errors.Wrapf(err, "repair segment %d", last)
		}
		if cut > 0 {
			logger.Warn("wal torn tail truncated", zap.Int("segment", last), zap.Int64("bytes", cut))
		}
		next = last + 1
	}
	seg, err := createSegment(cfg.Dir, next)
	if err != nil {
		return nil, err
	}

	w := &WAL{
		cfg:        cfg,
		logger:     logger,
		current:    seg,
		lastRotate: time.Now(),
	}
	w.logger.Info("wal opened", zap.String("dir", cfg.Dir), zap.Int("segment", next))
	return w, nil
}

// Append writes r. Sequence numbers must be strictly increasing.
func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return errors.New("wal: closed")
	}
	if r.Seq <= w.lastSeq {
		return errors.AssertionFailedf("wal: seq %d not after %d", r.Seq, w.lastSeq)
	}
	if err := w.current.append(r.encode()); err != nil {
		return errors.Wrapf(err, "append seq %d", r.Seq)
	}
	w.lastSeq = r.Seq
	if w.cfg.SyncEachWrite {
		if err := w.current.sync(); err != nil {
			return errors.Wrap(err, "sync wal")
		}
	}
	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.cfg.SegmentSize > 0 && w.current.size() >= w.cfg.SegmentSize {
		return true
	}
	return w.cfg.SegmentDuration > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return errors.Wrap(err, "sync before rotate")
	}
	_ = w.current.close()
	seg, err := createSegment(w.cfg.Dir, w.current.index+1)
	if err != nil {
		return err
	}
	w.current = seg
	w.lastRotate = time.Now()
	w.logger.Debug("wal rotated", zap.Int("segment", seg.index), zap.Uint64("seq", w.lastSeq))
	return nil
}

func (w *WAL) Dir() string { return w.cfg.Dir }

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	return w.current.sync()
}

// TruncateBefore removes closed segments whose records are all at or
// before seq.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	active := -1
	if w.current != nil {
		active = w.current.index
	}
	w.mu.Unlock()

	idx, err := listSegments(w.cfg.Dir)
	if err != nil {
		return errors.Wrap(err, "list wal segments")
	}
	removed := 0
	for _, i := range idx {
		if i == active {
			continue
		}
		path := segmentPath(w.cfg.Dir, i)
		max, err := maxSeqInSegment(path)
		if err != nil {
			w.logger.Warn("skip unreadable segment", zap.String("path", path), zap.Error(err))
			continue
		}
		if max <= seq {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "remove %s", path)
			}
			removed++
		}
	}
	w.logger.Debug("wal truncated", zap.Uint64("seq", seq), zap.Int("segments", removed))
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.sync()
	err = errors.CombineErrors(err, w.current.close())
	w.current = nil
	return err
}

// Replay calls fn for every record in dir with a sequence number greater
// than after, in log order, and returns the last sequence number seen. A
// torn tail is only accepted in the newest segment.
func Replay(dir string, after uint64, fn func(*Record) error) (uint64, error) {
	idx, err := listSegments(dir)
	if err != nil {
		return 0, errors.Wrap(err, "list wal segments")
	}
	last := after
	for n, i := range idx {
		path := segmentPath(dir, i)
		_, torn, err := scanSegment(path, func(r *Record) error {
			if r.Seq <= after {
				return nil
			}
			if r.Seq <= last {
				return errors.Newf("wal: non-monotonic seq %d after %d", r.Seq, last)
			}
			last = r.Seq
			return fn(r)
		})
		if err != nil {
			return last, err
		}
		if torn && n != len(idx)-1 {
			return last, errors.Newf("wal: corrupt record in %s before seq %d", path, last+1)
		}
	}
	return last, nil
}
