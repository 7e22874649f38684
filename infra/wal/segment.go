package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/record"
)

const segmentPattern = "segment-*.wal"

// segment is one log file written through pebble's block/chunk record
// format, which carries the per-chunk checksums.
type segment struct {
	file  *os.File
	w     *record.Writer
	index int
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

// createSegment starts a new, empty segment. Existing segments are never
// appended to: the record writer's block offsets start at zero.
func createSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "create segment %d", index)
	}
	return &segment{file: f, w: record.NewWriter(f), index: index}, nil
}

func (s *segment) append(payload []byte) error {
	if _, err := s.w.WriteRecord(payload); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *segment) size() int64 { return s.w.Size() }

func (s *segment) sync() error {
	return s.file.Sync()
}

func (s *segment) close() error {
	return errors.CombineErrors(s.w.Close(), s.file.Close())
}

// listSegments returns the segment indexes in dir in ascending order.
func listSegments(dir string) ([]int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, segmentPattern))
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "segment-"), ".wal")
		idx, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// scanSegment calls fn for every whole record in path. It stops quietly at
// a torn or corrupt tail and reports the offset just past the last whole
// record together with whether anything followed it.
func scanSegment(path string, fn func(*Record) error) (valid int64, torn bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	rr := record.NewReader(f, 0)
	for {
		var rec *Record
		r, err := rr.Next()
		if err == nil {
			var b []byte
			if b, err = io.ReadAll(r); err == nil {
				rec, err = decodeRecord(b)
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return valid, false, nil
		case record.IsInvalidRecord(err):
			return valid, true, nil
		default:
			return valid, false, errors.Wrapf(err, "read %s", path)
		}
		valid = rr.Offset()
		if err := fn(rec); err != nil {
			return valid, false, err
		}
	}
}

// repairSegment cuts a torn tail off the segment so that later segments
// can follow it.
func repairSegment(path string) (cut int64, err error) {
	valid, torn, err := scanSegment(path, func(*Record) error { return nil })
	if err != nil || !torn {
		return 0, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", path)
	}
	if err := os.Truncate(path, valid); err != nil {
		return 0, errors.Wrapf(err, "truncate %s", path)
	}
	return st.Size() - valid, nil
}

// maxSeqInSegment returns the largest sequence number in a segment.
func maxSeqInSegment(path string) (uint64, error) {
	var max uint64
	_, _, err := scanSegment(path, func(r *Record) error {
		if r.Seq > max {
			max = r.Seq
		}
		return nil
	})
	return max, err
}
