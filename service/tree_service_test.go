package service

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"conctree/api/events"
	"conctree/infra/snapshot"
	"conctree/infra/wal"
	"conctree/smr"
)

type memSink struct {
	mu  sync.Mutex
	got []events.Event
}

func (m *memSink) Put(seq uint64, payload []byte) error {
	e, err := events.Decode(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, e)
	return nil
}

func (m *memSink) LastSeq() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.got) == 0 {
		return 0, nil
	}
	return m.got[len(m.got)-1].Seq, nil
}

func newScheme(t *testing.T, kind smr.Kind) smr.Scheme {
	s, err := smr.New(kind, smr.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCommandsAndQueries(t *testing.T) {
	for _, kind := range []smr.Kind{smr.KindRCU, smr.KindHP} {
		t.Run(kind.String(), func(t *testing.T) {
			svc := New(newScheme(t, kind), Options{Logger: zaptest.NewLogger(t)})

			for _, k := range []int64{5, -2, 9} {
				ok, err := svc.Put(k, []byte{byte(k)})
				require.NoError(t, err)
				require.True(t, ok)
			}
			ok, err := svc.Put(5, []byte("dup"))
			require.NoError(t, err)
			require.False(t, ok)
			require.Equal(t, 3, svc.Len())

			v, ok := svc.Get(5)
			require.True(t, ok)
			require.Equal(t, []byte{5}, v)

			var keys []int64
			svc.Range(0, func(k int64, _ []byte) bool {
				keys = append(keys, k)
				return true
			})
			require.Equal(t, []int64{5, 9}, keys)

			k, _, ok, err := svc.PopMin()
			require.NoError(t, err)
			require.True(t, ok)
			require.EqualValues(t, -2, k)
			k, _, ok, err = svc.PopMax()
			require.NoError(t, err)
			require.True(t, ok)
			require.EqualValues(t, 9, k)

			ok, err = svc.Delete(5)
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = svc.Delete(5)
			require.NoError(t, err)
			require.False(t, ok)

			_, _, ok, err = svc.PopMin()
			require.NoError(t, err)
			require.False(t, ok)
			require.Zero(t, svc.Len())

			svc.Collect()
			require.NoError(t, svc.Close())

			_, err = svc.Checkpoint()
			require.Error(t, err)
		})
	}
}

func TestEventsEmittedForRemovals(t *testing.T) {
	sink := &memSink{}
	svc := New(newScheme(t, smr.KindRCU), Options{Events: sink})

	for k := int64(1); k <= 3; k++ {
		_, err := svc.Put(k, []byte("v"))
		require.NoError(t, err)
	}
	_, err := svc.Delete(2)
	require.NoError(t, err)
	_, err = svc.Delete(42)
	require.NoError(t, err)
	_, _, _, err = svc.PopMin()
	require.NoError(t, err)
	_, _, _, err = svc.PopMax()
	require.NoError(t, err)

	require.Len(t, sink.got, 3)
	require.Equal(t, events.KindDelete, sink.got[0].Kind)
	require.EqualValues(t, 2, sink.got[0].Key)
	require.Equal(t, []byte("v"), sink.got[0].Value)
	require.Equal(t, events.KindPopMin, sink.got[1].Kind)
	require.EqualValues(t, 1, sink.got[1].Key)
	require.Equal(t, events.KindPopMax, sink.got[2].Kind)
	require.Less(t, sink.got[0].Seq, sink.got[1].Seq)
}

type durable struct {
	walDir   string
	storeDir string
}

func (d durable) open(t *testing.T) (*TreeService, func()) {
	w, err := wal.Open(wal.Config{Dir: d.walDir, SegmentSize: 256}, zaptest.NewLogger(t))
	require.NoError(t, err)
	store, err := snapshot.Open(d.storeDir, zaptest.NewLogger(t))
	require.NoError(t, err)
	svc := New(newScheme(t, smr.KindHP), Options{WAL: w, Store: store, Logger: zaptest.NewLogger(t)})
	return svc, func() {
		require.NoError(t, w.Close())
		require.NoError(t, store.Close())
	}
}

func TestRestoreFromCheckpointAndWAL(t *testing.T) {
	dir := t.TempDir()
	d := durable{walDir: filepath.Join(dir, "wal"), storeDir: filepath.Join(dir, "snap")}

	svc, closeAll := d.open(t)
	_, err := svc.Restore()
	require.NoError(t, err)
	for k := int64(0); k < 50; k++ {
		_, err := svc.Put(k, []byte{byte(k)})
		require.NoError(t, err)
	}
	cp, err := svc.Checkpoint()
	require.NoError(t, err)
	require.EqualValues(t, 50, cp)

	for k := int64(0); k < 50; k += 5 {
		_, err := svc.Delete(k)
		require.NoError(t, err)
	}
	_, _, _, err = svc.PopMax()
	require.NoError(t, err)
	_, err = svc.Put(100, []byte("late"))
	require.NoError(t, err)
	want := map[int64][]byte{}
	svc.Range(-1, func(k int64, v []byte) bool {
		want[k] = v
		return true
	})
	seq := svc.Seq()
	closeAll()

	restored, closeAgain := d.open(t)
	defer closeAgain()
	last, err := restored.Restore()
	require.NoError(t, err)
	require.Equal(t, seq, last)
	require.Equal(t, len(want), restored.Len())
	for k, v := range want {
		got, ok := restored.Get(k)
		require.True(t, ok, "key %d", k)
		require.Equal(t, v, got)
	}

	_, err = restored.Restore()
	require.Error(t, err)

	_, err = restored.Put(200, nil)
	require.NoError(t, err)
	require.Equal(t, seq+1, restored.Seq())
}

func TestConcurrentDurableWrites(t *testing.T) {
	dir := t.TempDir()
	d := durable{walDir: filepath.Join(dir, "wal"), storeDir: filepath.Join(dir, "snap")}
	svc, closeAll := d.open(t)

	var eg errgroup.Group
	for w := 0; w < 4; w++ {
		eg.Go(func() error {
			for i := 0; i < 100; i++ {
				k := int64(w*100 + i)
				if _, err := svc.Put(k, nil); err != nil {
					return err
				}
				if i%4 == 0 {
					if _, err := svc.Delete(k); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	n := svc.Len()
	closeAll()

	restored, closeAgain := d.open(t)
	defer closeAgain()
	_, err := restored.Restore()
	require.NoError(t, err)
	require.Equal(t, n, restored.Len())
	require.Equal(t, 300, n)
}
