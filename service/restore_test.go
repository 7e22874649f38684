package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conctree/api/events"
	"conctree/infra/outbox"
	"conctree/infra/snapshot"
	"conctree/smr"
)

func TestRestoreAfterTornWALTail(t *testing.T) {
	dir := t.TempDir()
	d := durable{walDir: filepath.Join(dir, "wal"), storeDir: filepath.Join(dir, "snap")}

	svc, closeAll := d.open(t)
	_, err := svc.Restore()
	require.NoError(t, err)
	for k := int64(0); k < 3; k++ {
		_, err := svc.Put(k, []byte("value"))
		require.NoError(t, err)
	}
	closeAll()

	// Crash in the middle of the last append.
	seg := filepath.Join(d.walDir, "segment-000000.wal")
	st, err := os.Stat(seg)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(seg, st.Size()-3))

	// Same order as cmd/server: the WAL is opened before Restore.
	restored, closeAgain := d.open(t)
	last, err := restored.Restore()
	require.NoError(t, err)
	require.EqualValues(t, 2, last)
	require.Equal(t, 2, restored.Len())
	_, ok := restored.Get(2)
	require.False(t, ok)

	_, err = restored.Put(10, []byte("after"))
	require.NoError(t, err)
	closeAgain()

	// A second restart reads the repaired segment followed by newer ones.
	again, closeLast := d.open(t)
	defer closeLast()
	last, err = again.Restore()
	require.NoError(t, err)
	require.EqualValues(t, 3, last)
	require.Equal(t, 3, again.Len())
	v, ok := again.Get(10)
	require.True(t, ok)
	require.Equal(t, []byte("after"), v)
}

func TestRestoreKeepsPendingEventsWithoutWAL(t *testing.T) {
	dir := t.TempDir()
	open := func() (*TreeService, *outbox.Outbox, func()) {
		store, err := snapshot.Open(filepath.Join(dir, "snap"), zaptest.NewLogger(t))
		require.NoError(t, err)
		box, err := outbox.Open(filepath.Join(dir, "outbox"), zaptest.NewLogger(t))
		require.NoError(t, err)
		svc := New(newScheme(t, smr.KindRCU), Options{Store: store, Events: box, Logger: zaptest.NewLogger(t)})
		return svc, box, func() {
			require.NoError(t, box.Close())
			require.NoError(t, store.Close())
		}
	}

	svc, _, closeAll := open()
	_, err := svc.Restore()
	require.NoError(t, err)
	for k := int64(1); k <= 5; k++ {
		_, err := svc.Put(k, nil)
		require.NoError(t, err)
	}
	cp, err := svc.Checkpoint()
	require.NoError(t, err)
	require.EqualValues(t, 5, cp)
	ok, err := svc.Delete(1)
	require.NoError(t, err)
	require.True(t, ok)
	closeAll()

	restored, box, closeAgain := open()
	defer closeAgain()
	last, err := restored.Restore()
	require.NoError(t, err)
	require.EqualValues(t, 6, last)

	ok, err = restored.Delete(2)
	require.NoError(t, err)
	require.True(t, ok)

	var keys []int64
	var seqs []uint64
	require.NoError(t, box.ScanPending(0, func(r *outbox.Record) error {
		e, err := events.Decode(r.Payload)
		if err != nil {
			return err
		}
		keys = append(keys, e.Key)
		seqs = append(seqs, r.Seq)
		return nil
	}))
	require.Equal(t, []int64{1, 2}, keys)
	require.Equal(t, []uint64{6, 7}, seqs)
}
