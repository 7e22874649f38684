package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetireRingBasic(t *testing.T) {
	r := NewRetireRing[int](4)

	require.True(t, r.Enqueue(1))
	require.True(t, r.Enqueue(2))
	require.Equal(t, 2, r.Len())

	v, ok := r.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, v)
	v, ok = r.Dequeue()
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = r.Dequeue()
	require.False(t, ok, "empty ring must report no element")
	require.True(t, r.IsEmpty())
}

func TestRetireRingFull(t *testing.T) {
	r := NewRetireRing[int](2)
	require.True(t, r.Enqueue(1))
	require.True(t, r.Enqueue(2))
	require.False(t, r.Enqueue(3))

	_, ok := r.Dequeue()
	require.True(t, ok)
	require.True(t, r.Enqueue(3), "slot freed by dequeue must be reusable")
	require.Equal(t, 2, r.Cap())
}

func TestRetireRingRejectsBadSize(t *testing.T) {
	require.Panics(t, func() { NewRetireRing[int](3) })
	require.Panics(t, func() { NewRetireRing[int](1) })
}

func TestRetireRingConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 1000
	r := NewRetireRing[int](1 << 14)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !r.Enqueue(base + i) {
				}
			}
		}(p * perProducer)
	}
	wg.Wait()

	seen := make(map[int]bool, producers*perProducer)
	for {
		v, ok := r.Dequeue()
		if !ok {
			break
		}
		require.False(t, seen[v], "value %d dequeued twice", v)
		seen[v] = true
	}
	require.Len(t, seen, producers*perProducer)
}
