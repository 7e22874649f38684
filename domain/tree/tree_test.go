package tree

import (
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conctree/smr"
)

type item struct {
	disposed atomic.Int32
	found    atomic.Int32
}

type lookup struct {
	n int
}

func cmpLookup(q lookup, k int) int {
	switch {
	case q.n < k:
		return -1
	case q.n > k:
		return 1
	}
	return 0
}

func eachScheme(t *testing.T, fn func(t *testing.T, s smr.Scheme)) {
	for _, kind := range []smr.Kind{smr.KindRCU, smr.KindHP} {
		t.Run(kind.String(), func(t *testing.T) {
			s, err := smr.New(kind, smr.Options{Logger: zaptest.NewLogger(t)})
			require.NoError(t, err)
			defer s.Close()
			fn(t, s)
		})
	}
}

func newTestTree(t *testing.T, s smr.Scheme) *Tree[int, *item] {
	return NewOrdered(s,
		WithDisposer(func(n *Node[int, *item]) { n.Value.disposed.Add(1) }),
		WithLogger[int, *item](zaptest.NewLogger(t)),
	)
}

func fill(t *testing.T, tr *Tree[int, *item], n int) []*Node[int, *item] {
	nodes := make([]*Node[int, *item], n)
	for i := range nodes {
		nodes[i] = &Node[int, *item]{Key: i, Value: &item{}}
	}
	for _, i := range rand.Perm(n) {
		require.True(t, tr.Insert(nodes[i]))
	}
	require.Equal(t, n, tr.Size())
	return nodes
}

func TestEmptyTree(t *testing.T) {
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		require.True(t, tr.Empty())
		require.Zero(t, tr.Size())
		require.Same(t, s, tr.Scheme())

		g := s.Enter()
		require.Nil(t, tr.Get(g, 1))
		require.Nil(t, tr.GetWith(g, Probe(lookup{1}, cmpLookup)))
		require.Nil(t, tr.Min(g))
		require.Nil(t, tr.Max(g))
		require.Nil(t, tr.Next(g, 0))
		tr.Ascend(g, func(*Node[int, *item]) bool {
			t.Fatal("ascend on empty tree")
			return false
		})
		g.Exit()

		require.False(t, tr.Contains(1))
		require.True(t, tr.Extract(1).Empty())
		require.True(t, tr.ExtractWith(Probe(lookup{1}, cmpLookup)).Empty())
		require.True(t, tr.ExtractNode(&Node[int, *item]{Key: 1}).Empty())
		require.True(t, tr.ExtractMin().Empty())
		require.True(t, tr.ExtractMax().Empty())
	})
}

func TestFillFindExtract(t *testing.T) {
	const n = 100
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		nodes := fill(t, tr, n)

		require.False(t, tr.Insert(&Node[int, *item]{Key: 42, Value: &item{}}))
		require.Equal(t, n, tr.Size())

		g := s.Enter()
		for i, node := range nodes {
			got := tr.Get(g, i)
			require.Same(t, node, got)
			got.Value.found.Add(1)

			got = tr.GetWith(g, Probe(lookup{i}, cmpLookup))
			require.Same(t, node, got)
			got.Value.found.Add(1)
		}
		g.Exit()
		for _, node := range nodes {
			require.EqualValues(t, 2, node.Value.found.Load())
		}

		for _, i := range rand.Perm(n) {
			node := nodes[i]
			var x *smr.Exempt[Node[int, *item]]
			switch i % 3 {
			case 0:
				x = tr.Extract(i)
			case 1:
				x = tr.ExtractNode(node)
			case 2:
				x = tr.ExtractWith(Probe(lookup{i}, cmpLookup))
			}
			require.False(t, x.Empty(), "key %d", i)
			require.Same(t, node, x.Node())
			require.Equal(t, smr.StateRemoved, node.State())
			x.Release()
			require.True(t, x.Empty())

			require.True(t, tr.Extract(i).Empty())
			require.True(t, tr.ExtractNode(node).Empty())
			require.True(t, tr.ExtractWith(Probe(lookup{i}, cmpLookup)).Empty())
			require.False(t, tr.Contains(i))
		}
		require.True(t, tr.Empty())

		s.ForceDispose()
		for i, node := range nodes {
			require.EqualValues(t, 1, node.Value.disposed.Load(), "key %d", i)
			require.Equal(t, smr.StateDisposed, node.State())
		}
		s.ForceDispose()
		for _, node := range nodes {
			require.EqualValues(t, 1, node.Value.disposed.Load())
		}
	})
}

func TestExtractMinOrder(t *testing.T) {
	const n = 200
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		fill(t, tr, n)

		g := s.Enter()
		require.Equal(t, 0, tr.Min(g).Key)
		require.Equal(t, n-1, tr.Max(g).Key)
		g.Exit()

		prev, count := -1, 0
		for x := tr.ExtractMin(); !x.Empty(); x = tr.ExtractMin() {
			require.Greater(t, x.Node().Key, prev)
			prev = x.Node().Key
			x.Release()
			count++
		}
		require.Equal(t, n, count)
		require.True(t, tr.Empty())
	})
}

func TestExtractMaxOrder(t *testing.T) {
	const n = 200
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		nodes := fill(t, tr, n)

		prev, count := n, 0
		for x := tr.ExtractMax(); !x.Empty(); x = tr.ExtractMax() {
			require.Less(t, x.Node().Key, prev)
			prev = x.Node().Key
			x.Release()
			count++
		}
		require.Equal(t, n, count)

		s.ForceDispose()
		for _, node := range nodes {
			require.EqualValues(t, 1, node.Value.disposed.Load())
		}
	})
}

func TestNextAndAscend(t *testing.T) {
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		for _, k := range []int{10, 20, 30, 40, 50} {
			require.True(t, tr.Insert(&Node[int, *item]{Key: k, Value: &item{}}))
		}

		g := s.Enter()
		defer g.Exit()

		require.Equal(t, 10, tr.Next(g, -5).Key)
		require.Equal(t, 30, tr.Next(g, 20).Key)
		require.Equal(t, 30, tr.Next(g, 25).Key)
		require.Nil(t, tr.Next(g, 50))

		var keys []int
		tr.Ascend(g, func(n *Node[int, *item]) bool {
			keys = append(keys, n.Key)
			return true
		})
		require.Equal(t, []int{10, 20, 30, 40, 50}, keys)

		keys = keys[:0]
		tr.AscendFrom(g, 30, func(n *Node[int, *item]) bool {
			keys = append(keys, n.Key)
			return n.Key < 40
		})
		require.Equal(t, []int{30, 40}, keys)

		keys = keys[:0]
		tr.AscendFrom(g, 31, func(n *Node[int, *item]) bool {
			keys = append(keys, n.Key)
			return true
		})
		require.Equal(t, []int{40, 50}, keys)
	})
}

func TestReaderDelaysDisposal(t *testing.T) {
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		fill(t, tr, 10)

		g := s.Enter()
		held := tr.Get(g, 5)
		require.NotNil(t, held)

		x := tr.Extract(5)
		require.Same(t, held, x.Node())
		x.Release()
		s.Collect()
		require.Zero(t, held.Value.disposed.Load())
		require.Equal(t, 5, held.Key)

		g.Exit()
		s.ForceDispose()
		require.EqualValues(t, 1, held.Value.disposed.Load())
	})
}

func TestContractViolations(t *testing.T) {
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		n := &Node[int, *item]{Key: 1, Value: &item{}}
		require.True(t, tr.Insert(n))
		require.Panics(t, func() { tr.Insert(n) })
		require.Panics(t, func() { tr.Get(nil, 1) })

		g := s.Enter()
		g.Exit()
		require.Panics(t, func() { tr.Get(g, 1) })
	})
}

func TestReinsertAfterReset(t *testing.T) {
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		n := &Node[int, *item]{Key: 7, Value: &item{}}
		require.True(t, tr.Insert(n))
		tr.Extract(7).Release()
		s.ForceDispose()

		it := n.Value
		n.Reset()
		n.Key, n.Value = 8, it
		require.True(t, tr.Insert(n))
		require.True(t, tr.Contains(8))
		require.Equal(t, 1, tr.Clear())
		require.True(t, tr.Empty())
	})
}

func TestExemptDroppedIsReleased(t *testing.T) {
	eachScheme(t, func(t *testing.T, s smr.Scheme) {
		tr := newTestTree(t, s)
		nodes := fill(t, tr, 10)

		func() {
			x := tr.Extract(3)
			require.False(t, x.Empty())
		}()

		require.Eventually(t, func() bool {
			runtime.GC()
			s.ForceDispose()
			return nodes[3].Value.disposed.Load() == 1
		}, 5*time.Second, 10*time.Millisecond)
		require.Zero(t, nodes[4].Value.disposed.Load())
	})
}
