package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type pooled struct {
	id    int
	dirty bool
}

func TestPoolResetsOnPut(t *testing.T) {
	p := NewPool(func() *pooled { return &pooled{} }, func(v *pooled) { *v = pooled{} })

	v := p.Get()
	require.NotNil(t, v)
	v.id, v.dirty = 7, true
	p.Put(v)

	require.Equal(t, pooled{}, *v, "reset hook must run before the object is pooled")
	require.NotPanics(t, func() { p.Put(nil) })
}
