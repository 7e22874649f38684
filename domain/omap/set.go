package omap

import (
	"cmp"

	"go.uber.org/zap"

	"conctree/smr"
)

// Set is an ordered set of keys.
type Set[K any] struct {
	m *Map[K, struct{}]
}

func NewSet[K any](cmp func(a, b K) int, scheme smr.Scheme, logger *zap.Logger) *Set[K] {
	return &Set[K]{m: New[K, struct{}](cmp, scheme, logger)}
}

func NewOrderedSet[K cmp.Ordered](scheme smr.Scheme, logger *zap.Logger) *Set[K] {
	return NewSet[K](cmp.Compare[K], scheme, logger)
}

func (s *Set[K]) Add(key K) bool     { return s.m.Insert(key, struct{}{}) }
func (s *Set[K]) Has(key K) bool     { return s.m.Contains(key) }
func (s *Set[K]) Remove(key K) bool  { return s.m.Delete(key) }
func (s *Set[K]) Len() int           { return s.m.Len() }
func (s *Set[K]) Close() error       { return s.m.Close() }
func (s *Set[K]) Scheme() smr.Scheme { return s.m.Scheme() }

func (s *Set[K]) PopMin() (K, bool) {
	k, _, ok := s.m.PopMin()
	return k, ok
}

func (s *Set[K]) PopMax() (K, bool) {
	k, _, ok := s.m.PopMax()
	return k, ok
}

// Range calls fn for each key not less than from, in order.
func (s *Set[K]) Range(from K, fn func(K) bool) {
	s.m.Range(from, func(k K, _ struct{}) bool { return fn(k) })
}

func (s *Set[K]) Each(fn func(K) bool) {
	s.m.Each(func(k K, _ struct{}) bool { return fn(k) })
}
