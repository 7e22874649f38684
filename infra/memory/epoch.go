package memory

import "sync/atomic"

// Inactive is the epoch reported by a reader outside any read section.
const Inactive = ^uint64(0)

// Epoch is a monotonically increasing reclamation clock.
// Each RCU scheme owns one; there is no process-wide epoch.
type Epoch struct {
	v atomic.Uint64
}

// Load returns the current epoch.
func (e *Epoch) Load() uint64 {
	return e.v.Load()
}

// Advance moves the clock forward and returns the new epoch.
func (e *Epoch) Advance() uint64 {
	return e.v.Add(1)
}

// ReaderEpoch marks when a reader entered a read section.
// The zero value is an inactive reader.
type ReaderEpoch struct {
	// epoch+1 while active, 0 while idle
	epoch atomic.Uint64
}

// Enter publishes the clock's current epoch as this reader's epoch.
func (r *ReaderEpoch) Enter(clock *Epoch) uint64 {
	e := clock.Load()
	r.epoch.Store(e + 1)
	return e
}

// Exit marks the reader as idle.
func (r *ReaderEpoch) Exit() {
	r.epoch.Store(0)
}

// Value returns the epoch the reader entered at, or Inactive.
func (r *ReaderEpoch) Value() uint64 {
	v := r.epoch.Load()
	if v == 0 {
		return Inactive
	}
	return v - 1
}

// Active reports whether the reader is inside a read section.
func (r *ReaderEpoch) Active() bool {
	return r.epoch.Load() != 0
}

// MinReaderEpoch returns the smallest epoch across active readers,
// or Inactive when none is reading.
func MinReaderEpoch(readers ...*ReaderEpoch) uint64 {
	min := Inactive
	for _, r := range readers {
		if r == nil {
			continue
		}
		if v := r.Value(); v < min {
			min = v
		}
	}
	return min
}
