package smr

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// State is the lifecycle of a reclaimable node.
type State uint32

const (
	// StateUnlinked: allocated, not reachable from any structure.
	StateUnlinked State = iota
	// StateLinked: reachable from the structure's root.
	StateLinked
	// StateRemoved: unlinked, owned by exactly one Exempt handle.
	StateRemoved
	// StateRetired: handed to a Scheme, waiting for readers to drain.
	StateRetired
	// StateDisposed: the dispose callback has run.
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnlinked:
		return "UNLINKED"
	case StateLinked:
		return "LINKED"
	case StateRemoved:
		return "REMOVED"
	case StateRetired:
		return "RETIRED"
	case StateDisposed:
		return "DISPOSED"
	default:
		return "UNKNOWN"
	}
}

// Header is embedded in every node managed by a Scheme.
// Its address is the node's identity for hazard publication.
type Header struct {
	state atomic.Uint32
}

// State returns the current lifecycle state.
func (h *Header) State() State {
	return State(h.state.Load())
}

// Linked reports whether the node is currently reachable.
func (h *Header) Linked() bool {
	return h.State() == StateLinked
}

// CompareAndSwap moves the node from one state to another.
func (h *Header) CompareAndSwap(from, to State) bool {
	return h.state.CompareAndSwap(uint32(from), uint32(to))
}

// Link marks a fresh node as reachable.
// Linking a node that is not Unlinked is a contract violation.
func (h *Header) Link() {
	h.mustAdvance(StateUnlinked, StateLinked)
}

// Unlink marks a reachable node as logically removed. It is the state
// change made at a removal's linearization point.
func (h *Header) Unlink() {
	h.mustAdvance(StateLinked, StateRemoved)
}

// Reset returns a disposed node to Unlinked so it can be reused.
func (h *Header) Reset() {
	if h.CompareAndSwap(StateDisposed, StateUnlinked) || h.State() == StateUnlinked {
		return
	}
	panic(errors.AssertionFailedf("smr: reset of node in state %s", h.State()))
}

func (h *Header) mustAdvance(from, to State) {
	if !h.CompareAndSwap(from, to) {
		panic(errors.AssertionFailedf("smr: node in state %s cannot move to %s", h.State(), to))
	}
}
