// Package smr implements safe memory reclamation for concurrent
// containers.
//
// A Scheme decides when a node that was unlinked from a shared structure
// can be disposed of. Readers bracket every traversal with a Guard:
//
//	g := scheme.Enter()
//	defer g.Exit()
//	n := t.Get(g, key) // valid until g.Exit
//
// Writers that unlink a node hand it to Retire together with a dispose
// callback. The scheme runs the callback exactly once, after it has proved
// that no Guard can still observe the node.
//
// Two backends are provided:
//
//   - RCU: readers publish the epoch they entered at; a node retired at
//     epoch E is disposed once every active reader entered after E.
//   - HP: readers publish the exact nodes they hold in hazard slots; a node
//     is disposed once no slot announces it.
//
// Disposal is never performed by a reader. It happens in Retire once the
// pending count crosses Options.Threshold, in Collect (see Reclaimer), and
// synchronously in ForceDispose. ForceDispose waits for readers, so it must
// not be called while the calling goroutine holds an open Guard.
package smr
