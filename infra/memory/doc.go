// Package memory provides the low-level primitives for safe memory
// reclamation: the epoch clock and reader epoch slots used by the
// RCU-style scheme, the lock-free RetireRing that buffers retired
// nodes until they are provably unreachable, and a typed Pool that
// recycles nodes once a scheme has disposed of them.
//
// The memory package is dependency-free and forms the foundation
// of the smr package.
package memory
