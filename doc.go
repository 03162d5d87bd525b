// Package sgcl is a real-time, concurrent, tracing garbage collector for
// Go values, ported from the C++ sgcl library. It is non-moving,
// non-generational and non-compacting: a dedicated collector goroutine
// marks and sweeps the managed heap alongside ordinary mutator goroutines,
// with no stop-the-world phase and no safepoint polling.
//
// A managed object is created with Make, which returns a Unique handle —
// the sole owner until it is moved into a Tracked, Owned, Stack or Atomic
// slot, or explicitly released with Close. Tracked and Owned are struct
// fields embedded inside another managed object; Stack registers a root
// visible to the collector for as long as the handle is held; Atomic adds
// a compare-and-swap protocol safe against a concurrently running
// collection cycle; Unsafe is a raw, untracked pointer for a single
// synchronous call.
package sgcl
