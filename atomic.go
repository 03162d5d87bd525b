package sgcl

import (
	"unsafe"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// Atomic is a field inside a managed object holding a pointer that may be
// read and updated concurrently with a collection cycle in progress. The
// hard part its protocol handles: a cycle may have already decided the
// current value is unreachable elsewhere but not yet swept it, so every
// operation here re-promotes whatever it touches before returning it to
// the caller.
type Atomic[T any] struct {
	s heap.Slot
}

// Load reads the current value and promotes it to ReachableAtomic,
// extending its grace period so a caller that is about to store it
// elsewhere has time to do so before a concurrent sweep could remove it.
func (a *Atomic[T]) Load() *T {
	p := a.s.Load()
	heap.MarkReachableAtomic(p)
	return (*T)(p)
}

// Store publishes v. The value being replaced, if any, first has its own
// state re-promoted to ReachableAtomic — the "auxiliary protector" step
// of the original protocol, collapsed here to a direct state bump on the
// outgoing value itself rather than a throwaway clone, since both give a
// concurrent reader that already loaded the old pointer the same grace
// window to finish promoting it (see DESIGN.md). The new value is then
// published and promoted to plain Reachable.
func (a *Atomic[T]) Store(v *T) {
	if old := a.s.Load(); old != nil {
		heap.MarkReachableAtomic(old)
	}
	p := unsafe.Pointer(v)
	a.s.Store(p)
	if p != nil {
		heap.MarkReachable(p)
	}
}

// StoreUnique moves ownership of u into this slot, the Atomic counterpart
// to Tracked.StoreUnique and Stack.StoreUnique: u's referent is handed to
// the collector's tracing rather than destroyed when u later goes out of
// scope. u is left holding nothing.
func (a *Atomic[T]) StoreUnique(u *Unique[T]) {
	a.Store(u.Release())
}

// CompareAndSwap attempts to atomically replace old with new, parking the
// slot's current value on a temporary shadow root for the duration of the
// attempt so the collector sees it regardless of whether the CAS
// succeeds. On success, the replaced value is promoted to ReachableAtomic
// and new is promoted to Reachable.
func (a *Atomic[T]) CompareAndSwap(old, new *T) bool {
	temp := heap.Global().ClaimRoot()
	defer temp.Release()

	cur := a.s.Load()
	temp.Store(cur)

	ok := a.s.CompareAndSwap(unsafe.Pointer(old), unsafe.Pointer(new))
	if ok {
		heap.MarkReachableAtomic(cur)
		if new != nil {
			heap.MarkReachable(unsafe.Pointer(new))
		}
	}
	return ok
}
