package sgcl

import (
	"unsafe"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// Tracked is a field inside a managed object that refers to another
// managed object whose own reachability governs its lifetime: the
// collector discovers it independently of this field, so Tracked never
// cascades a destroy the way Owned does. A struct embeds Tracked[U] to
// declare "I point at a U the collector traces on its own."
//
// Tracked must only ever live as a field of a type allocated through
// Make — the child-pointer map is discovered by walking struct layout,
// not by any registration Tracked itself performs.
type Tracked[T any] struct {
	s heap.Slot
}

// Load reads the current referent.
func (t *Tracked[T]) Load() *T {
	return (*T)(t.s.Load())
}

// Store performs a release store of v into the slot followed by a state
// promotion to Reachable, exactly the ordering spec'd for a plain
// Tracked/Stack store: pointer visible first, then marked alive for the
// cycle in progress.
func (t *Tracked[T]) Store(v *T) {
	p := unsafe.Pointer(v)
	t.s.Store(p)
	heap.MarkReachable(p)
}

// StoreUnique moves ownership of u into this slot: u's referent leaves
// UniqueLock and is promoted to plain Reachable, handing its lifetime to
// the collector's tracing. u is left holding nothing.
func (t *Tracked[T]) StoreUnique(u *Unique[T]) {
	if u.ptr == nil {
		t.Store(nil)
		return
	}
	p := unsafe.Pointer(u.ptr)
	heap.PromoteUniqueToTracked(p)
	t.s.Store(p)
	u.ptr = nil
}

// Owned is a field inside a managed object that exclusively owns another
// managed object — the nested-Unique case. Destroying the enclosing
// object cascades into destroying whatever Owned currently holds, the way
// a C++ member unique_ptr's destructor runs when its owner's does.
type Owned[T any] struct {
	s heap.OwnedSlot
}

// Load reads the current referent without any state transition.
func (o *Owned[T]) Load() *T {
	return (*T)(o.s.Load())
}

// StoreUnique takes ownership of u, destroying and replacing whatever
// this field previously owned. u is left holding nothing.
func (o *Owned[T]) StoreUnique(u *Unique[T]) {
	old := o.s.Load()
	var p unsafe.Pointer
	if u.ptr != nil {
		p = unsafe.Pointer(u.ptr)
		u.ptr = nil
	}
	o.s.Store(p)
	if old != nil {
		heap.DestroyUnique(old)
	}
}

// Close destroys and clears the currently owned object, if any.
func (o *Owned[T]) Close() {
	old := o.s.Load()
	if old == nil {
		return
	}
	o.s.Store(nil)
	heap.DestroyUnique(old)
}
