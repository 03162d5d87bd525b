// Package heap's exported-within-module surface used by the root package's
// generic handle types. Nothing here is part of the module's public API;
// the root package is.
package heap

import (
	"reflect"
	"unsafe"
)

// DescriptorFor returns the cached layout/behavior descriptor for T,
// building it on first use.
func DescriptorFor(t reflect.Type) *typeDesc { return descriptorFor(t) }

// TypeDesc is the exported name for the per-type descriptor, so generic
// handle types in the root package can hold one without reaching into this
// package's unexported type directly.
type TypeDesc = typeDesc

// Size reports a descriptor's object size in bytes.
func (d *typeDesc) Size() uintptr { return d.objectSize }

// Metadata returns the user metadata last attached to T via SetMetadata,
// or nil.
func (d *typeDesc) Metadata() any {
	if p := d.metadata.Load(); p != nil {
		return *p
	}
	return nil
}

// SetMetadata attaches arbitrary user data to T's descriptor.
func (d *typeDesc) SetMetadata(v any) { d.metadata.Store(&v) }

// MarkReachable is the mutator-side write barrier run whenever a Tracked or
// Atomic slot is stored into: it (re)confirms the target alive for the
// cycle in progress, closing the race between a mark pass finishing and
// its sweep running by setting the page's current mark bit directly rather
// than only the slot's state byte.
func MarkReachable(ptr unsafe.Pointer) {
	promote(ptr, Reachable)
}

// MarkReachableAtomic is applied by an Atomic handle to a value it loads,
// replaces or swaps out (a newly stored value gets plain MarkReachable): it
// gets the decaying ReachableAtomic state rather than plain Reachable,
// giving concurrent readers of that value a grace window before the slot
// can be swept.
func MarkReachableAtomic(ptr unsafe.Pointer) {
	promote(ptr, ReachableAtomic)
}

// promote bumps a slot's state toward to, which is either Reachable (a
// plain store's write barrier) or ReachableAtomic (an Atomic load or
// replacement). A plain Reachable write never downgrades a slot already at
// or above Reachable in strength (Decaying or ReachableAtomic already imply
// it). A ReachableAtomic promotion always resets the state to full
// ReachableAtomic, even over a slot already mid-decay, since each new
// observation restarts the grace window the decay schedule measures.
func promote(ptr unsafe.Pointer, to State) {
	if ptr == nil {
		return
	}
	p := pageOf(ptr, currentPageSize())
	i := p.indexOf(ptr)
	for {
		st := p.stateOf(i)
		if to == Reachable && (st.Decaying() || st == Reachable) {
			break
		}
		if to == ReachableAtomic && st == ReachableAtomic {
			break
		}
		if p.casState(i, st, to) {
			break
		}
	}
	if p.marked != nil {
		bitSet(p.marked, i)
	}
}

// StateUniqueLock, StateReachable and StateDestroyed expose the subset of
// the state enum the root package's handle types need to reason about
// explicitly (Unique ownership checks, cascade-destroy, diagnostics).
const (
	StateUniqueLock = UniqueLock
	StateReachable  = Reachable
	StateDestroyed  = Destroyed
)

// StateOf returns the current lifecycle state of the slot at ptr.
func StateOf(ptr unsafe.Pointer) State {
	p := pageOf(ptr, currentPageSize())
	return p.stateOf(p.indexOf(ptr))
}

// DescriptorOf returns the type descriptor governing the object at ptr,
// looked up from its owning page rather than from any statically known T
// — the dynamic-type counterpart to DescriptorFor's static lookup.
func DescriptorOf(ptr unsafe.Pointer) *typeDesc {
	return pageOf(ptr, currentPageSize()).desc
}

// Type returns the reflect.Type a descriptor governs.
func (d *typeDesc) Type() reflect.Type { return d.typ }

// DestroyUnique destroys a UniqueLock slot immediately: clears its
// children (cascading into any further Unique-owned descendants), runs its
// Destroy method, and releases the slot. Used by the root package's
// Unique.Close.
func DestroyUnique(ptr unsafe.Pointer) {
	p := pageOf(ptr, currentPageSize())
	i := p.indexOf(ptr)
	if !p.casState(i, UniqueLock, Destroyed) {
		return // already closed, or never constructed this way — no-op
	}
	p.desc.Destroy(ptr)
	p.freeSlot(i)
}

// PromoteUniqueToTracked transitions a freshly allocated UniqueLock slot to
// plain Reachable, the move that happens when a Unique handle's value is
// stored into a Tracked/Atomic slot (handing sole ownership to the
// collector's tracing instead of explicit Close).
func PromoteUniqueToTracked(ptr unsafe.Pointer) bool {
	p := pageOf(ptr, currentPageSize())
	i := p.indexOf(ptr)
	if p.casState(i, UniqueLock, Reachable) {
		bitSet(p.marked, i)
		return true
	}
	return false
}

// FailConstruction marks a freshly Reserved/UniqueLock slot BadAlloc and
// frees it immediately: used when a Make initializer panics partway
// through, matching the original Maker's "on exception, set BadAlloc and
// rethrow" step. No Destroy is run — construction never completed, so
// there is nothing a destructor could safely observe.
func FailConstruction(ptr unsafe.Pointer) {
	p := pageOf(ptr, currentPageSize())
	i := p.indexOf(ptr)
	p.setState(i, BadAlloc)
	p.freeSlot(i)
}

// ClaimRoot reserves a shadow root slot for the calling goroutine.
func (h *Heap) ClaimRoot() *RootHandle {
	m := h.mutators.current()
	c, i := m.claimRoot()
	return &RootHandle{m: m, chunk: c, idx: i}
}

// RootHandle is a claimed shadow root slot backing a Stack handle.
type RootHandle struct {
	m     *mutator
	chunk *rootChunk
	idx   int
}

func (r *RootHandle) Load() unsafe.Pointer { return r.chunk.slots[r.idx].Load() }
func (r *RootHandle) Store(p unsafe.Pointer) {
	r.chunk.slots[r.idx].Store(p)
	MarkReachable(p)
}
func (r *RootHandle) Swap(p unsafe.Pointer) unsafe.Pointer {
	old := r.chunk.slots[r.idx].Swap(p)
	MarkReachable(p)
	return old
}
func (r *RootHandle) Release() { r.m.releaseRoot(r.chunk, r.idx) }
