package heap

import (
	"reflect"
	"sync/atomic"
	"unsafe"
)

// Slot is the storage cell shared by every handle kind that can live inside
// a managed object: Tracked embeds one directly, Atomic uses one as its
// published value cell, and a Unique nested inside another managed object
// embeds one too so the owning object's destroy cascade can find it. It
// holds a single pointer, always read and written through atomic.Load/
// StorePointer so a concurrent mark pass never observes a torn value.
//
// childOffsets finds these cells by exact type match, which is the Go
// replacement for the C original's 0xFF sentinel-fill trick: a field of
// type Slot unambiguously marks "a managed child lives here".
type Slot struct {
	ptr unsafe.Pointer
}

// SlotType is the reflect.Type of Slot, used by the child-offset walker.
var SlotType = reflect.TypeOf(Slot{})

// OwnedSlot is identical to Slot in layout but marks a child owned
// exclusively by its parent (the cell a Unique handle embeds when nested
// inside another managed object), as opposed to a Tracked/Atomic child the
// collector discovers independently. The distinct type is how
// childOffsets tells the two apart: a destroyed parent must cascade-destroy
// what an OwnedSlot points to, but must only null out (never destroy) what
// a plain Slot points to, since that target may still be reachable through
// another path.
type OwnedSlot struct {
	Slot
}

// OwnedSlotType is the reflect.Type of OwnedSlot, used by the child-offset
// walker.
var OwnedSlotType = reflect.TypeOf(OwnedSlot{})

// Load reads the slot's current pointer.
func (s *Slot) Load() unsafe.Pointer {
	return atomic.LoadPointer(&s.ptr)
}

// Store writes a new pointer into the slot. Callers owning a managed
// object (as opposed to internal collector bookkeeping) must follow this
// with the appropriate MarkReachable/MarkReachableAtomic write barrier.
func (s *Slot) Store(p unsafe.Pointer) {
	atomic.StorePointer(&s.ptr, p)
}

// Swap stores a new pointer and returns the slot's previous value.
func (s *Slot) Swap(p unsafe.Pointer) unsafe.Pointer {
	return atomic.SwapPointer(&s.ptr, p)
}

// CompareAndSwap performs a hardware CAS on the slot's pointer.
func (s *Slot) CompareAndSwap(old, new unsafe.Pointer) bool {
	return atomic.CompareAndSwapPointer(&s.ptr, old, new)
}

// SlotAt reinterprets the Slot field at the given offset within obj.
func SlotAt(obj unsafe.Pointer, offset uintptr) *Slot {
	return (*Slot)(unsafe.Add(obj, offset))
}
