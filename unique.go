package sgcl

import (
	"reflect"
	"unsafe"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// Unique is a single-owner handle to a managed object: the kind Make
// returns directly. Its referent is destroyed and the slot released the
// moment Close runs, or ownership is handed to the collector's tracing by
// moving the handle into a Tracked, Owned, Stack or Atomic slot. The zero
// value holds nothing.
type Unique[T any] struct {
	ptr *T
}

// Get returns the underlying pointer without any state transition.
func (u Unique[T]) Get() *T { return u.ptr }

// Valid reports whether this handle still owns a live object — false for
// the zero value, after Close, or after the referent has been moved into
// a traced slot.
func (u Unique[T]) Valid() bool { return u.ptr != nil }

// Close destroys the referent immediately and releases its slot. Safe to
// call on an already-closed or never-constructed handle.
func (u *Unique[T]) Close() {
	if u.ptr == nil {
		return
	}
	heap.DestroyUnique(unsafe.Pointer(u.ptr))
	u.ptr = nil
}

// Release detaches the handle from its referent without running the
// destructor or touching the referent's lifecycle state, returning the
// pointer it held. For moving ownership into a slot whose own store
// operation already performs the UniqueLock promotion — Atomic's
// CompareAndSwap, notably, which cannot take a *Unique directly since the
// exchange itself decides whether the move actually happened.
func (u *Unique[T]) Release() *T {
	p := u.ptr
	u.ptr = nil
	return p
}

// Clone copy-constructs a new managed object from the referent — a
// memberwise copy, matching the default a C++ copy constructor would
// perform absent a user-defined one — and returns it as a fresh Unique.
// Any Tracked/Atomic children are aliased with the source, not
// deep-copied; a type whose fields include an Owned child should not be
// cloned, since both the original and the clone would then cascade-own
// the same object.
func (u Unique[T]) Clone() (Unique[T], error) {
	if u.ptr == nil {
		return Unique[T]{}, &Error{Err: ErrMisuse, Detail: "clone of an empty handle"}
	}
	t := reflect.TypeFor[T]()
	d := heap.DescriptorFor(t)
	dst, _, err := heap.Global().NewUnique(t)
	if err != nil {
		return Unique[T]{}, wrap(err)
	}
	d.CloneInto(dst, unsafe.Pointer(u.ptr))
	return Unique[T]{ptr: (*T)(dst)}, nil
}
