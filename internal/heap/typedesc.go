package heap

import (
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// destroyer is satisfied structurally by any payload type with a Destroy
// method; Go's structural interfaces mean a user type never needs to
// reference this package to implement it.
type destroyer interface {
	Destroy()
}

// typeDesc is the per-payload-type descriptor: object layout, the child
// offsets the collector must trace and null out, and a destroy/clone pair
// built once via reflection instead of generated per T the way the C++
// original's templates do.
type typeDesc struct {
	typ          reflect.Type
	objectSize   uintptr
	childOffsets []childOffset // protected by the final flag below
	final        atomic.Bool

	metadata atomic.Pointer[any]
}

func (d *typeDesc) size() uintptr { return d.objectSize }

// clearChildren nulls every child Slot in obj, cascade-destroying whatever
// an OwnedSlot child points to first (Unique ownership cascades: that
// object has no other path keeping it alive) and simply releasing the
// collector's hold on whatever a plain Slot child points to (that object's
// own reachability governs whether it survives).
func (d *typeDesc) clearChildren(obj unsafe.Pointer) {
	for _, co := range d.childOffsets {
		s := SlotAt(obj, co.offset)
		if co.owned {
			if child := s.Load(); child != nil {
				destroyCascade(child)
			}
		}
		s.Store(nil)
	}
}

// destroy runs the payload's Destroy method, if any, after its children
// have already been cleared by clearChildren.
func (d *typeDesc) destroy(obj unsafe.Pointer) {
	v := reflect.NewAt(d.typ, obj).Interface()
	if x, ok := v.(destroyer); ok {
		x.Destroy()
	}
}

// destroyCascade destroys an object owned exclusively by a Unique chain,
// looking up its descriptor from the page it lives on rather than from a
// statically known type, since this runs from inside a generic parent's
// cleanup with no T in scope. The slot is left Destroyed; the next sweep
// returns it to its page's free list without running Destroy again.
func destroyCascade(obj unsafe.Pointer) {
	p := pageOf(obj, currentPageSize())
	i := p.indexOf(obj)
	p.setState(i, Destroyed)
	p.desc.Destroy(obj)
}

// cloneInto performs the default memberwise copy a C++ copy constructor
// would do absent a user-defined one: a raw byte copy, which for a type
// containing Slot fields means the clone shares its children with the
// source rather than deep-copying them. That matches clone()'s documented
// semantics: an independent object, but with any managed children aliased.
func (d *typeDesc) cloneInto(dst, src unsafe.Pointer) {
	copy(unsafe.Slice((*byte)(dst), d.objectSize), unsafe.Slice((*byte)(src), d.objectSize))
}

// CloneInto is the exported form of cloneInto, for the root package's
// Unique.Clone.
func (d *typeDesc) CloneInto(dst, src unsafe.Pointer) { d.cloneInto(dst, src) }

var typeDescs sync.Map // reflect.Type -> *typeDesc

// descriptorFor returns the cached descriptor for T, building and
// publishing it on first use. The child-offset map is computed and marked
// final before the descriptor is ever stored where an allocator can reach
// it, satisfying the "offsets never change after final" invariant by
// construction rather than by locking every read.
func descriptorFor(t reflect.Type) *typeDesc {
	if v, ok := typeDescs.Load(t); ok {
		return v.(*typeDesc)
	}
	d := &typeDesc{
		typ:          t,
		objectSize:   t.Size(),
		childOffsets: childOffsets(t),
	}
	d.final.Store(true)
	actual, _ := typeDescs.LoadOrStore(t, d)
	return actual.(*typeDesc)
}
