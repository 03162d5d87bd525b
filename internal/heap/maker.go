package heap

import (
	"reflect"
	"unsafe"
)

// NewUnique allocates and zero-initializes storage for one value of type t,
// returning it already in the UniqueLock state: newly made objects are
// always owned outright by the Unique handle Make returns, exactly as the
// original Maker hands a freshly constructed object to its caller before
// anything else in the heap can reach it.
func (h *Heap) NewUnique(t reflect.Type) (unsafe.Pointer, *typeDesc, error) {
	d := descriptorFor(t)
	m := h.mutators.current()
	ptr, err := m.alloc(d)
	if err != nil {
		return nil, nil, err
	}
	owner := pageOf(ptr, h.Cfg.PageSize)
	i := owner.indexOf(ptr)
	owner.setState(i, UniqueLock)
	return ptr, d, nil
}

// NewArray allocates and zero-initializes storage for n contiguous values
// of element type t, returning the base address of the array already in
// the UniqueLock state. Elements share one slot for sweep/state purposes;
// the descriptor used is the array's own synthesized element-array type so
// its child offsets repeat once per element.
func (h *Heap) NewArray(elem reflect.Type, n int) (unsafe.Pointer, *typeDesc, error) {
	at := reflect.ArrayOf(n, elem)
	return h.NewUnique(at)
}

// Destroy runs a descriptor's destroy hook on obj: first nulling every
// child Slot so the sweep's removal of obj cannot leave a dangling pointer
// observable mid-cycle, then invoking the payload's Destroy method if any.
func (d *typeDesc) Destroy(obj unsafe.Pointer) {
	d.clearChildren(obj)
	d.destroy(obj)
}
