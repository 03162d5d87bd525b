package heap

import "unsafe"

// largeThreshold is the object size above which allocation bypasses the
// shared per-type page pool and gets its own dedicated page, matching the
// original's split between Small_object_allocator and
// Large_object_allocator: a single huge object should not waste the rest of
// a shared page, nor should pooling logic have to special-case it.
func (h *Heap) largeThreshold() uintptr {
	return h.Cfg.dataSize()
}

// allocLarge maps a dedicated page sized for exactly one object of d's size
// and returns its sole Reserved slot.
func (h *Heap) allocLarge(d *typeDesc) (unsafe.Pointer, *page, error) {
	pageSize := h.Cfg.PageSize
	need := int(pageSize)
	for uintptr(need)-wordSize < d.size() {
		need += int(pageSize)
	}
	raw, free, err := rawAlloc(need + int(pageSize) - 1)
	if err != nil {
		return nil, nil, err
	}
	off := alignOffset(raw, pageSize)
	mem := raw[off : off+need]

	p := &page{
		base: unsafe.Pointer(&mem[wordSize]),
		size: uintptr(need) - wordSize,
	}
	*(*unsafe.Pointer)(unsafe.Pointer(&mem[0])) = unsafe.Pointer(p)
	p.claimFor(d)
	p.large = true
	p.largeFree = free

	h.registerPage(p)

	i, ok := p.allocSlot()
	if !ok {
		return nil, nil, errOutOfMemory
	}
	return p.slotAddr(i), p, nil
}
