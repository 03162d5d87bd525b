package heap

import "unsafe"

// pagePool is a per-(mutator, type) object allocator: it hands out slots
// from a current page, pulling a fresh one from the heap when that page
// fills. One exists per type a given mutator has allocated, stored in that
// mutator's record (thread.go), so ordinary allocation needs no
// cross-goroutine synchronization beyond the page's own mutex.
type pagePool struct {
	h       *Heap
	desc    *typeDesc
	current *page
}

func newPagePool(h *Heap, d *typeDesc) *pagePool {
	return &pagePool{h: h, desc: d}
}

// alloc returns the address of a fresh Reserved slot for this pool's type.
func (p *pagePool) alloc() (unsafe.Pointer, error) {
	for {
		if p.current != nil {
			if i, ok := p.current.allocSlot(); ok {
				return p.current.slotAddr(i), nil
			}
			p.current = nil
		}
		np, err := p.h.newDataPage()
		if err != nil {
			return nil, err
		}
		np.mu.Lock()
		if np.desc == nil {
			np.claimFor(p.desc)
		}
		np.mu.Unlock()
		p.current = np
	}
}
