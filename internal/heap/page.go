package heap

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// page is the metadata for one data page: object size, per-slot state, and
// the mark bitset the collector maintains across a cycle. It is an
// ordinary Go struct, heap-allocated once per page and addressed from any
// object inside the page via the backpointer word block.reset wrote at the
// page's base address; only the bitmaps and book-keeping ints below need to
// be touched by Go code, so unlike the C original there is no need to pack
// them into the mmap'd region itself.
type page struct {
	base unsafe.Pointer // first byte after the backpointer word
	size uintptr        // bytes available for objects

	mu         sync.Mutex
	desc       *typeDesc // nil until the page's type is fixed by first use
	objectSize uintptr
	capacity   int32

	states []atomic.Uint32 // State per slot

	// marked is a capacity-bit bitset. The collector owns it during a mark
	// pass, but a mutator's write barrier (MarkReachable in api.go) also
	// sets a bit when storing a fresh reference, to close the race window
	// between this cycle's mark pass finishing and its sweep running —
	// hence atomic words rather than plain uint64s.
	marked []atomic.Uint64

	freeHead int32 // 1-based index of the first Unused slot in an intra-page freelist, 0 if none
	bump     int32 // next never-allocated slot index
	live     int32 // number of slots currently Reserved/UniqueLock/Reachable*

	large     bool   // true for a dedicated single-object page (large.go)
	largeFree func() // unmaps a large page's backing memory
}

func bitsetWords(capacity int) int {
	return (capacity + 63) / 64
}

func bitGet(bits []atomic.Uint64, i int32) bool {
	return bits[i/64].Load()&(1<<uint(i%64)) != 0
}

func bitSet(bits []atomic.Uint64, i int32) {
	mask := uint64(1) << uint(i%64)
	w := &bits[i/64]
	for {
		old := w.Load()
		if old&mask != 0 {
			return
		}
		if w.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

func bitClear(bits []atomic.Uint64, i int32) {
	mask := uint64(1) << uint(i%64)
	w := &bits[i/64]
	for {
		old := w.Load()
		if old&mask == 0 {
			return
		}
		if w.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// claimFor fixes this page's type the first time it is used, sizing its
// slot tables. Called with the page's mutex held by the allocator that
// owns it.
func (p *page) claimFor(d *typeDesc) {
	p.desc = d
	p.objectSize = d.objectSize
	p.capacity = int32(p.size / d.objectSize)
	p.states = make([]atomic.Uint32, p.capacity)
	for i := range p.states {
		p.states[i].Store(uint32(Unused))
	}
	p.marked = make([]atomic.Uint64, bitsetWords(int(p.capacity)))
}

func (p *page) slotAddr(i int32) unsafe.Pointer {
	return unsafe.Add(p.base, uintptr(i)*p.objectSize)
}

func (p *page) stateOf(i int32) State {
	return State(p.states[i].Load())
}

func (p *page) setState(i int32, s State) {
	p.states[i].Store(uint32(s))
}

func (p *page) casState(i int32, old, new State) bool {
	return p.states[i].CompareAndSwap(uint32(old), uint32(new))
}

// indexOf returns the slot index of addr within this page. addr must lie
// within [base, base+size); an address inside a slot maps to that slot's
// index.
func (p *page) indexOf(addr unsafe.Pointer) int32 {
	off := uintptr(addr) - uintptr(p.base)
	return int32(off / p.objectSize)
}

// baseAddressOf returns the start of the slot containing addr, given the
// page it belongs to.
func (p *page) baseAddressOf(addr unsafe.Pointer) unsafe.Pointer {
	off := uintptr(addr) - uintptr(p.base)
	slot := off / p.objectSize
	return unsafe.Add(p.base, slot*p.objectSize)
}

// allocSlot claims one Unused slot, preferring the intra-page freelist over the
// bump cursor so recently-freed memory is reused first. Returns false if
// the page has no room left.
func (p *page) allocSlot() (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.freeHead != 0 {
		i := p.freeHead - 1
		next := p.states[i].Load() >> 8 // stash next-free index above the byte-sized state
		p.freeHead = int32(next)
		p.states[i].Store(uint32(Reserved))
		p.live++
		return i, true
	}
	if p.bump < p.capacity {
		i := p.bump
		p.bump++
		p.states[i].Store(uint32(Reserved))
		p.live++
		return i, true
	}
	return 0, false
}

// freeSlot returns a slot to this page's intra-page freelist. Called by the
// collector during sweep with the page mutex NOT held (sweep holds its own
// exclusive phase), so it takes the lock itself.
func (p *page) freeSlot(i int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[i].Store(uint32(Unused) | uint32(p.freeHead)<<8)
	p.freeHead = i + 1
	p.live--
	bitClear(p.marked, i)
}

func (p *page) isEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live == 0
}
