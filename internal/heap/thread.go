package heap

import (
	"sync"
	"unsafe"

	"github.com/timandy/routine"
)

// rootChunkSize is the number of shadow root slots grouped per allocation.
// Chunks never move once allocated, so a claimed slot's address is stable
// for the lifetime of its Stack handle — the property the C original gets
// for free from a fixed stack address, and that Go's relocatable goroutine
// stacks make unsafe to rely on directly.
const rootChunkSize = 64

type rootChunk struct {
	slots [rootChunkSize]Slot
	used  [rootChunkSize]bool
}

// mutator is the per-goroutine record: its own page pools (so ordinary
// allocation never contends with another goroutine) and its shadow root
// table, the stand-in for the C original's stack-address-mapped root
// region (see rootChunkSize above for why).
type mutator struct {
	h *Heap

	poolsMu sync.Mutex
	pools   map[*typeDesc]*pagePool

	rootsMu sync.Mutex
	chunks  []*rootChunk
}

func newMutator(h *Heap) *mutator {
	return &mutator{h: h, pools: make(map[*typeDesc]*pagePool)}
}

func (m *mutator) poolFor(d *typeDesc) *pagePool {
	m.poolsMu.Lock()
	defer m.poolsMu.Unlock()
	p, ok := m.pools[d]
	if !ok {
		p = newPagePool(m.h, d)
		m.pools[d] = p
	}
	return p
}

// alloc returns a freshly zeroed Reserved slot for d. Zeroing matters here
// in a way it would not in the C original: this package reuses page memory
// across allocations of possibly different types, so leftover bytes from a
// previous occupant must never be mistaken for this object's fields,
// especially its child Slot pointers.
func (m *mutator) alloc(d *typeDesc) (unsafe.Pointer, error) {
	var ptr unsafe.Pointer
	var err error
	if d.size() > m.h.largeThreshold() {
		ptr, _, err = m.h.allocLarge(d)
	} else {
		ptr, err = m.poolFor(d).alloc()
	}
	if err != nil {
		return nil, err
	}
	clear(unsafe.Slice((*byte)(ptr), d.size()))
	m.h.Collector.allocated.Add(1)
	return ptr, nil
}

// claimRoot reserves a shadow root slot and returns a handle to it. The
// slot starts cleared.
func (m *mutator) claimRoot() (*rootChunk, int) {
	m.rootsMu.Lock()
	defer m.rootsMu.Unlock()
	for _, c := range m.chunks {
		for i := range c.used {
			if !c.used[i] {
				c.used[i] = true
				c.slots[i].Store(nil)
				return c, i
			}
		}
	}
	c := &rootChunk{}
	c.used[0] = true
	m.chunks = append(m.chunks, c)
	return c, 0
}

func (m *mutator) releaseRoot(c *rootChunk, i int) {
	m.rootsMu.Lock()
	defer m.rootsMu.Unlock()
	c.slots[i].Store(nil)
	c.used[i] = false
}

// snapshotRoots copies every currently-claimed root pointer for the mark
// pass to scan without holding the lock across the (possibly slow) trace of
// each one.
func (m *mutator) snapshotRoots(out []unsafe.Pointer) []unsafe.Pointer {
	m.rootsMu.Lock()
	defer m.rootsMu.Unlock()
	for _, c := range m.chunks {
		for i, used := range c.used {
			if used {
				if p := c.slots[i].Load(); p != nil {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// mutatorRegistry tracks every goroutine that has ever touched a handle, so
// the collector can scan each one's shadow root table. Goroutines that exit
// are never explicitly deregistered — Go has no portable goroutine-exit
// hook — so a dead goroutine's mutator record lingers with an empty table;
// harmless to scan, and reclaimed only when the whole heap is torn down.
type mutatorRegistry struct {
	h   *Heap
	tls routine.ThreadLocal

	mu  sync.Mutex
	all []*mutator
}

func newMutatorRegistry(h *Heap) *mutatorRegistry {
	return &mutatorRegistry{h: h, tls: routine.NewThreadLocal()}
}

// current returns the calling goroutine's mutator record, creating and
// registering one on first use.
func (r *mutatorRegistry) current() *mutator {
	if v := r.tls.Get(); v != nil {
		return v.(*mutator)
	}
	m := newMutator(r.h)
	r.tls.Set(m)
	r.mu.Lock()
	r.all = append(r.all, m)
	r.mu.Unlock()
	return m
}

// forEach calls f for every mutator ever registered.
func (r *mutatorRegistry) forEach(f func(*mutator)) {
	r.mu.Lock()
	snap := make([]*mutator, len(r.all))
	copy(snap, r.all)
	r.mu.Unlock()
	for _, m := range snap {
		f(m)
	}
}
