package heap

import (
	"sync"
	"sync/atomic"
)

// Heap is the single process-wide managed heap: one block allocator, the
// registry of every page ever created, the mutator registry, and the
// collector goroutine. The original C library is likewise a single global
// collector with no per-instance API, so this package exposes the same
// shape: one heap, created lazily on first use.
type Heap struct {
	Cfg Config

	blocks *blockAllocator

	pagesMu   sync.Mutex
	pages     []*page // every page ever created, small-object and large-object alike
	unclaimed []*page // pages registered but not yet claimed by a type

	mutators *mutatorRegistry

	*Collector
}

var (
	globalOnce sync.Once
	global     *Heap
)

// Global returns the process-wide heap, constructing it with Default
// configuration on first call. Configuration changes after the first call
// have no effect; set Default's fields before touching any handle type.
func Global() *Heap {
	globalOnce.Do(func() {
		global = newHeap(Default)
	})
	return global
}

func newHeap(cfg Config) *Heap {
	pageSizeVar.Store(int64(cfg.PageSize))
	h := &Heap{
		Cfg:    cfg,
		blocks: newBlockAllocator(&cfg),
	}
	h.mutators = newMutatorRegistry(h)
	h.Collector = newCollector(h)
	h.Collector.start()
	return h
}

// pageSizeVar mirrors Global().Cfg.PageSize so code reached from a generic
// parent's cleanup path (destroyCascade, typedesc.go) can recover the
// owning page of an arbitrary address without a *Heap in scope. The module
// only ever constructs one Heap (Global), so a package-level mirror is
// exact, not an approximation.
var pageSizeVar atomic.Int64

func currentPageSize() uintptr { return uintptr(pageSizeVar.Load()) }

func (h *Heap) registerPage(p *page) {
	h.pagesMu.Lock()
	h.pages = append(h.pages, p)
	h.pagesMu.Unlock()
}

// newDataPage returns a page that has never been claimed by any type yet,
// drawing from pages left over by an earlier block acquisition before
// minting a fresh block.
func (h *Heap) newDataPage() (*page, error) {
	h.pagesMu.Lock()
	if n := len(h.unclaimed); n > 0 {
		p := h.unclaimed[n-1]
		h.unclaimed = h.unclaimed[:n-1]
		h.pagesMu.Unlock()
		return p, nil
	}
	h.pagesMu.Unlock()

	b, err := h.blocks.acquire()
	if err != nil {
		return nil, err
	}
	h.pagesMu.Lock()
	for _, p := range b.pages {
		h.pages = append(h.pages, p)
	}
	h.unclaimed = append(h.unclaimed, b.pages[1:]...)
	h.pagesMu.Unlock()
	return b.pages[0], nil
}
