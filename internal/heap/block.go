package heap

import (
	"sync"
	"unsafe"
)

// wordSize is the size of the backpointer word written at the start of
// every page's raw memory, letting pageOf recover the owning *page from any
// address inside the page by masking to the page boundary and dereferencing.
const wordSize = unsafe.Sizeof(uintptr(0))

// block is one OS-level slab: PagesPerBlock contiguous, page-aligned data
// pages. Unlike the C original (built on malloc, which gives no alignment
// guarantee), mmap already returns OS-page-aligned memory on every platform
// this module supports, so a block needs no separate header page to absorb
// rounding slack; the block's own bookkeeping lives in this ordinary Go
// struct instead of being carved out of the slab.
type block struct {
	mem    []byte  // raw slab, len == cfg.blockBytes()
	pages  []*page // one entry per data page in mem
	cfg    *Config
	onFree func(*block) // returns raw memory to the OS; platform-specific
}

// blockAllocator mints fresh blocks from the OS and keeps a registry of
// every one it has ever created, so Terminate can unmap them all. Page
// recycling (recyclePages in collector.go) happens at page granularity, not
// whole-block granularity: an emptied page rejoins the heap's generic
// unclaimed pool rather than being tracked back to its block, so a block
// mapped once is held for the process lifetime. That trades a small amount
// of address space for not having to reconcile stale *page bookkeeping
// against a block that got reset and reissued — a block is large enough
// (PagesPerBlock pages) relative to typical churn that this is a fair
// trade, and it is what Terminate's cleanup walks to release everything at
// shutdown.
type blockAllocator struct {
	cfg *Config
	mu  sync.Mutex
	all []*block
}

func newBlockAllocator(cfg *Config) *blockAllocator {
	return &blockAllocator{cfg: cfg}
}

// acquire mints a fresh block from the OS and registers it.
func (a *blockAllocator) acquire() (*block, error) {
	b, err := newBlock(a.cfg)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.all = append(a.all, b)
	a.mu.Unlock()
	return b, nil
}

// releaseAll unmaps every block ever minted. Called once, from Terminate.
func (a *blockAllocator) releaseAll() {
	a.mu.Lock()
	blocks := a.all
	a.all = nil
	a.mu.Unlock()
	for _, b := range blocks {
		b.free()
	}
}

func newBlock(cfg *Config) (*block, error) {
	want := cfg.blockBytes()
	raw, free, err := rawAlloc(want + int(cfg.PageSize) - 1)
	if err != nil {
		return nil, err
	}
	off := alignOffset(raw, cfg.PageSize)
	b := &block{mem: raw[off : off+want], cfg: cfg, onFree: func(*block) { free() }}
	b.pages = make([]*page, cfg.PagesPerBlock)
	b.reset()
	return b, nil
}

// alignOffset returns the smallest offset into raw at which a region of
// align bytes begins on an align-byte boundary.
func alignOffset(raw []byte, align uintptr) int {
	addr := uintptr(unsafe.Pointer(&raw[0]))
	pad := (align - addr%align) % align
	return int(pad)
}

// reset (re)installs a fresh *page for every data page in the block and
// writes its backpointer word, so pageOf works immediately.
func (b *block) reset() {
	ps := int(b.cfg.PageSize)
	for i := range b.pages {
		off := i * ps
		p := &page{
			base: unsafe.Pointer(&b.mem[off+int(wordSize)]),
			size: b.cfg.dataSize(),
		}
		*(*unsafe.Pointer)(unsafe.Pointer(&b.mem[off])) = unsafe.Pointer(p)
		b.pages[i] = p
	}
}

func (b *block) free() {
	if b.onFree != nil {
		b.onFree(b)
	}
}

// pageOf recovers the *page owning addr by masking to the page boundary and
// reading back the backpointer word written by block.reset. addr must lie
// within a page previously handed out by this package.
func pageOf(addr unsafe.Pointer, pageSize uintptr) *page {
	base := uintptr(addr) &^ (pageSize - 1)
	return *(**page)(unsafe.Pointer(base))
}
