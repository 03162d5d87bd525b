package heap

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Collector runs the concurrent mark-sweep cycle in its own goroutine. It
// never stops mutators: handle load/store/allocate operations run
// unimpeded while a cycle is in progress, and the cycle itself is safe
// against that because every place a mutator touches shared state does so
// through an atomic operation the collector also uses (see slot.go,
// page.go). This mirrors the original _main_loop in
// include/sgcl/priv/collector.h: update decaying states, mark from roots to
// a fixed point, sweep anything left unmarked, recycle empty pages, sleep
// until the next trigger.
type Collector struct {
	h   *Heap
	log *logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	forceCh chan chan struct{}

	terminated atomic.Bool
	cycles     atomic.Int64
	liveCount  atomic.Int64

	allocated atomic.Int64 // objects allocated since the last cycle completed
	removed   atomic.Int64 // objects removed by the last cycle

	decayMu   sync.Mutex
	lastDecay time.Time

	snapshotMu sync.Mutex // serializes concurrent LiveObjects callers

	pauseMu sync.Mutex
	pauseCh chan struct{} // non-nil while the collector is paused after a LiveObjects snapshot
}

func newCollector(h *Heap) *Collector {
	return &Collector{
		h:       h,
		log:     newLogger(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		forceCh: make(chan chan struct{}, 8),
		lastDecay: timeNow(),
	}
}

// timeNow exists only so every wall-clock read in this file goes through
// one place; collector.go is the one component in the module that
// genuinely needs real time rather than a logical clock.
func timeNow() time.Time { return time.Now() }

func (c *Collector) start() {
	go c.loop()
}

func (c *Collector) loop() {
	defer close(c.doneCh)
	for {
		if !c.awaitUnpaused() {
			return
		}
		var replies []chan struct{}
		select {
		case <-c.stopCh:
			const maxDrainCycles = 8
			for i := 0; i < maxDrainCycles; i++ {
				c.runCycle()
				if c.removed.Load() == 0 {
					break
				}
			}
			c.drainForces(&replies)
			c.notify(replies)
			return
		case reply := <-c.forceCh:
			replies = append(replies, reply)
			c.drainForces(&replies)
		case <-time.After(c.sleepDuration()):
		}
		c.runCycle()
		c.notify(replies)
		if c.terminated.Load() {
			return
		}
	}
}

// awaitUnpaused blocks while a LiveObjects snapshot holds the collector
// paused, returning true once the pause guard is released. It returns false
// if termination is requested while still paused, so a caller that forgets
// to release its guard cannot also block Terminate forever.
func (c *Collector) awaitUnpaused() bool {
	for {
		ch := c.pauseSignal()
		if ch == nil {
			return true
		}
		select {
		case <-ch:
		case <-c.stopCh:
			return false
		}
	}
}

// pause puts the collector on hold until resume is called: awaitUnpaused
// blocks the loop before its next cycle, so the slot addresses a LiveObjects
// snapshot just captured stay valid for as long as the caller needs them.
// Idempotent — calling it again while already paused is a no-op.
func (c *Collector) pause() {
	c.pauseMu.Lock()
	if c.pauseCh == nil {
		c.pauseCh = make(chan struct{})
	}
	c.pauseMu.Unlock()
}

// Resume releases a pause established by a prior LiveObjects call. Safe to
// call more than once; only the first call after a pause has any effect.
func (c *Collector) Resume() {
	c.pauseMu.Lock()
	ch := c.pauseCh
	c.pauseCh = nil
	c.pauseMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

func (c *Collector) pauseSignal() chan struct{} {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	return c.pauseCh
}

func (c *Collector) isPaused() bool {
	return c.pauseSignal() != nil
}

func (c *Collector) drainForces(replies *[]chan struct{}) {
	for {
		select {
		case reply := <-c.forceCh:
			*replies = append(*replies, reply)
		default:
			return
		}
	}
}

func (c *Collector) notify(replies []chan struct{}) {
	for _, r := range replies {
		close(r)
	}
}

// sleepDuration implements the trigger heuristic: sleep up to MaxSleepSec,
// or only one decay step when the objects allocated since the last cycle,
// or the objects removed by the last cycle, reach TriggerPercentage percent
// of the live count. The select in loop() also wakes early whenever
// ForceCollect or Terminate signal the forceCh/stopCh.
func (c *Collector) sleepDuration() time.Duration {
	base := time.Duration(c.h.Cfg.MaxSleepSec) * time.Second
	allocated := c.allocated.Load()
	removed := c.removed.Load()
	live := c.liveCount.Load()
	threshold := live * int64(c.h.Cfg.TriggerPercentage)
	if live > 0 && (allocated*100 >= threshold || removed*100 >= threshold) {
		return c.decayStep()
	}
	return base
}

func (c *Collector) decayStep() time.Duration {
	return c.h.Cfg.decayStep()
}

// runCycle performs one full collection cycle: decay, mark, sweep, recycle.
func (c *Collector) runCycle() {
	stats := cycleStats{started: timeNow()}

	c.updateStates()
	c.log.verbosef("states updated")

	roots := c.markRoots()
	c.log.verbosef("gathered %d roots", len(roots))
	c.clearMarks()
	c.markReachable(roots)

	destroyed, live := c.sweep()
	c.log.verbosef("swept: destroyed=%d live=%d", destroyed, live)
	c.recyclePages()

	stats.destroyed = destroyed
	stats.live = live
	c.liveCount.Store(live)
	c.allocated.Store(0)
	c.removed.Store(destroyed)
	c.cycles.Add(1)
	c.log.cyclef("%s", stats)
}

// updateStates ages every ReachableAtomic-range slot one step toward plain
// Reachable, gated by a single heap-wide clock rather than a per-slot
// timestamp: every slot still mid-decay ages in lockstep once per
// decayStep interval. That is coarser than the original's per-object
// timing but preserves the guarantee that matters — a slot promoted to
// ReachableAtomic cannot be swept for at least AtomicDeletionDelayMsec —
// since the whole range only advances at that cadence.
func (c *Collector) updateStates() {
	c.decayMu.Lock()
	elapsed := timeNow().Sub(c.lastDecay)
	step := c.decayStep()
	if elapsed < step {
		c.decayMu.Unlock()
		return
	}
	c.lastDecay = timeNow()
	c.decayMu.Unlock()

	c.h.pagesMu.Lock()
	pages := append([]*page(nil), c.h.pages...)
	c.h.pagesMu.Unlock()

	for _, p := range pages {
		if p.desc == nil {
			continue
		}
		for i := int32(0); i < p.capacity; i++ {
			st := p.stateOf(i)
			if st.Decaying() {
				p.casState(i, st, st-1)
			}
		}
	}
}

// markRoots gathers every currently-claimed shadow root across every
// registered mutator, plus every slot that updateStates left in the
// UniqueLock/decaying/ReachableAtomic range. Two distinct things need that:
// a Unique handle kept alive by ordinary Go ownership (never moved into a
// Tracked, Stack or Atomic slot, so never itself swept) can still have
// Tracked or Owned children whose own reachability is otherwise untraceable
// from anywhere; and a ReachableAtomic slot orphaned by a losing
// compare-and-swap has no root pointing to it at all during its grace
// window, yet a concurrent reader may still be dereferencing into it and
// its children, so they need tracing too for as long as the decay schedule
// protects the slot itself. Plain Reachable is deliberately excluded: such
// a slot survives only if the trace reaches it from a root or the write
// barrier (see promote in api.go) sets its mark bit after clearMarks; sweep
// demotes any plain Reachable slot left unmarked to Used and collects it.
func (c *Collector) markRoots() []unsafe.Pointer {
	var roots []unsafe.Pointer
	c.h.mutators.forEach(func(m *mutator) {
		roots = m.snapshotRoots(roots)
	})
	for _, p := range c.allPages() {
		if p.desc == nil {
			continue
		}
		for i := int32(0); i < p.capacity; i++ {
			if st := p.stateOf(i); st == UniqueLock || st.Decaying() {
				roots = append(roots, p.slotAddr(i))
			}
		}
	}
	return roots
}

func (c *Collector) allPages() []*page {
	c.h.pagesMu.Lock()
	defer c.h.pagesMu.Unlock()
	return append([]*page(nil), c.h.pages...)
}

func (c *Collector) clearMarks() {
	for _, p := range c.allPages() {
		if p.desc == nil {
			continue
		}
		for i := range p.marked {
			p.marked[i].Store(0)
		}
	}
}

// markReachable walks the object graph from roots to a fixed point,
// setting each visited slot's marked bit. It walks through every managed
// child — both OwnedSlot and plain Slot — regardless of the parent's own
// state, because a reachable Tracked object may own (via OwnedSlot) a
// Unique subtree that itself contains further Tracked descendants; those
// must be found too even though the Unique nodes along the way are never
// themselves subject to reachability-based collection.
func (c *Collector) markReachable(roots []unsafe.Pointer) {
	pageSize := c.h.Cfg.PageSize
	work := append([]unsafe.Pointer(nil), roots...)
	for len(work) > 0 {
		n := len(work) - 1
		ptr := work[n]
		work = work[:n]
		if ptr == nil {
			continue
		}
		p := pageOf(ptr, pageSize)
		if p.desc == nil {
			continue
		}
		i := p.indexOf(ptr)
		if bitGet(p.marked, i) {
			continue
		}
		bitSet(p.marked, i)
		for _, co := range p.desc.childOffsets {
			if child := SlotAt(ptr, co.offset).Load(); child != nil {
				work = append(work, child)
			}
		}
	}
}

// sweep demotes any plain-Reachable slot that markReachable did not visit
// this cycle, then immediately destroys and frees everything in a garbage
// state (Used, Destroyed, BadAlloc), returning the count removed and the
// count still live. UniqueLock and Reserved slots are untouched because
// their lifetime is explicit, not trace-based; a slot still anywhere in the
// decaying/ReachableAtomic range is untouched too, because its grace window
// — not this cycle's mark result — is what decides whether it may be
// collected, and updateStates is what ages it out of that range over
// subsequent cycles.
func (c *Collector) sweep() (destroyed, live int64) {
	for _, p := range c.allPages() {
		if p.desc == nil {
			continue
		}
		for i := int32(0); i < p.capacity; i++ {
			st := p.stateOf(i)
			switch {
			case st == Reachable:
				if !bitGet(p.marked, i) {
					p.setState(i, Used)
					st = Used
				} else {
					live++
					continue
				}
			case st == UniqueLock || st.Decaying():
				live++
				continue
			default:
			}
			if st.Garbage() {
				addr := p.slotAddr(i)
				if st != Destroyed {
					p.desc.Destroy(addr)
				}
				p.freeSlot(i)
				destroyed++
			}
		}
	}
	return destroyed, live
}

// recyclePages returns any page left with zero live objects to the heap's
// pool of unclaimed pages, so a different type can reuse its memory.
func (c *Collector) recyclePages() {
	for _, p := range c.allPages() {
		if p.desc == nil || p.large {
			continue
		}
		if !p.isEmpty() {
			continue
		}
		p.mu.Lock()
		p.desc = nil
		p.bump = 0
		p.freeHead = 0
		p.live = 0
		p.states = nil
		p.marked = nil
		p.mu.Unlock()

		c.h.pagesMu.Lock()
		c.h.unclaimed = append(c.h.unclaimed, p)
		c.h.pagesMu.Unlock()
	}
}

// ForceCollect requests an extra cycle outside the normal schedule. If wait
// is true it blocks until that cycle (or a cycle already in flight that
// will observe the request) completes. If the collector is currently paused
// by an outstanding LiveObjects snapshot, it declines the request and
// returns false immediately without blocking, even if wait is true;
// otherwise it returns true.
func (c *Collector) ForceCollect(wait bool) bool {
	if c.isPaused() {
		return false
	}
	reply := make(chan struct{})
	select {
	case c.forceCh <- reply:
	case <-c.doneCh:
		return true
	}
	if wait {
		<-reply
	}
	return true
}

// LiveObjectCount returns the number of live objects as of the last
// completed cycle.
func (c *Collector) LiveObjectCount() int64 {
	return c.liveCount.Load()
}

// LiveObjects returns the address of every currently live object and
// pauses the collector until Resume is called: it forces a cycle first so
// the snapshot reflects the current graph, reads the snapshot, then puts
// the collector on hold so the returned addresses stay valid for as long as
// the caller needs them. snapshotMu only serializes the forced cycle and
// the read against a second concurrent LiveObjects call; it is released
// before this returns; the pause itself outlives the call and is the
// caller's to end via Resume.
func (c *Collector) LiveObjects() []unsafe.Pointer {
	c.snapshotMu.Lock()
	defer c.snapshotMu.Unlock()
	c.ForceCollect(true)

	var out []unsafe.Pointer
	for _, p := range c.allPages() {
		if p.desc == nil {
			continue
		}
		for i := int32(0); i < p.capacity; i++ {
			if p.stateOf(i).Alive() {
				out = append(out, p.slotAddr(i))
			}
		}
	}
	c.pause()
	return out
}

// Terminate runs up to eight draining cycles, stopping early once a cycle
// removes nothing, then stops the collector goroutine for good. A terminated collector never starts
// another cycle; further handle operations after Terminate are a misuse
// the caller must avoid, matching the original's shutdown contract.
func (c *Collector) Terminate() {
	if !c.terminated.CompareAndSwap(false, true) {
		<-c.doneCh
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.releaseHeapMemory()
}

// releaseHeapMemory unmaps every block and every large-object page back to
// the OS. Safe only once the collector goroutine has fully stopped.
func (c *Collector) releaseHeapMemory() {
	for _, p := range c.allPages() {
		if p.large && p.largeFree != nil {
			p.largeFree()
		}
	}
	c.h.blocks.releaseAll()
}

// SetLogOutput and SetLogLevel configure the collector's lifecycle
// logging; see log.go.
func (c *Collector) SetLogOutput(w io.Writer) {
	c.log.setOutput(w)
}

func (c *Collector) SetLogLevel(v Verbosity) {
	c.log.setLevel(v)
}
