package sgcl

import (
	"io"
	"sync"
	"unsafe"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// Verbosity gates collector lifecycle logging.
type Verbosity = heap.Verbosity

const (
	Silent  = heap.Silent
	Cycles  = heap.Cycles
	Verbose = heap.Verbose
)

// ForceCollect requests an extra collection cycle outside the normal
// schedule. If wait is true it blocks until that cycle completes. It
// returns false without blocking, even if wait is true, when the collector
// is currently paused by an outstanding LiveObjects snapshot; otherwise it
// returns true.
func ForceCollect(wait bool) bool {
	return heap.Global().ForceCollect(wait)
}

// LiveObjectCount returns the number of live objects as of the last
// completed cycle.
func LiveObjectCount() int64 {
	return heap.Global().LiveObjectCount()
}

// PauseGuard holds the collector paused after a LiveObjects snapshot, so
// the pointers returned alongside it stay valid. The collector runs no
// further cycles until Release is called.
type PauseGuard struct {
	c    *heap.Collector
	once sync.Once
}

// Release resumes normal collector scheduling. Safe to call more than
// once; only the first call has any effect.
func (g *PauseGuard) Release() {
	g.once.Do(func() {
		g.c.Resume()
	})
}

// LiveObjects forces a collection cycle and returns the address of every
// object found live, along with a guard that keeps the collector paused
// — running no further cycles — until Release is called. Intended for
// diagnostics and tests, not hot paths: a caller that never releases the
// guard stops the collector for good.
func LiveObjects() (*PauseGuard, []unsafe.Pointer) {
	c := heap.Global()
	objs := c.LiveObjects()
	return &PauseGuard{c: c}, objs
}

// Terminate stops the collector goroutine for good and releases every
// block of OS memory the heap ever mapped. Any handle operation after
// Terminate is a misuse the caller must avoid.
func Terminate() {
	heap.Global().Terminate()
}

// SetLogOutput redirects collector cycle logging.
func SetLogOutput(w io.Writer) {
	heap.Global().SetLogOutput(w)
}

// SetLogLevel sets the collector's logging verbosity.
func SetLogLevel(v Verbosity) {
	heap.Global().SetLogLevel(v)
}
