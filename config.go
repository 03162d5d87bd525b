package sgcl

import "github.com/nibisz-sgcl/sgcl/internal/heap"

// Config holds the tunable knobs of the managed heap: page geometry, the
// atomic-handle decay grace period, and the collector's sleep/trigger
// schedule. Mirrors the teacher's own struct-of-knobs style (a plain
// struct with documented zero-value-friendly defaults) rather than an
// external config file.
type Config = heap.Config

// Default is the process-wide configuration. Mutate its fields before the
// first handle is constructed; the heap copies it on first use, so changes
// after that have no effect.
var Default = &heap.Default
