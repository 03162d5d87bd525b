package sgcl

import (
	"fmt"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// Error wraps one of the sentinel Err* values with a human-readable
// detail string, the same Unwrap-compatible shape the teacher's own
// Exception type used for every VM-level failure.
type Error struct {
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel error kinds. Test with errors.Is, not direct comparison, since
// a returned error is always wrapped in *Error.
var (
	ErrOutOfMemory       = heap.ErrOutOfMemory
	ErrConstructorFailed = heap.ErrConstructorFailed
	ErrMisuse            = heap.ErrMisuse
	ErrTypeMismatch      = heap.ErrTypeMismatch
)

// wrap classifies an error surfacing from the allocator as ErrOutOfMemory,
// preserving the underlying detail for the message. The allocator has only
// one failure mode today (OS slab exhaustion or an mmap failure), so there
// is nothing else to classify against; if a second allocator error kind is
// ever added, branch here on errors.Is(err, heap.<NewKind>) rather than
// assuming OOM unconditionally.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: ErrOutOfMemory, Detail: err.Error()}
}
