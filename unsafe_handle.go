package sgcl

// Unsafe is a plain raw pointer with no tracking and no root
// registration, for a short-lived reference within a single synchronous
// call. It is the caller's responsibility to ensure the pointee is kept
// alive by some tracking handle (Tracked, Owned, Stack or Atomic) for as
// long as the Unsafe handle is used.
type Unsafe[T any] struct {
	ptr *T
}

// UnsafeFrom wraps v as an Unsafe handle.
func UnsafeFrom[T any](v *T) Unsafe[T] {
	return Unsafe[T]{ptr: v}
}

// Get returns the wrapped pointer.
func (u Unsafe[T]) Get() *T { return u.ptr }
