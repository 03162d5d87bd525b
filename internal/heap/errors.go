package heap

import "errors"

// Sentinel error kinds, matching the C original's BadAlloc / constructor
// panic / misuse of the handle API. Wrapped via Error (errors.go, root
// package) the way the teacher wraps every VM-level failure.
var (
	errOutOfMemory  = errors.New("heap: out of memory")
	errConstructor  = errors.New("heap: constructor failed")
	errMisuse       = errors.New("heap: handle misuse")
	errTypeMismatch = errors.New("heap: type mismatch")
)

// ErrOutOfMemory, ErrConstructorFailed, ErrMisuse and ErrTypeMismatch are
// exported so the root package's errors.go can build user-facing sentinels
// with errors.Is-compatible identity without duplicating them.
var (
	ErrOutOfMemory       = errOutOfMemory
	ErrConstructorFailed = errConstructor
	ErrMisuse            = errMisuse
	ErrTypeMismatch      = errTypeMismatch
)
