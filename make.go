package sgcl

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// Make allocates a new managed T, zero-initialized, and returns it as a
// Unique handle. If init is non-nil it runs against the freshly allocated
// value before the handle is returned; a panic inside init is recovered,
// the slot is marked BadAlloc and released, and Make returns
// ErrConstructorFailed instead of propagating the panic — the Go
// equivalent of the original Maker's "on exception, set BadAlloc and
// rethrow" (a returned error rather than a re-raised panic, matching Go's
// error-handling idiom rather than C++'s exceptions).
func Make[T any](init func(*T)) (Unique[T], error) {
	t := reflect.TypeFor[T]()
	ptr, _, err := heap.Global().NewUnique(t)
	if err != nil {
		return Unique[T]{}, wrap(err)
	}
	v := (*T)(ptr)
	if err := construct(ptr, func() { initIfSet(init, v) }); err != nil {
		return Unique[T]{}, err
	}
	return Unique[T]{ptr: v}, nil
}

func initIfSet[T any](init func(*T), v *T) {
	if init != nil {
		init(v)
	}
}

func construct(ptr unsafe.Pointer, run func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			heap.FailConstruction(ptr)
			err = &Error{Err: ErrConstructorFailed, Detail: fmt.Sprint(r)}
		}
	}()
	run()
	return nil
}

// UniqueArray is a Unique handle over a contiguous run of n managed Ts,
// sharing one slot for state/sweep purposes the way the original Maker's
// array layout does.
type UniqueArray[T any] struct {
	base unsafe.Pointer
	n    int
}

// MakeArray allocates a contiguous array of n managed Ts. If init is
// non-nil it runs once per element, in order, after the array's storage
// is published; a panic aborts construction the same way Make's does.
func MakeArray[T any](n int, init func(i int, elem *T)) (UniqueArray[T], error) {
	if n <= 0 {
		return UniqueArray[T]{}, nil
	}
	elem := reflect.TypeFor[T]()
	ptr, _, err := heap.Global().NewArray(elem, n)
	if err != nil {
		return UniqueArray[T]{}, wrap(err)
	}
	a := UniqueArray[T]{base: ptr, n: n}
	if init != nil {
		if cerr := construct(ptr, func() {
			for i := 0; i < n; i++ {
				init(i, a.Index(i))
			}
		}); cerr != nil {
			return UniqueArray[T]{}, cerr
		}
	}
	return a, nil
}

// Len returns the number of elements.
func (a UniqueArray[T]) Len() int { return a.n }

// Index returns a pointer to element i. Panics if i is out of range.
func (a UniqueArray[T]) Index(i int) *T {
	if i < 0 || i >= a.n {
		panic("sgcl: array index out of range")
	}
	var zero T
	return (*T)(unsafe.Add(a.base, uintptr(i)*unsafe.Sizeof(zero)))
}

// Close destroys every element's managed children and releases the
// array's slot.
func (a UniqueArray[T]) Close() {
	if a.base == nil {
		return
	}
	heap.DestroyUnique(a.base)
}
