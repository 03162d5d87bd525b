package sgcl

import (
	"reflect"
	"unsafe"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// TypeOf returns the dynamic type of the managed object v points to, read
// from its page's descriptor rather than from any static type parameter —
// useful when v arrived through an Unsafe handle whose static type has
// already been narrowed or erased.
func TypeOf[T any](v *T) reflect.Type {
	return heap.DescriptorOf(unsafe.Pointer(v)).Type()
}

// Is reports whether the managed object v points to has dynamic type U.
func Is[U any](v unsafe.Pointer) bool {
	return heap.DescriptorOf(v).Type() == reflect.TypeFor[U]()
}

// As casts v to *U if its dynamic type is exactly U, or returns nil.
func As[U any](v unsafe.Pointer) *U {
	if !Is[U](v) {
		return nil
	}
	return (*U)(v)
}
