package sgcl

import (
	"reflect"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

// SetMetadata attaches arbitrary user data to T's type descriptor, shared
// by every instance of T in the heap.
func SetMetadata[T any](v any) {
	heap.DescriptorFor(reflect.TypeFor[T]()).SetMetadata(v)
}

// GetMetadata returns the metadata last attached to T with SetMetadata, or
// nil if none has been set.
func GetMetadata[T any]() any {
	return heap.DescriptorFor(reflect.TypeFor[T]()).Metadata()
}
