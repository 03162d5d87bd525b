package sgcl

import (
	"errors"
	"reflect"
	"unsafe"

	"testing"

	"github.com/nibisz-sgcl/sgcl/internal/heap"
)

type widget struct {
	id int
}

func TestMakeAndGet(t *testing.T) {
	u, err := Make[widget](func(w *widget) { w.id = 42 })
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	defer u.Close()

	if !u.Valid() {
		t.Fatal("handle should be valid right after Make")
	}
	if got := u.Get().id; got != 42 {
		t.Fatalf("id = %d, want 42", got)
	}
}

func TestMakeConstructorPanic(t *testing.T) {
	u, err := Make[widget](func(w *widget) { panic("boom") })
	if err == nil {
		t.Fatal("expected an error from a panicking initializer")
	}
	if !errors.Is(err, ErrConstructorFailed) {
		t.Fatalf("err = %v, want ErrConstructorFailed", err)
	}
	if u.Valid() {
		t.Fatal("handle must be empty after a failed construction")
	}
}

func TestCloneAliasesAndCopies(t *testing.T) {
	u, err := Make[widget](func(w *widget) { w.id = 7 })
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	defer u.Close()

	clone, err := u.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	defer clone.Close()

	if clone.Get() == u.Get() {
		t.Fatal("clone should be a distinct object")
	}
	if clone.Get().id != 7 {
		t.Fatalf("clone.id = %d, want 7", clone.Get().id)
	}

	clone.Get().id = 99
	if u.Get().id != 7 {
		t.Fatal("mutating the clone must not affect the source")
	}
}

func TestCloneOnEmptyHandle(t *testing.T) {
	var u Unique[widget]
	if _, err := u.Clone(); !errors.Is(err, ErrMisuse) {
		t.Fatalf("Clone on empty handle: err = %v, want ErrMisuse", err)
	}
}

type container struct {
	payload Owned[widget]
}

func TestOwnedCascadeDestroy(t *testing.T) {
	child, err := Make[widget](func(w *widget) { w.id = 1 })
	if err != nil {
		t.Fatalf("Make child: %v", err)
	}

	parent, err := Make[container](nil)
	if err != nil {
		t.Fatalf("Make parent: %v", err)
	}
	parent.Get().payload.StoreUnique(&child)
	if child.Valid() {
		t.Fatal("StoreUnique must consume the child handle")
	}

	held := parent.Get().payload.Load()
	if held == nil {
		t.Fatal("payload should be loadable before Close")
	}

	parent.Close()
	if heap.StateOf(unsafe.Pointer(held)) != heap.StateDestroyed {
		t.Fatal("owned child must be destroyed when its parent closes")
	}
}

func TestAtomicCompareAndSwapSuccessAndFailure(t *testing.T) {
	a, err := Make[widget](func(w *widget) { w.id = 1 })
	if err != nil {
		t.Fatalf("Make a: %v", err)
	}
	b, err := Make[widget](func(w *widget) { w.id = 2 })
	if err != nil {
		t.Fatalf("Make b: %v", err)
	}

	var box Atomic[widget]
	box.StoreUnique(&a)

	stale, err := Make[widget](func(w *widget) { w.id = 3 })
	if err != nil {
		t.Fatalf("Make stale: %v", err)
	}
	defer stale.Close()

	if box.CompareAndSwap(stale.Get(), b.Get()) {
		t.Fatal("CompareAndSwap should fail against a stale expected pointer")
	}
	if !box.CompareAndSwap(box.Load(), b.Get()) {
		t.Fatal("CompareAndSwap should succeed against the current value")
	}
	b.Release()

	if got := box.Load().id; got != 2 {
		t.Fatalf("box holds id %d, want 2", got)
	}
}

func TestTypeInspection(t *testing.T) {
	u, err := Make[widget](nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	defer u.Close()

	if got, want := TypeOf(u.Get()), reflect.TypeFor[widget](); got != want {
		t.Fatalf("TypeOf = %v, want %v", got, want)
	}

	raw := unsafe.Pointer(UnsafeFrom(u.Get()).Get())
	if !Is[widget](raw) {
		t.Fatal("Is[widget] should be true for a widget")
	}
	if As[container](raw) != nil {
		t.Fatal("As[container] should be nil for a widget")
	}
	if As[widget](raw) == nil {
		t.Fatal("As[widget] should succeed for a widget")
	}
}

func TestMetadata(t *testing.T) {
	if GetMetadata[widget]() != nil {
		t.Fatal("metadata should start nil")
	}
	SetMetadata[widget]("label")
	if got := GetMetadata[widget](); got != "label" {
		t.Fatalf("GetMetadata = %v, want %q", got, "label")
	}
}

func TestMakeArrayBasics(t *testing.T) {
	arr, err := MakeArray[widget](5, func(i int, w *widget) { w.id = i })
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	defer arr.Close()

	if arr.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", arr.Len())
	}
	for i := 0; i < arr.Len(); i++ {
		if got := arr.Index(i).id; got != i {
			t.Fatalf("Index(%d).id = %d, want %d", i, got, i)
		}
	}
}

func TestMakeArrayIndexPanics(t *testing.T) {
	arr, err := MakeArray[widget](3, nil)
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	defer arr.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("Index out of range should panic")
		}
	}()
	arr.Index(3)
}

func TestMakeArrayZeroLengthIsNull(t *testing.T) {
	arr, err := MakeArray[widget](0, nil)
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	if arr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", arr.Len())
	}
	arr.Close() // must be a no-op; nothing was allocated
}

type trackingElem struct {
	child Tracked[widget]
}

// TestMakeArrayTracesStructElementChildren guards against childOffsets
// treating an array-of-structs descriptor as childless: without walking
// into each element, a Tracked field nested inside an array element would
// never be discovered by the mark closure and its referent would be swept
// out from under a still-live array.
func TestMakeArrayTracesStructElementChildren(t *testing.T) {
	held, err := Make[widget](func(w *widget) { w.id = 11 })
	if err != nil {
		t.Fatalf("Make: %v", err)
	}

	arr, err := MakeArray[trackingElem](2, nil)
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	defer arr.Close()
	arr.Index(1).child.StoreUnique(&held)

	ForceCollect(true)

	p := arr.Index(1).child.Load()
	if p == nil {
		t.Fatal("child should still be loadable after StoreUnique")
	}
	if heap.StateOf(unsafe.Pointer(p)) == heap.StateDestroyed {
		t.Fatal("a Tracked child inside a managed array element must be traced through the array, not swept")
	}
}

type owningElem struct {
	child Owned[widget]
}

// TestMakeArrayCascadesOwnedElementChildren is the Close-time counterpart
// of TestMakeArrayTracesStructElementChildren: every element's Owned child
// must be cascade-destroyed, not just the array's own slot freed.
func TestMakeArrayCascadesOwnedElementChildren(t *testing.T) {
	c0, err := Make[widget](func(w *widget) { w.id = 1 })
	if err != nil {
		t.Fatalf("Make c0: %v", err)
	}
	c1, err := Make[widget](func(w *widget) { w.id = 2 })
	if err != nil {
		t.Fatalf("Make c1: %v", err)
	}

	arr, err := MakeArray[owningElem](2, nil)
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	arr.Index(0).child.StoreUnique(&c0)
	arr.Index(1).child.StoreUnique(&c1)

	held0 := arr.Index(0).child.Load()
	held1 := arr.Index(1).child.Load()

	arr.Close()

	if heap.StateOf(unsafe.Pointer(held0)) != heap.StateDestroyed {
		t.Fatal("element 0's owned child should be destroyed when the array closes")
	}
	if heap.StateOf(unsafe.Pointer(held1)) != heap.StateDestroyed {
		t.Fatal("element 1's owned child should be destroyed when the array closes")
	}
}
