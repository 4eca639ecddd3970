package coredb

import "testing"

// newTestAlloc starts the baseline at 8 rather than 0, matching how a
// real file always reserves its leading header bytes before the first
// user array — allocating straight from offset 0 would collide with the
// NullRef sentinel.
func newTestAlloc() *SlabAlloc {
	return NewSlabAlloc(nil, 8, false)
}

func TestArrayInsertGetBasic(t *testing.T) {
	alloc := newTestAlloc()
	a, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range []int64{10, 20, 30} {
		if err := a.Insert(i, v); err != nil {
			t.Fatal(err)
		}
	}

	if a.Size() != 3 {
		t.Fatalf("size = %d, want 3", a.Size())
	}
	for i, want := range []int64{10, 20, 30} {
		if got := a.Get(i); got != want {
			t.Fatalf("Get(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestArrayWidthExpansion(t *testing.T) {
	alloc := newTestAlloc()
	a, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Add(1); err != nil {
		t.Fatal(err)
	}
	if a.Width() != 1 {
		t.Fatalf("width after Add(1) = %d, want 1", a.Width())
	}

	if err := a.Add(1000); err != nil {
		t.Fatal(err)
	}
	if a.Width() != 16 {
		t.Fatalf("width after Add(1000) = %d, want 16", a.Width())
	}
	if a.Get(0) != 1 || a.Get(1) != 1000 {
		t.Fatalf("values after widen = %d, %d", a.Get(0), a.Get(1))
	}

	if err := a.Add(-5); err != nil {
		t.Fatal(err)
	}
	if a.Width() != 16 {
		t.Fatalf("width after Add(-5) = %d, want 16", a.Width())
	}
}

func TestArrayCopyOnWrite(t *testing.T) {
	alloc := newTestAlloc()
	a, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []int64{1, 2, 3} {
		if err := a.Insert(i, v); err != nil {
			t.Fatal(err)
		}
	}

	// Promote the current ref into the read-only region by rebasing the
	// allocator onto an image that contains this node's current bytes,
	// simulating a commit having published it.
	region, err := alloc.Translate(a.ref)
	if err != nil {
		t.Fatal(err)
	}
	img := make(MMap, uint64(a.ref)+uint64(a.capacity))
	copy(img[a.ref:], region[:a.capacity])
	alloc.Rebase(img, uint64(len(img)))

	oldRef := a.ref
	if !alloc.IsReadOnly(a.ref) {
		t.Fatalf("expected ref %v to be read-only after rebase", a.ref)
	}

	if err := a.Set(1, a.Get(1)); err != nil {
		t.Fatal(err)
	}
	if a.ref == oldRef {
		t.Fatal("expected copy-on-write to relocate the ref")
	}
	if a.Get(0) != 1 || a.Get(1) != 2 || a.Get(2) != 3 {
		t.Fatalf("values changed across copy-on-write: %d %d %d", a.Get(0), a.Get(1), a.Get(2))
	}
}

func TestArrayFindFirstAndSort(t *testing.T) {
	alloc := newTestAlloc()
	a, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []int64{5, 3, 9, 3, 1} {
		if err := a.Insert(i, v); err != nil {
			t.Fatal(err)
		}
	}

	if idx := a.FindFirst(3, 0, a.Size()); idx != 1 {
		t.Fatalf("FindFirst(3) = %d, want 1", idx)
	}
	if idx := a.FindFirst(42, 0, a.Size()); idx != -1 {
		t.Fatalf("FindFirst(42) = %d, want -1", idx)
	}
	if n := a.Count(3, 0, a.Size()); n != 2 {
		t.Fatalf("Count(3) = %d, want 2", n)
	}

	if err := a.Sort(); err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 3, 3, 5, 9}
	for i, w := range want {
		if got := a.Get(i); got != w {
			t.Fatalf("sorted[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestArrayFixedStringWiden(t *testing.T) {
	alloc := newTestAlloc()
	a, err := NewArray(alloc, false, false, widthTypeMultiply)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.InsertFixedBytes(0, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if a.Width() != 4 {
		t.Fatalf("width = %d, want 4", a.Width())
	}

	if err := a.InsertFixedBytes(1, []byte("a fairly long string value")); err != nil {
		t.Fatal(err)
	}
	if a.Width() != 32 {
		t.Fatalf("width after widen = %d, want 32", a.Width())
	}
	if string(a.GetFixedBytes(0)) != "hi" {
		t.Fatalf("GetFixedBytes(0) = %q", a.GetFixedBytes(0))
	}
}

func TestArrayBlobAppendTruncate(t *testing.T) {
	alloc := newTestAlloc()
	a, err := NewArray(alloc, false, false, widthTypeIgnore)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.AppendBlob([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendBlob([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if string(a.Blob()) != "hello world" {
		t.Fatalf("Blob() = %q", a.Blob())
	}

	if err := a.TruncateBlob(5); err != nil {
		t.Fatal(err)
	}
	if string(a.Blob()) != "hello" {
		t.Fatalf("Blob() after truncate = %q", a.Blob())
	}
}

func TestArrayDestroyRecursive(t *testing.T) {
	alloc := newTestAlloc()
	child, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		t.Fatal(err)
	}
	if err := child.Add(7); err != nil {
		t.Fatal(err)
	}

	parent, err := NewArray(alloc, true, true, widthTypeBits)
	if err != nil {
		t.Fatal(err)
	}
	if err := parent.Add(int64(child.Ref())); err != nil {
		t.Fatal(err)
	}

	if err := parent.Destroy(); err != nil {
		t.Fatal(err)
	}
	if !alloc.IsAllFree() {
		t.Fatal("expected all scratch slabs free after recursive destroy")
	}
}
