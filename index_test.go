package coredb

import "testing"

func TestIndexInsertFindDelete(t *testing.T) {
	alloc := newTestAlloc()
	ix, err := NewIndex(alloc)
	if err != nil {
		t.Fatal(err)
	}

	rows := []int64{30, 10, 20, 10, 30}
	for row, v := range rows {
		if err := ix.Insert(row, v); err != nil {
			t.Fatal(err)
		}
	}

	row, err := ix.FindFirst(10)
	if err != nil {
		t.Fatal(err)
	}
	if row != 1 {
		t.Fatalf("FindFirst(10) = %d, want 1", row)
	}

	all, err := ix.FindAll(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("FindAll(10) = %v, want 2 entries", all)
	}

	rng, err := ix.FindAllRange(15, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(rng) != 3 {
		t.Fatalf("FindAllRange(15,30) = %v, want 3 entries", rng)
	}

	if err := ix.Delete(1, 10); err != nil {
		t.Fatal(err)
	}
	found, err := ix.FindAll(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("after delete, FindAll(10) = %v, want 1 entry", found)
	}
}

func TestIndexFindFirstAbsent(t *testing.T) {
	alloc := newTestAlloc()
	ix, err := NewIndex(alloc)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Insert(0, 5); err != nil {
		t.Fatal(err)
	}
	row, err := ix.FindFirst(99)
	if err != nil {
		t.Fatal(err)
	}
	if row != -1 {
		t.Fatalf("FindFirst(99) = %d, want -1", row)
	}
}
