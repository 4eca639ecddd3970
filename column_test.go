package coredb

import "testing"

func TestIntColumnInsertAndFindFirst(t *testing.T) {
	alloc := newTestAlloc()
	c, err := NewIntColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range []int64{5, 10, 15, 20} {
		if err := c.InsertInt(i, v); err != nil {
			t.Fatal(err)
		}
	}

	size, err := c.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != 4 {
		t.Fatalf("size = %d, want 4", size)
	}

	idx, err := c.FindFirst(15, 0)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Fatalf("FindFirst(15) = %d, want 2", idx)
	}

	sum, err := c.Sum()
	if err != nil {
		t.Fatal(err)
	}
	if sum != 50 {
		t.Fatalf("Sum() = %d, want 50", sum)
	}
}

func TestIntColumnSplitsAcrossFanOut(t *testing.T) {
	alloc := newTestAlloc()
	c, err := NewIntColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}

	n := ColumnFanOut + 50
	for i := 0; i < n; i++ {
		if err := c.AddInt(int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	if !c.IsNode() {
		t.Fatal("expected root to have promoted to an inner node past fan-out")
	}

	for _, i := range []int{0, 1, ColumnFanOut - 1, ColumnFanOut, n - 1} {
		v, err := c.GetInt(i)
		if err != nil {
			t.Fatal(err)
		}
		if v != int64(i) {
			t.Fatalf("GetInt(%d) = %d, want %d", i, v, i)
		}
	}
}

func TestIntColumnDeleteCollapsesInnerNode(t *testing.T) {
	alloc := newTestAlloc()
	c, err := NewIntColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}

	n := ColumnFanOut + 10
	for i := 0; i < n; i++ {
		if err := c.AddInt(int64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if !c.IsNode() {
		t.Fatal("expected inner node before deletes")
	}

	for i := n - 1; i >= ColumnFanOut-5; i-- {
		if err := c.Delete(i); err != nil {
			t.Fatal(err)
		}
	}

	size, err := c.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != ColumnFanOut-5 {
		t.Fatalf("size after deletes = %d, want %d", size, ColumnFanOut-5)
	}
	for i := 0; i < size; i++ {
		v, err := c.GetInt(i)
		if err != nil {
			t.Fatal(err)
		}
		if v != int64(i) {
			t.Fatalf("GetInt(%d) = %d, want %d", i, v, i)
		}
	}
}

func TestStringColumnPromotesToLong(t *testing.T) {
	alloc := newTestAlloc()
	c, err := NewStringColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}
	if c.IsLong() {
		t.Fatal("new column should start short")
	}

	if err := c.AddString("short"); err != nil {
		t.Fatal(err)
	}
	long := make([]byte, shortStringMaxWidth+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := c.AddString(string(long)); err != nil {
		t.Fatal(err)
	}
	if !c.IsLong() {
		t.Fatal("expected promotion to long layout")
	}

	v0, err := c.GetString(0)
	if err != nil {
		t.Fatal(err)
	}
	if v0 != "short" {
		t.Fatalf("GetString(0) = %q, want \"short\"", v0)
	}
	v1, err := c.GetString(1)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != string(long) {
		t.Fatal("GetString(1) did not round-trip the long value")
	}
}

func TestBinaryColumnRoundTrip(t *testing.T) {
	alloc := newTestAlloc()
	c, err := NewBinaryColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddBinary([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddBinary([]byte{}); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetBinary(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("GetBinary(0) = %v, want [1 2 3]", got)
	}
}

func TestEnumColumnFromStrings(t *testing.T) {
	alloc := newTestAlloc()
	values := []string{"red", "green", "red", "blue", "green", "red"}
	e, err := NewEnumColumnFromStrings(alloc, values)
	if err != nil {
		t.Fatal(err)
	}

	size, err := e.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != len(values) {
		t.Fatalf("size = %d, want %d", size, len(values))
	}
	for i, want := range values {
		got, err := e.GetString(i)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("GetString(%d) = %q, want %q", i, got, want)
		}
	}

	if err := e.Set(0, "blue"); err != nil {
		t.Fatal(err)
	}
	got, err := e.GetString(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "blue" {
		t.Fatalf("after Set, GetString(0) = %q, want \"blue\"", got)
	}
}
