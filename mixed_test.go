package coredb

import "testing"

func TestMixedColumnScalarRoundTrip(t *testing.T) {
	alloc := newTestAlloc()
	mc, err := NewMixedColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}

	if err := mc.Add(NewMixedInt(42)); err != nil {
		t.Fatal(err)
	}
	if err := mc.Add(NewMixedBool(true)); err != nil {
		t.Fatal(err)
	}
	if err := mc.Add(NewMixedDate(1700000000)); err != nil {
		t.Fatal(err)
	}

	v0, err := mc.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if v0.Type != MixedInt || v0.Int != 42 {
		t.Fatalf("Get(0) = %+v, want MixedInt(42)", v0)
	}

	v1, err := mc.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Type != MixedBool || !v1.Bool {
		t.Fatalf("Get(1) = %+v, want MixedBool(true)", v1)
	}

	v2, err := mc.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if v2.Type != MixedDate || v2.Date != 1700000000 {
		t.Fatalf("Get(2) = %+v, want MixedDate(1700000000)", v2)
	}
}

func TestMixedColumnStringAndBinary(t *testing.T) {
	alloc := newTestAlloc()
	mc, err := NewMixedColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}

	if err := mc.Add(NewMixedString("hello")); err != nil {
		t.Fatal(err)
	}
	if err := mc.Add(NewMixedBinary([]byte{9, 8, 7})); err != nil {
		t.Fatal(err)
	}
	if err := mc.Add(NewMixedString("world")); err != nil {
		t.Fatal(err)
	}

	v0, err := mc.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if v0.Type != MixedString || v0.Str != "hello" {
		t.Fatalf("Get(0) = %+v, want MixedString(hello)", v0)
	}

	v1, err := mc.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Type != MixedBinary || len(v1.Bin) != 3 || v1.Bin[0] != 9 {
		t.Fatalf("Get(1) = %+v, want MixedBinary([9 8 7])", v1)
	}

	v2, err := mc.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if v2.Type != MixedString || v2.Str != "world" {
		t.Fatalf("Get(2) = %+v, want MixedString(world)", v2)
	}
}

func TestMixedColumnSetOverwritesValue(t *testing.T) {
	alloc := newTestAlloc()
	mc, err := NewMixedColumn(alloc)
	if err != nil {
		t.Fatal(err)
	}

	if err := mc.Add(NewMixedString("first")); err != nil {
		t.Fatal(err)
	}
	if err := mc.Set(0, NewMixedInt(7)); err != nil {
		t.Fatal(err)
	}

	v, err := mc.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Type != MixedInt || v.Int != 7 {
		t.Fatalf("Get(0) after Set = %+v, want MixedInt(7)", v)
	}
}
