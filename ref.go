package coredb

import "fmt"

// Ref is an offset into the allocator's unified address space.
//
//	A Ref is always 8-byte aligned, except when its low bit is set, in
//	which case the remaining 63 bits are an inlined scalar payload rather
//	than an offset. A Ref of 0 means an empty subtree or a null slot.
type Ref uint64

// NullRef marks an empty subtree or unset slot.
const NullRef Ref = 0

// IsNull reports whether r is the empty-subtree marker.
func (r Ref) IsNull() bool { return r == 0 }

// IsInline reports whether r is a tagged inline scalar rather than an
// offset into the allocator's address space.
func (r Ref) IsInline() bool { return r&1 == 1 }

// InlineValue extracts the signed 63-bit payload of an inline Ref.
//
//	Panics if r does not carry the inline tag; callers must check
//	IsInline first.
func (r Ref) InlineValue() int64 {
	if !r.IsInline() {
		panic("coredb: InlineValue called on a non-inline ref")
	}
	return int64(r) >> 1
}

// MakeInline packs a signed value into an inline Ref.
func MakeInline(v int64) Ref {
	return Ref(uint64(v)<<1) | 1
}

// Offset returns the byte offset this Ref addresses.
//
//	Panics if r is inline or null; callers must check IsNull/IsInline
//	first, matching the teacher's convention of treating 0 and inline
//	refs as sentinels rather than valid offsets.
func (r Ref) Offset() uint64 {
	if r.IsInline() || r.IsNull() {
		panic("coredb: Offset called on a non-addressable ref")
	}
	return uint64(r)
}

// Valid reports whether r satisfies the ref invariant from spec.md §3.2:
// either null, 8-byte aligned, or inline-tagged.
func (r Ref) Valid() bool {
	if r.IsNull() || r.IsInline() {
		return true
	}
	return uint64(r)&7 == 0
}

func (r Ref) String() string {
	switch {
	case r.IsNull():
		return "ref(null)"
	case r.IsInline():
		return fmt.Sprintf("ref(inline=%d)", r.InlineValue())
	default:
		return fmt.Sprintf("ref(%#x)", uint64(r))
	}
}
