package coredb

import "encoding/binary"

// hasZeroByte reports whether any byte of word is zero, the classic
// bit-hack used to vectorize byte-wide scans (spec.md §4.2's "has-zero-byte
// trick" for FindFirst on width-8 arrays).
func hasZeroByte(word uint64) uint64 {
	const lo = 0x0101010101010101
	const hi = 0x8080808080808080
	return (word - lo) & ^word & hi
}

// FindFirst returns the index of the first element equal to v within
// [start, end), or -1. Width-8 arrays use the has-zero-byte word scan;
// all other widths fall back to a per-element dispatch loop.
func (a *Array) FindFirst(v int64, start, end int) int {
	if a.widthType != widthTypeBits {
		panic("coredb: FindFirst called on a non-bits-width array")
	}
	if end > a.size {
		end = a.size
	}
	if start < 0 || start > end {
		return -1
	}

	if a.width == 8 {
		if v < -128 || v > 127 {
			return -1
		}
		return a.findFirstWidth8(byte(v), start, end)
	}

	p := a.payload()
	for i := start; i < end; i++ {
		if a.get(p, i) == v {
			return i
		}
	}
	return -1
}

func (a *Array) findFirstWidth8(target byte, start, end int) int {
	p := a.payload()
	splat := uint64(target) * 0x0101010101010101

	i := start
	for ; i+8 <= end; i += 8 {
		word := binary.LittleEndian.Uint64(p[i:])
		if hasZeroByte(word^splat) == 0 {
			continue
		}
		for j := 0; j < 8; j++ {
			if p[i+j] == target {
				return i + j
			}
		}
	}
	for ; i < end; i++ {
		if p[i] == target {
			return i
		}
	}
	return -1
}

// FindAll appends every index in [start, end) whose value equals v to out.
func (a *Array) FindAll(v int64, start, end int, out []int) []int {
	if end > a.size {
		end = a.size
	}
	p := a.payload()
	for i := start; i < end; i++ {
		if a.get(p, i) == v {
			out = append(out, i)
		}
	}
	return out
}

// Count returns the number of elements in [start, end) equal to v.
func (a *Array) Count(v int64, start, end int) int {
	if end > a.size {
		end = a.size
	}
	n := 0
	p := a.payload()
	for i := start; i < end; i++ {
		if a.get(p, i) == v {
			n++
		}
	}
	return n
}

// Sum returns the sum of elements in [start, end).
func (a *Array) Sum(start, end int) int64 {
	if end > a.size {
		end = a.size
	}
	var total int64
	p := a.payload()
	for i := start; i < end; i++ {
		total += a.get(p, i)
	}
	return total
}

// Minimum returns the smallest element in [start, end); ok is false for
// an empty range.
func (a *Array) Minimum(start, end int) (v int64, ok bool) {
	if end > a.size {
		end = a.size
	}
	if start >= end {
		return 0, false
	}
	p := a.payload()
	m := a.get(p, start)
	for i := start + 1; i < end; i++ {
		if x := a.get(p, i); x < m {
			m = x
		}
	}
	return m, true
}

// Maximum returns the largest element in [start, end); ok is false for an
// empty range.
func (a *Array) Maximum(start, end int) (v int64, ok bool) {
	if end > a.size {
		end = a.size
	}
	if start >= end {
		return 0, false
	}
	p := a.payload()
	m := a.get(p, start)
	for i := start + 1; i < end; i++ {
		if x := a.get(p, i); x > m {
			m = x
		}
	}
	return m, true
}
