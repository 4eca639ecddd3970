package coredb

import "sort"

// countingSortThreshold bounds how wide a value range counting sort will
// accept before Sort falls back to quicksort — counting sort is linear in
// (range size + n), which loses to O(n log n) once the range dwarfs n.
const countingSortThreshold = 4

// Sort reorders the node's own elements ascending in place.
//
// Chooses counting sort when the value range is small relative to the
// element count (cheap histogram pass), else falls back to the standard
// library's introsort via sort.Slice (spec.md §4.2's "counting-sort vs
// quicksort choice").
func (a *Array) Sort() error {
	if a.widthType != widthTypeBits {
		panic("coredb: Sort called on a non-bits-width array")
	}
	if a.size < 2 {
		return nil
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	values := a.decodeAll()
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	rng := hi - lo
	if rng >= 0 && rng <= int64(countingSortThreshold*len(values)) {
		countingSort(values, lo, rng)
	} else {
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	}

	a.encodeAll(values, a.width)
	return nil
}

func countingSort(values []int64, lo, rng int64) {
	counts := make([]int, rng+2)
	for _, v := range values {
		counts[v-lo]++
	}
	i := 0
	for bucket, c := range counts {
		for ; c > 0; c-- {
			values[i] = lo + int64(bucket)
			i++
		}
	}
}

// ReferenceSort writes into indices (an already-allocated bits-width
// Array of the same size) a permutation of [0, size) that visits this
// node's elements in ascending order, leaving this node's own payload
// untouched — the mechanism behind a persisted sorted view or a distinct
// column's accompanying index (spec.md §4.2, §4.3).
func (a *Array) ReferenceSort(indices *Array) error {
	if a.widthType != widthTypeBits {
		panic("coredb: ReferenceSort called on a non-bits-width array")
	}
	if indices.size != a.size {
		panic("coredb: ReferenceSort index array size mismatch")
	}

	values := a.decodeAll()
	perm := make([]int, a.size)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return values[perm[i]] < values[perm[j]] })

	permValues := make([]int64, len(perm))
	width := 0
	for i, p := range perm {
		permValues[i] = int64(p)
		if rw := requiredWidth(int64(p)); rw > width {
			width = rw
		}
	}

	if err := indices.copyOnWrite(); err != nil {
		return err
	}
	needed := headerSize + bitsPayloadBytes(len(permValues), width)
	if err := indices.ensureCapacity(needed); err != nil {
		return err
	}
	indices.encodeAll(permValues, width)
	return nil
}
