package coredb

// freeSpan is a single (ref, size) hole tracked by a free list.
//
//	version is only meaningful for entries in the allocator's read-only
//	free list: it records the commit version that made the hole reusable,
//	so the writer can refuse to recycle it while a reader is still pinned
//	at an older version (spec.md §4.5, §5).
type freeSpan struct {
	ref     uint64
	size    uint64
	version uint64
}

// freeList is a ref-ordered list of free spans supporting first-fit
// allocation and neighbor coalescing.
//
//	Kept as a flat, ref-sorted slice rather than a tree: free lists in
//	practice stay small (a handful of holes per slab or per commit), and
//	the teacher's own FreeSpace table (`IOUtils.go`, `Compact.go`) is a
//	flat append-oriented structure for the same reason.
type freeList struct {
	spans []freeSpan
}

// firstFit scans for the first span able to satisfy size, consuming all
// or part of it. Returns (ref, ok).
func (fl *freeList) firstFit(size uint64) (uint64, bool) {
	for i := range fl.spans {
		s := &fl.spans[i]
		if s.size < size {
			continue
		}

		ref := s.ref
		if s.size == size {
			fl.spans = append(fl.spans[:i], fl.spans[i+1:]...)
		} else {
			s.ref += size
			s.size -= size
		}

		return ref, true
	}

	return 0, false
}

// firstFitMinVersion is firstFit restricted to spans whose version is
// strictly less than maxVersion, used by the group-commit free-space
// reuse gate (spec.md §4.5 step 1): a span tagged at or after the
// writer's readlock_version might still be visible to a pinned reader.
func (fl *freeList) firstFitMinVersion(size, maxVersion uint64) (uint64, bool) {
	for i := range fl.spans {
		s := &fl.spans[i]
		if s.size < size || s.version >= maxVersion {
			continue
		}

		ref := s.ref
		if s.size == size {
			fl.spans = append(fl.spans[:i], fl.spans[i+1:]...)
		} else {
			s.ref += size
			s.size -= size
		}

		return ref, true
	}

	return 0, false
}

// insert adds a span to the list in ref order, coalescing with an
// immediately adjacent preceding or following span when sameRegion
// reports they belong to the same contiguous backing region (a slab, or
// the single mapped image). Coalescing across a slab boundary would
// claim bytes that are not actually contiguous in the host address
// space, even though they are contiguous in ref space (spec.md §4.1).
func (fl *freeList) insert(span freeSpan, sameRegion func(a, b uint64) bool) {
	i := 0
	for i < len(fl.spans) && fl.spans[i].ref < span.ref {
		i++
	}

	fl.spans = append(fl.spans, freeSpan{})
	copy(fl.spans[i+1:], fl.spans[i:])
	fl.spans[i] = span

	if i+1 < len(fl.spans) {
		next := &fl.spans[i+1]
		cur := &fl.spans[i]
		if cur.ref+cur.size == next.ref && sameRegion(cur.ref, next.ref) {
			cur.size += next.size
			if next.version > cur.version {
				cur.version = next.version
			}
			fl.spans = append(fl.spans[:i+1], fl.spans[i+2:]...)
		}
	}

	if i > 0 {
		prev := &fl.spans[i-1]
		cur := &fl.spans[i]
		if prev.ref+prev.size == cur.ref && sameRegion(prev.ref, cur.ref) {
			prev.size += cur.size
			if cur.version > prev.version {
				prev.version = cur.version
			}
			fl.spans = append(fl.spans[:i], fl.spans[i+1:]...)
		}
	}
}

func (fl *freeList) clear() { fl.spans = nil }

func (fl *freeList) clone() []freeSpan {
	out := make([]freeSpan, len(fl.spans))
	copy(out, fl.spans)
	return out
}
