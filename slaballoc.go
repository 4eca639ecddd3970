package coredb

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrOutOfMemory is returned when the allocator cannot extend a slab or
// the underlying file, per spec.md §7's "out-of-memory" error taxonomy.
var ErrOutOfMemory = errors.New("coredb: allocator out of memory")

// ErrUnalignedSize is returned when Alloc/Free/Realloc is asked to
// operate on a size that is not a multiple of 8.
var ErrUnalignedSize = errors.New("coredb: size must be a multiple of 8")

// MemRef pairs a Ref with its translated, directly addressable bytes —
// the Go analogue of the reference's MemRef{pointer, ref} sentinel pair.
type MemRef struct {
	Ptr []byte
	Ref Ref
}

// slabRegion is one growable scratch chunk allocated from the host heap
// during a write transaction (spec.md glossary: "Slab").
type slabRegion struct {
	start uint64
	end   uint64
	data  []byte
}

// SlabAlloc overlays a read-only memory-mapped image with a chain of
// writable scratch slabs, presenting every live region under a single
// unified Ref address space (spec.md §4.1).
type SlabAlloc struct {
	mapped   atomic.Value // MMap
	baseline atomic.Uint64

	mu        sync.Mutex
	slabs     []slabRegion
	writeFree freeList
	readFree  freeList

	ownedBuffer bool
}

// NewSlabAlloc constructs an allocator over an already-mapped read-only
// image of the given baseline size. Pass an empty MMap and baseline 8 for
// a brand-new, empty file/buffer: the first 8 bytes are the top-ref slot,
// and a baseline of 0 would hand out ref 0, which is NullRef.
func NewSlabAlloc(mapped MMap, baseline uint64, ownedBuffer bool) *SlabAlloc {
	a := &SlabAlloc{ownedBuffer: ownedBuffer}
	a.mapped.Store(mapped)
	a.baseline.Store(baseline)
	return a
}

func (a *SlabAlloc) Baseline() uint64 { return a.baseline.Load() }

func (a *SlabAlloc) mappedImage() MMap {
	m, _ := a.mapped.Load().(MMap)
	return m
}

// IsReadOnly reports whether ref addresses the mapped, read-only image
// rather than a writable scratch slab.
func (a *SlabAlloc) IsReadOnly(ref Ref) bool {
	if ref.IsNull() || ref.IsInline() {
		return false
	}
	return uint64(ref) < a.baseline.Load()
}

// Translate resolves ref to a byte slice beginning at its header and
// running to the end of its containing region (mapped image or slab).
func (a *SlabAlloc) Translate(ref Ref) ([]byte, error) {
	if ref.IsNull() || ref.IsInline() {
		return nil, errors.New("coredb: cannot translate a null or inline ref")
	}

	off := uint64(ref)
	baseline := a.baseline.Load()

	if off < baseline {
		m := a.mappedImage()
		if off > uint64(len(m)) {
			return nil, errors.New("coredb: ref out of range of mapped image")
		}
		return []byte(m[off:]), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.findSlab(off)
	if i < 0 {
		return nil, errors.New("coredb: ref does not fall within any known slab")
	}

	s := &a.slabs[i]
	return s.data[off-s.start:], nil
}

// findSlab returns the index of the slab containing off, or -1.
func (a *SlabAlloc) findSlab(off uint64) int {
	lo, hi := 0, len(a.slabs)
	for lo < hi {
		mid := (lo + hi) / 2
		if a.slabs[mid].end <= off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	if lo < len(a.slabs) && a.slabs[lo].start <= off && off < a.slabs[lo].end {
		return lo
	}
	return -1
}

// sameSlab reports whether offsets a and b belong to the same slab, used
// to forbid coalescing free spans across a slab boundary.
func (a *SlabAlloc) sameSlab(x, y uint64) bool {
	i := a.findSlab(x)
	j := a.findSlab(y)
	return i >= 0 && i == j
}

// sameMappedImage is always true: the mapped image is one contiguous
// region, so adjacent read-only free spans may always coalesce.
func sameMappedImage(_, _ uint64) bool { return true }

// Alloc reserves size bytes (a multiple of 8), first-fitting against the
// write-side free list before growing a new scratch slab.
func (a *SlabAlloc) Alloc(size uint64) (MemRef, error) {
	if size&7 != 0 {
		return MemRef{}, ErrUnalignedSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if ref, ok := a.writeFree.firstFit(size); ok {
		ptr, err := a.translateLocked(ref)
		if err != nil {
			return MemRef{}, err
		}
		return MemRef{Ptr: ptr, Ref: Ref(ref)}, nil
	}

	slabsBack := a.baseline.Load()
	var lastSize uint64
	if n := len(a.slabs); n > 0 {
		slabsBack = a.slabs[n-1].end
		lastSize = a.slabs[n-1].end - a.slabs[n-1].start
	}

	multiple := 256 * ((size / 256) + 1)
	doubleLast := 2 * lastSize
	newSize := multiple
	if doubleLast > newSize {
		newSize = doubleLast
	}

	data := make([]byte, newSize)
	a.slabs = append(a.slabs, slabRegion{start: slabsBack, end: slabsBack + newSize, data: data})

	rest := newSize - size
	if rest > 0 {
		a.writeFree.insert(freeSpan{ref: slabsBack + size, size: rest}, a.sameSlab)
	}

	return MemRef{Ptr: data[:size], Ref: Ref(slabsBack)}, nil
}

// translateLocked is Translate, assumed to be called with a.mu held;
// safe to call for write-region refs only (mapped-image refs never
// appear in the write free list).
func (a *SlabAlloc) translateLocked(off uint64) ([]byte, error) {
	i := a.findSlab(off)
	if i < 0 {
		return nil, errors.New("coredb: ref does not fall within any known slab")
	}
	s := &a.slabs[i]
	return s.data[off-s.start:], nil
}

// Free returns a region to the appropriate free list: the read-only free
// list if ref lives in the mapped image (it cannot be reused until the
// next commit promotes it), else the write free list.
func (a *SlabAlloc) Free(ref Ref, size uint64) error {
	if ref.IsNull() || ref.IsInline() {
		return nil
	}
	if size&7 != 0 {
		return ErrUnalignedSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	off := uint64(ref)
	if off < a.baseline.Load() {
		a.readFree.insert(freeSpan{ref: off, size: size}, sameMappedImage)
	} else {
		a.writeFree.insert(freeSpan{ref: off, size: size}, a.sameSlab)
	}

	return nil
}

// Realloc allocates a new region of newSize, copies data into it, and
// frees the old region (of oldSize). The allocator never attempts
// in-place growth, matching spec.md §4.1.
func (a *SlabAlloc) Realloc(ref Ref, oldSize uint64, data []byte, newSize uint64) (MemRef, error) {
	mr, err := a.Alloc(newSize)
	if err != nil {
		return MemRef{}, err
	}

	n := copy(mr.Ptr, data)
	for i := n; i < len(mr.Ptr); i++ {
		mr.Ptr[i] = 0
	}

	if err := a.Free(ref, oldSize); err != nil {
		return MemRef{}, err
	}

	return mr, nil
}

// Rebase installs a freshly (re)mapped image as the new read-only
// baseline, discarding all scratch slabs and the write free list — the
// "free_all" half of the commit handoff (spec.md §4.5 step 7). The
// read-only free list is left untouched; callers seed it explicitly via
// SeedReadFree with the authoritative set serialized into the new top.
func (a *SlabAlloc) Rebase(mapped MMap, baseline uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mapped.Store(mapped)
	a.baseline.Store(baseline)
	a.slabs = nil
	a.writeFree.clear()
}

// SeedReadFree replaces the read-only free list with the given spans,
// each tagged with the commit version that produced it.
func (a *SlabAlloc) SeedReadFree(spans []freeSpan) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readFree.spans = append([]freeSpan(nil), spans...)
}

// ReadFreeSpans returns a snapshot of the read-only free list.
func (a *SlabAlloc) ReadFreeSpans() []freeSpan {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readFree.clone()
}

// AllocFromReadFree services a commit-time allocation directly out of
// the read-only free list when a hole tagged older than readlockVersion
// exists, per spec.md §4.5 step 1's get_free_space. Returns ok=false if
// no such hole exists; the caller must then extend the file.
func (a *SlabAlloc) AllocFromReadFree(size, readlockVersion uint64) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readFree.firstFitMinVersion(size, readlockVersion)
}

// WriteFreeSpans returns a snapshot of the write-side free list, used by
// the group commit sequence (spec.md §4.5 step 2) to learn which holes
// inside the about-to-be-flushed scratch slabs become reusable mapped-
// image holes once the slabs are written into the file.
func (a *SlabAlloc) WriteFreeSpans() []freeSpan {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeFree.clone()
}

// SlabBytes copies every live scratch slab's bytes, in ref order, into a
// single contiguous buffer — the scratch region's future on-disk layout,
// since slab refs are already assigned contiguously starting at baseline
// (spec.md §4.5's commit flush).
func (a *SlabAlloc) SlabBytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total uint64
	for _, s := range a.slabs {
		total += s.end - s.start
	}
	out := make([]byte, 0, total)
	for _, s := range a.slabs {
		out = append(out, s.data...)
	}
	return out
}

// IsAllFree reports whether every scratch slab has been fully returned
// to the write free list — used by tests to catch leaked allocations,
// mirroring the teacher's debug-only leak assertions.
func (a *SlabAlloc) IsAllFree() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total uint64
	for _, s := range a.slabs {
		total += s.end - s.start
	}
	var free uint64
	for _, s := range a.writeFree.spans {
		free += s.size
	}
	return total == free
}
