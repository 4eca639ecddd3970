package coredb

import "errors"

// ArrayParent lets a child Array report a new ref up to whatever owns the
// slot it occupies (an inner node's refs array, a Table's column list, a
// Group's top array...) after a copy-on-write or capacity-driven move.
//
// Passed explicitly via SetParent rather than carried as a permanent
// back-pointer, so Arrays stay plain borrowed-memory value types with no
// retain cycles (spec.md Design Notes, §3.3).
type ArrayParent interface {
	UpdateChildRef(index int, ref Ref) error
}

// Array is the single node type the allocator, Column and Table layers
// build on: an adaptive-width, optionally bit-packed, copy-on-write
// vector that exists purely by borrowing allocator memory (spec.md §4.2).
type Array struct {
	alloc *SlabAlloc
	ref   Ref
	data  []byte // translated view, header at data[0]

	isInner   bool
	hasRefs   bool
	widthType int
	width     int
	size      int
	capacity  int

	get widthGetter
	set widthSetter

	parent      ArrayParent
	parentIndex int
}

// NewArray allocates a fresh, empty Array node.
func NewArray(alloc *SlabAlloc, isInner, hasRefs bool, widthType int) (*Array, error) {
	mr, err := alloc.Alloc(roundUp8(headerSize))
	if err != nil {
		return nil, err
	}

	encodeHeader(mr.Ptr, isInner, hasRefs, widthType, 0, 0, roundUp8(headerSize))

	a := &Array{
		alloc:     alloc,
		ref:       mr.Ref,
		data:      mr.Ptr,
		isInner:   isInner,
		hasRefs:   hasRefs,
		widthType: widthType,
		width:     0,
		size:      0,
		capacity:  roundUp8(headerSize),
	}
	a.refreshDispatch()
	return a, nil
}

// OpenArray wraps an existing on-disk/on-slab node for reading or writing.
func OpenArray(alloc *SlabAlloc, ref Ref) (*Array, error) {
	data, err := alloc.Translate(ref)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, errors.New("coredb: truncated array header")
	}

	h := decodeHeader(data)
	a := &Array{
		alloc:     alloc,
		ref:       ref,
		data:      data,
		isInner:   h.isInner,
		hasRefs:   h.hasRefs,
		widthType: h.widthType,
		width:     h.width,
		size:      h.size,
		capacity:  h.capacity,
	}
	a.refreshDispatch()
	return a, nil
}

func (a *Array) refreshDispatch() {
	if a.widthType == widthTypeBits {
		a.get = getterForWidth(a.width)
		a.set = setterForWidth(a.width)
	}
}

func (a *Array) SetParent(p ArrayParent, index int) { a.parent, a.parentIndex = p, index }

func (a *Array) Ref() Ref         { return a.ref }
func (a *Array) Size() int        { return a.size }
func (a *Array) IsInner() bool    { return a.isInner }
func (a *Array) HasRefs() bool    { return a.hasRefs }
func (a *Array) WidthType() int   { return a.widthType }
func (a *Array) Width() int       { return a.width }

func (a *Array) payload() []byte { return a.data[headerSize:a.capacity] }

func (a *Array) updateParent() error {
	if a.parent == nil {
		return nil
	}
	return a.parent.UpdateChildRef(a.parentIndex, a.ref)
}

// copyOnWrite ensures a.ref addresses writable scratch memory, relocating
// the node (and notifying its parent) if it currently lives in the
// read-only mapped image. Every mutator calls this first (spec.md §4.2's
// copy-on-write invariant).
func (a *Array) copyOnWrite() error {
	if !a.alloc.IsReadOnly(a.ref) {
		return nil
	}

	oldCap := a.capacity
	newCap := roundUp8(oldCap) + 64

	mr, err := a.alloc.Realloc(a.ref, uint64(oldCap), a.data[:oldCap], uint64(newCap))
	if err != nil {
		return err
	}

	a.ref = mr.Ref
	a.data = mr.Ptr
	a.capacity = newCap
	setHeaderCapacity(a.data, newCap)

	return a.updateParent()
}

// ensureCapacity grows the node's backing allocation to at least needed
// bytes, relocating it via Realloc (never in place).
func (a *Array) ensureCapacity(needed int) error {
	if a.capacity >= needed {
		return nil
	}

	newCap := roundUp8(needed) + 64

	mr, err := a.alloc.Realloc(a.ref, uint64(a.capacity), a.data[:a.capacity], uint64(newCap))
	if err != nil {
		return err
	}

	a.ref = mr.Ref
	a.data = mr.Ptr
	a.capacity = newCap
	setHeaderCapacity(a.data, newCap)

	return a.updateParent()
}

func (a *Array) commitHeader() {
	setHeaderSize(a.data, a.size)
	setHeaderWidth(a.data, a.width)
}

// decodeAll materializes every element as int64 (widthType bits only).
func (a *Array) decodeAll() []int64 {
	out := make([]int64, a.size)
	p := a.payload()
	for i := range out {
		out[i] = a.get(p, i)
	}
	return out
}

// encodeAll repacks values at the given width into the node's payload,
// resizing the node's in-memory element count and dispatch table.
func (a *Array) encodeAll(values []int64, width int) {
	a.width = width
	a.size = len(values)
	a.refreshDispatch()

	p := a.payload()
	for i := range p {
		p[i] = 0
	}
	for i, v := range values {
		a.set(p, i, v)
	}
	a.commitHeader()
}

// Get returns the int64 value at index i (widthType bits only).
func (a *Array) Get(i int) int64 {
	if a.widthType != widthTypeBits {
		panic("coredb: Get called on a non-bits-width array")
	}
	return a.get(a.payload(), i)
}

// Set overwrites the value at index i, copying-on-write and widening the
// node first if v does not fit the current width.
func (a *Array) Set(i int, v int64) error {
	if a.widthType != widthTypeBits {
		panic("coredb: Set called on a non-bits-width array")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	rw := requiredWidth(v)
	if rw > a.width {
		values := a.decodeAll()
		values[i] = v
		needed := headerSize + bitsPayloadBytes(a.size, rw)
		if err := a.ensureCapacity(needed); err != nil {
			return err
		}
		a.encodeAll(values, rw)
		return nil
	}

	a.set(a.payload(), i, v)
	return nil
}

// Insert splices v into the node at index i, widening width or growing
// capacity as needed.
func (a *Array) Insert(i int, v int64) error {
	if a.widthType != widthTypeBits {
		panic("coredb: Insert called on a non-bits-width array")
	}
	if i < 0 || i > a.size {
		return errors.New("coredb: array insert index out of range")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	values := a.decodeAll()
	values = append(values, 0)
	copy(values[i+1:], values[i:])
	values[i] = v

	width := a.width
	if rw := requiredWidth(v); rw > width {
		width = rw
	}

	needed := headerSize + bitsPayloadBytes(len(values), width)
	if err := a.ensureCapacity(needed); err != nil {
		return err
	}
	a.encodeAll(values, width)
	return nil
}

// Add appends v to the end of the node.
func (a *Array) Add(v int64) error { return a.Insert(a.size, v) }

// Erase removes the element at index i. Width never shrinks.
func (a *Array) Erase(i int) error {
	if a.widthType != widthTypeBits {
		panic("coredb: Erase called on a non-bits-width array")
	}
	if i < 0 || i >= a.size {
		return errors.New("coredb: array erase index out of range")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	values := a.decodeAll()
	values = append(values[:i], values[i+1:]...)
	a.encodeAll(values, a.width)
	return nil
}

// Clear empties the node without shrinking its allocation.
func (a *Array) Clear() error {
	if err := a.copyOnWrite(); err != nil {
		return err
	}
	a.size = 0
	a.commitHeader()
	return nil
}

// Destroy frees the node's own storage, recursing into children first if
// hasRefs is set (spec.md §4.2's recursive destruction semantics).
func (a *Array) Destroy() error {
	if a.hasRefs {
		for i := 0; i < a.size; i++ {
			child := Ref(uint64(a.Get(i)))
			if child.IsNull() || child.IsInline() {
				continue
			}
			ca, err := OpenArray(a.alloc, child)
			if err != nil {
				return err
			}
			if err := ca.Destroy(); err != nil {
				return err
			}
		}
	}
	return a.alloc.Free(a.ref, uint64(a.capacity))
}

// FreeSelf releases this node's own storage without recursing into
// children, used when a B-tree rebuild repacks an inner node's children
// into fresh offsets/refs arrays and the old container must be reclaimed
// without destroying the children it used to point at.
func (a *Array) FreeSelf() error {
	return a.alloc.Free(a.ref, uint64(a.capacity))
}

// GetChildRef reads element i of a has-refs array as a Ref, the shape
// used throughout the Column B-tree and Table/Group top arrays.
func (a *Array) GetChildRef(i int) Ref {
	return Ref(uint64(a.Get(i)))
}

// SetChildRef overwrites element i of a has-refs array with a child ref.
func (a *Array) SetChildRef(i int, ref Ref) error {
	return a.Set(i, int64(uint64(ref)))
}

// UpdateChildRef implements ArrayParent: a has-refs array is itself the
// parent slot for each of the Arrays it references by index.
func (a *Array) UpdateChildRef(index int, ref Ref) error {
	return a.SetChildRef(index, ref)
}
