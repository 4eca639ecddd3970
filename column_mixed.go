package coredb

import "errors"

// MixedColumn implements the dynamically-typed "mixed" cell (spec.md
// §3.1, §4.4): a types column, a refs column holding either an inlined
// scalar, an inlined blob-tail offset, or a real subtable ref, and a
// lazily-appended shared blob column for string/binary payloads.
type MixedColumn struct {
	alloc *SlabAlloc
	top   *Array // hasRefs, size 2 or 3: [typesRef, refsRef, blobRef?]
	types *IntColumn
	refs  *IntColumn
	blob  *BinaryColumn // nil until first string/binary write
}

func NewMixedColumn(alloc *SlabAlloc) (*MixedColumn, error) {
	top, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	types, err := NewIntColumn(alloc)
	if err != nil {
		return nil, err
	}
	refsCol, err := newEmptyColumn(alloc, intLeafFactory{hasRefs: true})
	if err != nil {
		return nil, err
	}

	if err := top.Add(int64(types.Root())); err != nil {
		return nil, err
	}
	if err := top.Add(int64(refsCol.Root())); err != nil {
		return nil, err
	}

	return &MixedColumn{alloc: alloc, top: top, types: types, refs: &IntColumn{refsCol}}, nil
}

func OpenMixedColumn(alloc *SlabAlloc, root Ref) (*MixedColumn, error) {
	top, err := OpenArray(alloc, root)
	if err != nil {
		return nil, err
	}
	mc := &MixedColumn{
		alloc: alloc,
		top:   top,
		types: OpenIntColumn(alloc, top.GetChildRef(0)),
		refs:  OpenIntColumn(alloc, top.GetChildRef(1)),
	}
	if top.Size() > 2 {
		mc.blob = OpenBinaryColumn(alloc, top.GetChildRef(2))
	}
	return mc, nil
}

func (c *MixedColumn) Root() Ref { return c.top.Ref() }

func (c *MixedColumn) Size() (int, error) { return c.types.Size() }

func (c *MixedColumn) ensureBlob() error {
	if c.blob != nil {
		return nil
	}
	blob, err := NewBinaryColumn(c.alloc)
	if err != nil {
		return err
	}
	if err := blob.AddBinary(nil); err != nil {
		return err
	}
	if err := c.top.Add(int64(blob.Root())); err != nil {
		return err
	}
	c.blob = blob
	return c.syncTop()
}

func (c *MixedColumn) syncTop() error {
	if err := c.top.SetChildRef(0, c.types.Root()); err != nil {
		return err
	}
	if err := c.top.SetChildRef(1, c.refs.Root()); err != nil {
		return err
	}
	if c.blob != nil {
		if c.top.Size() < 3 {
			return errors.New("coredb: mixed column blob slot missing")
		}
		return c.top.SetChildRef(2, c.blob.Root())
	}
	return nil
}

// Get reads row i's dynamically typed value.
func (c *MixedColumn) Get(i int) (Mixed, error) {
	tag, err := c.types.GetInt(i)
	if err != nil {
		return Mixed{}, err
	}
	raw, err := c.refs.GetInt(i)
	if err != nil {
		return Mixed{}, err
	}

	switch MixedType(tag) {
	case MixedInt:
		return NewMixedInt(raw >> 1), nil
	case MixedBool:
		return NewMixedBool(raw>>1 != 0), nil
	case MixedDate:
		return NewMixedDate(raw >> 1), nil
	case MixedString, MixedBinary:
		if c.blob == nil {
			return Mixed{}, errors.New("coredb: mixed column missing blob store")
		}
		start, length := unpackMixedBlobSlot(raw >> 1)
		b, err := c.readBlobRange(start, length)
		if err != nil {
			return Mixed{}, err
		}
		if MixedType(tag) == MixedString {
			return NewMixedString(string(b)), nil
		}
		return NewMixedBinary(b), nil
	case MixedSubtable:
		return NewMixedSubtable(Ref(uint64(raw))), nil
	default:
		return Mixed{}, errors.New("coredb: unknown mixed type tag")
	}
}

// mixedBlobSlot packs a (start, length) pair into a single inline 63-bit
// payload: low 32 bits length, remaining bits start. The shared blob
// column in this implementation is one growable binary row per mixed
// column (row 0), so every cell's inline payload addresses a byte range
// within it rather than a separate blob row per cell.
func packMixedBlobSlot(start, length int) int64 { return int64(start)<<32 | int64(uint32(length)) }
func unpackMixedBlobSlot(v int64) (start, length int) {
	return int(v >> 32), int(int32(uint32(v)))
}

func (c *MixedColumn) readBlobRange(start, length int) ([]byte, error) {
	full, err := c.blob.GetBinary(0)
	if err != nil {
		return nil, err
	}
	if start+length > len(full) {
		return nil, errors.New("coredb: mixed blob range out of bounds")
	}
	return append([]byte(nil), full[start:start+length]...), nil
}

// clearValue implements spec.md §4.4's clear_value: if the previous cell
// was a subtable, destroy it transitively; if it was string/binary and
// addressed the tail of the shared blob, truncate, else leave the bytes
// as reclaimable dead space.
func (c *MixedColumn) clearValue(i int) error {
	tag, err := c.types.GetInt(i)
	if err != nil {
		return err
	}

	switch MixedType(tag) {
	case MixedSubtable:
		raw, err := c.refs.GetInt(i)
		if err != nil {
			return err
		}
		ref := Ref(uint64(raw))
		if ref.IsNull() {
			return nil
		}
		top, err := OpenArray(c.alloc, ref)
		if err != nil {
			return err
		}
		return top.Destroy()
	case MixedString, MixedBinary:
		if c.blob == nil {
			return nil
		}
		raw, err := c.refs.GetInt(i)
		if err != nil {
			return err
		}
		start, length := unpackMixedBlobSlot(raw >> 1)
		full, err := c.blob.GetBinary(0)
		if err != nil {
			return err
		}
		if start+length == len(full) {
			return c.blob.SetBinary(0, full[:start])
		}
		return nil
	default:
		return nil
	}
}

func (c *MixedColumn) Set(i int, v Mixed) error {
	if err := c.clearValue(i); err != nil {
		return err
	}

	switch v.Type {
	case MixedInt:
		if err := c.refs.SetInt(i, v.Int<<1|1); err != nil {
			return err
		}
	case MixedBool:
		b := int64(0)
		if v.Bool {
			b = 1
		}
		if err := c.refs.SetInt(i, b<<1|1); err != nil {
			return err
		}
	case MixedDate:
		if err := c.refs.SetInt(i, v.Date<<1|1); err != nil {
			return err
		}
	case MixedString, MixedBinary:
		if err := c.ensureBlob(); err != nil {
			return err
		}
		full, err := c.blob.GetBinary(0)
		if err != nil {
			return err
		}
		start := len(full)
		data := v.Bin
		if v.Type == MixedString {
			data = []byte(v.Str)
		}
		if err := c.blob.SetBinary(0, append(full, data...)); err != nil {
			return err
		}
		if err := c.refs.SetInt(i, packMixedBlobSlot(start, len(data))<<1|1); err != nil {
			return err
		}
	case MixedSubtable:
		if err := c.refs.SetInt(i, int64(uint64(v.Subtable))); err != nil {
			return err
		}
	}

	if err := c.types.SetInt(i, int64(v.Type)); err != nil {
		return err
	}
	return c.syncTop()
}

func (c *MixedColumn) Insert(i int, v Mixed) error {
	if err := c.types.InsertInt(i, int64(v.Type)); err != nil {
		return err
	}
	if err := c.refs.InsertInt(i, 0); err != nil {
		return err
	}
	return c.Set(i, v)
}

func (c *MixedColumn) Add(v Mixed) error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	return c.Insert(size, v)
}

func (c *MixedColumn) Delete(i int) error {
	if err := c.clearValue(i); err != nil {
		return err
	}
	if err := c.types.Delete(i); err != nil {
		return err
	}
	if err := c.refs.Delete(i); err != nil {
		return err
	}
	return c.syncTop()
}

func (c *MixedColumn) Destroy() error {
	if err := c.types.Destroy(); err != nil {
		return err
	}
	if err := c.refs.Destroy(); err != nil {
		return err
	}
	if c.blob != nil {
		return c.blob.Destroy()
	}
	return nil
}
