package coredb

// SubtableColumn is a refs-column whose leaves hold, per row, the ref of
// that row's subtable top-array (spec.md §4.3 "Subtable"). A null ref
// means the subtable has not yet been materialized; Table.GetSubtable
// lazily allocates one on first access.
type SubtableColumn struct{ *Column }

func NewSubtableColumn(alloc *SlabAlloc) (*SubtableColumn, error) {
	c, err := newEmptyColumn(alloc, intLeafFactory{hasRefs: true})
	if err != nil {
		return nil, err
	}
	return &SubtableColumn{c}, nil
}

func OpenSubtableColumn(alloc *SlabAlloc, root Ref) *SubtableColumn {
	return &SubtableColumn{newColumn(alloc, intLeafFactory{hasRefs: true}, root)}
}

func (c *SubtableColumn) GetRef(i int) (Ref, error) {
	v, err := c.Get(i)
	if err != nil {
		return NullRef, err
	}
	return Ref(uint64(v.(int64))), nil
}

func (c *SubtableColumn) SetRef(i int, ref Ref) error { return c.Set(i, int64(uint64(ref))) }
func (c *SubtableColumn) InsertRef(i int, ref Ref) error { return c.Insert(i, int64(uint64(ref))) }
func (c *SubtableColumn) AddRef(ref Ref) error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	return c.InsertRef(size, ref)
}
