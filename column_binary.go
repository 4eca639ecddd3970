package coredb

// BinaryColumn stores variable-length byte blobs using the same
// offsets+blob leaf shape as the long-string layout (spec.md §4.3:
// "Binary: same shape as long string") — there is no short/long
// distinction for binary, it always uses the long layout.
type BinaryColumn struct{ *Column }

func NewBinaryColumn(alloc *SlabAlloc) (*BinaryColumn, error) {
	c, err := newEmptyColumn(alloc, longStringLeafFactory{})
	if err != nil {
		return nil, err
	}
	return &BinaryColumn{c}, nil
}

func OpenBinaryColumn(alloc *SlabAlloc, root Ref) *BinaryColumn {
	return &BinaryColumn{newColumn(alloc, longStringLeafFactory{}, root)}
}

func (c *BinaryColumn) GetBinary(i int) ([]byte, error) {
	v, err := c.Get(i)
	if err != nil {
		return nil, err
	}
	return []byte(v.(string)), nil
}

func (c *BinaryColumn) SetBinary(i int, v []byte) error { return c.Set(i, v) }
func (c *BinaryColumn) InsertBinary(i int, v []byte) error { return c.Insert(i, v) }
func (c *BinaryColumn) AddBinary(v []byte) error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	return c.InsertBinary(size, v)
}
