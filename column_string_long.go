package coredb

// longStringLeaf is the two-child leaf layout used once any string in the
// column exceeds the short-string slot ceiling (spec.md §4.3): an
// offsets Array of cumulative end positions, and a blob Array holding the
// concatenated bytes. It is a "leaf" from the Column engine's point of
// view (is-inner-node = false) even though it has-refs itself, the same
// distinction spec.md §3.1 draws between a node's B-tree role and its
// has-refs payload shape. Binary columns reuse this exact leaf unchanged
// (spec.md §4.3: "Binary: same shape as long string").
type longStringLeaf struct {
	alloc   *SlabAlloc
	top     *Array // hasRefs, size 2: [offsetsRef, blobRef]
	offsets *Array // cumulative end positions
	blob    *Array // widthTypeIgnore
}

func openLongStringLeaf(alloc *SlabAlloc, ref Ref) (*longStringLeaf, error) {
	top, err := OpenArray(alloc, ref)
	if err != nil {
		return nil, err
	}
	offsets, err := OpenArray(alloc, top.GetChildRef(0))
	if err != nil {
		return nil, err
	}
	blob, err := OpenArray(alloc, top.GetChildRef(1))
	if err != nil {
		return nil, err
	}
	offsets.SetParent(top, 0)
	blob.SetParent(top, 1)
	return &longStringLeaf{alloc: alloc, top: top, offsets: offsets, blob: blob}, nil
}

func newLongStringLeaf(alloc *SlabAlloc) (*longStringLeaf, error) {
	top, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	offsets, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		return nil, err
	}
	blob, err := NewArray(alloc, false, false, widthTypeIgnore)
	if err != nil {
		return nil, err
	}
	if err := top.Add(int64(offsets.Ref())); err != nil {
		return nil, err
	}
	if err := top.Add(int64(blob.Ref())); err != nil {
		return nil, err
	}
	offsets.SetParent(top, 0)
	blob.SetParent(top, 1)
	return &longStringLeaf{alloc: alloc, top: top, offsets: offsets, blob: blob}, nil
}

func (l *longStringLeaf) Ref() Ref  { return l.top.Ref() }
func (l *longStringLeaf) Size() int { return l.offsets.Size() }

func (l *longStringLeaf) bounds(i int) (start, end int) {
	if i > 0 {
		start = int(l.offsets.Get(i - 1))
	}
	end = int(l.offsets.Get(i))
	return
}

func (l *longStringLeaf) Get(i int) any {
	start, end := l.bounds(i)
	return string(l.blob.Blob()[start:end])
}

// GetBytes is Get without the string conversion. BinaryColumn does not
// call it; it reads through Get and converts the string.
func (l *longStringLeaf) GetBytes(i int) []byte {
	start, end := l.bounds(i)
	return append([]byte(nil), l.blob.Blob()[start:end]...)
}

func (l *longStringLeaf) valueBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	default:
		return nil, errLeafTypeMismatch
	}
}

func (l *longStringLeaf) Set(i int, v any) error {
	data, err := l.valueBytes(v)
	if err != nil {
		return err
	}
	start, end := l.bounds(i)
	oldLen := end - start
	delta := len(data) - oldLen

	if delta > 0 {
		if err := l.blob.InsertBlobBytes(end, make([]byte, delta)); err != nil {
			return err
		}
	} else if delta < 0 {
		if err := l.blob.DeleteBlobBytes(end+delta, -delta); err != nil {
			return err
		}
	}
	if err := l.blob.SetBlobRange(start, data); err != nil {
		return err
	}

	for k := i; k < l.offsets.Size(); k++ {
		if err := l.offsets.Set(k, l.offsets.Get(k)+int64(delta)); err != nil {
			return err
		}
	}

	return l.syncTop()
}

func (l *longStringLeaf) Insert(i int, v any) error {
	data, err := l.valueBytes(v)
	if err != nil {
		return err
	}

	// insertAt is the byte offset at which row i's string begins today
	// (the end offset of row i-1, or 0 for i==0).
	var insertAt int
	if i > 0 {
		insertAt = int(l.offsets.Get(i - 1))
	}

	if err := l.blob.InsertBlobBytes(insertAt, data); err != nil {
		return err
	}
	for k := i; k < l.offsets.Size(); k++ {
		if err := l.offsets.Set(k, l.offsets.Get(k)+int64(len(data))); err != nil {
			return err
		}
	}
	newEnd := int64(insertAt + len(data))
	if err := l.offsets.Insert(i, newEnd); err != nil {
		return err
	}

	return l.syncTop()
}

func (l *longStringLeaf) Delete(i int) error {
	start, end := l.bounds(i)
	if err := l.blob.DeleteBlobBytes(start, end-start); err != nil {
		return err
	}
	delta := end - start
	if err := l.offsets.Erase(i); err != nil {
		return err
	}
	for k := i; k < l.offsets.Size(); k++ {
		if err := l.offsets.Set(k, l.offsets.Get(k)-int64(delta)); err != nil {
			return err
		}
	}
	return l.syncTop()
}

func (l *longStringLeaf) Split() (columnLeaf, error) {
	n := l.offsets.Size()
	mid := n / 2
	midByte := 0
	if mid > 0 {
		midByte = int(l.offsets.Get(mid - 1))
	}

	right, err := newLongStringLeaf(l.alloc)
	if err != nil {
		return nil, err
	}
	for k := mid; k < n; k++ {
		start, end := l.bounds(k)
		if err := right.blob.AppendBlob(l.blob.Blob()[start:end]); err != nil {
			return nil, err
		}
		if err := right.offsets.Add(l.offsets.Get(k) - int64(midByte)); err != nil {
			return nil, err
		}
	}

	if err := l.blob.TruncateBlob(midByte); err != nil {
		return nil, err
	}
	for k := n - 1; k >= mid; k-- {
		if err := l.offsets.Erase(k); err != nil {
			return nil, err
		}
	}

	if err := l.syncTop(); err != nil {
		return nil, err
	}
	if err := right.syncTop(); err != nil {
		return nil, err
	}

	return right, nil
}

func (l *longStringLeaf) Destroy() error { return l.top.Destroy() }

// syncTop writes back the (possibly relocated, post-COW) offsets/blob
// refs into the top array's two slots.
func (l *longStringLeaf) syncTop() error {
	if err := l.top.SetChildRef(0, l.offsets.Ref()); err != nil {
		return err
	}
	return l.top.SetChildRef(1, l.blob.Ref())
}

type longStringLeafFactory struct{}

func (longStringLeafFactory) OpenLeaf(alloc *SlabAlloc, ref Ref) (columnLeaf, error) {
	return openLongStringLeaf(alloc, ref)
}

func (longStringLeafFactory) NewLeaf(alloc *SlabAlloc) (columnLeaf, error) {
	return newLongStringLeaf(alloc)
}
