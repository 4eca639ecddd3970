package coredb

import "errors"

// shortStringMaxWidth is the widest short-string slot (spec.md §4.3); a
// value that would need a wider slot triggers promotion to the
// long-string layout instead of widening further.
const shortStringMaxWidth = 64

// shortStringLeaf wraps a fixed-width-slot Array (widthType multiply).
type shortStringLeaf struct {
	alloc *SlabAlloc
	arr   *Array
}

func (l *shortStringLeaf) Ref() Ref  { return l.arr.Ref() }
func (l *shortStringLeaf) Size() int { return l.arr.Size() }
func (l *shortStringLeaf) Get(i int) any { return string(l.arr.GetFixedBytes(i)) }

func (l *shortStringLeaf) Set(i int, v any) error {
	s, ok := v.(string)
	if !ok {
		return errLeafTypeMismatch
	}
	if len(s) > shortStringMaxWidth {
		return errShortStringOverflow
	}
	return l.arr.SetFixedBytes(i, []byte(s))
}

func (l *shortStringLeaf) Insert(i int, v any) error {
	s, ok := v.(string)
	if !ok {
		return errLeafTypeMismatch
	}
	if len(s) > shortStringMaxWidth {
		return errShortStringOverflow
	}
	return l.arr.InsertFixedBytes(i, []byte(s))
}

func (l *shortStringLeaf) Delete(i int) error { return l.arr.EraseFixedBytes(i) }

func (l *shortStringLeaf) Split() (columnLeaf, error) {
	n := l.arr.Size()
	mid := n / 2

	right, err := NewArray(l.alloc, false, false, widthTypeMultiply)
	if err != nil {
		return nil, err
	}
	for i := mid; i < n; i++ {
		if err := right.InsertFixedBytes(right.Size(), l.arr.GetFixedBytes(i)); err != nil {
			return nil, err
		}
	}
	for i := n - 1; i >= mid; i-- {
		if err := l.arr.EraseFixedBytes(i); err != nil {
			return nil, err
		}
	}
	return &shortStringLeaf{alloc: l.alloc, arr: right}, nil
}

func (l *shortStringLeaf) Destroy() error { return l.arr.Destroy() }

// errShortStringOverflow signals to Column.Insert/Set that the value must
// be handled by promoting the whole column to the long-string layout.
var errShortStringOverflow = errors.New("coredb: string exceeds short-string slot width")

type shortStringLeafFactory struct{}

func (shortStringLeafFactory) OpenLeaf(alloc *SlabAlloc, ref Ref) (columnLeaf, error) {
	arr, err := OpenArray(alloc, ref)
	if err != nil {
		return nil, err
	}
	return &shortStringLeaf{alloc: alloc, arr: arr}, nil
}

func (shortStringLeafFactory) NewLeaf(alloc *SlabAlloc) (columnLeaf, error) {
	arr, err := NewArray(alloc, false, false, widthTypeMultiply)
	if err != nil {
		return nil, err
	}
	return &shortStringLeaf{alloc: alloc, arr: arr}, nil
}

// StringColumn is a string column, transparently backed by either the
// short fixed-slot layout or the long offsets+blob layout (spec.md
// §4.3). Promotion from short to long is one-way and rewrites the whole
// column, matching the end-to-end scenario in spec.md §8.2.
type StringColumn struct {
	*Column
	isLong bool
}

// NewStringColumn creates an empty short-layout string column.
func NewStringColumn(alloc *SlabAlloc) (*StringColumn, error) {
	c, err := newEmptyColumn(alloc, shortStringLeafFactory{})
	if err != nil {
		return nil, err
	}
	return &StringColumn{Column: c}, nil
}

// OpenStringColumn wraps an existing string column root, determining its
// layout from the root itself rather than trusting a caller-supplied flag
// — exactly how the reference implementation resolves it (IsLongStrings():
// m_array->HasRefs()). A short-string leaf carries has-refs=false; the
// long-string leaf's top array carries has-refs=true (it holds the
// offsets/blob child refs); an inner B-tree node is has-refs=true
// regardless of its leaves' layout, so the check descends to an actual
// leaf first.
func OpenStringColumn(alloc *SlabAlloc, root Ref) *StringColumn {
	isLong := stringLeafHasRefs(alloc, root)
	var f leafFactory = shortStringLeafFactory{}
	if isLong {
		f = longStringLeafFactory{}
	}
	return &StringColumn{Column: newColumn(alloc, f, root), isLong: isLong}
}

// stringLeafHasRefs descends from root to its leftmost leaf and reports
// that leaf's has-refs bit. A null root defaults to the short layout,
// matching NewStringColumn's initial leaf.
func stringLeafHasRefs(alloc *SlabAlloc, root Ref) bool {
	if root.IsNull() {
		return false
	}
	a, err := OpenArray(alloc, root)
	if err != nil {
		return false
	}
	for a.IsInner() {
		refs, err := OpenArray(alloc, a.GetChildRef(1))
		if err != nil {
			return false
		}
		a, err = OpenArray(alloc, refs.GetChildRef(0))
		if err != nil {
			return false
		}
	}
	return a.HasRefs()
}

func (c *StringColumn) IsLong() bool { return c.isLong }

func (c *StringColumn) GetString(i int) (string, error) {
	v, err := c.Get(i)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *StringColumn) SetString(i int, v string) error {
	if !c.isLong && len(v) > shortStringMaxWidth {
		if err := c.promoteToLong(); err != nil {
			return err
		}
	}
	err := c.Set(i, v)
	if errors.Is(err, errShortStringOverflow) {
		if err := c.promoteToLong(); err != nil {
			return err
		}
		return c.Set(i, v)
	}
	return err
}

func (c *StringColumn) InsertString(i int, v string) error {
	if !c.isLong && len(v) > shortStringMaxWidth {
		if err := c.promoteToLong(); err != nil {
			return err
		}
	}
	err := c.Insert(i, v)
	if errors.Is(err, errShortStringOverflow) {
		if err := c.promoteToLong(); err != nil {
			return err
		}
		return c.Insert(i, v)
	}
	return err
}

func (c *StringColumn) AddString(v string) error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	return c.InsertString(size, v)
}

// promoteToLong rebuilds the column's entire contents under the
// long-string layout, preserving row order (spec.md §4.3, §8 scenario 2).
func (c *StringColumn) promoteToLong() error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	values := make([]string, size)
	for i := 0; i < size; i++ {
		values[i], err = c.GetString(i)
		if err != nil {
			return err
		}
	}

	oldRoot := c.root
	fresh, err := newEmptyColumn(c.alloc, longStringLeafFactory{})
	if err != nil {
		return err
	}
	for i, v := range values {
		if err := fresh.Insert(i, v); err != nil {
			return err
		}
	}

	if err := columnDestroy(c.alloc, shortStringLeafFactory{}, oldRoot); err != nil {
		return err
	}

	c.Column = fresh
	c.isLong = true
	return nil
}
