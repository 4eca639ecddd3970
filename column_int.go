package coredb

// intLeaf wraps a single adaptive-width integer Array, the leaf layout
// shared by int, bool, date and (with hasRefs set) subtable/mixed-refs
// columns (spec.md §4.3 "Int/bool/date: single adaptive-width integer
// Array").
type intLeaf struct {
	alloc *SlabAlloc
	arr   *Array
}

func (l *intLeaf) Ref() Ref  { return l.arr.Ref() }
func (l *intLeaf) Size() int { return l.arr.Size() }

func (l *intLeaf) Get(i int) any { return l.arr.Get(i) }

func (l *intLeaf) Set(i int, v any) error {
	iv, ok := v.(int64)
	if !ok {
		return errLeafTypeMismatch
	}
	return l.arr.Set(i, iv)
}

func (l *intLeaf) Insert(i int, v any) error {
	iv, ok := v.(int64)
	if !ok {
		return errLeafTypeMismatch
	}
	return l.arr.Insert(i, iv)
}

func (l *intLeaf) Delete(i int) error { return l.arr.Erase(i) }

func (l *intLeaf) Split() (columnLeaf, error) {
	n := l.arr.Size()
	mid := n / 2

	right, err := NewArray(l.alloc, false, l.arr.HasRefs(), widthTypeBits)
	if err != nil {
		return nil, err
	}
	for i := mid; i < n; i++ {
		if err := right.Add(l.arr.Get(i)); err != nil {
			return nil, err
		}
	}
	for i := n - 1; i >= mid; i-- {
		if err := l.arr.Erase(i); err != nil {
			return nil, err
		}
	}

	return &intLeaf{alloc: l.alloc, arr: right}, nil
}

func (l *intLeaf) Destroy() error { return l.arr.Destroy() }

// intLeafFactory produces integer leaves: plain ones for int/bool/date
// columns, and, with hasRefs set, the ref-holding leaves of the group's
// tables column and of subtable and mixed-refs columns.
type intLeafFactory struct{ hasRefs bool }

func (f intLeafFactory) OpenLeaf(alloc *SlabAlloc, ref Ref) (columnLeaf, error) {
	arr, err := OpenArray(alloc, ref)
	if err != nil {
		return nil, err
	}
	return &intLeaf{alloc: alloc, arr: arr}, nil
}

func (f intLeafFactory) NewLeaf(alloc *SlabAlloc) (columnLeaf, error) {
	arr, err := NewArray(alloc, false, f.hasRefs, widthTypeBits)
	if err != nil {
		return nil, err
	}
	return &intLeaf{alloc: alloc, arr: arr}, nil
}

// IntColumn is an int/bool/date column (spec.md §4.3).
type IntColumn struct{ *Column }

// NewIntColumn creates an empty int/bool/date column.
func NewIntColumn(alloc *SlabAlloc) (*IntColumn, error) {
	c, err := newEmptyColumn(alloc, intLeafFactory{})
	if err != nil {
		return nil, err
	}
	return &IntColumn{c}, nil
}

// OpenIntColumn wraps an existing int/bool/date column root.
func OpenIntColumn(alloc *SlabAlloc, root Ref) *IntColumn {
	return &IntColumn{newColumn(alloc, intLeafFactory{}, root)}
}

func (c *IntColumn) GetInt(i int) (int64, error) {
	v, err := c.Get(i)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (c *IntColumn) SetInt(i int, v int64) error { return c.Set(i, v) }
func (c *IntColumn) InsertInt(i int, v int64) error { return c.Insert(i, v) }
func (c *IntColumn) AddInt(v int64) error          { return c.Add(v) }

// FindFirst returns the first row i in [start, size) with value v, or -1.
// It reads the column row by row through GetInt, and each read descends
// from the column root.
func (c *IntColumn) FindFirst(v int64, start int) (int, error) {
	size, err := c.Size()
	if err != nil {
		return -1, err
	}
	for i := start; i < size; i++ {
		got, err := c.GetInt(i)
		if err != nil {
			return -1, err
		}
		if got == v {
			return i, nil
		}
	}
	return -1, nil
}

// Sum adds up every value in the column. IntColumn has no Minimum or
// Maximum; those aggregates exist only on Array.
func (c *IntColumn) Sum() (int64, error) {
	size, err := c.Size()
	if err != nil {
		return 0, err
	}
	var total int64
	for i := 0; i < size; i++ {
		v, err := c.GetInt(i)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
