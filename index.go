package coredb

import "sort"

// Index is a secondary structure mapping column values to sorted lists of
// row numbers, itself built from the universal Array/Column machinery
// (spec.md §4.3's "Indexes"): a values column kept in ascending order and
// a parallel row-number column, so a value's matching rows always occupy
// one contiguous run.
type Index struct {
	alloc  *SlabAlloc
	values *IntColumn
	rows   *IntColumn
}

func NewIndex(alloc *SlabAlloc) (*Index, error) {
	values, err := NewIntColumn(alloc)
	if err != nil {
		return nil, err
	}
	rows, err := NewIntColumn(alloc)
	if err != nil {
		return nil, err
	}
	return &Index{alloc: alloc, values: values, rows: rows}, nil
}

func OpenIndex(alloc *SlabAlloc, valuesRoot, rowsRoot Ref) *Index {
	return &Index{
		alloc:  alloc,
		values: OpenIntColumn(alloc, valuesRoot),
		rows:   OpenIntColumn(alloc, rowsRoot),
	}
}

func (ix *Index) ValuesRoot() Ref { return ix.values.Root() }
func (ix *Index) RowsRoot() Ref   { return ix.rows.Root() }

func (ix *Index) size() (int, error) { return ix.values.Size() }

// lowerBound returns the first position whose value is >= v.
func (ix *Index) lowerBound(v int64) (int, error) {
	n, err := ix.size()
	if err != nil {
		return 0, err
	}
	var outerErr error
	pos := sort.Search(n, func(i int) bool {
		got, err := ix.values.GetInt(i)
		if err != nil {
			outerErr = err
		}
		return got >= v
	})
	return pos, outerErr
}

// Insert records that row was just inserted at position row, carrying
// value v, mirroring an insert into the indexed column itself (spec.md
// §4.3: "inserts/deletes into the indexed column are mirrored into the
// index").
func (ix *Index) Insert(row int, v int64) error {
	n, err := ix.size()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		r, err := ix.rows.GetInt(i)
		if err != nil {
			return err
		}
		if r >= int64(row) {
			if err := ix.rows.SetInt(i, r+1); err != nil {
				return err
			}
		}
	}

	pos, err := ix.lowerBound(v)
	if err != nil {
		return err
	}
	for pos < n {
		got, err := ix.values.GetInt(pos)
		if err != nil {
			return err
		}
		r, err := ix.rows.GetInt(pos)
		if err != nil {
			return err
		}
		if got != v || r > int64(row) {
			break
		}
		pos++
	}
	if err := ix.values.InsertInt(pos, v); err != nil {
		return err
	}
	return ix.rows.InsertInt(pos, int64(row))
}

// Delete removes the index entry for the row that is about to be deleted
// from the indexed column at position row.
func (ix *Index) Delete(row int, v int64) error {
	pos, err := ix.lowerBound(v)
	if err != nil {
		return err
	}
	n, err := ix.size()
	if err != nil {
		return err
	}
	for pos < n {
		got, err := ix.values.GetInt(pos)
		if err != nil {
			return err
		}
		if got != v {
			break
		}
		r, err := ix.rows.GetInt(pos)
		if err != nil {
			return err
		}
		if r == int64(row) {
			if err := ix.values.Delete(pos); err != nil {
				return err
			}
			if err := ix.rows.Delete(pos); err != nil {
				return err
			}
			break
		}
		pos++
	}

	n, err = ix.size()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		r, err := ix.rows.GetInt(i)
		if err != nil {
			return err
		}
		if r > int64(row) {
			if err := ix.rows.SetInt(i, r-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindFirst returns the lowest row number carrying value v, or -1.
func (ix *Index) FindFirst(v int64) (int, error) {
	pos, err := ix.lowerBound(v)
	if err != nil {
		return -1, err
	}
	n, err := ix.size()
	if err != nil {
		return -1, err
	}
	if pos >= n {
		return -1, nil
	}
	got, err := ix.values.GetInt(pos)
	if err != nil {
		return -1, err
	}
	if got != v {
		return -1, nil
	}
	row, err := ix.rows.GetInt(pos)
	if err != nil {
		return -1, err
	}
	return int(row), nil
}

// FindAll returns every row number carrying value v, in ascending row
// order (Insert keeps each equal-value run sorted by row number).
func (ix *Index) FindAll(v int64) ([]int, error) {
	pos, err := ix.lowerBound(v)
	if err != nil {
		return nil, err
	}
	n, err := ix.size()
	if err != nil {
		return nil, err
	}
	var out []int
	for pos < n {
		got, err := ix.values.GetInt(pos)
		if err != nil {
			return nil, err
		}
		if got != v {
			break
		}
		row, err := ix.rows.GetInt(pos)
		if err != nil {
			return nil, err
		}
		out = append(out, int(row))
		pos++
	}
	return out, nil
}

// FindAllRange returns every row number whose indexed value lies in
// [lo, hi] (§2.3 supplement: range queries over an existing index).
func (ix *Index) FindAllRange(lo, hi int64) ([]int, error) {
	start, err := ix.lowerBound(lo)
	if err != nil {
		return nil, err
	}
	n, err := ix.size()
	if err != nil {
		return nil, err
	}
	var out []int
	for pos := start; pos < n; pos++ {
		v, err := ix.values.GetInt(pos)
		if err != nil {
			return nil, err
		}
		if v > hi {
			break
		}
		row, err := ix.rows.GetInt(pos)
		if err != nil {
			return nil, err
		}
		out = append(out, int(row))
	}
	return out, nil
}

func (ix *Index) Destroy() error {
	if err := ix.values.Destroy(); err != nil {
		return err
	}
	return ix.rows.Destroy()
}
