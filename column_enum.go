package coredb

// EnumColumn is the compact representation of a string column once
// Table.Optimize has determined it has few distinct values: a sorted
// keys column and a values column of indices into it (spec.md §4.3
// "Enum string", §4.4's "Optimize"). Transparent to callers — it reports
// the same logical string values as StringColumn.
type EnumColumn struct {
	alloc  *SlabAlloc
	keys   *StringColumn
	values *IntColumn
}

// NewEnumColumn creates an empty enum column.
func NewEnumColumn(alloc *SlabAlloc) (*EnumColumn, error) {
	keys, err := NewStringColumn(alloc)
	if err != nil {
		return nil, err
	}
	values, err := NewIntColumn(alloc)
	if err != nil {
		return nil, err
	}
	return &EnumColumn{alloc: alloc, keys: keys, values: values}, nil
}

// OpenEnumColumn wraps existing keys/values column roots. The keys
// column's short/long layout is derived the same way OpenStringColumn
// derives it for an ordinary string column — from the keys root itself,
// not a caller-supplied flag.
func OpenEnumColumn(alloc *SlabAlloc, keysRoot, valuesRoot Ref) *EnumColumn {
	return &EnumColumn{
		alloc:  alloc,
		keys:   OpenStringColumn(alloc, keysRoot),
		values: OpenIntColumn(alloc, valuesRoot),
	}
}

// NewEnumColumnFromStrings builds an enum column equivalent to the given
// already-materialized string column values, used by Table.Optimize.
func NewEnumColumnFromStrings(alloc *SlabAlloc, values []string) (*EnumColumn, error) {
	e, err := NewEnumColumn(alloc)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := e.Add(v); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *EnumColumn) KeysRoot() Ref   { return e.keys.Root() }
func (e *EnumColumn) ValuesRoot() Ref { return e.values.Root() }
func (e *EnumColumn) KeysLong() bool  { return e.keys.IsLong() }

func (e *EnumColumn) Size() (int, error) { return e.values.Size() }

// keyIndex returns the index of s in the sorted keys column, inserting it
// in sorted position if absent.
func (e *EnumColumn) keyIndex(s string) (int, error) {
	n, err := e.keys.Size()
	if err != nil {
		return 0, err
	}

	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		v, err := e.keys.GetString(mid)
		if err != nil {
			return 0, err
		}
		if v < s {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	if lo < n {
		v, err := e.keys.GetString(lo)
		if err != nil {
			return 0, err
		}
		if v == s {
			return lo, nil
		}
	}

	if err := e.keys.InsertString(lo, s); err != nil {
		return 0, err
	}

	size, err := e.Size()
	if err != nil {
		return 0, err
	}
	for i := 0; i < size; i++ {
		idx, err := e.values.GetInt(i)
		if err != nil {
			return 0, err
		}
		if idx >= int64(lo) {
			if err := e.values.SetInt(i, idx+1); err != nil {
				return 0, err
			}
		}
	}

	return lo, nil
}

func (e *EnumColumn) GetString(i int) (string, error) {
	idx, err := e.values.GetInt(i)
	if err != nil {
		return "", err
	}
	return e.keys.GetString(int(idx))
}

func (e *EnumColumn) Set(i int, v string) error {
	idx, err := e.keyIndex(v)
	if err != nil {
		return err
	}
	return e.values.SetInt(i, int64(idx))
}

func (e *EnumColumn) Insert(i int, v string) error {
	idx, err := e.keyIndex(v)
	if err != nil {
		return err
	}
	return e.values.InsertInt(i, int64(idx))
}

func (e *EnumColumn) Add(v string) error {
	size, err := e.Size()
	if err != nil {
		return err
	}
	return e.Insert(size, v)
}

func (e *EnumColumn) Delete(i int) error { return e.values.Delete(i) }

func (e *EnumColumn) Destroy() error {
	if err := e.keys.Destroy(); err != nil {
		return err
	}
	return e.values.Destroy()
}
