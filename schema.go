package coredb

import "errors"

// ColumnType tags a Table column's element type (spec.md §3.1). STRING
// and STRING_ENUM both report STRING to callers (spec.md §4.3's
// Optimize); the schema is the only place the ENUM distinction survives.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeBool
	TypeDate
	TypeString
	TypeStringEnum
	TypeBinary
	TypeSubtable
	TypeMixed
)

// ReportedType is the type callers observe via get_column_type: identical
// to Type except STRING_ENUM, which always reports as STRING.
func (t ColumnType) ReportedType() ColumnType {
	if t == TypeStringEnum {
		return TypeString
	}
	return t
}

// Schema is the recursively nested column-descriptor structure every
// Table owns (or, for a subtable column, shares via its parent's nested
// schema entry) — spec.md §3.1: "carrying column names ... and column
// type tags ..., plus, for each subtable column, the subtable's own
// schema."
type Schema struct {
	alloc   *SlabAlloc
	top     *Array // hasRefs, size 4: [namesRef, typesRef, subSchemasRef, indexFlagsRef]
	names   *StringColumn
	types   *IntColumn
	subs    *SubtableColumn // nested Schema top-array refs, null unless TypeSubtable
	indexed *IntColumn      // 0/1 per column
}

func NewSchema(alloc *SlabAlloc) (*Schema, error) {
	top, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	names, err := NewStringColumn(alloc)
	if err != nil {
		return nil, err
	}
	types, err := NewIntColumn(alloc)
	if err != nil {
		return nil, err
	}
	subs, err := NewSubtableColumn(alloc)
	if err != nil {
		return nil, err
	}
	indexed, err := NewIntColumn(alloc)
	if err != nil {
		return nil, err
	}

	for _, ref := range []Ref{names.Root(), types.Root(), subs.Root(), indexed.Root()} {
		if err := top.Add(int64(ref)); err != nil {
			return nil, err
		}
	}

	return &Schema{alloc: alloc, top: top, names: names, types: types, subs: subs, indexed: indexed}, nil
}

func OpenSchema(alloc *SlabAlloc, ref Ref) (*Schema, error) {
	top, err := OpenArray(alloc, ref)
	if err != nil {
		return nil, err
	}
	if top.Size() != 4 {
		return nil, errors.New("coredb: malformed schema array")
	}
	return &Schema{
		alloc:   alloc,
		top:     top,
		names:   OpenStringColumn(alloc, top.GetChildRef(0)),
		types:   OpenIntColumn(alloc, top.GetChildRef(1)),
		subs:    OpenSubtableColumn(alloc, top.GetChildRef(2)),
		indexed: OpenIntColumn(alloc, top.GetChildRef(3)),
	}, nil
}

func (s *Schema) Root() Ref { return s.top.Ref() }

func (s *Schema) ColumnCount() (int, error) { return s.types.Size() }

func (s *Schema) sync() error {
	if err := s.top.SetChildRef(0, s.names.Root()); err != nil {
		return err
	}
	if err := s.top.SetChildRef(1, s.types.Root()); err != nil {
		return err
	}
	if err := s.top.SetChildRef(2, s.subs.Root()); err != nil {
		return err
	}
	return s.top.SetChildRef(3, s.indexed.Root())
}

// AddColumn appends a new column descriptor. subSchema is NullRef unless
// t == TypeSubtable.
func (s *Schema) AddColumn(name string, t ColumnType, subSchema Ref) error {
	if err := s.names.AddString(name); err != nil {
		return err
	}
	if err := s.types.AddInt(int64(t)); err != nil {
		return err
	}
	if err := s.subs.AddRef(subSchema); err != nil {
		return err
	}
	if err := s.indexed.AddInt(0); err != nil {
		return err
	}
	return s.sync()
}

func (s *Schema) RemoveColumn(i int) error {
	if err := s.names.Delete(i); err != nil {
		return err
	}
	if err := s.types.Delete(i); err != nil {
		return err
	}
	if err := s.subs.Delete(i); err != nil {
		return err
	}
	if err := s.indexed.Delete(i); err != nil {
		return err
	}
	return s.sync()
}

func (s *Schema) ColumnName(i int) (string, error) { return s.names.GetString(i) }

func (s *Schema) ColumnType(i int) (ColumnType, error) {
	v, err := s.types.GetInt(i)
	return ColumnType(v), err
}

func (s *Schema) SetColumnType(i int, t ColumnType) error {
	if err := s.types.SetInt(i, int64(t)); err != nil {
		return err
	}
	return s.sync()
}

func (s *Schema) SubSchemaRef(i int) (Ref, error) { return s.subs.GetRef(i) }

func (s *Schema) IsIndexed(i int) (bool, error) {
	v, err := s.indexed.GetInt(i)
	return v != 0, err
}

func (s *Schema) SetIndexed(i int, v bool) error {
	b := int64(0)
	if v {
		b = 1
	}
	if err := s.indexed.SetInt(i, b); err != nil {
		return err
	}
	return s.sync()
}

// ColumnPath resolves a dotted column index path (one index per nesting
// level, walking into subtable schemas) to the dotted name path a caller
// would use to describe it (§2.3 supplement: Schema.ColumnPath).
func (s *Schema) ColumnPath(indices []int) ([]string, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	name, err := s.ColumnName(indices[0])
	if err != nil {
		return nil, err
	}
	if len(indices) == 1 {
		return []string{name}, nil
	}

	subRef, err := s.SubSchemaRef(indices[0])
	if err != nil {
		return nil, err
	}
	if subRef.IsNull() {
		return nil, errors.New("coredb: column path descends into a non-subtable column")
	}
	sub, err := OpenSchema(s.alloc, subRef)
	if err != nil {
		return nil, err
	}
	rest, err := sub.ColumnPath(indices[1:])
	if err != nil {
		return nil, err
	}
	return append([]string{name}, rest...), nil
}

func (s *Schema) Destroy() error {
	if err := s.names.Destroy(); err != nil {
		return err
	}
	if err := s.types.Destroy(); err != nil {
		return err
	}
	n, err := s.subs.Size()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ref, err := s.subs.GetRef(i)
		if err != nil {
			return err
		}
		if ref.IsNull() {
			continue
		}
		sub, err := OpenSchema(s.alloc, ref)
		if err != nil {
			return err
		}
		if err := sub.Destroy(); err != nil {
			return err
		}
	}
	if err := s.subs.Destroy(); err != nil {
		return err
	}
	if err := s.indexed.Destroy(); err != nil {
		return err
	}
	return s.top.FreeSelf()
}
