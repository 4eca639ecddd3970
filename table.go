package coredb

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// wrapperSlots is the fixed width of the indirection array Table.columns
// holds one ref to per logical column. Slot 0 is always the column's
// primary root (or, for enum columns, the values root); slot 1 holds the
// enum keys root when applicable; slot 2 holds a thin index wrapper ref
// ([valuesRoot, rowsRoot]) when the column is indexed. Unused slots carry
// NullRef. This trades the reference implementation's variable-width,
// directly-flattened column-entry scheme for a uniform one-ref-per-column
// Table.columns array plus one level of indirection — see DESIGN.md.
const wrapperSlots = 3

var (
	errColumnOutOfRange = errors.New("coredb: column index out of range")
	errWrongColumnType  = errors.New("coredb: operation does not match column type")
	errNonEmptyTable    = errors.New("coredb: add_column requires an empty table")
)

// Table is a column store over a fixed schema (spec.md §3.1, §4.3): a
// two-child Array holding the schema and the per-column root refs.
type Table struct {
	alloc  *SlabAlloc
	top    *Array // hasRefs, size 2: [schemaRef, columnsRef]
	schema *Schema
}

// NewTable creates an empty table with no columns.
func NewTable(alloc *SlabAlloc) (*Table, error) {
	top, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	schema, err := NewSchema(alloc)
	if err != nil {
		return nil, err
	}
	columns, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	if err := top.Add(int64(schema.Root())); err != nil {
		return nil, err
	}
	if err := top.Add(int64(columns.Ref())); err != nil {
		return nil, err
	}
	return &Table{alloc: alloc, top: top, schema: schema}, nil
}

// OpenTable wraps an existing table's top array ref.
func OpenTable(alloc *SlabAlloc, ref Ref) (*Table, error) {
	top, err := OpenArray(alloc, ref)
	if err != nil {
		return nil, err
	}
	if top.Size() != 2 {
		return nil, errors.New("coredb: malformed table array")
	}
	schema, err := OpenSchema(alloc, top.GetChildRef(0))
	if err != nil {
		return nil, err
	}
	return &Table{alloc: alloc, top: top, schema: schema}, nil
}

func (t *Table) Ref() Ref      { return t.top.Ref() }
func (t *Table) Schema() *Schema { return t.schema }

func (t *Table) openColumnsArray() (*Array, error) { return OpenArray(t.alloc, t.top.GetChildRef(1)) }

func (t *Table) openWrapper(col int) (*Array, *Array, error) {
	n, err := t.schema.ColumnCount()
	if err != nil {
		return nil, nil, err
	}
	if col < 0 || col >= n {
		return nil, nil, errColumnOutOfRange
	}
	cols, err := t.openColumnsArray()
	if err != nil {
		return nil, nil, err
	}
	wrapper, err := OpenArray(t.alloc, cols.GetChildRef(col))
	if err != nil {
		return nil, nil, err
	}
	return cols, wrapper, nil
}

func (t *Table) writeBackWrapper(cols, wrapper *Array, col int) error {
	if err := cols.SetChildRef(col, wrapper.Ref()); err != nil {
		return err
	}
	return t.top.SetChildRef(1, cols.Ref())
}

func (t *Table) syncSchema() error { return t.top.SetChildRef(0, t.schema.Root()) }

// RowCount returns the table's row count, read off column 0 (every column
// is kept row-count-synchronized by construction).
func (t *Table) RowCount() (int, error) {
	n, err := t.schema.ColumnCount()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return t.columnSize(0)
}

func (t *Table) columnSize(col int) (int, error) {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return 0, err
	}
	_, wrapper, err := t.openWrapper(col)
	if err != nil {
		return 0, err
	}
	switch typ {
	case TypeStringEnum:
		return OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).Size()
	case TypeInt, TypeBool, TypeDate:
		return OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).Size()
	case TypeString:
		return OpenStringColumn(t.alloc, wrapper.GetChildRef(0)).Size()
	case TypeBinary:
		return OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0)).Size()
	case TypeSubtable:
		return OpenSubtableColumn(t.alloc, wrapper.GetChildRef(0)).Size()
	case TypeMixed:
		mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
		if err != nil {
			return 0, err
		}
		return mc.Size()
	default:
		return 0, errWrongColumnType
	}
}

// AddColumn appends a new column to the schema and allocates its backing
// store. Forbidden once the table already holds rows (spec.md §4.3:
// "add_column is forbidden on a non-empty table").
func (t *Table) AddColumn(name string, typ ColumnType) (int, error) {
	rows, err := t.RowCount()
	if err != nil {
		return 0, err
	}
	if rows > 0 {
		return 0, errNonEmptyTable
	}

	subSchemaRef := NullRef
	if typ == TypeSubtable {
		sub, err := NewSchema(t.alloc)
		if err != nil {
			return 0, err
		}
		subSchemaRef = sub.Root()
	}

	wrapper, err := NewArray(t.alloc, false, true, widthTypeBits)
	if err != nil {
		return 0, err
	}
	for i := 0; i < wrapperSlots; i++ {
		if err := wrapper.Add(int64(NullRef)); err != nil {
			return 0, err
		}
	}

	var primary, secondary Ref
	switch typ {
	case TypeInt, TypeBool, TypeDate:
		c, err := NewIntColumn(t.alloc)
		if err != nil {
			return 0, err
		}
		primary = c.Root()
	case TypeString:
		c, err := NewStringColumn(t.alloc)
		if err != nil {
			return 0, err
		}
		primary = c.Root()
	case TypeBinary:
		c, err := NewBinaryColumn(t.alloc)
		if err != nil {
			return 0, err
		}
		primary = c.Root()
	case TypeSubtable:
		c, err := NewSubtableColumn(t.alloc)
		if err != nil {
			return 0, err
		}
		primary = c.Root()
	case TypeMixed:
		c, err := NewMixedColumn(t.alloc)
		if err != nil {
			return 0, err
		}
		primary = c.Root()
	default:
		return 0, fmt.Errorf("coredb: cannot add a raw enum column directly")
	}

	if err := wrapper.SetChildRef(0, primary); err != nil {
		return 0, err
	}
	if err := wrapper.SetChildRef(1, secondary); err != nil {
		return 0, err
	}

	cols, err := t.openColumnsArray()
	if err != nil {
		return 0, err
	}
	if err := cols.Add(int64(wrapper.Ref())); err != nil {
		return 0, err
	}
	if err := t.top.SetChildRef(1, cols.Ref()); err != nil {
		return 0, err
	}

	if err := t.schema.AddColumn(name, typ, subSchemaRef); err != nil {
		return 0, err
	}
	if err := t.syncSchema(); err != nil {
		return 0, err
	}

	n, err := t.schema.ColumnCount()
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// RemoveColumn drops a column's schema entry and storage. Any index on it
// is dropped along with the column.
func (t *Table) RemoveColumn(col int) error {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}

	switch typ {
	case TypeStringEnum:
		if err := OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
			return err
		}
		if err := OpenStringColumn(t.alloc, wrapper.GetChildRef(1)).Destroy(); err != nil {
			return err
		}
	case TypeInt, TypeBool, TypeDate:
		if err := OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
			return err
		}
	case TypeString:
		if err := OpenStringColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
			return err
		}
	case TypeBinary:
		if err := OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
			return err
		}
	case TypeSubtable:
		sc := OpenSubtableColumn(t.alloc, wrapper.GetChildRef(0))
		n, err := sc.Size()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			ref, err := sc.GetRef(i)
			if err != nil {
				return err
			}
			if ref.IsNull() {
				continue
			}
			sub, err := OpenTable(t.alloc, ref)
			if err != nil {
				return err
			}
			if err := sub.Destroy(); err != nil {
				return err
			}
		}
		if err := sc.Destroy(); err != nil {
			return err
		}
	case TypeMixed:
		mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
		if err != nil {
			return err
		}
		if err := mc.Destroy(); err != nil {
			return err
		}
	}

	if idxRef := wrapper.GetChildRef(2); !idxRef.IsNull() {
		ixWrap, err := OpenArray(t.alloc, idxRef)
		if err != nil {
			return err
		}
		ix := OpenIndex(t.alloc, ixWrap.GetChildRef(0), ixWrap.GetChildRef(1))
		if err := ix.Destroy(); err != nil {
			return err
		}
		if err := ixWrap.FreeSelf(); err != nil {
			return err
		}
	}

	if err := wrapper.FreeSelf(); err != nil {
		return err
	}
	if err := cols.Erase(col); err != nil {
		return err
	}
	if err := t.top.SetChildRef(1, cols.Ref()); err != nil {
		return err
	}

	if err := t.schema.RemoveColumn(col); err != nil {
		return err
	}
	return t.syncSchema()
}

func (t *Table) requireType(col int, want ColumnType) error {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return err
	}
	if typ != want {
		return errWrongColumnType
	}
	return nil
}

// --- int/bool/date -----------------------------------------------------

func (t *Table) GetInt(col, row int) (int64, error) {
	_, wrapper, err := t.openWrapper(col)
	if err != nil {
		return 0, err
	}
	return OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).GetInt(row)
}

func (t *Table) SetInt(col, row int, v int64) error {
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}
	c := OpenIntColumn(t.alloc, wrapper.GetChildRef(0))
	old, err := c.GetInt(row)
	if err != nil {
		return err
	}
	if err := c.SetInt(row, v); err != nil {
		return err
	}
	if err := wrapper.SetChildRef(0, c.Root()); err != nil {
		return err
	}
	if err := t.mirrorIndexUpdate(col, wrapper, row, old, v); err != nil {
		return err
	}
	return t.writeBackWrapper(cols, wrapper, col)
}

// --- string --------------------------------------------------------------

func (t *Table) GetString(col, row int) (string, error) {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return "", err
	}
	_, wrapper, err := t.openWrapper(col)
	if err != nil {
		return "", err
	}
	if typ == TypeStringEnum {
		e := OpenEnumColumn(t.alloc, wrapper.GetChildRef(1), wrapper.GetChildRef(0))
		return e.GetString(row)
	}
	return OpenStringColumn(t.alloc, wrapper.GetChildRef(0)).GetString(row)
}

func (t *Table) SetString(col, row int, v string) error {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}
	if typ == TypeStringEnum {
		e := OpenEnumColumn(t.alloc, wrapper.GetChildRef(1), wrapper.GetChildRef(0))
		if err := e.Set(row, v); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, e.ValuesRoot()); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(1, e.KeysRoot()); err != nil {
			return err
		}
		return t.writeBackWrapper(cols, wrapper, col)
	}

	sc := OpenStringColumn(t.alloc, wrapper.GetChildRef(0))
	if err := sc.SetString(row, v); err != nil {
		return err
	}
	if err := wrapper.SetChildRef(0, sc.Root()); err != nil {
		return err
	}
	return t.writeBackWrapper(cols, wrapper, col)
}

// --- binary ----------------------------------------------------------------

func (t *Table) GetBinary(col, row int) ([]byte, error) {
	if err := t.requireType(col, TypeBinary); err != nil {
		return nil, err
	}
	_, wrapper, err := t.openWrapper(col)
	if err != nil {
		return nil, err
	}
	return OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0)).GetBinary(row)
}

func (t *Table) SetBinary(col, row int, v []byte) error {
	if err := t.requireType(col, TypeBinary); err != nil {
		return err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}
	bc := OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0))
	if err := bc.SetBinary(row, v); err != nil {
		return err
	}
	if err := wrapper.SetChildRef(0, bc.Root()); err != nil {
		return err
	}
	return t.writeBackWrapper(cols, wrapper, col)
}

// --- mixed -----------------------------------------------------------------

func (t *Table) GetMixed(col, row int) (Mixed, error) {
	if err := t.requireType(col, TypeMixed); err != nil {
		return Mixed{}, err
	}
	_, wrapper, err := t.openWrapper(col)
	if err != nil {
		return Mixed{}, err
	}
	mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
	if err != nil {
		return Mixed{}, err
	}
	return mc.Get(row)
}

func (t *Table) SetMixed(col, row int, v Mixed) error {
	if err := t.requireType(col, TypeMixed); err != nil {
		return err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}
	mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
	if err != nil {
		return err
	}
	if err := mc.Set(row, v); err != nil {
		return err
	}
	if err := wrapper.SetChildRef(0, mc.Root()); err != nil {
		return err
	}
	return t.writeBackWrapper(cols, wrapper, col)
}

// --- subtable --------------------------------------------------------------

// GetSubtable returns the Table for row's subtable cell, lazily
// materializing an empty one on first access (spec.md §4.3's
// "get_subtable" — subtables are allocated on demand, not eagerly per row).
func (t *Table) GetSubtable(col, row int) (*Table, error) {
	if err := t.requireType(col, TypeSubtable); err != nil {
		return nil, err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return nil, err
	}
	sc := OpenSubtableColumn(t.alloc, wrapper.GetChildRef(0))
	ref, err := sc.GetRef(row)
	if err != nil {
		return nil, err
	}
	if !ref.IsNull() {
		sub, err := OpenTable(t.alloc, ref)
		if err != nil {
			return nil, err
		}
		sub.top.SetParent(&subtableParent{parent: t, col: col, row: row}, 0)
		return sub, nil
	}

	subSchemaRef, err := t.schema.SubSchemaRef(col)
	if err != nil {
		return nil, err
	}
	sub := &Table{alloc: t.alloc}
	subTop, err := NewArray(t.alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	subSchema, err := OpenSchema(t.alloc, subSchemaRef)
	if err != nil {
		return nil, err
	}
	subColumns, err := NewArray(t.alloc, false, true, widthTypeBits)
	if err != nil {
		return nil, err
	}
	if err := subTop.Add(int64(subSchema.Root())); err != nil {
		return nil, err
	}
	if err := subTop.Add(int64(subColumns.Ref())); err != nil {
		return nil, err
	}
	sub.top = subTop
	sub.schema = subSchema

	if err := sc.SetRef(row, sub.Ref()); err != nil {
		return nil, err
	}
	if err := wrapper.SetChildRef(0, sc.Root()); err != nil {
		return nil, err
	}
	if err := t.writeBackWrapper(cols, wrapper, col); err != nil {
		return nil, err
	}
	sub.top.SetParent(&subtableParent{parent: t, col: col, row: row}, 0)
	return sub, nil
}

// subtableParent re-links a Table opened via Table.GetSubtable back to the
// subtable-column slot that holds its top-ref, so that a copy-on-write
// relocation of that table's top array (array.go's updateParent) is
// propagated up through this table and, transitively, to whatever holds
// this table's own ref (spec.md §2/§9: "propagate new refs up ... ending
// at the Group's top array").
type subtableParent struct {
	parent *Table
	col    int
	row    int
}

func (p *subtableParent) UpdateChildRef(_ int, ref Ref) error {
	cols, wrapper, err := p.parent.openWrapper(p.col)
	if err != nil {
		return err
	}
	sc := OpenSubtableColumn(p.parent.alloc, wrapper.GetChildRef(0))
	if err := sc.SetRef(p.row, ref); err != nil {
		return err
	}
	if err := wrapper.SetChildRef(0, sc.Root()); err != nil {
		return err
	}
	return p.parent.writeBackWrapper(cols, wrapper, p.col)
}

// --- indexes -----------------------------------------------------------

// SetIndex builds and attaches a secondary Index over an int/bool/date
// column (spec.md §4.3's "Indexes").
func (t *Table) SetIndex(col int) error {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return err
	}
	if typ != TypeInt && typ != TypeBool && typ != TypeDate {
		return errWrongColumnType
	}

	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}
	if !wrapper.GetChildRef(2).IsNull() {
		return nil // already indexed
	}

	c := OpenIntColumn(t.alloc, wrapper.GetChildRef(0))
	size, err := c.Size()
	if err != nil {
		return err
	}
	ix, err := NewIndex(t.alloc)
	if err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		v, err := c.GetInt(i)
		if err != nil {
			return err
		}
		if err := ix.Insert(i, v); err != nil {
			return err
		}
	}

	ixWrap, err := NewArray(t.alloc, false, true, widthTypeBits)
	if err != nil {
		return err
	}
	if err := ixWrap.Add(int64(ix.ValuesRoot())); err != nil {
		return err
	}
	if err := ixWrap.Add(int64(ix.RowsRoot())); err != nil {
		return err
	}
	if err := wrapper.SetChildRef(2, ixWrap.Ref()); err != nil {
		return err
	}
	if err := t.writeBackWrapper(cols, wrapper, col); err != nil {
		return err
	}
	return t.schema.SetIndexed(col, true)
}

func (t *Table) mirrorIndexUpdate(col int, wrapper *Array, row int, oldV, newV int64) error {
	idxRef := wrapper.GetChildRef(2)
	if idxRef.IsNull() || oldV == newV {
		return nil
	}
	ixWrap, err := OpenArray(t.alloc, idxRef)
	if err != nil {
		return err
	}
	ix := OpenIndex(t.alloc, ixWrap.GetChildRef(0), ixWrap.GetChildRef(1))
	if err := ix.Delete(row, oldV); err != nil {
		return err
	}
	if err := ix.Insert(row, newV); err != nil {
		return err
	}
	if err := ixWrap.SetChildRef(0, ix.ValuesRoot()); err != nil {
		return err
	}
	return ixWrap.SetChildRef(1, ix.RowsRoot())
}

// FindFirstInt searches an indexed int/bool/date column via its Index if
// present, falling back to a linear scan otherwise.
func (t *Table) FindFirstInt(col int, v int64) (int, error) {
	_, wrapper, err := t.openWrapper(col)
	if err != nil {
		return -1, err
	}
	if idxRef := wrapper.GetChildRef(2); !idxRef.IsNull() {
		ixWrap, err := OpenArray(t.alloc, idxRef)
		if err != nil {
			return -1, err
		}
		ix := OpenIndex(t.alloc, ixWrap.GetChildRef(0), ixWrap.GetChildRef(1))
		return ix.FindFirst(v)
	}
	return OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).FindFirst(v, 0)
}

// --- row operations ------------------------------------------------------

// AddRow appends a new, zero-valued row to every column.
func (t *Table) AddRow() (int, error) {
	rows, err := t.RowCount()
	if err != nil {
		return 0, err
	}
	return rows, t.InsertRow(rows)
}

// InsertRow splices a new zero-valued row at rowIndex across every column
// (spec.md §2.3 supplement: Table.InsertRow).
func (t *Table) InsertRow(rowIndex int) error {
	n, err := t.schema.ColumnCount()
	if err != nil {
		return err
	}
	for col := 0; col < n; col++ {
		if err := t.insertRowInColumn(col, rowIndex); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) insertRowInColumn(col, row int) error {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}

	switch typ {
	case TypeInt, TypeBool, TypeDate:
		c := OpenIntColumn(t.alloc, wrapper.GetChildRef(0))
		if err := c.InsertInt(row, 0); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
		if err := t.mirrorIndexInsert(wrapper, row, 0); err != nil {
			return err
		}
	case TypeString:
		c := OpenStringColumn(t.alloc, wrapper.GetChildRef(0))
		if err := c.InsertString(row, ""); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
	case TypeStringEnum:
		e := OpenEnumColumn(t.alloc, wrapper.GetChildRef(1), wrapper.GetChildRef(0))
		if err := e.Insert(row, ""); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, e.ValuesRoot()); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(1, e.KeysRoot()); err != nil {
			return err
		}
	case TypeBinary:
		c := OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0))
		if err := c.InsertBinary(row, nil); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
	case TypeSubtable:
		c := OpenSubtableColumn(t.alloc, wrapper.GetChildRef(0))
		if err := c.InsertRef(row, NullRef); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
	case TypeMixed:
		mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
		if err != nil {
			return err
		}
		if err := mc.Insert(row, NewMixedInt(0)); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, mc.Root()); err != nil {
			return err
		}
	default:
		return errWrongColumnType
	}

	return t.writeBackWrapper(cols, wrapper, col)
}

func (t *Table) mirrorIndexInsert(wrapper *Array, row int, v int64) error {
	idxRef := wrapper.GetChildRef(2)
	if idxRef.IsNull() {
		return nil
	}
	ixWrap, err := OpenArray(t.alloc, idxRef)
	if err != nil {
		return err
	}
	ix := OpenIndex(t.alloc, ixWrap.GetChildRef(0), ixWrap.GetChildRef(1))
	if err := ix.Insert(row, v); err != nil {
		return err
	}
	if err := ixWrap.SetChildRef(0, ix.ValuesRoot()); err != nil {
		return err
	}
	return ixWrap.SetChildRef(1, ix.RowsRoot())
}

// RemoveRow deletes rowIndex from every column, destroying any subtable it
// owned and mirroring the deletion into any attached Index.
func (t *Table) RemoveRow(rowIndex int) error {
	n, err := t.schema.ColumnCount()
	if err != nil {
		return err
	}
	for col := 0; col < n; col++ {
		if err := t.removeRowInColumn(col, rowIndex); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) removeRowInColumn(col, row int) error {
	typ, err := t.schema.ColumnType(col)
	if err != nil {
		return err
	}
	cols, wrapper, err := t.openWrapper(col)
	if err != nil {
		return err
	}

	switch typ {
	case TypeInt, TypeBool, TypeDate:
		c := OpenIntColumn(t.alloc, wrapper.GetChildRef(0))
		old, err := c.GetInt(row)
		if err != nil {
			return err
		}
		if err := c.Delete(row); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
		if idxRef := wrapper.GetChildRef(2); !idxRef.IsNull() {
			ixWrap, err := OpenArray(t.alloc, idxRef)
			if err != nil {
				return err
			}
			ix := OpenIndex(t.alloc, ixWrap.GetChildRef(0), ixWrap.GetChildRef(1))
			if err := ix.Delete(row, old); err != nil {
				return err
			}
			if err := ixWrap.SetChildRef(0, ix.ValuesRoot()); err != nil {
				return err
			}
			if err := ixWrap.SetChildRef(1, ix.RowsRoot()); err != nil {
				return err
			}
		}
	case TypeString:
		c := OpenStringColumn(t.alloc, wrapper.GetChildRef(0))
		if err := c.Delete(row); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
	case TypeStringEnum:
		e := OpenEnumColumn(t.alloc, wrapper.GetChildRef(1), wrapper.GetChildRef(0))
		if err := e.Delete(row); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, e.ValuesRoot()); err != nil {
			return err
		}
	case TypeBinary:
		c := OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0))
		if err := c.Delete(row); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
	case TypeSubtable:
		c := OpenSubtableColumn(t.alloc, wrapper.GetChildRef(0))
		ref, err := c.GetRef(row)
		if err != nil {
			return err
		}
		if !ref.IsNull() {
			sub, err := OpenTable(t.alloc, ref)
			if err != nil {
				return err
			}
			if err := sub.Destroy(); err != nil {
				return err
			}
		}
		if err := c.Delete(row); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, c.Root()); err != nil {
			return err
		}
	case TypeMixed:
		mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
		if err != nil {
			return err
		}
		if err := mc.Delete(row); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, mc.Root()); err != nil {
			return err
		}
	default:
		return errWrongColumnType
	}

	return t.writeBackWrapper(cols, wrapper, col)
}

// Optimize scans every plain string column and converts it to the enum
// layout when its distinct-value count is low enough to pay off (spec.md
// §4.4: "Optimize ... distinct-count * 2 < row-count"). Columns are
// scanned concurrently via errgroup, matching the teacher's pattern for
// fanning out independent per-shard work.
func (t *Table) Optimize(ctx context.Context) error {
	n, err := t.schema.ColumnCount()
	if err != nil {
		return err
	}

	type candidate struct {
		col    int
		values []string
	}
	candidates := make([]*candidate, n)

	g, _ := errgroup.WithContext(ctx)
	for col := 0; col < n; col++ {
		col := col
		typ, err := t.schema.ColumnType(col)
		if err != nil {
			return err
		}
		if typ != TypeString {
			continue
		}
		g.Go(func() error {
			_, wrapper, err := t.openWrapper(col)
			if err != nil {
				return err
			}
			sc := OpenStringColumn(t.alloc, wrapper.GetChildRef(0))
			size, err := sc.Size()
			if err != nil {
				return err
			}
			distinct := map[string]struct{}{}
			values := make([]string, size)
			for i := 0; i < size; i++ {
				v, err := sc.GetString(i)
				if err != nil {
					return err
				}
				values[i] = v
				distinct[v] = struct{}{}
			}
			if len(distinct)*2 < size {
				candidates[col] = &candidate{col: col, values: values}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		cols, wrapper, err := t.openWrapper(cand.col)
		if err != nil {
			return err
		}
		oldRoot := wrapper.GetChildRef(0)

		enum, err := NewEnumColumnFromStrings(t.alloc, cand.values)
		if err != nil {
			return err
		}
		if err := OpenStringColumn(t.alloc, oldRoot).Destroy(); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(0, enum.ValuesRoot()); err != nil {
			return err
		}
		if err := wrapper.SetChildRef(1, enum.KeysRoot()); err != nil {
			return err
		}
		if err := t.writeBackWrapper(cols, wrapper, cand.col); err != nil {
			return err
		}
		if err := t.schema.SetColumnType(cand.col, TypeStringEnum); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every row from the table.
func (t *Table) Clear() error {
	rows, err := t.RowCount()
	if err != nil {
		return err
	}
	for i := rows - 1; i >= 0; i-- {
		if err := t.RemoveRow(i); err != nil {
			return err
		}
	}
	return nil
}

// Destroy frees the table's schema, columns, and (recursively) any
// subtables it owns.
func (t *Table) Destroy() error {
	n, err := t.schema.ColumnCount()
	if err != nil {
		return err
	}
	cols, err := t.openColumnsArray()
	if err != nil {
		return err
	}
	for col := 0; col < n; col++ {
		wrapper, err := OpenArray(t.alloc, cols.GetChildRef(col))
		if err != nil {
			return err
		}
		typ, err := t.schema.ColumnType(col)
		if err != nil {
			return err
		}
		switch typ {
		case TypeInt, TypeBool, TypeDate:
			if err := OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
				return err
			}
		case TypeString:
			if err := OpenStringColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
				return err
			}
		case TypeStringEnum:
			if err := OpenIntColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
				return err
			}
			if err := OpenStringColumn(t.alloc, wrapper.GetChildRef(1)).Destroy(); err != nil {
				return err
			}
		case TypeBinary:
			if err := OpenBinaryColumn(t.alloc, wrapper.GetChildRef(0)).Destroy(); err != nil {
				return err
			}
		case TypeSubtable:
			sc := OpenSubtableColumn(t.alloc, wrapper.GetChildRef(0))
			size, err := sc.Size()
			if err != nil {
				return err
			}
			for i := 0; i < size; i++ {
				ref, err := sc.GetRef(i)
				if err != nil {
					return err
				}
				if ref.IsNull() {
					continue
				}
				sub, err := OpenTable(t.alloc, ref)
				if err != nil {
					return err
				}
				if err := sub.Destroy(); err != nil {
					return err
				}
			}
			if err := sc.Destroy(); err != nil {
				return err
			}
		case TypeMixed:
			mc, err := OpenMixedColumn(t.alloc, wrapper.GetChildRef(0))
			if err != nil {
				return err
			}
			if err := mc.Destroy(); err != nil {
				return err
			}
		}
		if idxRef := wrapper.GetChildRef(2); !idxRef.IsNull() {
			ixWrap, err := OpenArray(t.alloc, idxRef)
			if err != nil {
				return err
			}
			ix := OpenIndex(t.alloc, ixWrap.GetChildRef(0), ixWrap.GetChildRef(1))
			if err := ix.Destroy(); err != nil {
				return err
			}
			if err := ixWrap.FreeSelf(); err != nil {
				return err
			}
		}
		if err := wrapper.FreeSelf(); err != nil {
			return err
		}
	}
	if err := cols.FreeSelf(); err != nil {
		return err
	}
	if err := t.schema.Destroy(); err != nil {
		return err
	}
	return t.top.FreeSelf()
}
