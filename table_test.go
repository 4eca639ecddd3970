package coredb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableAddColumnAndRows(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)

	_, err = table.AddColumn("id", TypeInt)
	require.NoError(t, err)
	_, err = table.AddColumn("name", TypeString)
	require.NoError(t, err)

	row0, err := table.AddRow()
	require.NoError(t, err)
	require.Equal(t, 0, row0)
	row1, err := table.AddRow()
	require.NoError(t, err)
	require.Equal(t, 1, row1)

	require.NoError(t, table.SetInt(0, 0, 7))
	require.NoError(t, table.SetString(1, 0, "alice"))
	require.NoError(t, table.SetInt(0, 1, 9))
	require.NoError(t, table.SetString(1, 1, "bob"))

	v, err := table.GetInt(0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
	s, err := table.GetString(1, 1)
	require.NoError(t, err)
	require.Equal(t, "bob", s)

	rows, err := table.RowCount()
	require.NoError(t, err)
	require.Equal(t, 2, rows)
}

func TestTableAddColumnForbiddenOnNonEmptyTable(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	_, err = table.AddColumn("id", TypeInt)
	require.NoError(t, err)
	_, err = table.AddRow()
	require.NoError(t, err)

	_, err = table.AddColumn("name", TypeString)
	require.ErrorIs(t, err, errNonEmptyTable)
}

func TestTableRemoveRowAndColumn(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	_, err = table.AddColumn("id", TypeInt)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := table.AddRow()
		require.NoError(t, err)
		require.NoError(t, table.SetInt(0, i, int64(i*10)))
	}

	require.NoError(t, table.RemoveRow(1))
	rows, err := table.RowCount()
	require.NoError(t, err)
	require.Equal(t, 2, rows)

	v, err := table.GetInt(0, 1)
	require.NoError(t, err)
	require.Equal(t, int64(20), v)

	table2, err := NewTable(alloc)
	require.NoError(t, err)
	_, err = table2.AddColumn("id", TypeInt)
	require.NoError(t, err)
	_, err = table2.AddColumn("name", TypeString)
	require.NoError(t, err)
	require.NoError(t, table2.RemoveColumn(0))
	n, err := table2.schema.ColumnCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	name, err := table2.schema.ColumnName(0)
	require.NoError(t, err)
	require.Equal(t, "name", name)
}

func TestTableIndexFindFirst(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	col, err := table.AddColumn("id", TypeInt)
	require.NoError(t, err)

	for i, v := range []int64{30, 10, 20} {
		_, err := table.AddRow()
		require.NoError(t, err)
		require.NoError(t, table.SetInt(col, i, v))
	}

	require.NoError(t, table.SetIndex(col))
	row, err := table.FindFirstInt(col, 20)
	require.NoError(t, err)
	require.Equal(t, 2, row)

	require.NoError(t, table.SetInt(col, 2, 99))
	row, err = table.FindFirstInt(col, 20)
	require.NoError(t, err)
	require.Equal(t, -1, row)
	row, err = table.FindFirstInt(col, 99)
	require.NoError(t, err)
	require.Equal(t, 2, row)
}

func TestTableSubtableLazyMaterialization(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	col, err := table.AddColumn("address", TypeSubtable)
	require.NoError(t, err)
	_, err = table.AddRow()
	require.NoError(t, err)

	sub, err := table.GetSubtable(col, 0)
	require.NoError(t, err)
	_, err = sub.AddColumn("street", TypeString)
	require.NoError(t, err)
	_, err = sub.AddRow()
	require.NoError(t, err)
	require.NoError(t, sub.SetString(0, 0, "Main St"))

	again, err := table.GetSubtable(col, 0)
	require.NoError(t, err)
	v, err := again.GetString(0, 0)
	require.NoError(t, err)
	require.Equal(t, "Main St", v)
}

func TestTableOptimizeConvertsLowCardinalityStringColumn(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	col, err := table.AddColumn("color", TypeString)
	require.NoError(t, err)

	colors := []string{"red", "green", "red", "red", "green", "red", "red", "green"}
	for i, c := range colors {
		_, err := table.AddRow()
		require.NoError(t, err)
		require.NoError(t, table.SetString(col, i, c))
	}

	require.NoError(t, table.Optimize(context.Background()))

	typ, err := table.schema.ColumnType(col)
	require.NoError(t, err)
	require.Equal(t, TypeStringEnum, typ)
	require.Equal(t, TypeString, typ.ReportedType())

	for i, want := range colors {
		got, err := table.GetString(col, i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestTableStringPromotionSurvivesRoundTrip(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	col, err := table.AddColumn("bio", TypeString)
	require.NoError(t, err)
	_, err = table.AddRow()
	require.NoError(t, err)
	require.NoError(t, table.SetString(col, 0, "short"))

	long := make([]byte, 200)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	require.NoError(t, table.SetString(col, 0, string(long)))

	// A fresh Table handle over the same root must resolve the now-long
	// layout from the array itself, not from any in-memory flag on the
	// handle that wrote it.
	reopened, err := OpenTable(alloc, table.Ref())
	require.NoError(t, err)
	got, err := reopened.GetString(col, 0)
	require.NoError(t, err)
	require.Equal(t, string(long), got)

	require.NoError(t, reopened.SetString(col, 0, "back to short"))
	got, err = reopened.GetString(col, 0)
	require.NoError(t, err)
	require.Equal(t, "back to short", got)
}

func TestTableClear(t *testing.T) {
	alloc := newTestAlloc()
	table, err := NewTable(alloc)
	require.NoError(t, err)
	_, err = table.AddColumn("id", TypeInt)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := table.AddRow()
		require.NoError(t, err)
	}

	require.NoError(t, table.Clear())
	rows, err := table.RowCount()
	require.NoError(t, err)
	require.Equal(t, 0, rows)
}
