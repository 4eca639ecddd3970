package coredb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaAddAndRemoveColumn(t *testing.T) {
	alloc := newTestAlloc()
	s, err := NewSchema(alloc)
	require.NoError(t, err)

	require.NoError(t, s.AddColumn("id", TypeInt, NullRef))
	require.NoError(t, s.AddColumn("name", TypeString, NullRef))

	n, err := s.ColumnCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	name, err := s.ColumnName(1)
	require.NoError(t, err)
	require.Equal(t, "name", name)

	typ, err := s.ColumnType(0)
	require.NoError(t, err)
	require.Equal(t, TypeInt, typ)

	require.NoError(t, s.RemoveColumn(0))
	n, err = s.ColumnCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	name, err = s.ColumnName(0)
	require.NoError(t, err)
	require.Equal(t, "name", name)
}

func TestSchemaReportedTypeCollapsesEnum(t *testing.T) {
	require.Equal(t, TypeString, TypeStringEnum.ReportedType())
	require.Equal(t, TypeInt, TypeInt.ReportedType())
}

func TestSchemaIndexedFlag(t *testing.T) {
	alloc := newTestAlloc()
	s, err := NewSchema(alloc)
	require.NoError(t, err)
	require.NoError(t, s.AddColumn("age", TypeInt, NullRef))

	indexed, err := s.IsIndexed(0)
	require.NoError(t, err)
	require.False(t, indexed)

	require.NoError(t, s.SetIndexed(0, true))
	indexed, err = s.IsIndexed(0)
	require.NoError(t, err)
	require.True(t, indexed)
}

func TestSchemaColumnPathThroughSubtable(t *testing.T) {
	alloc := newTestAlloc()
	inner, err := NewSchema(alloc)
	require.NoError(t, err)
	require.NoError(t, inner.AddColumn("street", TypeString, NullRef))

	outer, err := NewSchema(alloc)
	require.NoError(t, err)
	require.NoError(t, outer.AddColumn("name", TypeString, NullRef))
	require.NoError(t, outer.AddColumn("address", TypeSubtable, inner.Root()))

	path, err := outer.ColumnPath([]int{1, 0})
	require.NoError(t, err)
	require.Equal(t, []string{"address", "street"}, path)

	_, err = outer.ColumnPath([]int{0, 0})
	require.Error(t, err)
}
