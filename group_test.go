package coredb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupAddAndGetTable(t *testing.T) {
	g, err := NewGroup()
	require.NoError(t, err)
	require.True(t, g.IsValid())

	table, err := g.AddTable("people")
	require.NoError(t, err)
	_, err = table.AddColumn("name", TypeString)
	require.NoError(t, err)
	_, err = table.AddRow()
	require.NoError(t, err)
	require.NoError(t, table.SetString(0, 0, "alice"))

	has, err := g.HasTable("people")
	require.NoError(t, err)
	require.True(t, has)

	got, err := g.GetTable("people")
	require.NoError(t, err)
	v, err := got.GetString(0, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", v)

	names, err := g.TableNames()
	require.NoError(t, err)
	require.Equal(t, []string{"people"}, names)
}

func TestGroupAddTableRejectsDuplicate(t *testing.T) {
	g, err := NewGroup()
	require.NoError(t, err)
	_, err = g.AddTable("t")
	require.NoError(t, err)
	_, err = g.AddTable("t")
	require.Error(t, err)
}

func TestGroupCommitToFileAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.coredb")

	g, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	table, err := g.AddTable("events")
	require.NoError(t, err)
	_, err = table.AddColumn("id", TypeInt)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := table.AddRow()
		require.NoError(t, err)
		require.NoError(t, table.SetInt(0, i, int64(i)))
	}
	require.NoError(t, g.Commit())
	require.NoError(t, g.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	reopened, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	reopenedTable, err := reopened.GetTable("events")
	require.NoError(t, err)
	rows, err := reopenedTable.RowCount()
	require.NoError(t, err)
	require.Equal(t, 5, rows)
	for i := 0; i < 5; i++ {
		v, err := reopenedTable.GetInt(0, i)
		require.NoError(t, err)
		require.Equal(t, int64(i), v)
	}
}

func TestGroupReopenedTableMutationSurvivesCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen-mutate.coredb")

	g, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	table, err := g.AddTable("events")
	require.NoError(t, err)
	_, err = table.AddColumn("id", TypeInt)
	require.NoError(t, err)
	_, err = table.AddRow()
	require.NoError(t, err)
	require.NoError(t, table.SetInt(0, 0, 1))
	require.NoError(t, g.Commit())
	require.NoError(t, g.Close())

	// Reopen from the file (the table's top array now lives in the
	// read-only mapped image) and mutate it through the handle returned
	// by GetTable — this is the path that must propagate the table's
	// copy-on-write relocation back into the group's tables column.
	reopened, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	reopenedTable, err := reopened.GetTable("events")
	require.NoError(t, err)
	require.NoError(t, reopenedTable.SetInt(0, 0, 42))
	_, err = reopenedTable.AddRow()
	require.NoError(t, err)
	require.NoError(t, reopenedTable.SetInt(0, 1, 43))
	require.NoError(t, reopened.Commit())
	require.NoError(t, reopened.Close())

	final, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	defer final.Close()
	finalTable, err := final.GetTable("events")
	require.NoError(t, err)
	rows, err := finalTable.RowCount()
	require.NoError(t, err)
	require.Equal(t, 2, rows)
	v0, err := finalTable.GetInt(0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(42), v0)
	v1, err := finalTable.GetInt(0, 1)
	require.NoError(t, err)
	require.Equal(t, int64(43), v1)
}

func TestGroupReopenedSubtableMutationSurvivesCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen-subtable.coredb")

	g, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	table, err := g.AddTable("people")
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
	require.NoError(t, g.Commit())
	require.NoError(t, g.Close())

	// Reopen from the file: the subtable's top array now lives in the
	// read-only mapped image, so mutating it through the handle returned
	// by GetSubtable must propagate the relocation back through the
	// parent table's subtable column.
	reopened, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	reopenedTable, err := reopened.GetTable("people")
	require.NoError(t, err)
	reopenedSub, err := reopenedTable.GetSubtable(col, 0)
	require.NoError(t, err)
	require.NoError(t, reopenedSub.SetString(0, 0, "Elm St"))
	require.NoError(t, reopened.Commit())
	require.NoError(t, reopened.Close())

	final, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	defer final.Close()
	finalTable, err := final.GetTable("people")
	require.NoError(t, err)
	finalSub, err := finalTable.GetSubtable(col, 0)
	require.NoError(t, err)
	v, err := finalSub.GetString(0, 0)
	require.NoError(t, err)
	require.Equal(t, "Elm St", v)
}

func TestGroupWriteToBufferProducesCompactCopy(t *testing.T) {
	g, err := NewGroup()
	require.NoError(t, err)
	table, err := g.AddTable("widgets")
	require.NoError(t, err)
	_, err = table.AddColumn("name", TypeString)
	require.NoError(t, err)
	for i, v := range []string{"a", "b", "c"} {
		_, err := table.AddRow()
		require.NoError(t, err)
		require.NoError(t, table.SetString(0, i, v))
	}

	buf, err := g.WriteToBuffer()
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	copyGroup, err := OpenGroupBuffer(buf)
	require.NoError(t, err)
	copyTable, err := copyGroup.GetTable("widgets")
	require.NoError(t, err)
	rows, err := copyTable.RowCount()
	require.NoError(t, err)
	require.Equal(t, 3, rows)
	for i, want := range []string{"a", "b", "c"} {
		got, err := copyTable.GetString(0, i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestGroupReadOnlyModeRejectsCommitAndAddTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.coredb")
	g, err := OpenGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	_, err = g.AddTable("t")
	require.NoError(t, err)
	require.NoError(t, g.Commit())
	require.NoError(t, g.Close())

	ro, err := OpenGroup(GroupOpts{Path: path, Mode: ModeReadOnly})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.AddTable("u")
	require.ErrorIs(t, err, errAlreadyOpenRO)
	err = ro.Commit()
	require.ErrorIs(t, err, errAlreadyOpenRO)
}
