package coredb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedGroupWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.coredb")

	sg, err := OpenSharedGroup(GroupOpts{Path: path})
	require.NoError(t, err)
	defer sg.Close()

	g, err := sg.BeginWrite()
	require.NoError(t, err)
	table, err := g.AddTable("accounts")
	require.NoError(t, err)
	_, err = table.AddColumn("balance", TypeInt)
	require.NoError(t, err)
	_, err = table.AddRow()
	require.NoError(t, err)
	require.NoError(t, table.SetInt(0, 0, 100))
	require.NoError(t, sg.EndWrite(true))

	rt, err := sg.BeginRead()
	require.NoError(t, err)
	defer rt.EndRead()

	names, err := rt.TableNames()
	require.NoError(t, err)
	require.Equal(t, []string{"accounts"}, names)

	rtable, err := rt.GetTable("accounts")
	require.NoError(t, err)
	v, err := rtable.GetInt(0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(100), v)
}

func TestSharedInfoReaderRingBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.lock")
	info, err := openSharedInfo(path)
	require.NoError(t, err)
	defer info.close()

	require.NoError(t, info.publish(8, 64, 1))

	v1, _, _, err := info.registerReader()
	require.NoError(t, err)
	require.Equal(t, uint64(1), v1)
	require.Equal(t, 1, info.ringCount())

	v2, _, _, err := info.registerReader()
	require.NoError(t, err)
	require.Equal(t, uint64(1), v2)
	require.Equal(t, 1, info.ringCount(), "a second reader at the same version should coalesce into one ring entry")

	require.NoError(t, info.publish(16, 128, 2))
	v3, _, _, err := info.registerReader()
	require.NoError(t, err)
	require.Equal(t, uint64(2), v3)
	require.Equal(t, 2, info.ringCount())

	require.Equal(t, uint64(1), info.readlockVersion())

	require.NoError(t, info.deregisterReader(1))
	require.NoError(t, info.deregisterReader(1))
	require.Equal(t, uint64(2), info.readlockVersion())
}
