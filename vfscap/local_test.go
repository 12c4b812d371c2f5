package vfscap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_CreateWriteReadStat(t *testing.T) {
	dir := t.TempDir()
	fsys := NewLocal(dir)
	ctx := context.Background()

	f, err := fsys.Create(ctx, "a.txt", 0o644)
	require.NoError(t, err)
	n, err := f.Write(ctx, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, f.Close())

	st, err := fsys.Stat(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size)
	assert.Equal(t, KindFile, st.Kind)

	buf := make([]byte, 5)
	rf, err := fsys.Open(ctx, "a.txt")
	require.NoError(t, err)
	defer rf.Close()
	n, err = rf.Read(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestLocal_MkdirOpenDirRmdir(t *testing.T) {
	dir := t.TempDir()
	fsys := NewLocal(dir)
	ctx := context.Background()

	require.NoError(t, fsys.Mkdir(ctx, "sub"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "x.txt"), []byte("x"), 0o644))

	d, err := fsys.OpenDir(ctx, "sub")
	require.NoError(t, err)
	defer d.Close()
	name, ok, err := d.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x.txt", name)
	_, ok, err = d.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_SymlinkReadlink(t *testing.T) {
	dir := t.TempDir()
	fsys := NewLocal(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("t"), 0o644))
	require.NoError(t, fsys.Symlink(ctx, "target.txt", "link.txt"))

	target, err := fsys.Readlink(ctx, "link.txt")
	require.NoError(t, err)
	assert.Equal(t, "target.txt", target)

	st, err := fsys.Stat(ctx, "link.txt")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, st.Kind)
}

func TestLocal_RenameUnlink(t *testing.T) {
	dir := t.TempDir()
	fsys := NewLocal(dir)
	ctx := context.Background()

	_, err := fsys.Create(ctx, "a.txt", 0o644)
	require.NoError(t, err)
	require.NoError(t, fsys.Rename(ctx, "a.txt", "b.txt"))
	_, err = fsys.Stat(ctx, "b.txt")
	require.NoError(t, err)

	require.NoError(t, fsys.Unlink(ctx, "b.txt"))
	_, err = fsys.Stat(ctx, "b.txt")
	assert.Error(t, err)
}
