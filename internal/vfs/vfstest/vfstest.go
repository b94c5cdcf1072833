// Package vfstest provides shared conformance tests for vfs.FS
// implementations. Call RunAll from a test function with an empty
// filesystem to verify it satisfies the full behavioral contract.
package vfstest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// RunAll runs the complete filesystem conformance suite as subtests.
func RunAll(t *testing.T, fsys vfs.FS) {
	t.Helper()

	t.Run("WriteRead", func(t *testing.T) { TestWriteRead(t, fsys) })
	t.Run("OpenMissing", func(t *testing.T) { TestOpenMissing(t, fsys) })
	t.Run("Overwrite", func(t *testing.T) { TestOverwrite(t, fsys) })
	t.Run("Walk", func(t *testing.T) { TestWalk(t, fsys) })
	t.Run("ListDir", func(t *testing.T) { TestListDir(t, fsys) })
	t.Run("Exists", func(t *testing.T) { TestExists(t, fsys) })
	t.Run("Stat", func(t *testing.T) { TestStat(t, fsys) })
	t.Run("Remove", func(t *testing.T) { TestRemove(t, fsys) })
	t.Run("RemoveAll", func(t *testing.T) { TestRemoveAll(t, fsys) })
	t.Run("Sub", func(t *testing.T) { TestSub(t, fsys) })
	t.Run("Move", func(t *testing.T) { TestMove(t, fsys) })
}

// TestWriteRead verifies content written through Create is readable.
func TestWriteRead(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "wr/a/b.txt", []byte("hello")))
	data, err := vfs.ReadFile(ctx, fsys, "wr/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Leading slash is ignored
	data, err = vfs.ReadFile(ctx, fsys, "/wr/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

// TestOpenMissing verifies missing files report ErrNotExist.
func TestOpenMissing(t *testing.T, fsys vfs.FS) {
	_, err := fsys.Open(context.Background(), "missing/nothing.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, vfs.ErrNotExist))
}

// TestOverwrite verifies Create truncates existing content.
func TestOverwrite(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "ow/f.txt", []byte("a longer value")))
	require.NoError(t, vfs.WriteBytes(ctx, fsys, "ow/f.txt", []byte("short")))
	data, err := vfs.ReadFile(ctx, fsys, "ow/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

// TestWalk verifies recursive listing is sorted and root-relative.
func TestWalk(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	for _, p := range []string{"walk/z.txt", "walk/a/1.txt", "walk/a/b/2.txt"} {
		require.NoError(t, vfs.WriteBytes(ctx, fsys, p, []byte(p)))
	}
	files, err := fsys.Walk(ctx, "walk")
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"walk/a/1.txt", "walk/a/b/2.txt", "walk/z.txt"}, paths)
	assert.Equal(t, int64(len("walk/z.txt")), files[2].Size)

	files, err = fsys.Walk(ctx, "walk-missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

// TestListDir verifies immediate children of a directory.
func TestListDir(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	for _, p := range []string{"ls/b.txt", "ls/a/1.txt", "ls/a/2.txt", "ls/c/d/3.txt"} {
		require.NoError(t, vfs.WriteBytes(ctx, fsys, p, []byte("x")))
	}
	names, err := fsys.ListDir(ctx, "ls")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.txt", "c"}, names)

	_, err = fsys.ListDir(ctx, "ls-missing")
	assert.True(t, errors.Is(err, vfs.ErrNotExist))
}

// TestExists verifies files and implied directories exist.
func TestExists(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "ex/dir/f.txt", []byte("x")))
	for _, p := range []string{"ex/dir/f.txt", "ex/dir", "ex"} {
		ok, err := fsys.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	ok, err := fsys.Exists(ctx, "ex/other")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStat verifies file size and path.
func TestStat(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "st/f.bin", []byte("12345")))
	info, err := fsys.Stat(ctx, "st/f.bin")
	require.NoError(t, err)
	assert.Equal(t, "st/f.bin", info.Path)
	assert.Equal(t, int64(5), info.Size)

	_, err = fsys.Stat(ctx, "st/none.bin")
	assert.True(t, errors.Is(err, vfs.ErrNotExist))
}

// TestRemove verifies single-file deletion.
func TestRemove(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "rm/f.txt", []byte("x")))
	require.NoError(t, fsys.Remove(ctx, "rm/f.txt"))
	ok, err := fsys.Exists(ctx, "rm/f.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	err = fsys.Remove(ctx, "rm/f.txt")
	assert.True(t, errors.Is(err, vfs.ErrNotExist))
}

// TestRemoveAll verifies recursive deletion and root protection.
func TestRemoveAll(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "rma/a/1.txt", []byte("x")))
	require.NoError(t, vfs.WriteBytes(ctx, fsys, "rma/a/b/2.txt", []byte("x")))
	require.NoError(t, vfs.WriteBytes(ctx, fsys, "rma/keep.txt", []byte("x")))
	require.NoError(t, fsys.RemoveAll(ctx, "rma/a"))

	files, err := fsys.Walk(ctx, "rma")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "rma/keep.txt", files[0].Path)

	assert.Error(t, fsys.RemoveAll(ctx, ""))
}

// TestSub verifies a sub-filesystem shares content with its parent.
func TestSub(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	sub, err := fsys.Sub("sub/inner")
	require.NoError(t, err)
	require.NoError(t, vfs.WriteBytes(ctx, sub, "f.txt", []byte("inner")))

	data, err := vfs.ReadFile(ctx, fsys, "sub/inner/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))

	files, err := sub.Walk(ctx, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "f.txt", files[0].Path)
}

// TestMove verifies content is copied and the source removed.
func TestMove(t *testing.T, fsys vfs.FS) {
	ctx := context.Background()

	require.NoError(t, vfs.WriteBytes(ctx, fsys, "mv/src.txt", []byte("payload")))
	require.NoError(t, vfs.Move(ctx, fsys, "mv/src.txt", fsys, "mv/dst/dst.txt"))

	_, err := fsys.Open(ctx, "mv/src.txt")
	assert.True(t, errors.Is(err, vfs.ErrNotExist))

	rc, err := fsys.Open(ctx, "mv/dst/dst.txt")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
