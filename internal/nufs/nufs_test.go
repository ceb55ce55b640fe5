package nufs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/directory"
	"github.com/nufs-go/nufs/internal/inode"
	"github.com/nufs-go/nufs/internal/nufs"
)

func newTestFS(t *testing.T, totalBlocks int) *nufs.FileSystem {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.nufs")
	require.NoError(t, nufs.Format(path, totalBlocks))

	fs, err := nufs.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func TestFormatThenOpenRootDirectoryStat(t *testing.T) {
	fs := newTestFS(t, 64)

	st, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, inode.IsDirMode(st.Mode))
	// "." and ".." (".." points at root itself, per spec.md §8 scenario 1).
	assert.EqualValues(t, 2*directory.DirentSize, st.Size)
	assert.EqualValues(t, 1, st.Refs)
}

func TestMknodWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t, 64)

	_, err := fs.Mknod("/a", 0o100644)
	require.NoError(t, err)

	n, err := fs.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = fs.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	st, err := fs.Stat("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Size)
}

func TestMknodDirectoryThenChildListing(t *testing.T) {
	fs := newTestFS(t, 64)

	_, err := fs.Mknod("/d", 0o040755)
	require.NoError(t, err)
	_, err = fs.Mknod("/d/x", 0o100644)
	require.NoError(t, err)

	var names []string
	err = fs.Readdir("/d", func(name string, stat nufs.Stat) bool {
		names = append(names, name)
		return true
	})
	require.NoError(t, err)
	assert.Contains(t, names, ".")
	assert.Contains(t, names, "..")
	assert.Contains(t, names, "x")
}

func TestLargeWriteCrossesIndirectBoundaryThenTruncateFreesEverything(t *testing.T) {
	fs := newTestFS(t, 4096)

	_, err := fs.Mknod("/a", 0o100644)
	require.NoError(t, err)

	size := 4096*13 + 1
	n, err := fs.Write("/a", make([]byte, size), 0)
	require.NoError(t, err)
	assert.Equal(t, size, n)

	st, err := fs.Stat("/a")
	require.NoError(t, err)
	assert.EqualValues(t, size, st.Size)
	assert.Greater(t, int(st.NumBlocks), inode.NumDirect)

	require.NoError(t, fs.Truncate("/a", 0))

	st, err = fs.Stat("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.Size)
	assert.EqualValues(t, 0, st.NumBlocks)
}

func TestHardLinkSurvivesOriginalUnlink(t *testing.T) {
	fs := newTestFS(t, 64)

	_, err := fs.Mknod("/a", 0o100644)
	require.NoError(t, err)
	_, err = fs.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Link("/a", "/b"))
	require.NoError(t, fs.Unlink("/a"))

	buf := make([]byte, 5)
	n, err := fs.Read("/b", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	_, err = fs.Stat("/a")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRenamePreservesInumAndRemovesOldPath(t *testing.T) {
	fs := newTestFS(t, 64)

	_, err := fs.Mknod("/d", 0o040755)
	require.NoError(t, err)
	_, err = fs.Mknod("/b", 0o100644)
	require.NoError(t, err)

	before, err := fs.Stat("/b")
	require.NoError(t, err)

	require.NoError(t, fs.Rename("/b", "/d/b"))

	after, err := fs.Stat("/d/b")
	require.NoError(t, err)
	assert.Equal(t, before.Inum, after.Inum)

	_, err = fs.Stat("/b")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRenameToSamePathIsIdempotent(t *testing.T) {
	fs := newTestFS(t, 64)

	_, err := fs.Mknod("/a", 0o100644)
	require.NoError(t, err)
	before, err := fs.Stat("/a")
	require.NoError(t, err)

	require.NoError(t, fs.Rename("/a", "/a"))

	after, err := fs.Stat("/a")
	require.NoError(t, err)
	assert.Equal(t, before.Inum, after.Inum)
}

func TestTruncateGrowsFileWithZeros(t *testing.T) {
	fs := newTestFS(t, 64)
	_, err := fs.Mknod("/a", 0o100644)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/a", 10))

	st, err := fs.Stat("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 10, st.Size)

	buf := make([]byte, 10)
	_, err = fs.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), buf)
}

func TestListSplitsPathIntoSegments(t *testing.T) {
	fs := newTestFS(t, 64)
	assert.Equal(t, []string{"d", "x"}, fs.List("/d/x"))
	assert.Nil(t, fs.List("/"))
}

func TestOpenMissingImageReturnsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.nufs")
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	_, err = nufs.Open(path)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
