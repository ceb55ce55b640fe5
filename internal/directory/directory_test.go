package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/block"
	"github.com/nufs-go/nufs/internal/directory"
	"github.com/nufs-go/nufs/internal/inode"
)

func newTestTable(t *testing.T, totalBlocks int) *inode.Table {
	t.Helper()
	buf := make([]byte, totalBlocks*block.Size)
	stream := bytesextra.NewReadWriteSeeker(buf)
	img := block.Open(stream, totalBlocks)
	table, err := inode.Create(img, totalBlocks)
	require.NoError(t, err)
	return table
}

func TestInitRootHasSelfLinkButRefsStaysOne(t *testing.T) {
	table := newTestTable(t, 64)

	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	// root has no parent to supply its baseline reference, so Init bumps
	// it directly: nlink == 1, matching spec.md §8 scenario 1.
	rootNode := table.Get(root)
	assert.EqualValues(t, 1, rootNode.Refs())

	dot, err := directory.Lookup(table, root, ".")
	require.NoError(t, err)
	assert.Equal(t, root, dot)

	dotdot, err := directory.Lookup(table, root, "..")
	require.NoError(t, err)
	assert.Equal(t, root, dotdot)
}

func TestInitNonRootLinksDotDot(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	child, err := directory.Init(table, root)
	require.NoError(t, err)

	dotdot, err := directory.Lookup(table, child, "..")
	require.NoError(t, err)
	assert.Equal(t, root, dotdot)

	// ".." does not bump the parent's ref count beyond its own baseline
	// (spec.md §9's decided policy): root's Refs is 1 (its own baseline,
	// set when it was created with no parent), unaffected by child.
	rootNode := table.Get(root)
	assert.EqualValues(t, 1, rootNode.Refs())

	// child was created directly via Init here (not through Put/Link), so
	// it was never linked into any parent's entries and has no baseline
	// of its own; Refs stays 0.
	childNode := table.Get(child)
	assert.EqualValues(t, 0, childNode.Refs())
}

func TestPutFileThenLookupRoundTrips(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	inum, err := directory.Put(table, root, "hello.txt", inode.DefaultFileMode(0o644))
	require.NoError(t, err)

	found, err := directory.Lookup(table, root, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, inum, found)
}

func TestLinkDuplicateNameFails(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	_, err = directory.Put(table, root, "a", inode.DefaultFileMode(0o644))
	require.NoError(t, err)

	_, err = directory.Put(table, root, "a", inode.DefaultFileMode(0o644))
	assert.ErrorIs(t, err, errors.ErrExists)
}

func TestLinkRejectsEmbeddedSlash(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	_, err = directory.Put(table, root, "a/b", inode.DefaultFileMode(0o644))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestDeleteCompactsEntriesAndFreesInode(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	_, err = directory.Put(table, root, "a", inode.DefaultFileMode(0o644))
	require.NoError(t, err)
	bInum, err := directory.Put(table, root, "b", inode.DefaultFileMode(0o644))
	require.NoError(t, err)
	_, err = directory.Put(table, root, "c", inode.DefaultFileMode(0o644))
	require.NoError(t, err)

	inodesFreeBefore := table.InodesFree()
	require.NoError(t, directory.Delete(table, root, "b"))
	assert.Equal(t, inodesFreeBefore+1, table.InodesFree())

	_, err = directory.Lookup(table, root, "b")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	aInum, err := directory.Lookup(table, root, "a")
	require.NoError(t, err)
	cInum, err := directory.Lookup(table, root, "c")
	require.NoError(t, err)
	assert.NotEqual(t, bInum, aInum)
	assert.NotEqual(t, bInum, cInum)
}

func TestDeleteMissingNameFails(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	err = directory.Delete(table, root, "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestReaddirVisitsDotDotDotAndChildrenInOrder(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	_, err = directory.Put(table, root, "a", inode.DefaultFileMode(0o644))
	require.NoError(t, err)
	_, err = directory.Put(table, root, "b", inode.DefaultFileMode(0o644))
	require.NoError(t, err)

	var names []string
	err = directory.Readdir(table, root, func(name string, node *inode.Node) bool {
		names = append(names, name)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "a", "b"}, names)
}

func TestReaddirStopsEarlyWhenYieldReturnsFalse(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)
	_, err = directory.Put(table, root, "a", inode.DefaultFileMode(0o644))
	require.NoError(t, err)
	_, err = directory.Put(table, root, "b", inode.DefaultFileMode(0o644))
	require.NoError(t, err)

	var seen int
	err = directory.Readdir(table, root, func(name string, node *inode.Node) bool {
		seen++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestHardLinkSharesInodeAndSurvivesFirstUnlink(t *testing.T) {
	table := newTestTable(t, 64)
	root, err := directory.Init(table, -1)
	require.NoError(t, err)

	inum, err := directory.Put(table, root, "orig", inode.DefaultFileMode(0o644))
	require.NoError(t, err)
	require.NoError(t, directory.Link(table, root, "alias", inum))

	node := table.Get(inum)
	assert.EqualValues(t, 2, node.Refs())

	require.NoError(t, directory.Delete(table, root, "orig"))

	stillThere, err := directory.Lookup(table, root, "alias")
	require.NoError(t, err)
	assert.Equal(t, inum, stillThere)
	assert.EqualValues(t, 1, table.Get(inum).Refs())
}
