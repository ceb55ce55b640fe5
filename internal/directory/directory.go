package directory

import (
	"strings"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/inode"
)

// DefaultDirMode is the mode a freshly initialized directory gets before any
// caller-supplied permission bits are applied, matching
// original_source/directory.c's directory_init (040755).
const DefaultDirMode = 0o040755

// Init allocates a new directory inode and links both "." and ".." into it
// (".." to parent, or to the new directory itself when parent < 0, i.e. for
// the root — spec.md §8 scenario 1 picks "points at root itself" over
// "absent"). It returns the new directory's inode number.
//
// Neither self-link bumps a ref count: "." would otherwise count as a
// reference to the directory itself, and ".." would otherwise count as a
// reference to parent, so both go through linkEntry's bumpRef=false path —
// a subdirectory's ".." never inflates its parent's Refs. Every directory
// instead carries a flat baseline of one reference, however many
// subdirectories it has: for a
// non-root directory that baseline comes from the real directory entry
// Put/Link writes into its parent; root has no parent entry to supply it,
// so Init bumps it directly, leaving every freshly formatted or created
// directory at Refs == 1 before any further hard link is added.
func Init(table *inode.Table, parent int32) (int32, error) {
	node, err := table.Alloc(DefaultDirMode)
	if err != nil {
		return 0, err
	}
	inum := node.Inum()
	isRoot := parent < 0
	dotdotTarget := parent
	if isRoot {
		dotdotTarget = inum
	}

	if err := linkEntry(table, inum, ".", inum, false); err != nil {
		return 0, err
	}
	if err := linkEntry(table, inum, "..", dotdotTarget, false); err != nil {
		return 0, err
	}

	if isRoot {
		if err := table.Get(inum).IncRef(); err != nil {
			return 0, err
		}
	}
	return inum, nil
}

// Lookup searches directory dirInum for name, returning the inode number it
// names. An empty name returns dirInum itself (spec.md §4.5: "empty string
// returns the directory's own inum").
func Lookup(table *inode.Table, dirInum int32, name string) (int32, error) {
	if name == "" {
		return dirInum, nil
	}

	dir := table.Get(dirInum)
	if !dir.IsDir() {
		return 0, errors.ErrNotADirectory
	}

	count := int(dir.Size()) / DirentSize
	buf := make([]byte, DirentSize)
	for i := 0; i < count; i++ {
		if _, err := dir.ReadAt(buf, int64(i*DirentSize)); err != nil {
			return 0, err
		}
		entryName, inum := decodeDirent(buf)
		if entryName == name {
			return inum, nil
		}
	}
	return 0, errors.ErrNotFound
}

func validateName(name string) error {
	if name == "" {
		return errors.NewWithMessage(errors.ErrInvalidArgument.Errno, "directory entry name must not be empty")
	}
	if strings.Contains(name, "/") {
		return errors.NewWithMessage(errors.ErrInvalidArgument.Errno, "directory entry name must not contain '/'")
	}
	if len(name) > NameSize {
		return errors.ErrNameTooLong
	}
	return nil
}

// Link appends a new directory entry naming target as name inside dirInum,
// then bumps target's ref count. It fails with ErrExists if name is already
// taken in this directory, matching original_source/directory.c's
// directory_link.
func Link(table *inode.Table, dirInum int32, name string, target int32) error {
	return linkEntry(table, dirInum, name, target, true)
}

// linkEntry is Link's implementation, parameterized on whether the new
// entry should bump target's ref count. "." and ".." entries (written by
// Init) pass bumpRef=false since they name an inode that already counts
// itself (or its parent) through some other reference.
func linkEntry(table *inode.Table, dirInum int32, name string, target int32, bumpRef bool) error {
	if err := validateName(name); err != nil {
		return err
	}

	if _, err := Lookup(table, dirInum, name); err == nil {
		return errors.ErrExists
	}

	dir := table.Get(dirInum)
	if !dir.IsDir() {
		return errors.ErrNotADirectory
	}

	entry := encodeDirent(name, target)
	if _, err := dir.WriteAt(entry, dir.Size()); err != nil {
		return err
	}

	if !bumpRef {
		return nil
	}
	return table.Get(target).IncRef()
}

// Put creates a brand-new inode — a subdirectory if mode's type bits say
// so, otherwise a plain file — and links it into dirInum as name, mirroring
// original_source/directory.c's directory_put.
func Put(table *inode.Table, dirInum int32, name string, mode uint32) (int32, error) {
	var inum int32
	if inode.IsDirMode(mode) {
		childInum, err := Init(table, dirInum)
		if err != nil {
			return 0, err
		}
		if err := table.Get(childInum).SetMode(mode); err != nil {
			return 0, err
		}
		inum = childInum
	} else {
		node, err := table.Alloc(mode)
		if err != nil {
			return 0, err
		}
		inum = node.Inum()
	}

	if err := Link(table, dirInum, name, inum); err != nil {
		return 0, err
	}
	return inum, nil
}

// Delete removes the entry named name from directory dirInum, compacting
// the remaining entries over the gap and shrinking the directory's content
// by one dirent. The target inode is released via Table.Free, which only
// actually frees its blocks once its ref count reaches zero (e.g. other
// hard links may still exist).
//
// original_source/directory.c's directory_delete reads one dirent's worth
// too little into "following_entries" and advances count by node size
// rather than bytes; this reimplementation copies the exact remaining byte
// range so entries after the deleted one never get corrupted.
func Delete(table *inode.Table, dirInum int32, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	dir := table.Get(dirInum)
	if !dir.IsDir() {
		return errors.ErrNotADirectory
	}

	count := int(dir.Size()) / DirentSize
	buf := make([]byte, DirentSize)
	for i := 0; i < count; i++ {
		offset := int64(i * DirentSize)
		if _, err := dir.ReadAt(buf, offset); err != nil {
			return err
		}
		entryName, inum := decodeDirent(buf)
		if entryName != name {
			continue
		}

		if err := table.Free(inum); err != nil {
			return err
		}

		remaining := dir.Size() - offset - int64(DirentSize)
		if remaining > 0 {
			tail := make([]byte, remaining)
			if _, err := dir.ReadAt(tail, offset+int64(DirentSize)); err != nil {
				return err
			}
			if _, err := dir.WriteAt(tail, offset); err != nil {
				return err
			}
		}
		return dir.Shrink(int64(DirentSize))
	}
	return errors.ErrNotFound
}

// Readdir calls yield once per entry in directory dirInum (including "."
// and ".."), in on-disk order, stopping early if yield returns false —
// mirroring the FUSE filler callback's early-stop contract in
// original_source/directory.c's directory_readdir.
func Readdir(table *inode.Table, dirInum int32, yield func(name string, node *inode.Node) bool) error {
	dir := table.Get(dirInum)
	if !dir.IsDir() {
		return errors.ErrNotADirectory
	}

	count := int(dir.Size()) / DirentSize
	buf := make([]byte, DirentSize)
	for i := 0; i < count; i++ {
		if _, err := dir.ReadAt(buf, int64(i*DirentSize)); err != nil {
			return err
		}
		name, inum := decodeDirent(buf)
		if !yield(name, table.Get(inum)) {
			break
		}
	}
	return nil
}
