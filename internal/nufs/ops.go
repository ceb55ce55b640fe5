package nufs

import (
	"strings"
	"time"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/directory"
	"github.com/nufs-go/nufs/internal/inode"
)

// Stat mirrors the handful of POSIX stat(2) fields this filesystem tracks
// (spec.md §4.6).
type Stat struct {
	Inum      int32
	Mode      uint32
	Size      int64
	Refs      int32
	NumBlocks int32
	Atime     time.Time
	Mtime     time.Time
}

func statFromNode(n *inode.Node) Stat {
	return Stat{
		Inum:      n.Inum(),
		Mode:      n.Mode(),
		Size:      n.Size(),
		Refs:      n.Refs(),
		NumBlocks: n.NumBlocks(),
		Atime:     n.Atime(),
		Mtime:     n.Mtime(),
	}
}

// List splits path into its "/"-separated components, mirroring
// original_source/directory.c's directory_list (s_explode(path, '/')).
func (fs *FileSystem) List(path string) []string {
	return splitPath(path)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// GetInum resolves path to an inode number by walking each component
// through directory.Lookup starting at the root, per spec.md §4.6.
func (fs *FileSystem) GetInum(path string) (int32, error) {
	cur := fs.root
	for _, seg := range splitPath(path) {
		next, err := directory.Lookup(fs.table, cur, seg)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return cur, nil
}

// resolveParent walks path's directory components and returns the parent
// directory's inode number and the final path component's name.
func (fs *FileSystem) resolveParent(path string) (parentInum int32, name string, err error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return 0, "", errors.NewWithMessage(errors.ErrInvalidArgument.Errno, "path has no parent")
	}

	name = segments[len(segments)-1]
	parentInum = fs.root
	for _, seg := range segments[:len(segments)-1] {
		next, err := directory.Lookup(fs.table, parentInum, seg)
		if err != nil {
			return 0, "", err
		}
		parentInum = next
	}
	return parentInum, name, nil
}

// Stat resolves path and returns its inode metadata.
func (fs *FileSystem) Stat(path string) (Stat, error) {
	inum, err := fs.GetInum(path)
	if err != nil {
		return Stat{}, err
	}
	return statFromNode(fs.table.Get(inum)), nil
}

// Read copies up to len(buf) bytes from path's content starting at offset.
func (fs *FileSystem) Read(path string, buf []byte, offset int64) (int, error) {
	inum, err := fs.GetInum(path)
	if err != nil {
		return 0, err
	}
	node := fs.table.Get(inum)
	if node.IsDir() {
		return 0, errors.ErrIsADirectory
	}
	return node.ReadAt(buf, offset)
}

// Write copies buf into path's content starting at offset, growing the
// file if necessary.
func (fs *FileSystem) Write(path string, buf []byte, offset int64) (int, error) {
	inum, err := fs.GetInum(path)
	if err != nil {
		return 0, err
	}
	node := fs.table.Get(inum)
	if node.IsDir() {
		return 0, errors.ErrIsADirectory
	}
	return node.WriteAt(buf, offset)
}

// Truncate resizes path's content to size, growing it zero-filled if size
// exceeds the current length (spec.md §9's decided Open Question: Truncate
// does support growing a file) or shrinking and freeing blocks otherwise.
func (fs *FileSystem) Truncate(path string, size int64) error {
	if size < 0 {
		return errors.ErrInvalidArgument
	}

	inum, err := fs.GetInum(path)
	if err != nil {
		return err
	}
	node := fs.table.Get(inum)
	if node.IsDir() {
		return errors.ErrIsADirectory
	}

	switch {
	case size > node.Size():
		_, err := node.WriteAt(make([]byte, size-node.Size()), node.Size())
		return err
	case size < node.Size():
		return node.Shrink(node.Size() - size)
	default:
		return nil
	}
}

// Mknod creates a new file or directory (per mode's type bits) at path.
func (fs *FileSystem) Mknod(path string, mode uint32) (int32, error) {
	parent, name, err := fs.resolveParent(path)
	if err != nil {
		return 0, err
	}
	if !inode.IsDirMode(mode) {
		mode = inode.DefaultFileMode(mode)
	}
	return directory.Put(fs.table, parent, name, mode)
}

// Unlink removes the directory entry at path, freeing its inode once no
// other names reference it.
func (fs *FileSystem) Unlink(path string) error {
	parent, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	return directory.Delete(fs.table, parent, name)
}

// Link creates a new hard link at newpath pointing at oldpath's inode.
func (fs *FileSystem) Link(oldpath, newpath string) error {
	target, err := fs.GetInum(oldpath)
	if err != nil {
		return err
	}
	parent, name, err := fs.resolveParent(newpath)
	if err != nil {
		return err
	}
	return directory.Link(fs.table, parent, name, target)
}

// Rename moves the entry at oldpath to newpath. This is implemented as
// link-then-unlink and is not atomic (spec.md §4.6 and §9's decided Open
// Question): a crash between the two steps can leave both names pointing
// at the inode. Idempotent when oldpath and newpath name the same entry
// (spec.md §4.6): renaming a path to itself is a no-op rather than failing
// on Link's ErrExists.
func (fs *FileSystem) Rename(oldpath, newpath string) error {
	oldSegs, newSegs := splitPath(oldpath), splitPath(newpath)
	if len(oldSegs) == len(newSegs) {
		same := true
		for i := range oldSegs {
			if oldSegs[i] != newSegs[i] {
				same = false
				break
			}
		}
		if same {
			_, err := fs.GetInum(oldpath)
			return err
		}
	}

	if err := fs.Link(oldpath, newpath); err != nil {
		return err
	}
	return fs.Unlink(oldpath)
}

// Utimens sets path's access and modification timestamps.
func (fs *FileSystem) Utimens(path string, atime, mtime time.Time) error {
	inum, err := fs.GetInum(path)
	if err != nil {
		return err
	}
	return fs.table.Get(inum).SetTimes(atime, mtime)
}

// Readdir calls yield once per entry of the directory at path, in on-disk
// order, stopping early if yield returns false.
func (fs *FileSystem) Readdir(path string, yield func(name string, stat Stat) bool) error {
	inum, err := fs.GetInum(path)
	if err != nil {
		return err
	}
	return directory.Readdir(fs.table, inum, func(name string, node *inode.Node) bool {
		return yield(name, statFromNode(node))
	})
}
