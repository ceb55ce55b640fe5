// Package nufs implements C7, the namespace / storage facade that sits on
// top of the inode and directory layers: it turns slash-separated paths
// into inode numbers and dispatches to inode.Node / directory operations,
// mirroring original_source/storage.h's "resolve then dispatch" surface and
// dargueta-disko/drivers/common/basedriver's CommonDriver structure. It
// assumes single-threaded use, exactly like CommonDriver (spec.md §5).
package nufs

import (
	"io"
	"os"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/block"
	"github.com/nufs-go/nufs/internal/directory"
	"github.com/nufs-go/nufs/internal/inode"
)

// RootInum is the inode number of the root directory. Format always
// allocates it first, and the lowest-index-first allocator (spec.md §9)
// guarantees that first allocation lands on inode 0.
const RootInum int32 = 0

// FileSystem is a single open nufs image. It is not safe for concurrent
// use; callers (an adapter layer, a CLI) are responsible for serializing
// calls into it, the same contract dargueta-disko's CommonDriver documents
// for its own drivers.
type FileSystem struct {
	img    *block.Image
	table  *inode.Table
	root   int32
	closer io.Closer
}

// Format creates a brand-new image at path with the given number of blocks:
// it zero-fills the whole file, then hands it to inode.Create, which lays
// out the block/inode bitmaps (marking the reserved blocks allocated) and
// zeroes the inode table, and finally to directory.Init, which creates the
// root directory.
func Format(path string, totalBlocks int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, totalBlocks*block.Size)); err != nil {
		return err
	}

	img := block.Open(f, totalBlocks)
	table, err := inode.Create(img, totalBlocks)
	if err != nil {
		return err
	}
	rootInum, err := directory.Init(table, -1)
	if err != nil {
		return err
	}
	if rootInum != RootInum {
		return errors.NewWithMessagef(errors.ErrInvalidArgument.Errno,
			"root directory landed on inode %d, expected %d", rootInum, RootInum)
	}
	return nil
}

// Open opens an already-formatted image at path.
func Open(path string) (*FileSystem, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNotFound.Wrap(err)
		}
		return nil, err
	}

	totalBlocks, err := block.BlockCount(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	img := block.Open(f, totalBlocks)
	table, err := inode.Open(img)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileSystem{img: img, table: table, root: RootInum, closer: f}, nil
}

// Close releases the underlying image file, if Open opened one.
func (fs *FileSystem) Close() error {
	if fs.closer == nil {
		return nil
	}
	return fs.closer.Close()
}
