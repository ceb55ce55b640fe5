// Package fuseadapter is a thin kernel-upcall translation layer: every
// method here does nothing but convert between go-fuse's callback shapes
// and nufs.FileSystem calls, carrying no logic of its own (spec.md §6
// explicitly scopes the kernel interface adapter out of the core). Grounded
// on github.com/hanwen/go-fuse/v2/fs's documented InodeEmbedder pattern, and
// on the tree-walking "one Node struct tracks its own path" style used by
// the grailbio-base gfs adapter (other_examples/) and
// KarpelesLab-squashfs's inode_fuse.go (which targets the lower-level fuse
// package rather than fs, but shares the same Lookup/ReadDir/Open shape).
package fuseadapter

import (
	"context"
	stderrors "errors"
	"path"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/inode"
	"github.com/nufs-go/nufs/internal/nufs"
)

// Node is a go-fuse tree node that knows only the absolute nufs path it
// represents; every operation re-resolves through FileSystem rather than
// caching anything, since nufs.FileSystem itself does no caching either
// (spec.md §5).
type Node struct {
	fs.Inode
	store *nufs.FileSystem
	path  string
}

var (
	_ fs.InodeEmbedder = (*Node)(nil)
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeSetattrer = (*Node)(nil)
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeMkdirer   = (*Node)(nil)
	_ fs.NodeCreater   = (*Node)(nil)
	_ fs.NodeUnlinker  = (*Node)(nil)
	_ fs.NodeRmdirer   = (*Node)(nil)
	_ fs.NodeRenamer   = (*Node)(nil)
	_ fs.NodeLinker    = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.FileReader    = (*fileHandle)(nil)
	_ fs.FileWriter    = (*fileHandle)(nil)
)

// Root returns the tree root node for store, ready to pass to fs.Mount.
func Root(store *nufs.FileSystem) *Node {
	return &Node{store: store, path: "/"}
}

func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Errno
	}
	return syscall.EIO
}

func childPath(parent, name string) string {
	return path.Join(parent, name)
}

func fillAttr(attr *fuse.Attr, st nufs.Stat) {
	attr.Ino = uint64(st.Inum)
	attr.Size = uint64(st.Size)
	attr.Mode = st.Mode
	attr.Nlink = uint32(st.Refs)
	attr.SetTimes(&st.Atime, &st.Mtime, nil)
}

// Getattr fills out with path's current stat.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.store.Stat(n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(&out.Attr, st)
	return 0
}

// Setattr applies truncate and/or utimens, the only two attributes this
// filesystem can change (spec.md §4.6). Atime/mtime are read straight off
// in's embedded Attr fields and gated on in.Valid's FATTR_ATIME/FATTR_MTIME
// bits, rather than through accessor methods: in.GetSize() is the only
// typed accessor go-fuse's fs package documents for SetAttrIn.
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if err := n.store.Truncate(n.path, int64(size)); err != nil {
			return toErrno(err)
		}
	}

	if in.Valid&(fuse.FATTR_ATIME|fuse.FATTR_MTIME) != 0 {
		st, err := n.store.Stat(n.path)
		if err != nil {
			return toErrno(err)
		}
		atime, mtime := st.Atime, st.Mtime
		if in.Valid&fuse.FATTR_ATIME != 0 {
			atime = time.Unix(int64(in.Atime), int64(in.Atimensec))
		}
		if in.Valid&fuse.FATTR_MTIME != 0 {
			mtime = time.Unix(int64(in.Mtime), int64(in.Mtimensec))
		}
		if err := n.store.Utimens(n.path, atime, mtime); err != nil {
			return toErrno(err)
		}
	}

	st, err := n.store.Stat(n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(&out.Attr, st)
	return 0
}

// Lookup resolves name within this directory and returns its tree node.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childPath(n.path, name)
	st, err := n.store.Stat(p)
	if err != nil {
		return nil, toErrno(err)
	}
	fillAttr(&out.Attr, st)
	out.NodeId = uint64(st.Inum)

	child := &Node{store: n.store, path: p}
	mode := fuse.S_IFREG
	if inode.IsDirMode(st.Mode) {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: uint32(mode), Ino: uint64(st.Inum)}), 0
}

// Readdir lists this directory's entries via nufs.FileSystem.Readdir.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	err := n.store.Readdir(n.path, func(name string, st nufs.Stat) bool {
		mode := uint32(fuse.S_IFREG)
		if inode.IsDirMode(st.Mode) {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Ino: uint64(st.Inum), Mode: mode})
		return true
	})
	if err != nil {
		return nil, toErrno(err)
	}
	return fs.NewListDirStream(entries), 0
}

// Mkdir creates a subdirectory.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childPath(n.path, name)
	if _, err := n.store.Mknod(p, mode|fuse.S_IFDIR); err != nil {
		return nil, toErrno(err)
	}
	return n.Lookup(ctx, name, out)
}

// Create makes a new regular file and opens it in the same call.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := childPath(n.path, name)
	if _, err := n.store.Mknod(p, mode|fuse.S_IFREG); err != nil {
		return nil, nil, 0, toErrno(err)
	}
	child, errno := n.Lookup(ctx, name, out)
	if errno != 0 {
		return nil, nil, 0, errno
	}
	return child, &fileHandle{store: n.store, path: p}, 0, 0
}

// Unlink removes a directory entry naming a non-directory (or any entry,
// since nufs.FileSystem.Unlink itself doesn't distinguish — the kernel only
// calls Unlink for non-directories).
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.store.Unlink(childPath(n.path, name)))
}

// Rmdir removes an empty subdirectory.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := childPath(n.path, name)
	entries := 0
	if err := n.store.Readdir(p, func(string, nufs.Stat) bool {
		entries++
		return true
	}); err != nil {
		return toErrno(err)
	}
	if entries > 2 {
		return toErrno(errors.ErrNotEmpty)
	}
	return toErrno(n.store.Unlink(p))
}

// Rename moves name to newName under newParent.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	newParentNode, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	oldPath := childPath(n.path, name)
	newPath := childPath(newParentNode.path, newName)
	return toErrno(n.store.Rename(oldPath, newPath))
}

// Link creates a new hard link to target named name in this directory.
func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	targetNode, ok := target.(*Node)
	if !ok {
		return nil, syscall.EINVAL
	}
	p := childPath(n.path, name)
	if err := n.store.Link(targetNode.path, p); err != nil {
		return nil, toErrno(err)
	}
	return n.Lookup(ctx, name, out)
}

// Open returns a handle good for subsequent Read/Write calls.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return &fileHandle{store: n.store, path: n.path}, 0, 0
}

// fileHandle implements the byte-range Read/Write callbacks against a
// single path; it holds no state of its own beyond that path, since
// nufs.FileSystem resolves paths fresh on every call.
type fileHandle struct {
	store *nufs.FileSystem
	path  string
}

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.store.Read(h.path, dest, off)
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.store.Write(h.path, data, off)
	if err != nil {
		return 0, toErrno(err)
	}
	return uint32(n), 0
}
