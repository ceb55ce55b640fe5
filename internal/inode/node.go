package inode

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nufs-go/nufs/errors"
)

// Node is an in-memory view of one inode record, bound to the Table it came
// from. Every mutating method persists the record back to the image before
// returning, since the engine assumes single-threaded access and caches
// nothing beyond the OS page cache (spec.md §5).
type Node struct {
	table *Table
	inum  int32
	raw   rawInode
}

// Inum returns this inode's number in the table.
func (n *Node) Inum() int32 { return n.inum }

// Refs returns the hard-link count.
func (n *Node) Refs() int32 { return n.raw.Refs }

// Mode returns the POSIX mode bits (type + permissions).
func (n *Node) Mode() uint32 { return n.raw.Mode }

// IsDir reports whether this inode is a directory.
func (n *Node) IsDir() bool { return n.raw.isDirectory() }

// Size returns the logical content length in bytes.
func (n *Node) Size() int64 { return n.raw.Size }

// NumBlocks returns the number of blocks currently allocated to this inode.
func (n *Node) NumBlocks() int32 { return n.raw.NumBlocks }

// Atime and Mtime return the access and modification timestamps.
func (n *Node) Atime() time.Time {
	return time.Unix(n.raw.AtimeSec, n.raw.AtimeNsec)
}
func (n *Node) Mtime() time.Time {
	return time.Unix(n.raw.MtimeSec, n.raw.MtimeNsec)
}

func setRawTimes(raw *rawInode, atime, mtime time.Time) {
	raw.AtimeSec, raw.AtimeNsec = atime.Unix(), int64(atime.Nanosecond())
	raw.MtimeSec, raw.MtimeNsec = mtime.Unix(), int64(mtime.Nanosecond())
}

func (n *Node) flush() error {
	return n.table.writeRaw(n.inum, n.raw)
}

// SetMode changes the mode bits (type + permissions) and persists them.
func (n *Node) SetMode(mode uint32) error {
	n.raw.Mode = mode
	return n.flush()
}

// SetTimes sets atime and mtime to the given values (spec.md §4.6,
// utimens).
func (n *Node) SetTimes(atime, mtime time.Time) error {
	setRawTimes(&n.raw, atime, mtime)
	return n.flush()
}

// touchMtime bumps mtime to now; called by Write/Grow/Shrink, matching the
// POSIX convention that content mutation updates mtime.
func (n *Node) touchMtime() {
	setRawTimes(&n.raw, n.Atime(), time.Now())
}

// IncRef bumps the hard-link count by one and persists it.
func (n *Node) IncRef() error {
	n.raw.Refs++
	return n.flush()
}

// DecRef decrements the hard-link count by one and persists it, without
// freeing the inode even if it reaches zero. directory.Init does not need
// it, since "." and ".." are written without bumping any ref count;
// ordinary unlink goes through Table.Free instead, which frees the inode's
// blocks once refs hits zero.
func (n *Node) DecRef() error {
	n.raw.Refs--
	return n.flush()
}

// indirectSlot returns the i-th entry of the indirect block (0-indexed
// within the indirect block, not within the file).
func (n *Node) indirectSlot(i int) (int, error) {
	if n.raw.Indirect == Unallocated {
		return 0, errors.NewWithMessage(errors.ErrInvalidArgument.Errno, "inode has no indirect block")
	}
	buf := make([]byte, blockSize)
	if err := n.table.img.ReadBlock(int(n.raw.Indirect), buf); err != nil {
		return 0, err
	}
	return int(decodeInt32(buf, i*4)), nil
}

func (n *Node) setIndirectSlot(i int, value int) error {
	buf := make([]byte, blockSize)
	if err := n.table.img.ReadBlock(int(n.raw.Indirect), buf); err != nil {
		return err
	}
	encodeInt32(buf, i*4, int32(value))
	return n.table.img.WriteBlock(int(n.raw.Indirect), buf)
}

func decodeInt32(buf []byte, offset int) int32 {
	return int32(uint32(buf[offset]) | uint32(buf[offset+1])<<8 |
		uint32(buf[offset+2])<<16 | uint32(buf[offset+3])<<24)
}

func encodeInt32(buf []byte, offset int, v int32) {
	u := uint32(v)
	buf[offset] = byte(u)
	buf[offset+1] = byte(u >> 8)
	buf[offset+2] = byte(u >> 16)
	buf[offset+3] = byte(u >> 24)
}

// BlockNumberFor translates a 0-indexed file-block number to a disk block
// number, per spec.md §4.4 (inode_get_bnum): direct slots, then the
// indirect block's entries, then -1 if out of range.
func (n *Node) BlockNumberFor(fblk int) (int, error) {
	if fblk < NumDirect {
		if fblk >= int(n.raw.NumBlocks) {
			return -1, errors.ErrInvalidArgument
		}
		return int(n.raw.Direct[fblk]), nil
	}
	if fblk < MaxBlocksPerInode {
		if fblk >= int(n.raw.NumBlocks) {
			return -1, errors.ErrInvalidArgument
		}
		return n.indirectSlot(fblk - NumDirect)
	}
	return -1, errors.ErrInvalidArgument
}

// allocateOneMoreBlock appends one freshly-allocated data block to this
// inode's block list, growing into the indirect block when direct capacity
// is exhausted (spec.md §4.4 step 2). It does not touch Size. It returns
// every block number it allocated this call (the data block, plus the
// indirect block itself on the direct-to-indirect transition) so the caller
// can roll them back on a later failure.
func (n *Node) allocateOneMoreBlock() ([]int, error) {
	newBlock, err := n.table.AllocBlock()
	if err != nil {
		return nil, err
	}
	allocated := []int{newBlock}

	if n.raw.NumBlocks < NumDirect {
		n.raw.Direct[n.raw.NumBlocks] = int32(newBlock)
		n.raw.NumBlocks++
		return allocated, nil
	}

	if n.raw.NumBlocks == NumDirect {
		indirectBlock, ierr := n.table.AllocBlock()
		if ierr != nil {
			_ = n.table.FreeBlock(newBlock)
			return nil, ierr
		}
		n.raw.Indirect = int32(indirectBlock)
		allocated = append(allocated, indirectBlock)
		sentinels := make([]byte, blockSize)
		for i := 0; i < indirectCapacity; i++ {
			encodeInt32(sentinels, i*4, Unallocated)
		}
		if werr := n.table.img.WriteBlock(indirectBlock, sentinels); werr != nil {
			_ = n.table.FreeBlock(newBlock)
			_ = n.table.FreeBlock(indirectBlock)
			n.raw.Indirect = Unallocated
			return nil, werr
		}
	}

	slot := int(n.raw.NumBlocks) - NumDirect
	if err := n.setIndirectSlot(slot, newBlock); err != nil {
		for _, b := range allocated {
			_ = n.table.FreeBlock(b)
		}
		if len(allocated) > 1 {
			n.raw.Indirect = Unallocated
		}
		return nil, err
	}
	n.raw.NumBlocks++
	return allocated, nil
}

// freeLastBlock releases the current last block (direct or indirect slot),
// freeing the indirect block itself once NumBlocks falls back to NumDirect
// (spec.md §4.4 shrink_inode, symmetric to allocateOneMoreBlock).
func (n *Node) freeLastBlock() error {
	last := int(n.raw.NumBlocks) - 1

	if last >= NumDirect {
		bnum, err := n.indirectSlot(last - NumDirect)
		if err != nil {
			return err
		}
		if err := n.table.FreeBlock(bnum); err != nil {
			return err
		}
		n.raw.NumBlocks--
		if n.raw.NumBlocks == NumDirect {
			if err := n.table.FreeBlock(int(n.raw.Indirect)); err != nil {
				return err
			}
			n.raw.Indirect = Unallocated
		}
		return nil
	}

	if err := n.table.FreeBlock(int(n.raw.Direct[last])); err != nil {
		return err
	}
	n.raw.Direct[last] = Unallocated
	n.raw.NumBlocks--
	return nil
}

// Grow increases Size by delta bytes, allocating additional blocks as
// needed (spec.md §4.4). On failure it rolls back every block it allocated
// during this call so the bitmap never leaks (spec.md §7).
func (n *Node) Grow(delta int64) error {
	if delta < 0 {
		return errors.ErrInvalidArgument
	}
	if delta == 0 {
		return nil
	}

	saved := n.raw
	remaining := delta
	var allocatedThisCall []int

	rollback := func(cause error) error {
		n.raw = saved
		var result *multierror.Error
		result = multierror.Append(result, cause)
		for i := len(allocatedThisCall) - 1; i >= 0; i-- {
			if err := n.table.FreeBlock(allocatedThisCall[i]); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}

	for remaining > 0 {
		spaceInTail := int64(n.raw.NumBlocks)*blockSize - n.raw.Size
		if remaining <= spaceInTail {
			n.raw.Size += remaining
			remaining = 0
			break
		}

		n.raw.Size += spaceInTail
		remaining -= spaceInTail

		newlyAllocated, err := n.allocateOneMoreBlock()
		if err != nil {
			return rollback(err)
		}
		allocatedThisCall = append(allocatedThisCall, newlyAllocated...)
	}

	n.touchMtime()
	return n.flush()
}

// Shrink decreases Size by delta bytes, freeing blocks that fall fully out
// of use (spec.md §4.4 shrink_inode). It fails if delta exceeds the current
// size.
func (n *Node) Shrink(delta int64) error {
	if delta < 0 {
		return errors.ErrInvalidArgument
	}
	if delta > n.raw.Size {
		return errors.NewWithMessagef(errors.ErrInvalidArgument.Errno,
			"cannot shrink by %d bytes, only %d bytes allocated", delta, n.raw.Size)
	}
	if delta == 0 {
		return nil
	}

	remaining := delta
	for remaining > 0 {
		// tailUsed is how many bytes of the current last block are actually
		// part of the file. Shrinking past it frees the block entirely,
		// including the inode's very last block — size == 0 leaves
		// NumBlocks == 0, matching spec.md's invariant that num_blocks may
		// be 0 exactly when size is 0.
		tailUsed := int64(blockSize)
		if n.raw.NumBlocks > 0 {
			if used := n.raw.Size - int64(n.raw.NumBlocks-1)*blockSize; used > 0 {
				tailUsed = used
			}
		}

		if remaining < tailUsed {
			n.raw.Size -= remaining
			remaining = 0
			break
		}

		remaining -= tailUsed
		n.raw.Size -= tailUsed
		if err := n.freeLastBlock(); err != nil {
			return err
		}
	}

	n.touchMtime()
	return n.flush()
}

// ReadAt copies up to len(buf) bytes starting at offset into buf, spanning
// blocks as needed (spec.md §4.4 inode_read). It returns the number of
// bytes actually copied; reading past Size yields a short read, never an
// error.
func (n *Node) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.ErrInvalidArgument
	}
	if offset >= n.raw.Size || len(buf) == 0 {
		return 0, nil
	}

	toRead := int64(len(buf))
	if offset+toRead > n.raw.Size {
		toRead = n.raw.Size - offset
	}

	done := int64(0)
	for done < toRead {
		fblk := int((offset + done) / blockSize)
		bofs := int((offset + done) % blockSize)
		chunk := blockSize - bofs
		if int64(chunk) > toRead-done {
			chunk = int(toRead - done)
		}

		bnum, err := n.BlockNumberFor(fblk)
		if err != nil {
			return int(done), err
		}
		blk := make([]byte, blockSize)
		if err := n.table.img.ReadBlock(bnum, blk); err != nil {
			return int(done), err
		}
		copy(buf[done:done+int64(chunk)], blk[bofs:bofs+chunk])
		done += int64(chunk)
	}
	return int(done), nil
}

// WriteAt copies len(buf) bytes from buf into the content starting at
// offset, growing the inode first if the write extends past the current
// size (spec.md §4.4 inode_write).
func (n *Node) WriteAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.ErrInvalidArgument
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if offset+int64(len(buf)) > n.raw.Size {
		if err := n.Grow(offset + int64(len(buf)) - n.raw.Size); err != nil {
			return 0, err
		}
	}

	done := 0
	remaining := len(buf)
	for remaining > 0 {
		fblk := int((offset + int64(done)) / blockSize)
		bofs := int((offset + int64(done)) % blockSize)
		chunk := blockSize - bofs
		if chunk > remaining {
			chunk = remaining
		}

		bnum, err := n.BlockNumberFor(fblk)
		if err != nil {
			return done, err
		}
		blk := make([]byte, blockSize)
		if err := n.table.img.ReadBlock(bnum, blk); err != nil {
			return done, err
		}
		copy(blk[bofs:bofs+chunk], buf[done:done+chunk])
		if err := n.table.img.WriteBlock(bnum, blk); err != nil {
			return done, err
		}

		done += chunk
		remaining -= chunk
	}

	n.touchMtime()
	if err := n.flush(); err != nil {
		return done, err
	}
	return done, nil
}
