// Package inode implements C4 (the inode table) and C5 (inode I/O) of the
// storage engine. Grounded on dargueta-disko/drivers/unixv1/inode.go for the
// on-disk/in-memory split, and on original_source/inode.c for the
// direct/indirect growth and byte-copy semantics — corrected per spec.md's
// invariants and round-trip laws, since the reference C has several
// off-by-one bugs in grow_inode/shrink_inode/inode_read/inode_write.
package inode

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/alloc"
	"github.com/nufs-go/nufs/internal/bitmap"
	"github.com/nufs-go/nufs/internal/block"
)

// Table is the fixed-capacity inode table plus the block and inode
// allocators that share block 0 of the image with it (spec.md §3: "Block 0:
// data-block bitmap in first half, inode bitmap in second half").
type Table struct {
	img         *block.Image
	block0      []byte
	dataBits    *bitmap.Bitmap
	inodeBits   *bitmap.Bitmap
	dataAlloc   *alloc.Allocator
	inodeAlloc  *alloc.Allocator
	totalBlocks int
}

// maxBitmapBits is the number of bits that fit in half of block 0, and thus
// the largest number of blocks (or inodes — though NumInodes is always far
// smaller) this layout can track.
const maxBitmapBits = (blockSize / 2) * 8

// Create formats a brand-new image of totalBlocks blocks: it zeroes block 0,
// marks blocks [0, FirstDataBlock) as permanently allocated (spec.md §4.2),
// and zeroes the inode table. It does not create the root directory; that is
// the namespace layer's job (directory.Init), since inode.Table knows
// nothing about directory content.
func Create(img *block.Image, totalBlocks int) (*Table, error) {
	if totalBlocks > maxBitmapBits {
		return nil, errors.NewWithMessagef(
			errors.ErrInvalidArgument.Errno,
			"image of %d blocks exceeds the %d blocks addressable by the block-0 bitmap",
			totalBlocks, maxBitmapBits,
		)
	}
	if totalBlocks <= FirstDataBlock {
		return nil, errors.NewWithMessagef(
			errors.ErrInvalidArgument.Errno,
			"image must have at least %d blocks, got %d", FirstDataBlock+1, totalBlocks,
		)
	}

	t := &Table{
		img:         img,
		block0:      make([]byte, blockSize),
		totalBlocks: totalBlocks,
	}
	t.wireBitmaps()

	for b := 0; b < FirstDataBlock; b++ {
		t.dataBits.Set(b, true)
	}

	zeroBlock := make([]byte, blockSize)
	for b := 1; b <= NumReservedBlocks; b++ {
		if err := img.WriteBlock(b, zeroBlock); err != nil {
			return nil, err
		}
	}
	if err := t.flushBlock0(); err != nil {
		return nil, err
	}
	return t, nil
}

// Open reconstructs a Table from an already-formatted image.
func Open(img *block.Image) (*Table, error) {
	t := &Table{
		img:         img,
		block0:      make([]byte, blockSize),
		totalBlocks: img.TotalBlocks(),
	}
	if err := img.ReadBlock(0, t.block0); err != nil {
		return nil, err
	}
	t.wireBitmaps()
	return t, nil
}

func (t *Table) wireBitmaps() {
	dataBytes := t.block0[:blockSize/2]
	inodeBytes := t.block0[blockSize/2:]

	t.dataBits = bitmap.FromBytes(dataBytes, t.totalBlocks)
	t.inodeBits = bitmap.FromBytes(inodeBytes, NumInodes)
	t.dataAlloc = alloc.New(t.dataBits, t.totalBlocks)
	t.inodeAlloc = alloc.New(t.inodeBits, NumInodes)
}

func (t *Table) flushBlock0() error {
	return t.img.WriteBlock(0, t.block0)
}

// AllocBlock claims the lowest-numbered free data block.
func (t *Table) AllocBlock() (int, error) {
	b, err := t.dataAlloc.Allocate()
	if err != nil {
		return 0, err
	}
	if err := t.flushBlock0(); err != nil {
		return 0, err
	}
	return b, nil
}

// FreeBlock releases a data block back to the allocator.
func (t *Table) FreeBlock(b int) error {
	if err := t.dataAlloc.Free(b); err != nil {
		return err
	}
	return t.flushBlock0()
}

// TotalBlocks returns the number of blocks in the underlying image.
func (t *Table) TotalBlocks() int {
	return t.totalBlocks
}

// BlocksFree returns the number of unallocated data blocks.
func (t *Table) BlocksFree() int {
	return t.totalBlocks - t.dataAlloc.CountInUse()
}

// InodesFree returns the number of unallocated inode slots.
func (t *Table) InodesFree() int {
	return NumInodes - t.inodeAlloc.CountInUse()
}

func (t *Table) inodeLocation(inum int32) (blockNum int, offset int) {
	if inum < 0 || int(inum) >= NumInodes {
		panic("inode: inode number out of range")
	}
	blockNum = 1 + int(inum)/inodesPerBlock
	offset = (int(inum) % inodesPerBlock) * rawInodeSize
	return blockNum, offset
}

func (t *Table) readRaw(inum int32) rawInode {
	blockNum, offset := t.inodeLocation(inum)
	buf := make([]byte, blockSize)
	if err := t.img.ReadBlock(blockNum, buf); err != nil {
		panic("inode: failed to read inode table block: " + err.Error())
	}
	return decodeRawInode(buf[offset : offset+rawInodeSize])
}

func (t *Table) writeRaw(inum int32, raw rawInode) error {
	blockNum, offset := t.inodeLocation(inum)
	buf := make([]byte, blockSize)
	if err := t.img.ReadBlock(blockNum, buf); err != nil {
		return err
	}
	copy(buf[offset:offset+rawInodeSize], encodeRawInode(raw))
	return t.img.WriteBlock(blockNum, buf)
}

// Get returns a handle to inode inum. It panics if inum is out of range
// (spec.md §7 class 5, a programmer error, not a user error) but does not
// itself check whether the inode is allocated — callers that need that
// guarantee should consult the inode bitmap or rely on path resolution
// having already done so.
func (t *Table) Get(inum int32) *Node {
	return &Node{table: t, inum: inum, raw: t.readRaw(inum)}
}

// Alloc creates a new inode with the given mode, per spec.md §4.3:
// refs=0, one claimed data block as direct[0], num_blocks=1. The caller
// (directory.Link) is responsible for bumping refs to 1 once the inode is
// published into a directory.
func (t *Table) Alloc(mode uint32) (*Node, error) {
	inum, err := t.inodeAlloc.Allocate()
	if err != nil {
		return nil, err
	}
	if ferr := t.flushBlock0(); ferr != nil {
		return nil, ferr
	}

	firstBlock, err := t.AllocBlock()
	if err != nil {
		// Roll back the inode allocation; nothing else has been touched.
		_ = t.inodeAlloc.Free(inum)
		_ = t.flushBlock0()
		return nil, err
	}

	now := time.Now()
	raw := rawInode{
		Refs:      0,
		Mode:      mode,
		Size:      0,
		NumBlocks: 1,
		Indirect:  Unallocated,
	}
	for i := range raw.Direct {
		raw.Direct[i] = Unallocated
	}
	raw.Direct[0] = int32(firstBlock)
	setRawTimes(&raw, now, now)

	if err := t.writeRaw(int32(inum), raw); err != nil {
		return nil, err
	}
	return &Node{table: t, inum: int32(inum), raw: raw}, nil
}

// Free decrements refs; once they reach zero it releases every block the
// inode owns (indirect entries, then the indirect block, then the direct
// blocks), zeroes the record, and clears the inode bitmap bit (spec.md
// §4.3).
func (t *Table) Free(inum int32) error {
	n := t.Get(inum)
	if n.raw.Refs > 1 {
		n.raw.Refs--
		return t.writeRaw(inum, n.raw)
	}

	var result *multierror.Error
	for i := int(n.raw.NumBlocks) - 1; i >= NumDirect; i-- {
		bnum, err := n.indirectSlot(i - NumDirect)
		if err == nil && bnum >= 0 {
			if ferr := t.FreeBlock(bnum); ferr != nil {
				result = multierror.Append(result, ferr)
			}
		}
	}
	if n.raw.Indirect != Unallocated {
		if err := t.FreeBlock(int(n.raw.Indirect)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	upperDirect := int(n.raw.NumBlocks)
	if upperDirect > NumDirect {
		upperDirect = NumDirect
	}
	for i := 0; i < upperDirect; i++ {
		if n.raw.Direct[i] != Unallocated {
			if err := t.FreeBlock(int(n.raw.Direct[i])); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	zeroed := rawInode{Indirect: Unallocated}
	for i := range zeroed.Direct {
		zeroed.Direct[i] = Unallocated
	}
	if err := t.writeRaw(inum, zeroed); err != nil {
		result = multierror.Append(result, err)
	}

	if err := t.inodeAlloc.Free(int(inum)); err != nil {
		result = multierror.Append(result, err)
	}
	if err := t.flushBlock0(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}
