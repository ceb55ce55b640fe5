package inode

import "github.com/nufs-go/nufs/internal/block"

const blockSize = block.Size

// NumReservedBlocks is N_INO, the number of blocks reserved for the inode
// table (spec.md §3: "N_INO is a compile-time constant (reference: 3)").
const NumReservedBlocks = 3

// NumInodes is the fixed capacity of the inode table: ⌊B/sizeof(inode)⌋ ·
// N_INO (spec.md §3).
var NumInodes = inodesPerBlock * NumReservedBlocks

// FirstDataBlock is the first block number available to the allocator:
// block 0 (bitmaps) plus the NumReservedBlocks inode-table blocks.
const FirstDataBlock = 1 + NumReservedBlocks

// indirectCapacity is B / sizeof(int32), the number of block pointers an
// indirect block can hold (spec.md §3).
var indirectCapacity = blockSize / 4

// MaxBlocksPerInode is the largest number of blocks a single inode can
// address: NumDirect direct pointers plus one indirect block's worth.
var MaxBlocksPerInode = NumDirect + indirectCapacity
