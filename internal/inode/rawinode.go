package inode

import (
	"bytes"
	"encoding/binary"
)

// NumDirect is the number of direct block pointers per inode (spec.md §3,
// "reference: 12").
const NumDirect = 12

// Unallocated is the sentinel value stored in unused direct/indirect slots,
// matching the reference C implementation's use of -1.
const Unallocated int32 = -1

// rawInode is the fixed-size, disk-resident form of an inode. Its size must
// divide block.Size evenly so the inode table partitions cleanly into
// blocks (spec.md §3); with the fields below it comes to 128 bytes, giving
// 32 inodes per 4096-byte block.
type rawInode struct {
	Refs       int32
	Mode       uint32
	Size       int64
	NumBlocks  int32
	Direct     [NumDirect]int32
	Indirect   int32
	AtimeSec   int64
	AtimeNsec  int64
	MtimeSec   int64
	MtimeNsec  int64
	_          [24]byte
}

// rawInodeSize is the on-disk size of rawInode, computed once so callers
// never have to special-case it.
var rawInodeSize = binary.Size(rawInode{})

// inodesPerBlock is how many rawInode records fit in one block.
var inodesPerBlock = blockSize / rawInodeSize

func init() {
	if blockSize%rawInodeSize != 0 {
		panic("inode: rawInode size does not divide the block size evenly")
	}
}

func (r *rawInode) isDirectory() bool {
	return IsDirMode(r.Mode)
}

func decodeRawInode(data []byte) rawInode {
	var r rawInode
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &r); err != nil {
		panic("inode: corrupt inode record: " + err.Error())
	}
	return r
}

func encodeRawInode(r rawInode) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(rawInodeSize)
	if err := binary.Write(buf, binary.LittleEndian, &r); err != nil {
		panic("inode: failed to encode inode record: " + err.Error())
	}
	return buf.Bytes()
}
