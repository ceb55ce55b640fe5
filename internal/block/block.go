// Package block implements C1 of the storage engine: a fixed-size disk image
// partitioned into fixed-size blocks, exposed as raw byte-slice views. It is
// modeled on dargueta-disko's drivers/common.BlockStream, generalized from a
// 512-byte sector stream into the 4096-byte block stream spec.md §3 assumes.
package block

import (
	"io"
)

// Size is the fixed block size used across the image, per spec.md §3.
const Size = 4096

// Image is a fixed-size disk image, accessed in whole-block units. It wraps
// any io.ReadWriteSeeker, so the same code works against an *os.File in
// production and an in-memory github.com/xaionaro-go/bytesextra stream in
// tests; only shrinking through Resize also needs Truncate.
type Image struct {
	stream      io.ReadWriteSeeker
	totalBlocks int
}

// Truncator matches os.File.Truncate; streams that don't implement it can
// still be grown by Image.Resize, but Resize panics if asked to shrink them.
type Truncator interface {
	Truncate(size int64) error
}

// Open wraps stream as an Image containing totalBlocks blocks of Size bytes
// each. It does not read or write anything; callers are responsible for
// initializing or validating the image's contents.
func Open(stream io.ReadWriteSeeker, totalBlocks int) *Image {
	return &Image{stream: stream, totalBlocks: totalBlocks}
}

// BlockCount determines how many whole blocks fit in stream, by seeking to
// its end.
func BlockCount(stream io.Seeker) (int, error) {
	end, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return int(end / Size), nil
}

func (img *Image) TotalBlocks() int {
	return img.totalBlocks
}

func (img *Image) offsetOf(block int) int64 {
	return int64(block) * Size
}

// ReadBlock fills buf (which must be exactly Size bytes) with the contents of
// the given block.
func (img *Image) ReadBlock(block int, buf []byte) error {
	if len(buf) != Size {
		panic("block: ReadBlock buffer must be exactly one block long")
	}
	if block < 0 || block >= img.totalBlocks {
		panic("block: block index out of range")
	}
	if _, err := img.stream.Seek(img.offsetOf(block), io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(img.stream, buf)
	return err
}

// WriteBlock writes buf (which must be exactly Size bytes) to the given
// block.
func (img *Image) WriteBlock(block int, buf []byte) error {
	if len(buf) != Size {
		panic("block: WriteBlock buffer must be exactly one block long")
	}
	if block < 0 || block >= img.totalBlocks {
		panic("block: block index out of range")
	}
	if _, err := img.stream.Seek(img.offsetOf(block), io.SeekStart); err != nil {
		return err
	}
	_, err := img.stream.Write(buf)
	return err
}

// ReadAt reads raw bytes at an arbitrary byte offset, spanning blocks as
// needed. Used by inode I/O (C5), which operates at byte granularity.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if _, err := img.stream.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(img.stream, p)
}

// WriteAt writes raw bytes at an arbitrary byte offset, spanning blocks as
// needed.
func (img *Image) WriteAt(p []byte, off int64) (int, error) {
	if _, err := img.stream.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return img.stream.Write(p)
}

// Resize grows or shrinks the image to exactly newTotalBlocks blocks. Growing
// appends null bytes; shrinking requires the backing stream to implement
// Truncator.
func (img *Image) Resize(newTotalBlocks int) error {
	if newTotalBlocks == img.totalBlocks {
		return nil
	}

	if newTotalBlocks > img.totalBlocks {
		if _, err := img.stream.Seek(img.offsetOf(img.totalBlocks), io.SeekStart); err != nil {
			return err
		}
		zeros := make([]byte, (newTotalBlocks-img.totalBlocks)*Size)
		if _, err := img.stream.Write(zeros); err != nil {
			return err
		}
		img.totalBlocks = newTotalBlocks
		return nil
	}

	truncator, ok := img.stream.(Truncator)
	if !ok {
		panic("block: backing stream doesn't support shrinking")
	}
	if err := truncator.Truncate(int64(newTotalBlocks) * Size); err != nil {
		return err
	}
	img.totalBlocks = newTotalBlocks
	return nil
}
