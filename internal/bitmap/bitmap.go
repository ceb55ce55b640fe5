// Package bitmap implements C2 of the storage engine: a bit-addressed
// allocation map, get/set/first-clear over a fixed number of bits. It is a
// thin layer over github.com/boljen/go-bitmap, the same library
// dargueta-disko's allocator (drivers/common/allocatormap.go) uses.
package bitmap

import (
	bbitmap "github.com/boljen/go-bitmap"
)

// Bitmap records allocation state for a fixed number of resources (blocks or
// inodes). Bit i is set iff resource i is in use.
type Bitmap struct {
	bits  bbitmap.Bitmap
	count int
}

// New creates a bitmap with count bits, all initially clear.
func New(count int) *Bitmap {
	return &Bitmap{bits: bbitmap.New(count), count: count}
}

// FromBytes wraps an existing byte slice as a bitmap without copying it, so
// callers can keep a bitmap backed by a block of the disk image.
func FromBytes(data []byte, count int) *Bitmap {
	return &Bitmap{bits: bbitmap.Bitmap(data), count: count}
}

func (b *Bitmap) Len() int {
	return b.count
}

func (b *Bitmap) Get(i int) bool {
	return b.bits.Get(i)
}

func (b *Bitmap) Set(i int, value bool) {
	b.bits.Set(i, value)
}

// FirstClear scans from bit 0 for the first clear bit at index < limit. It
// returns -1 if none is found. Lowest-index-first is required so allocation
// order is deterministic (spec.md §4.2, §9).
func (b *Bitmap) FirstClear(limit int) int {
	if limit > b.count {
		limit = b.count
	}
	for i := 0; i < limit; i++ {
		if !b.bits.Get(i) {
			return i
		}
	}
	return -1
}

// Count returns the number of set bits among the first limit bits.
func (b *Bitmap) Count(limit int) int {
	if limit > b.count {
		limit = b.count
	}
	n := 0
	for i := 0; i < limit; i++ {
		if b.bits.Get(i) {
			n++
		}
	}
	return n
}

// Data returns the raw backing bytes, for flushing to the disk image.
func (b *Bitmap) Data() []byte {
	return b.bits.Data(false)
}
