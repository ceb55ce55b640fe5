// Package alloc implements C3 of the storage engine: allocation and freeing
// of data blocks via the data-block bitmap. Grounded on
// dargueta-disko/drivers/common.Allocator, keeping its lowest-index-first
// tie-break so tests are deterministic (spec.md §4.2, §9).
package alloc

import (
	"fmt"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/bitmap"
)

// Allocator hands out and reclaims indices (block numbers or inode numbers)
// backed by a bitmap, always picking the lowest free index first.
type Allocator struct {
	bits  *bitmap.Bitmap
	total int
}

// New wraps an existing bitmap of total bits as an allocator.
func New(bits *bitmap.Bitmap, total int) *Allocator {
	return &Allocator{bits: bits, total: total}
}

// Allocate claims the first available index and returns it, or ErrNoSpace if
// the bitmap is full.
func (a *Allocator) Allocate() (int, error) {
	idx := a.bits.FirstClear(a.total)
	if idx < 0 {
		return 0, errors.ErrNoSpace
	}
	a.bits.Set(idx, true)
	return idx, nil
}

// Free releases a previously allocated index. Zeroing its former contents is
// not required (spec.md §4.2).
func (a *Allocator) Free(idx int) error {
	if idx < 0 || idx >= a.total {
		return errors.NewWithMessagef(
			errors.ErrInvalidArgument.Errno,
			"index %d not in range [0, %d)", idx, a.total,
		)
	}
	if !a.bits.Get(idx) {
		return errors.NewWithMessage(errors.ErrInvalidArgument.Errno, fmt.Sprintf("index %d is already free", idx))
	}
	a.bits.Set(idx, false)
	return nil
}

// InUse reports whether idx is currently allocated.
func (a *Allocator) InUse(idx int) bool {
	return a.bits.Get(idx)
}

// CountInUse returns the number of currently-allocated indices.
func (a *Allocator) CountInUse() int {
	return a.bits.Count(a.total)
}

// Total returns the number of indices this allocator manages.
func (a *Allocator) Total() int {
	return a.total
}
