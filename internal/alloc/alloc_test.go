package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nufs-go/nufs/errors"
	"github.com/nufs-go/nufs/internal/alloc"
	"github.com/nufs-go/nufs/internal/bitmap"
)

func newAllocator(total int) *alloc.Allocator {
	return alloc.New(bitmap.New(total), total)
}

func TestAllocateReturnsLowestFreeIndexFirst(t *testing.T) {
	a := newAllocator(8)

	first, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 0, first)

	second, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 1, second)
}

func TestFreeMakesIndexAvailableAgain(t *testing.T) {
	a := newAllocator(2)

	first, err := a.Allocate()
	require.NoError(t, err)
	_, err = a.Allocate()
	require.NoError(t, err)

	require.NoError(t, a.Free(first))

	reused, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, first, reused)
}

func TestAllocateFailsWhenExhausted(t *testing.T) {
	a := newAllocator(1)
	_, err := a.Allocate()
	require.NoError(t, err)

	_, err = a.Allocate()
	require.ErrorIs(t, err, errors.ErrNoSpace)
}

func TestGrowShrinkRestoresPopulation(t *testing.T) {
	a := newAllocator(16)
	before := a.CountInUse()

	allocated := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		b, err := a.Allocate()
		require.NoError(t, err)
		allocated = append(allocated, b)
	}
	for _, b := range allocated {
		require.NoError(t, a.Free(b))
	}

	assert.Equal(t, before, a.CountInUse())
}

func TestFreeingAlreadyFreeIndexFails(t *testing.T) {
	a := newAllocator(4)
	err := a.Free(0)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}
