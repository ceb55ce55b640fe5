package block_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/nufs-go/nufs/internal/block"
)

func newTestImage(t *testing.T, totalBlocks int) *block.Image {
	t.Helper()
	buf := make([]byte, totalBlocks*block.Size)
	stream := bytesextra.NewReadWriteSeeker(buf)
	return block.Open(stream, totalBlocks)
}

func TestWriteThenReadBlockRoundTrips(t *testing.T) {
	img := newTestImage(t, 4)

	want := bytes.Repeat([]byte{0xAB}, block.Size)
	require.NoError(t, img.WriteBlock(2, want))

	got := make([]byte, block.Size)
	require.NoError(t, img.ReadBlock(2, got))
	require.Equal(t, want, got)
}

func TestReadAtWriteAtSpanArbitraryOffsets(t *testing.T) {
	img := newTestImage(t, 2)

	payload := []byte("hello")
	n, err := img.WriteAt(payload, block.Size-2)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	got := make([]byte, len(payload))
	n, err = img.ReadAt(got, block.Size-2)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, got)
}

func TestResizeGrowsWithZeros(t *testing.T) {
	// The backing buffer has room for 2 blocks, but the image starts out
	// only aware of 1; Resize grows into the rest of the buffer the way a
	// real file would grow past its current EOF.
	buf := make([]byte, 2*block.Size)
	stream := bytesextra.NewReadWriteSeeker(buf)
	img := block.Open(stream, 1)

	require.NoError(t, img.Resize(2))
	require.Equal(t, 2, img.TotalBlocks())

	got := make([]byte, block.Size)
	require.NoError(t, img.ReadBlock(1, got))
	require.Equal(t, make([]byte, block.Size), got)
}
