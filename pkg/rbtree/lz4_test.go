package rbtree_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/regiontree/pkg/rbtree"
)

func TestCompressDecompressUInt32Slice(t *testing.T) {
	t.Parallel()

	data := make([]uint32, 1000)
	for idx := range data {
		data[idx] = 7
	}

	packed := rbtree.CompressUInt32Slice(data)
	assert.NotEmpty(t, packed)
	assert.Less(t, len(packed), len(data)*4, "repetitive input must shrink")

	restored := make([]uint32, len(data))
	require.NoError(t, rbtree.DecompressUInt32Slice(packed, restored))
	assert.Equal(t, data, restored)
}

func TestCompressIncompressible(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))

	data := make([]uint32, 64)
	for idx := range data {
		data[idx] = rng.Uint32()
	}

	packed := rbtree.CompressUInt32Slice(data)
	restored := make([]uint32, len(data))
	require.NoError(t, rbtree.DecompressUInt32Slice(packed, restored))
	assert.Equal(t, data, restored)
}

func TestDecompressCorrupted(t *testing.T) {
	t.Parallel()

	packed := rbtree.CompressUInt32Slice([]uint32{1, 2, 3})
	result := make([]uint32, 4)

	require.ErrorIs(t, rbtree.DecompressUInt32Slice(packed, result), rbtree.ErrPackedColumn)
	require.ErrorIs(t, rbtree.DecompressUInt32Slice(nil, result), rbtree.ErrPackedColumn)
	require.ErrorIs(t, rbtree.DecompressUInt32Slice([]byte{9, 0}, result), rbtree.ErrPackedColumn)
	require.NoError(t, rbtree.DecompressUInt32Slice(nil, nil))
}

func TestDeltaEncodeDecode(t *testing.T) {
	t.Parallel()

	data := []uint32{3, 5, 9, 9, 20}
	rbtree.DeltaEncodeUInt32Slice(data)
	assert.Equal(t, []uint32{3, 2, 4, 0, 11}, data)

	rbtree.DeltaDecodeUInt32Slice(data)
	assert.Equal(t, []uint32{3, 5, 9, 9, 20}, data)
}
