package rbtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Block modes prefixed to every packed column.
const (
	blockRaw byte = iota
	blockLZ4
)

// ErrPackedColumn is returned when a packed column cannot be restored.
var ErrPackedColumn = errors.New("corrupted packed column")

// CompressUInt32Slice packs a slice of uint32-s into a single LZ4 block.
// Input that LZ4 cannot shrink is stored raw so that the result always round-trips.
func CompressUInt32Slice(data []uint32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(data) * uint32ByteSize)

	// Writing to a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, data)

	packed := make([]byte, 1+lz4.CompressBlockBound(buf.Len()))

	written, err := lz4.CompressBlock(buf.Bytes(), packed[1:], nil)
	if err != nil || written == 0 {
		packed = make([]byte, 1+buf.Len())
		packed[0] = blockRaw
		copy(packed[1:], buf.Bytes())

		return packed
	}

	packed[0] = blockLZ4

	return packed[:1+written]
}

// DecompressUInt32Slice restores a slice produced by CompressUInt32Slice.
// `result` must be preallocated with the original length.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	if len(result) == 0 {
		return nil
	}

	if len(data) == 0 {
		return fmt.Errorf("%w: empty block for %d values", ErrPackedColumn, len(result))
	}

	raw := data[1:]

	switch data[0] {
	case blockRaw:
	case blockLZ4:
		raw = make([]byte, len(result)*uint32ByteSize)

		written, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPackedColumn, err)
		}

		raw = raw[:written]
	default:
		return fmt.Errorf("%w: unknown block mode %d", ErrPackedColumn, data[0])
	}

	if len(raw) != len(result)*uint32ByteSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPackedColumn, len(raw), len(result)*uint32ByteSize)
	}

	err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, result)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPackedColumn, err)
	}

	return nil
}

// DeltaEncodeUInt32Slice replaces each element with the difference from its
// predecessor, in place. Sorted input turns into small repetitive values.
func DeltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// DeltaDecodeUInt32Slice undoes DeltaEncodeUInt32Slice in place.
func DeltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
