package indexer

import (
	"errors"
	"math"
)

// BlockRange is an inclusive range of block numbers.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len is the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

var (
	errZeroBatch     = errors.New("batch size must be greater than zero")
	errInvertedRange = errors.New("to block must be >= from block")
)

// Batches cuts [from, to] into consecutive ranges of at most size blocks.
func Batches(from, to, size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, errZeroBatch
	}
	if to < from {
		return nil, errInvertedRange
	}

	out := make([]BlockRange, 0, (to-from)/size+1)
	for start := from; ; {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to || end == math.MaxUint64 {
			return out, nil
		}
		start = end + 1
	}
}
