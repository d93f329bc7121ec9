package adjacency

import (
	"encoding/binary"
	"fmt"
)

// appendRun encodes one node's neighbors as uvarint(count) followed by the
// uvarint deltas of the ascending ids.
func appendRun(dst []byte, sorted []int64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(sorted)))
	dst = append(dst, buf[:n]...)

	last := int64(0)
	for _, id := range sorted {
		n = binary.PutUvarint(buf[:], uint64(id-last))
		dst = append(dst, buf[:n]...)
		last = id
	}
	return dst
}

// runLength reads the neighbor count at the start of an encoded run.
func runLength(data []byte) (int, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, fmt.Errorf("corrupt adjacency run header")
	}
	return int(count), nil
}

// decodeRun appends the neighbors of an encoded run to dst.
func decodeRun(dst []int64, data []byte) ([]int64, error) {
	err := visitRun(data, func(id int64) bool {
		dst = append(dst, id)
		return true
	})
	return dst, err
}

// visitRun decodes a run one neighbor at a time and stops early when fn
// returns false.
func visitRun(data []byte, fn func(id int64) bool) error {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return fmt.Errorf("corrupt adjacency run header")
	}
	offset := n
	last := int64(0)
	for i := uint64(0); i < count; i++ {
		delta, m := binary.Uvarint(data[offset:])
		if m <= 0 {
			return fmt.Errorf("corrupt adjacency run at entry %d", i)
		}
		offset += m
		last += int64(delta)
		if !fn(last) {
			return nil
		}
	}
	return nil
}
