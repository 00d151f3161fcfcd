package store

import (
	"encoding/binary"
	"math"
)

const signBit = uint64(1) << 63

func float64Bits(f float64) uint64 {
	return math.Float64bits(f)
}

func uint64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func bytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// ConcatKey joins a sortable prefix (e.g. an OrderedFloat64 encoding) with a
// primary key so that index tables sort by the prefix first and break ties
// on the primary key, matching the tie-break-by-primary-key-order rule used
// throughout the refresh scheduler and score stores.
func ConcatKey(prefix, primaryKey []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(primaryKey))
	out = append(out, prefix...)
	out = append(out, primaryKey...)
	return out
}
