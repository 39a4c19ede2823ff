package zigzag

// ZigZag maps signed integers onto unsigned ones so that values with a small
// absolute magnitude come out small: 0 -> 0, -1 -> 1, 1 -> 2, -2 -> 3 and so
// on. Varint encoding operates on unsigned integers and would otherwise blow
// small negative numbers up to the maximum byte count, since their two's
// complement representation has all high bits set.

func Encode32(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

func Decode32(n uint32) int32 {
	return int32(n>>1) ^ -int32(n&1)
}

func Encode64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func Decode64(n uint64) int64 {
	return int64(n>>1) ^ -int64(n&1)
}
