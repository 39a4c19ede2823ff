package bitmask

import "errors"

// A bitmask packs one presence flag per nullable field, least significant bit
// first, in field declaration order. Bit i of byte i/8 holds flag i.

var ErrInsufficientData = errors.New("bitmask: insufficient data")

// Size returns the number of bytes needed to hold n flags.
func Size(n int) int {
	return (n + 7) / 8
}

// Append packs flags onto dst and returns the extended slice.
func Append(dst []byte, flags []bool) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, Size(len(flags)))...)
	for i, f := range flags {
		if f {
			dst[start+i/8] |= 1 << (uint(i) % 8)
		}
	}
	return dst
}

// Read unpacks n flags from the start of buf.
func Read(buf []byte, n int) ([]bool, error) {
	if len(buf) < Size(n) {
		return nil, ErrInsufficientData
	}
	flags := make([]bool, n)
	for i := range flags {
		flags[i] = Bit(buf, i)
	}
	return flags, nil
}

// Bit reports flag i without unpacking the whole mask; callers guarantee that
// buf holds at least Size(i+1) bytes.
func Bit(buf []byte, i int) bool {
	return buf[i/8]&(1<<(uint(i)%8)) != 0
}
