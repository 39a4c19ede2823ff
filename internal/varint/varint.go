package varint

import (
	"errors"

	"github.com/vheck/emberwire/internal/zigzag"
)

// Unsigned integers are encoded as a chain of 7-bit groups, least significant
// group first, with the high bit of each byte set when more bytes follow. The
// codec uses these for lengths and element counts, where values are almost
// always tiny and a fixed 8-byte field would be waste.

// MaxLen is the most bytes a uint64 can occupy on the wire.
const MaxLen = 10

// ErrMalformed covers both overlong continuation chains and chains that run
// off the end of the buffer.
var ErrMalformed = errors.New("varint: malformed")

// AppendUint appends v to dst and returns the extended slice.
func AppendUint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Uint decodes a varint from the start of buf, returning the value and the
// number of bytes consumed.
func Uint(buf []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(buf); i++ {
		if i == MaxLen {
			return 0, 0, ErrMalformed
		}
		b := buf[i]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			// the tenth byte holds only the top bit of a uint64,
			// anything above 1 is an overlong encoding
			if i == MaxLen-1 && b > 1 {
				return 0, 0, ErrMalformed
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrMalformed
}

// Len returns the number of bytes AppendUint would write for v.
func Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// AppendInt appends v zigzag-mapped, so that small negative values stay small
// on the wire.
func AppendInt(dst []byte, v int64) []byte {
	return AppendUint(dst, zigzag.Encode64(v))
}

// Int decodes a zigzag-mapped varint from the start of buf.
func Int(buf []byte) (int64, int, error) {
	u, n, err := Uint(buf)
	if err != nil {
		return 0, 0, err
	}
	return zigzag.Decode64(u), n, nil
}
