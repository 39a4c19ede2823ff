package varint_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/vheck/emberwire/internal/varint"
)

func TestUintRoundTrip(t *testing.T) {
	is := is.New(t)

	testCases := []struct {
		value   uint64
		wantLen int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{300, 2},
		{16383, 2},
		{16384, 3},
		{math.MaxUint32, 5},
		{math.MaxUint64, 10},
	}

	for _, tc := range testCases {
		encoded := varint.AppendUint(nil, tc.value)
		is.Equal(len(encoded), tc.wantLen)
		is.Equal(len(encoded), varint.Len(tc.value))

		decoded, n, err := varint.Uint(encoded)
		is.NoErr(err)
		is.Equal(n, len(encoded))
		is.Equal(decoded, tc.value)
	}
}

func TestUintConsumesOnlyItsOwnBytes(t *testing.T) {
	is := is.New(t)

	encoded := varint.AppendUint(nil, 300)
	encoded = append(encoded, 0xde, 0xad)

	decoded, n, err := varint.Uint(encoded)
	is.NoErr(err)
	is.Equal(n, 2)
	is.Equal(decoded, uint64(300))
}

func TestUintMalformed(t *testing.T) {
	is := is.New(t)

	// continuation chain longer than any uint64 can need
	overlong := bytes.Repeat([]byte{0x80}, 11)
	_, _, err := varint.Uint(overlong)
	is.Equal(err, varint.ErrMalformed)

	// ten bytes, but the last one carries more than the single bit that
	// still fits into a uint64
	toobig := append(bytes.Repeat([]byte{0x80}, 9), 0x02)
	_, _, err = varint.Uint(toobig)
	is.Equal(err, varint.ErrMalformed)

	// buffer runs out mid-chain
	truncated := []byte{0x80, 0x80}
	_, _, err = varint.Uint(truncated)
	is.Equal(err, varint.ErrMalformed)

	// empty buffer
	_, _, err = varint.Uint(nil)
	is.Equal(err, varint.ErrMalformed)
}

func TestIntRoundTrip(t *testing.T) {
	is := is.New(t)

	testCases := []int64{0, 1, -1, 42, -42, math.MaxInt64, math.MinInt64}

	for _, tc := range testCases {
		encoded := varint.AppendInt(nil, tc)

		decoded, n, err := varint.Int(encoded)
		is.NoErr(err)
		is.Equal(n, len(encoded))
		is.Equal(decoded, tc)
	}

	// small magnitudes must stay small on the wire
	is.Equal(len(varint.AppendInt(nil, -1)), 1)
	is.Equal(len(varint.AppendInt(nil, -64)), 1)
}
