package byteorder

import (
	"encoding/binary"
	"math"
)

// Every multi-byte value on the wire is little-endian; floats travel as their
// IEEE 754 bit patterns. These helpers exist so that the codec reads as
// Put/Get pairs instead of binary.LittleEndian noise everywhere.

func PutU16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}

func PutU32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

func PutU64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func U16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func U32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func U64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func PutF32(b []byte, v float32) {
	PutU32(b, math.Float32bits(v))
}

func PutF64(b []byte, v float64) {
	PutU64(b, math.Float64bits(v))
}

func F32(b []byte) float32 {
	return math.Float32frombits(U32(b))
}

func F64(b []byte) float64 {
	return math.Float64frombits(U64(b))
}
