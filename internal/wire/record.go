// Package wire packs records into their binary encoding and back. The layout
// comes from a schema; the encoding is a null bitmask, then the fixed block
// with one slot per field (variable fields hold offset-table entries), then
// the variable block with length-prefixed payloads.
//
// Encode and Decode are pure functions over (schema, buffer); the package
// keeps no state and takes no locks. A record belongs to one goroutine at a
// time, a decoded record shares no memory with the buffer it came from.
package wire

import (
	"math"

	"github.com/vheck/emberwire/internal/debug"
	"github.com/vheck/emberwire/internal/schema"
)

// value is one field slot. scalar holds the canonical bit pattern of fixed
// primitives: masked two's complement for signed kinds, IEEE 754 bits for
// floats, 0 or 1 for bools. Exactly one of scalar/bytes/sub/elems is
// meaningful, which one depends on the field kind.
type value struct {
	present bool
	scalar  uint64
	bytes   []byte
	sub     *Record
	elems   []*Record
}

// Record is a single decoded or to-be-encoded packet instance. Setters mark
// the field present; kind mismatches are programmer errors and assert.
type Record struct {
	schema *schema.Schema
	values []value
}

func NewRecord(s *schema.Schema) *Record {
	debug.Assert(s != nil)
	return &Record{
		schema: s,
		values: make([]value, s.NumFields()),
	}
}

func (r *Record) Schema() *schema.Schema {
	return r.schema
}

// Present reports whether field i carries a value. Non-nullable fields are
// always present once set; freshly created records have every field absent
// until a setter runs.
func (r *Record) Present(i int) bool {
	return r.values[i].present
}

// SetNull marks nullable field i absent.
func (r *Record) SetNull(i int) {
	f := r.schema.Field(i)
	debug.Assert(f.Nullable, f.Name)
	r.values[i] = value{}
}

func (r *Record) SetBool(i int, v bool) {
	debug.Assert(r.schema.Field(i).Kind == schema.KindBool, r.schema.Field(i).Name)
	bits := uint64(0)
	if v {
		bits = 1
	}
	r.values[i] = value{present: true, scalar: bits}
}

func (r *Record) Bool(i int) bool {
	debug.Assert(r.schema.Field(i).Kind == schema.KindBool, r.schema.Field(i).Name)
	return r.values[i].scalar != 0
}

func (r *Record) SetUint(i int, v uint64) {
	f := r.schema.Field(i)
	debug.Assert(isUintKind(f.Kind), f.Name)
	debug.Assert(v <= widthMask(f.Kind), f.Name)
	r.values[i] = value{present: true, scalar: v}
}

func (r *Record) Uint(i int) uint64 {
	f := r.schema.Field(i)
	debug.Assert(isUintKind(f.Kind), f.Name)
	return r.values[i].scalar
}

func (r *Record) SetInt(i int, v int64) {
	f := r.schema.Field(i)
	debug.Assert(isIntKind(f.Kind), f.Name)
	bits := uint64(f.Kind.Width() * 8)
	debug.Assert(v >= -1<<(bits-1) && v <= 1<<(bits-1)-1, f.Name)
	r.values[i] = value{present: true, scalar: uint64(v) & widthMask(f.Kind)}
}

func (r *Record) Int(i int) int64 {
	f := r.schema.Field(i)
	debug.Assert(isIntKind(f.Kind), f.Name)
	shift := uint(64 - f.Kind.Width()*8)
	return int64(r.values[i].scalar<<shift) >> shift
}

func (r *Record) SetFloat32(i int, v float32) {
	debug.Assert(r.schema.Field(i).Kind == schema.KindFloat32, r.schema.Field(i).Name)
	r.values[i] = value{present: true, scalar: uint64(math.Float32bits(v))}
}

func (r *Record) Float32(i int) float32 {
	debug.Assert(r.schema.Field(i).Kind == schema.KindFloat32, r.schema.Field(i).Name)
	return math.Float32frombits(uint32(r.values[i].scalar))
}

func (r *Record) SetFloat64(i int, v float64) {
	debug.Assert(r.schema.Field(i).Kind == schema.KindFloat64, r.schema.Field(i).Name)
	r.values[i] = value{present: true, scalar: math.Float64bits(v)}
}

func (r *Record) Float64(i int) float64 {
	debug.Assert(r.schema.Field(i).Kind == schema.KindFloat64, r.schema.Field(i).Name)
	return math.Float64frombits(r.values[i].scalar)
}

// SetBytes stores v without copying; the record takes ownership.
func (r *Record) SetBytes(i int, v []byte) {
	debug.Assert(r.schema.Field(i).Kind == schema.KindBytes, r.schema.Field(i).Name)
	if v == nil {
		v = []byte{}
	}
	r.values[i] = value{present: true, bytes: v}
}

func (r *Record) Bytes(i int) []byte {
	debug.Assert(r.schema.Field(i).Kind == schema.KindBytes, r.schema.Field(i).Name)
	return r.values[i].bytes
}

func (r *Record) SetString(i int, v string) {
	debug.Assert(r.schema.Field(i).Kind == schema.KindString, r.schema.Field(i).Name)
	r.values[i] = value{present: true, bytes: []byte(v)}
}

func (r *Record) String(i int) string {
	debug.Assert(r.schema.Field(i).Kind == schema.KindString, r.schema.Field(i).Name)
	return string(r.values[i].bytes)
}

func (r *Record) SetStruct(i int, v *Record) {
	f := r.schema.Field(i)
	debug.Assert(f.Kind == schema.KindStruct, f.Name)
	debug.Assert(v != nil && v.schema == f.Sub, f.Name)
	r.values[i] = value{present: true, sub: v}
}

// Struct returns the sub-record of field i, nil when absent.
func (r *Record) Struct(i int) *Record {
	debug.Assert(r.schema.Field(i).Kind == schema.KindStruct, r.schema.Field(i).Name)
	return r.values[i].sub
}

func (r *Record) SetArray(i int, elems []*Record) {
	f := r.schema.Field(i)
	debug.Assert(f.Kind == schema.KindArray, f.Name)
	copied := make([]*Record, len(elems))
	for j, e := range elems {
		debug.Assert(e != nil && e.schema == f.Sub, f.Name)
		copied[j] = e
	}
	r.values[i] = value{present: true, elems: copied}
}

// Array returns the elements of field i, nil when absent.
func (r *Record) Array(i int) []*Record {
	debug.Assert(r.schema.Field(i).Kind == schema.KindArray, r.schema.Field(i).Name)
	return r.values[i].elems
}

func isUintKind(k schema.Kind) bool {
	switch k {
	case schema.KindUint8, schema.KindUint16, schema.KindUint32, schema.KindUint64:
		return true
	}
	return false
}

func isIntKind(k schema.Kind) bool {
	switch k {
	case schema.KindInt8, schema.KindInt16, schema.KindInt32, schema.KindInt64:
		return true
	}
	return false
}

func widthMask(k schema.Kind) uint64 {
	switch k.Width() {
	case 1:
		return 0xff
	case 2:
		return 0xffff
	case 4:
		return 0xffffffff
	}
	return ^uint64(0)
}
