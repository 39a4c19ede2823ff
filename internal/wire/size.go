package wire

import (
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/varint"
)

// ComputeSize returns the exact number of bytes Encode will produce for r.
// The encoder allocates its output buffer once from this, which matters in a
// hot send path; for fixed-only schemas the result is the schema constant.
func ComputeSize(r *Record) int {
	s := r.schema
	size := s.FixedSize()
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		if !f.Kind.Variable() {
			continue
		}
		v := &r.values[i]
		if !v.present {
			continue
		}
		if f.Kind == schema.KindArray {
			size += varint.Len(uint64(len(v.elems))) + len(v.elems)*f.Sub.FixedSize()
		} else {
			size += varint.Len(uint64(len(v.bytes))) + len(v.bytes)
		}
	}
	return size
}
