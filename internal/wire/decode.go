package wire

import (
	"github.com/vheck/emberwire/internal/bitmask"
	"github.com/vheck/emberwire/internal/byteorder"
	"github.com/vheck/emberwire/internal/debug"
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/varint"
)

// Decode reconstructs the record at the start of buf. The structural walk of
// ConsumedSize runs first and is the only place errors can come from; the
// materialization below then indexes into bounds it has already proven. The
// returned record owns all of its memory and shares nothing with buf.
func Decode(s *schema.Schema, buf []byte) (*Record, error) {
	total, err := ConsumedSize(s, buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:total]

	r := NewRecord(s)

	var flags []bool
	if n := s.NullableCount(); n > 0 {
		flags, err = bitmask.Read(buf, n)
		debug.Assert(err == nil)
	}

	varBase := s.FixedSize()
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		lay := s.Layout(i)
		v := &r.values[i]

		v.present = lay.Bit < 0 || flags[lay.Bit]
		if !v.present {
			continue
		}

		switch {
		case f.Kind == schema.KindStruct:
			v.sub = decodeFixed(f.Sub, buf[lay.Slot:lay.Slot+lay.Width])
		case !f.Kind.Variable():
			v.scalar = getScalar(buf[lay.Slot:], f.Kind)
		default:
			pos := varBase + int(byteorder.U32(buf[lay.Slot:]))
			length, n, err := varint.Uint(buf[pos:])
			debug.Assert(err == nil)
			pos += n

			switch f.Kind {
			case schema.KindBytes, schema.KindString:
				v.bytes = append([]byte{}, buf[pos:pos+int(length)]...)
			case schema.KindArray:
				elemSize := f.Sub.FixedSize()
				v.elems = make([]*Record, length)
				for j := range v.elems {
					v.elems[j] = decodeFixed(f.Sub, buf[pos:pos+elemSize])
					pos += elemSize
				}
			}
		}
	}

	return r, nil
}

// decodeFixed materializes a fixed-only record from exactly its fixed-size
// worth of bytes.
func decodeFixed(s *schema.Schema, buf []byte) *Record {
	r := NewRecord(s)
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		lay := s.Layout(i)
		r.values[i].present = true
		if f.Kind == schema.KindStruct {
			r.values[i].sub = decodeFixed(f.Sub, buf[lay.Slot:lay.Slot+lay.Width])
		} else {
			r.values[i].scalar = getScalar(buf[lay.Slot:], f.Kind)
		}
	}
	return r
}

func getScalar(src []byte, k schema.Kind) uint64 {
	var bits uint64
	switch k.Width() {
	case 1:
		bits = uint64(src[0])
	case 2:
		bits = uint64(byteorder.U16(src))
	case 4:
		bits = uint64(byteorder.U32(src))
	case 8:
		bits = byteorder.U64(src)
	default:
		debug.Assert(false, k.String())
	}
	// bools normalize to the canonical 0/1 the setters produce
	if k == schema.KindBool && bits != 0 {
		bits = 1
	}
	return bits
}
