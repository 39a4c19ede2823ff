package wire

import (
	"fmt"

	"github.com/vheck/emberwire/internal/bitmask"
	"github.com/vheck/emberwire/internal/byteorder"
	"github.com/vheck/emberwire/internal/debug"
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/varint"
)

// Encode serializes r into a freshly allocated, exactly sized buffer. The
// only possible failure is ErrOversizedRecord; everything else an encoder
// could trip over is a programmer error, since it works from in-memory data
// the setters already checked.
func Encode(r *Record) ([]byte, error) {
	s := r.schema
	size := ComputeSize(r)
	if size > s.MaxSize() {
		return nil, fmt.Errorf("%w: %q encodes to %d bytes, max is %d",
			ErrOversizedRecord, s.Name(), size, s.MaxSize())
	}

	// fixed block now, variable payloads appended behind it; cap is exact
	// so the appends below never reallocate
	buf := make([]byte, s.FixedSize(), size)

	if n := s.NullableCount(); n > 0 {
		flags := make([]bool, n)
		for i := 0; i < s.NumFields(); i++ {
			if bit := s.Layout(i).Bit; bit >= 0 {
				flags[bit] = r.values[i].present
			}
		}
		copy(buf, bitmask.Append(nil, flags))
	}

	cursor := 0 // write position within the variable block
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		lay := s.Layout(i)
		v := &r.values[i]

		switch {
		case f.Kind == schema.KindStruct:
			// absent sub-records leave their slot zeroed
			if v.present {
				encodeFixed(buf[lay.Slot:lay.Slot+lay.Width], v.sub)
			}
		case !f.Kind.Variable():
			if v.present {
				putScalar(buf[lay.Slot:], f.Kind, v.scalar)
			}
		default:
			// absent variable fields repeat the current cursor so
			// that offsets stay gapless and monotonic
			byteorder.PutU32(buf[lay.Slot:], uint32(cursor))
			if !v.present {
				continue
			}
			prev := len(buf)
			switch f.Kind {
			case schema.KindBytes, schema.KindString:
				buf = varint.AppendUint(buf, uint64(len(v.bytes)))
				buf = append(buf, v.bytes...)
			case schema.KindArray:
				buf = varint.AppendUint(buf, uint64(len(v.elems)))
				for _, e := range v.elems {
					start := len(buf)
					buf = append(buf, make([]byte, f.Sub.FixedSize())...)
					encodeFixed(buf[start:], e)
				}
			}
			cursor += len(buf) - prev
		}
	}

	debug.Assert(len(buf) == size)
	return buf, nil
}

// encodeFixed writes a fixed-only record into dst, which the caller sizes to
// exactly rec's fixed size.
func encodeFixed(dst []byte, rec *Record) {
	s := rec.schema
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		lay := s.Layout(i)
		if f.Kind == schema.KindStruct {
			// never-populated sub-records encode as zeros
			if sub := rec.values[i].sub; sub != nil {
				encodeFixed(dst[lay.Slot:lay.Slot+lay.Width], sub)
			}
		} else {
			putScalar(dst[lay.Slot:], f.Kind, rec.values[i].scalar)
		}
	}
}

func putScalar(dst []byte, k schema.Kind, bits uint64) {
	switch k.Width() {
	case 1:
		dst[0] = byte(bits)
	case 2:
		byteorder.PutU16(dst, uint16(bits))
	case 4:
		byteorder.PutU32(dst, uint32(bits))
	case 8:
		byteorder.PutU64(dst, bits)
	default:
		debug.Assert(false, k.String())
	}
}
