package wire

import (
	"fmt"

	"github.com/vheck/emberwire/internal/bitmask"
	"github.com/vheck/emberwire/internal/byteorder"
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/varint"
)

// Validate establishes that Decode would neither fail nor read outside buf,
// without materializing a single field value and without allocating. Run it
// on anything a peer sent before trusting the bytes; a validation failure is
// a protocol violation and the connection is the unit of failure isolation.
func Validate(s *schema.Schema, buf []byte) error {
	_, err := ConsumedSize(s, buf)
	return err
}

// ConsumedSize walks the bitmask, offset table and length prefixes of the
// record at the start of buf and returns its total encoded size. Trailing
// bytes beyond that size are ignored, they belong to the transport.
func ConsumedSize(s *schema.Schema, buf []byte) (int, error) {
	if len(buf) < s.FixedSize() {
		return 0, fmt.Errorf("%w: %q needs a %d byte fixed block, have %d",
			ErrInsufficientData, s.Name(), s.FixedSize(), len(buf))
	}

	// spare bits in the last bitmask byte correspond to no field and must
	// be zero
	if n := s.NullableCount(); n%8 != 0 {
		if spare := buf[s.BitmaskLen()-1] >> (uint(n) % 8); spare != 0 {
			return 0, fmt.Errorf("%w: %q has spare bitmask bits set",
				ErrCorruptData, s.Name())
		}
	}

	varBase := s.FixedSize()
	cursor := 0 // read position within the variable block
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		lay := s.Layout(i)
		if lay.VarIdx < 0 {
			continue
		}

		// offsets leave no gaps: absent fields repeat the previous
		// cursor, present fields start exactly where the previous
		// payload ended
		off := int(byteorder.U32(buf[lay.Slot:]))
		if off != cursor {
			return 0, fmt.Errorf("%w: %q field %q offset is %d, want %d",
				ErrCorruptData, s.Name(), f.Name, off, cursor)
		}
		if lay.Bit >= 0 && !bitmask.Bit(buf, lay.Bit) {
			continue
		}

		pos := varBase + cursor
		length, n, err := varint.Uint(buf[pos:])
		if err != nil {
			return 0, fmt.Errorf("%q field %q length prefix: %w", s.Name(), f.Name, err)
		}

		// bound the claim against the remaining bytes before doing
		// any arithmetic with it, so that a hostile count can neither
		// overflow nor provoke a huge allocation downstream
		remaining := int64(len(buf) - pos - n)
		if length > uint64(remaining) {
			return 0, fmt.Errorf("%w: %q field %q declares %d, only %d bytes remain",
				ErrInsufficientData, s.Name(), f.Name, length, remaining)
		}
		payload := int64(length)
		if f.Kind == schema.KindArray {
			// divide instead of multiplying so a hostile count
			// cannot overflow
			elemSize := int64(f.Sub.FixedSize())
			if int64(length) > remaining/elemSize {
				return 0, fmt.Errorf("%w: %q field %q declares %d elements of %d bytes, only %d bytes remain",
					ErrInsufficientData, s.Name(), f.Name, length, elemSize, remaining)
			}
			payload = int64(length) * elemSize
		}

		cursor += n + int(payload)
	}

	total := varBase + cursor
	if total > s.MaxSize() {
		return 0, fmt.Errorf("%w: %q occupies %d bytes, max is %d",
			ErrOversizedRecord, s.Name(), total, s.MaxSize())
	}
	return total, nil
}
