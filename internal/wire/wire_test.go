package wire_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/wire"
)

var pointSchema = schema.MustNew("point", 64,
	schema.Field{Name: "x", Kind: schema.KindInt32},
	schema.Field{Name: "y", Kind: schema.KindInt32},
)

var entitySchema = schema.MustNew("entity", 4096,
	schema.Field{Name: "id", Kind: schema.KindUint64},
	schema.Field{Name: "kind", Kind: schema.KindUint8},
	schema.Field{Name: "active", Kind: schema.KindBool, Nullable: true},
	schema.Field{Name: "hp", Kind: schema.KindFloat32},
	schema.Field{Name: "ratio", Kind: schema.KindFloat64, Nullable: true},
	schema.Field{Name: "pos", Kind: schema.KindStruct, Sub: pointSchema},
	schema.Field{Name: "name", Kind: schema.KindString},
	schema.Field{Name: "tag", Kind: schema.KindString, Nullable: true},
	schema.Field{Name: "data", Kind: schema.KindBytes, Nullable: true},
	schema.Field{Name: "trail", Kind: schema.KindArray, Sub: pointSchema, Nullable: true},
	schema.Field{Name: "delta", Kind: schema.KindInt16},
)

func newPoint(x, y int32) *wire.Record {
	p := wire.NewRecord(pointSchema)
	p.SetInt(0, int64(x))
	p.SetInt(1, int64(y))
	return p
}

// newEntity populates every field; tests poke holes into it afterwards.
func newEntity() *wire.Record {
	r := wire.NewRecord(entitySchema)
	r.SetUint(0, 0xdeadbeefcafe)
	r.SetUint(1, 7)
	r.SetBool(2, true)
	r.SetFloat32(3, 99.5)
	r.SetFloat64(4, -0.25)
	r.SetStruct(5, newPoint(-13, 42))
	r.SetString(6, "gorbel")
	r.SetString(7, "boss")
	r.SetBytes(8, []byte{1, 2, 3})
	r.SetArray(9, []*wire.Record{newPoint(1, 2), newPoint(3, 4)})
	r.SetInt(10, -512)
	return r
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)

	variants := map[string]func(*wire.Record){
		"all present":   func(r *wire.Record) {},
		"no tag":        func(r *wire.Record) { r.SetNull(7) },
		"no extras":     func(r *wire.Record) { r.SetNull(2); r.SetNull(4); r.SetNull(8); r.SetNull(9) },
		"empty trail":   func(r *wire.Record) { r.SetArray(9, nil) },
		"all nulled":    func(r *wire.Record) { r.SetNull(2); r.SetNull(4); r.SetNull(7); r.SetNull(8); r.SetNull(9) },
		"nan and inf":   func(r *wire.Record) { r.SetFloat32(3, float32(math.Inf(1))); r.SetFloat64(4, math.MaxFloat64) },
		"extreme delta": func(r *wire.Record) { r.SetInt(10, math.MinInt16) },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)

			original := newEntity()
			mutate(original)

			encoded, err := wire.Encode(original)
			is.NoErr(err)
			is.Equal(len(encoded), wire.ComputeSize(original)) // size agreement

			is.NoErr(wire.Validate(entitySchema, encoded))

			consumed, err := wire.ConsumedSize(entitySchema, encoded)
			is.NoErr(err)
			is.Equal(consumed, len(encoded))

			decoded, err := wire.Decode(entitySchema, encoded)
			is.NoErr(err)
			is.Equal(decoded, original)
		})
	}
}

func TestDecodedValues(t *testing.T) {
	is := is.New(t)

	encoded, err := wire.Encode(newEntity())
	is.NoErr(err)

	r, err := wire.Decode(entitySchema, encoded)
	is.NoErr(err)

	is.Equal(r.Uint(0), uint64(0xdeadbeefcafe))
	is.Equal(r.Uint(1), uint64(7))
	is.True(r.Present(2))
	is.True(r.Bool(2))
	is.Equal(r.Float32(3), float32(99.5))
	is.Equal(r.Float64(4), -0.25)
	is.Equal(r.Struct(5).Int(0), int64(-13))
	is.Equal(r.Struct(5).Int(1), int64(42))
	is.Equal(r.String(6), "gorbel")
	is.Equal(r.String(7), "boss")
	is.Equal(r.Bytes(8), []byte{1, 2, 3})
	is.Equal(len(r.Array(9)), 2)
	is.Equal(r.Array(9)[1].Int(1), int64(4))
	is.Equal(r.Int(10), int64(-512))
}

// Two nullable strings, first set to "hi", second absent: one bitmask byte
// with only bit 0 set, two offset entries, and a variable block holding just
// the length prefix and payload of the first string.
func TestNullableStringPairLayout(t *testing.T) {
	is := is.New(t)

	s := schema.MustNew("pair", 256,
		schema.Field{Name: "a", Kind: schema.KindString, Nullable: true},
		schema.Field{Name: "b", Kind: schema.KindString, Nullable: true},
	)

	r := wire.NewRecord(s)
	r.SetString(0, "hi")

	encoded, err := wire.Encode(r)
	is.NoErr(err)
	is.Equal(encoded, []byte{
		0b00000001, // a present, b absent
		0, 0, 0, 0, // a begins at variable-block offset 0
		3, 0, 0, 0, // b repeats the cursor after a's 3 bytes
		2, 'h', 'i',
	})

	decoded, err := wire.Decode(s, encoded)
	is.NoErr(err)
	is.True(decoded.Present(0))
	is.Equal(decoded.String(0), "hi")
	is.True(!decoded.Present(1))
}

// A record with no nullable and no variable fields has a compile-time
// constant size and no bitmask or offset-table overhead.
func TestFixedOnlyRecord(t *testing.T) {
	is := is.New(t)

	s := schema.MustNew("block_change", 32,
		schema.Field{Name: "x", Kind: schema.KindInt32},
		schema.Field{Name: "y", Kind: schema.KindInt32},
		schema.Field{Name: "z", Kind: schema.KindInt32},
		schema.Field{Name: "block", Kind: schema.KindUint8},
		schema.Field{Name: "flags", Kind: schema.KindUint32},
	)
	is.Equal(s.FixedSize(), 17)

	r := wire.NewRecord(s)
	r.SetInt(0, 10)
	r.SetInt(1, -20)
	r.SetInt(2, 30)
	r.SetUint(3, 0xab)
	r.SetUint(4, 0xffffffff)

	is.Equal(wire.ComputeSize(r), 17)

	encoded, err := wire.Encode(r)
	is.NoErr(err)
	is.Equal(len(encoded), 17)

	is.NoErr(wire.Validate(s, encoded))
	err = wire.Validate(s, encoded[:16])
	is.True(errors.Is(err, wire.ErrInsufficientData))

	decoded, err := wire.Decode(s, encoded)
	is.NoErr(err)
	is.Equal(decoded, r)
}

// Truncating a valid encoding at any byte boundary must produce an error from
// both Validate and Decode, never a panic and never a bogus success.
func TestTruncationSafety(t *testing.T) {
	is := is.New(t)

	encoded, err := wire.Encode(newEntity())
	is.NoErr(err)

	for cut := 0; cut < len(encoded); cut++ {
		truncated := encoded[:cut]

		err := wire.Validate(entitySchema, truncated)
		is.True(err != nil)

		_, err = wire.Decode(entitySchema, truncated)
		is.True(err != nil)
	}
}

func TestValidateRejectsCorruptOffsets(t *testing.T) {
	is := is.New(t)

	encoded, err := wire.Encode(newEntity())
	is.NoErr(err)

	// the "tag" field's offset entry sits behind id(8) + kind(1) +
	// active(1) + hp(4) + ratio(8) + pos(8) + name offset(4) and the
	// bitmask byte
	tagSlot := entitySchema.Layout(7).Slot

	for _, bogus := range []byte{0x01, 0xff} {
		corrupted := append([]byte(nil), encoded...)
		corrupted[tagSlot] = bogus

		err := wire.Validate(entitySchema, corrupted)
		is.True(errors.Is(err, wire.ErrCorruptData))

		_, err = wire.Decode(entitySchema, corrupted)
		is.True(errors.Is(err, wire.ErrCorruptData))
	}
}

func TestValidateRejectsSpareBitmaskBits(t *testing.T) {
	is := is.New(t)

	encoded, err := wire.Encode(newEntity())
	is.NoErr(err)

	corrupted := append([]byte(nil), encoded...)
	corrupted[0] |= 1 << 6 // entity has 5 nullable fields, bit 6 maps to nothing

	err = wire.Validate(entitySchema, corrupted)
	is.True(errors.Is(err, wire.ErrCorruptData))
}

// A hostile array count must be rejected against the bytes actually present,
// before any allocation proportional to the count could happen.
func TestValidateRejectsHostileArrayCount(t *testing.T) {
	is := is.New(t)

	s := schema.MustNew("trail", 1<<20,
		schema.Field{Name: "points", Kind: schema.KindArray, Sub: pointSchema},
	)

	buf := []byte{
		0, 0, 0, 0, // offset entry
		0xc0, 0x84, 0x3d, // varint 1_000_000
		1, 2, 3, // far fewer than a million 8-byte points
	}

	err := wire.Validate(s, buf)
	is.True(errors.Is(err, wire.ErrInsufficientData))

	_, err = wire.Decode(s, buf)
	is.True(errors.Is(err, wire.ErrInsufficientData))
}

func TestOversizedRecord(t *testing.T) {
	is := is.New(t)

	s := schema.MustNew("tiny", 16,
		schema.Field{Name: "data", Kind: schema.KindBytes},
	)

	// encode-side guard
	r := wire.NewRecord(s)
	r.SetBytes(0, bytes.Repeat([]byte{0xaa}, 20))
	_, err := wire.Encode(r)
	is.True(errors.Is(err, wire.ErrOversizedRecord))

	// decode-side guard: the buffer itself may be larger than max size,
	// the declared record must not be
	buf := append([]byte{0, 0, 0, 0, 20}, bytes.Repeat([]byte{0xaa}, 20)...)
	err = wire.Validate(s, buf)
	is.True(errors.Is(err, wire.ErrOversizedRecord))

	_, err = wire.Decode(s, buf)
	is.True(errors.Is(err, wire.ErrOversizedRecord))
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	is := is.New(t)

	original := newEntity()
	encoded, err := wire.Encode(original)
	is.NoErr(err)

	padded := append(append([]byte(nil), encoded...), 0xde, 0xad, 0xbe, 0xef)

	consumed, err := wire.ConsumedSize(entitySchema, padded)
	is.NoErr(err)
	is.Equal(consumed, len(encoded))

	decoded, err := wire.Decode(entitySchema, padded)
	is.NoErr(err)
	is.Equal(decoded, original)
}
