// Package schema describes the wire layout of packet records: which fields a
// record has, in what order, which of them are nullable and which carry
// variable-size payloads. Schemas are built once at startup, never mutated
// afterwards, and are safe to share between goroutines.
package schema

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/vheck/emberwire/internal/bitmask"
)

// OffsetEntrySize is the width of one offset-table entry: a little-endian
// uint32 holding a variable field's byte offset relative to the start of the
// variable block.
const OffsetEntrySize = 4

type Kind uint8

const (
	KindInvalid Kind = iota

	KindBool
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64

	// KindStruct is a fixed-size sub-record inlined into the fixed block.
	KindStruct

	// KindBytes and KindString are length-prefixed payloads in the
	// variable block; they share a wire shape and differ only in how the
	// value is surfaced to the application.
	KindBytes
	KindString

	// KindArray is a varint element count followed by that many fixed-size
	// sub-records.
	KindArray
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindStruct:  "struct",
	KindBytes:   "bytes",
	KindString:  "string",
	KindArray:   "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Width returns the fixed slot width of primitive kinds, 0 for everything
// else.
func (k Kind) Width() int {
	switch k {
	case KindBool, KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindUint64, KindInt64, KindFloat64:
		return 8
	}
	return 0
}

// Variable reports whether values of this kind live in the variable block.
func (k Kind) Variable() bool {
	return k == KindBytes || k == KindString || k == KindArray
}

// Field is one schema entry. Name is diagnostic only and never hits the wire.
// Sub carries the element layout of KindStruct and KindArray fields and must
// be fixed-size only (no nullable, no variable fields).
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
	Sub      *Schema
}

// Layout is the resolved wire position of one field.
type Layout struct {
	// Slot is the byte offset of the field's fixed-block slot, counted
	// from the start of the record (the bitmask occupies offset 0).
	Slot int
	// Width is the slot width in bytes. Variable fields hold an
	// offset-table entry in their slot, fixed fields hold the value.
	Width int
	// Bit is the presence bit index, -1 for non-nullable fields.
	Bit int
	// VarIdx is the field's position among the variable fields, -1 for
	// fixed fields.
	VarIdx int
}

type Schema struct {
	name    string
	maxSize int

	fields  []Field
	layouts []Layout

	bitmaskLen    int
	fixedSize     int
	nullableCount int
	varCount      int
}

// New builds and validates a schema. The fixed-block layout (slot offsets, bit
// indices, offset-table positions) is computed here once; encode, decode and
// validate all index into it without further arithmetic.
func New(name string, maxSize int, fields ...Field) (*Schema, error) {
	var errs error
	if name == "" {
		errs = multierror.Append(errs, errors.New("name must not be empty"))
	}
	if maxSize <= 0 || maxSize > math.MaxUint32 {
		errs = multierror.Append(errs, fmt.Errorf("max size %d is out of range", maxSize))
	}

	s := &Schema{
		name:    name,
		maxSize: maxSize,
		fields:  append([]Field(nil), fields...),
	}

	for i, f := range s.fields {
		if f.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("field %d: name must not be empty", i))
		}
		switch {
		case f.Kind.Width() > 0:
			if f.Sub != nil {
				errs = multierror.Append(errs, fmt.Errorf("field %q: %s must not have a sub-schema", f.Name, f.Kind))
			}
		case f.Kind == KindStruct || f.Kind == KindArray:
			switch {
			case f.Sub == nil:
				errs = multierror.Append(errs, fmt.Errorf("field %q: %s needs a sub-schema", f.Name, f.Kind))
			case !f.Sub.FixedOnly():
				errs = multierror.Append(errs, fmt.Errorf("field %q: sub-schema %q must hold only fixed non-nullable fields", f.Name, f.Sub.name))
			case f.Sub.fixedSize == 0:
				errs = multierror.Append(errs, fmt.Errorf("field %q: sub-schema %q is empty", f.Name, f.Sub.name))
			}
		case f.Kind == KindBytes || f.Kind == KindString:
			if f.Sub != nil {
				errs = multierror.Append(errs, fmt.Errorf("field %q: %s must not have a sub-schema", f.Name, f.Kind))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("field %q: invalid kind %s", f.Name, f.Kind))
		}
		if f.Nullable {
			s.nullableCount++
		}
		if f.Kind.Variable() {
			s.varCount++
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("schema %q: %w", name, errs)
	}

	s.bitmaskLen = bitmask.Size(s.nullableCount)
	cursor := s.bitmaskLen
	bit, varIdx := 0, 0
	s.layouts = make([]Layout, len(s.fields))
	for i, f := range s.fields {
		lay := Layout{Slot: cursor, Bit: -1, VarIdx: -1}
		if f.Nullable {
			lay.Bit = bit
			bit++
		}
		switch {
		case f.Kind.Variable():
			lay.Width = OffsetEntrySize
			lay.VarIdx = varIdx
			varIdx++
		case f.Kind == KindStruct:
			lay.Width = f.Sub.fixedSize
		default:
			lay.Width = f.Kind.Width()
		}
		cursor += lay.Width
		s.layouts[i] = lay
	}
	s.fixedSize = cursor

	if s.fixedSize > s.maxSize {
		return nil, fmt.Errorf("schema %q: fixed block alone needs %d bytes, max size is %d", name, s.fixedSize, s.maxSize)
	}

	return s, nil
}

// MustNew is New for startup-time schema declarations, where a bad schema is a
// programmer error.
func MustNew(name string, maxSize int, fields ...Field) *Schema {
	s, err := New(name, maxSize, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// MaxSize is the largest total encoding the schema permits, enforced on both
// the encode and the decode path.
func (s *Schema) MaxSize() int { return s.maxSize }

// FixedSize is the constant prefix of every encoding: bitmask, fixed slots
// and offset table.
func (s *Schema) FixedSize() int { return s.fixedSize }

// BitmaskLen is the number of leading bitmask bytes, 0 when the schema has no
// nullable fields.
func (s *Schema) BitmaskLen() int { return s.bitmaskLen }

func (s *Schema) NumFields() int { return len(s.fields) }

func (s *Schema) NullableCount() int { return s.nullableCount }

func (s *Schema) VarCount() int { return s.varCount }

func (s *Schema) Field(i int) Field { return s.fields[i] }

func (s *Schema) Layout(i int) Layout { return s.layouts[i] }

// FixedOnly reports whether every encoding of this schema has the same
// constant size, which is what allows it to serve as a struct or array
// element.
func (s *Schema) FixedOnly() bool {
	return s.varCount == 0 && s.nullableCount == 0
}
