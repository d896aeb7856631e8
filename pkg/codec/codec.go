// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"

	pk "github.com/Tnze/go-mc/net/packet"
)

var (
	// ErrMalformedPacket is returned when a payload is shorter than its schema
	// requires or a string length prefix runs past the end of the buffer.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrNoCheckpoint is returned by Cursor.Rewind when no checkpoint was taken.
	ErrNoCheckpoint = errors.New("rewind without checkpoint")

	// ErrFieldType is returned by Encode when a value does not match the
	// wire type of its field.
	ErrFieldType = errors.New("field type mismatch")
)

// WireType is the on-wire representation of a single field.
type WireType uint8

const (
	Int8 WireType = iota + 1
	Uint8
	Int32
	Int64
	Float32
	Float64
	Bool
	String
)

// String returns a string representation of the wire type.
func (t WireType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// Size returns the fixed encoded size of the type. Strings are variable
// length and report the size of an empty string (a one byte prefix).
func (t WireType) Size() int {
	switch t {
	case Int8, Uint8, Bool, String:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Field is a single named entry of a Schema.
type Field struct {
	Name string
	Type WireType
}

// Schema is the ordered field layout of a packet payload.
type Schema []Field

// Size returns the minimum number of bytes a payload must hold to decode
// against the schema.
func (s Schema) Size() int {
	n := 0
	for _, f := range s {
		n += f.Type.Size()
	}
	return n
}

// Values holds decoded field values in schema order. Each element has the Go
// type matching its wire type: int8, uint8, int32, int64, float32, float64,
// bool or string.
type Values []any

// Decode reads the fields of s from the start of b. Bytes past the end of the
// schema are ignored.
func Decode(s Schema, b []byte) (Values, error) {
	return NewCursor(b).ReadSchema(s)
}

// Encode writes v according to s.
func Encode(s Schema, v Values) ([]byte, error) {
	if len(v) != len(s) {
		return nil, fmt.Errorf("%w: schema has %d fields, got %d values", ErrFieldType, len(s), len(v))
	}

	var buf bytes.Buffer
	buf.Grow(s.Size())
	for i, f := range s {
		if err := encodeField(&buf, f, v[i]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func encodeField(buf *bytes.Buffer, f Field, v any) error {
	// Writes into a bytes.Buffer cannot fail.
	var ok bool
	switch f.Type {
	case Int8:
		var x int8
		if x, ok = v.(int8); ok {
			_, _ = pk.Byte(x).WriteTo(buf)
		}
	case Uint8:
		var x uint8
		if x, ok = v.(uint8); ok {
			_, _ = pk.UnsignedByte(x).WriteTo(buf)
		}
	case Int32:
		var x int32
		if x, ok = v.(int32); ok {
			_, _ = pk.Int(x).WriteTo(buf)
		}
	case Int64:
		var x int64
		if x, ok = v.(int64); ok {
			_, _ = pk.Long(x).WriteTo(buf)
		}
	case Float32:
		var x float32
		if x, ok = v.(float32); ok {
			_, _ = pk.Float(x).WriteTo(buf)
		}
	case Float64:
		var x float64
		if x, ok = v.(float64); ok {
			_, _ = pk.Double(x).WriteTo(buf)
		}
	case Bool:
		var x bool
		if x, ok = v.(bool); ok {
			_, _ = pk.Boolean(x).WriteTo(buf)
		}
	case String:
		var x string
		if x, ok = v.(string); ok {
			_, _ = pk.String(x).WriteTo(buf)
		}
	}

	if !ok {
		return fmt.Errorf("%w: field %q wants %s, got %T", ErrFieldType, f.Name, f.Type, v)
	}
	return nil
}
