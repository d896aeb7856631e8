// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"
)

// Cursor is a restartable read position over a packet payload.
//
// Handlers use it to peek at leading fields, decide what to do with the
// packet, then Rewind and forward the untouched bytes.
type Cursor struct {
	buf  []byte
	off  int
	mark int
}

var (
	_ io.Reader     = (*Cursor)(nil)
	_ io.ByteReader = (*Cursor)(nil)
)

// NewCursor returns a cursor positioned at the start of b. The cursor does not
// copy b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b, mark: -1}
}

// Checkpoint records the current read offset.
func (c *Cursor) Checkpoint() {
	c.mark = c.off
}

// Rewind moves the read offset back to the last checkpoint. The checkpoint is
// kept, so Rewind may be called again.
func (c *Cursor) Rewind() error {
	if c.mark < 0 {
		return ErrNoCheckpoint
	}
	c.off = c.mark
	return nil
}

// Offset returns the current read offset.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// Rest returns the unread bytes and moves the cursor to the end.
func (c *Cursor) Rest() []byte {
	b := c.buf[c.off:]
	c.off = len(c.buf)
	return b
}

// Read implements io.Reader.
func (c *Cursor) Read(p []byte) (int, error) {
	if c.off >= len(c.buf) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, c.buf[c.off:])
	c.off += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (c *Cursor) ReadByte() (byte, error) {
	if c.off >= len(c.buf) {
		return 0, io.EOF
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

// ReadSchema decodes every field of s in order.
func (c *Cursor) ReadSchema(s Schema) (Values, error) {
	v := make(Values, 0, len(s))
	for _, f := range s {
		x, err := c.ReadField(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		v = append(v, x)
	}
	return v, nil
}

// ReadField decodes a single value of type t.
func (c *Cursor) ReadField(t WireType) (any, error) {
	switch t {
	case Int8:
		return c.ReadInt8()
	case Uint8:
		return c.ReadUint8()
	case Int32:
		return c.ReadInt32()
	case Int64:
		return c.ReadInt64()
	case Float32:
		return c.ReadFloat32()
	case Float64:
		return c.ReadFloat64()
	case Bool:
		return c.ReadBool()
	case String:
		return c.ReadString()
	default:
		return nil, fmt.Errorf("%w: unknown wire type %d", ErrFieldType, t)
	}
}

func (c *Cursor) ReadInt8() (int8, error) {
	var v pk.Byte
	err := c.readFixed(&v, Int8)
	return int8(v), err
}

func (c *Cursor) ReadUint8() (uint8, error) {
	var v pk.UnsignedByte
	err := c.readFixed(&v, Uint8)
	return uint8(v), err
}

func (c *Cursor) ReadInt32() (int32, error) {
	var v pk.Int
	err := c.readFixed(&v, Int32)
	return int32(v), err
}

func (c *Cursor) ReadInt64() (int64, error) {
	var v pk.Long
	err := c.readFixed(&v, Int64)
	return int64(v), err
}

func (c *Cursor) ReadFloat32() (float32, error) {
	var v pk.Float
	err := c.readFixed(&v, Float32)
	return float32(v), err
}

func (c *Cursor) ReadFloat64() (float64, error) {
	var v pk.Double
	err := c.readFixed(&v, Float64)
	return float64(v), err
}

func (c *Cursor) ReadBool() (bool, error) {
	var v pk.Boolean
	err := c.readFixed(&v, Bool)
	return bool(v), err
}

// ReadString reads a VarInt length prefix followed by that many bytes of
// UTF-8 text.
func (c *Cursor) ReadString() (string, error) {
	start := c.off
	var n pk.VarInt
	if _, err := n.ReadFrom(c); err != nil {
		c.off = start
		return "", fmt.Errorf("%w: string length: %v", ErrMalformedPacket, err)
	}
	if rem := c.Remaining(); n < 0 || int(n) > rem {
		c.off = start
		return "", fmt.Errorf("%w: string length %d exceeds %d remaining bytes", ErrMalformedPacket, n, rem)
	}

	s := string(c.buf[c.off : c.off+int(n)])
	c.off += int(n)
	return s, nil
}

func (c *Cursor) readFixed(v io.ReaderFrom, t WireType) error {
	if need := t.Size(); c.Remaining() < need {
		return fmt.Errorf("%w: %s needs %d bytes, %d remaining", ErrMalformedPacket, t, need, c.Remaining())
	}
	if _, err := v.ReadFrom(c); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return nil
}
