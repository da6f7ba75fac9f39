package qsd

import (
	"encoding/binary"
	"fmt"
	"math"

	apperrors "qcmpulse/internal/errors"
)

// Cursor walks a byte buffer with every read checked against the remaining length.
// Reads never panic: running past the end yields a FORMAT error carrying the offset.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of buf
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current position
func (c *Cursor) Offset() int {
	return c.pos
}

// Len returns the size of the underlying buffer
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Remaining returns the number of bytes from the current position to the end
func (c *Cursor) Remaining() int {
	if c.pos >= len(c.buf) {
		return 0
	}
	return len(c.buf) - c.pos
}

// Seek moves to an absolute offset
func (c *Cursor) Seek(offset int) error {
	if offset < 0 || offset > len(c.buf) {
		return apperrors.NewFormatError(fmt.Sprintf("seek outside buffer of %d bytes", len(c.buf)), offset)
	}
	c.pos = offset
	return nil
}

// Skip moves by n bytes, which may be negative
func (c *Cursor) Skip(n int) error {
	return c.Seek(c.pos + n)
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos < 0 || n > len(c.buf)-c.pos {
		return apperrors.NewFormatError(
			fmt.Sprintf("read of %d bytes exceeds remaining %d bytes", n, c.Remaining()), c.pos)
	}
	return nil
}

// PeekByte returns the byte at the current position without advancing
func (c *Cursor) PeekByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	return c.buf[c.pos], nil
}

// ReadByte returns the byte at the current position and advances by one
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.PeekByte()
	if err != nil {
		return 0, err
	}
	c.pos++
	return b, nil
}

// PeekU32LE decodes a little-endian uint32 at the current position without advancing
func (c *Cursor) PeekU32LE() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.buf[c.pos:]), nil
}

// ReadU32LE decodes a little-endian uint32 and advances by four
func (c *Cursor) ReadU32LE() (uint32, error) {
	v, err := c.PeekU32LE()
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

// PeekF64ArrayLE decodes n little-endian float64 values without advancing.
// The declared count is validated against the remaining buffer before any slicing.
func (c *Cursor) PeekF64ArrayLE(n int) ([]float64, error) {
	if n < 0 || n > c.Remaining()/8 {
		return nil, apperrors.NewFormatError(
			fmt.Sprintf("declared count %d exceeds remaining %d bytes", n, c.Remaining()), c.pos)
	}
	out := make([]float64, n)
	for i := range out {
		bits := binary.LittleEndian.Uint64(c.buf[c.pos+8*i:])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

// ReadF64ArrayLE decodes n little-endian float64 values and advances past them
func (c *Cursor) ReadF64ArrayLE(n int) ([]float64, error) {
	out, err := c.PeekF64ArrayLE(n)
	if err != nil {
		return nil, err
	}
	c.pos += 8 * n
	return out, nil
}

// Expect checks that the byte at the current position equals want without advancing
func (c *Cursor) Expect(want byte) error {
	got, err := c.PeekByte()
	if err != nil {
		return err
	}
	if got != want {
		return apperrors.NewFormatError(fmt.Sprintf("invalid value 0x%02x, expected 0x%02x", got, want), c.pos)
	}
	return nil
}
