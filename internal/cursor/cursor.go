// Package cursor provides a positioned reader over an io.ReaderAt that decodes
// integers and pointers using a fixed byte order and pointer width.
//
// A Cursor owns its position; reads never share a seek offset with other
// cursors on the same source, so independent cursors may be used concurrently.
package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/blend/internal/blendtype"
	"github.com/meigma/blend/internal/sizing"
)

// stringChunk is the read size used while scanning for a NUL terminator.
const stringChunk = 64

// Cursor reads fixed-size fields sequentially from a source.
type Cursor struct {
	src     io.ReaderAt
	off     int64 // position relative to src
	base    int64 // absolute offset of src position 0
	order   binary.ByteOrder
	little  bool
	ptrSize int
	buf     [8]byte
}

// New returns a cursor positioned at off in src.
func New(src io.ReaderAt, off int64, order binary.ByteOrder, ptrSize int) *Cursor {
	return NewSection(src, 0, order, ptrSize).at(off)
}

// NewSection returns a cursor over a section whose first byte lives at the
// absolute file offset base. Offsets reported by the cursor are absolute, and
// Align is computed against absolute offsets.
func NewSection(src io.ReaderAt, base int64, order binary.ByteOrder, ptrSize int) *Cursor {
	return &Cursor{
		src:     src,
		base:    base,
		order:   order,
		little:  order.Uint16([]byte{1, 0}) == 1,
		ptrSize: ptrSize,
	}
}

func (c *Cursor) at(off int64) *Cursor {
	c.off = off
	return c
}

// Offset returns the absolute offset of the next byte to be read.
func (c *Cursor) Offset() int64 {
	return c.base + c.off
}

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(abs int64) {
	c.off = abs - c.base
}

// Order returns the byte order used for multi-byte reads.
func (c *Cursor) Order() binary.ByteOrder {
	return c.order
}

// PointerSize returns the pointer width in bytes.
func (c *Cursor) PointerSize() int {
	return c.ptrSize
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int64) error {
	off, ok := sizing.AddInt64(c.off, n)
	if !ok {
		return fmt.Errorf("skip %d at offset %d: %w", n, c.Offset(), blendtype.ErrSizeOverflow)
	}
	c.off = off
	return nil
}

// Align advances the cursor to the next multiple of n, measured on the absolute offset.
func (c *Cursor) Align(n int64) {
	if r := c.Offset() % n; r != 0 {
		c.off += n - r
	}
}

// ReadFull reads exactly len(p) bytes. On a short read the cursor does not
// advance, and the returned count reports how many bytes were available.
// Short reads caused by end of input wrap ErrTruncated.
func (c *Cursor) ReadFull(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.src.ReadAt(p, c.off)
	if n == len(p) {
		c.off += int64(n)
		return n, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: need %d bytes at offset %d, have %d", blendtype.ErrTruncated, len(p), c.Offset(), n)
	}
	return n, fmt.Errorf("read at offset %d: %w", c.Offset(), err)
}

// Bytes reads n bytes into a new slice.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: %w", n, blendtype.ErrSizeOverflow)
	}
	p := make([]byte, n)
	if _, err := c.ReadFull(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Tag reads a 4-byte ASCII tag.
func (c *Cursor) Tag() (string, error) {
	if _, err := c.ReadFull(c.buf[:4]); err != nil {
		return "", err
	}
	return string(c.buf[:4]), nil
}

// Uint reads an unsigned integer of size bytes (1 to 8) in the cursor's byte order.
func (c *Cursor) Uint(size int) (uint64, error) {
	if size < 1 || size > len(c.buf) {
		return 0, fmt.Errorf("integer width %d: %w", size, blendtype.ErrSizeOverflow)
	}
	b := c.buf[:size]
	if _, err := c.ReadFull(b); err != nil {
		return 0, err
	}
	var v uint64
	if c.little {
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
	} else {
		for i := range size {
			v = v<<8 | uint64(b[i])
		}
	}
	return v, nil
}

// Int reads a two's-complement signed integer of size bytes.
func (c *Cursor) Int(size int) (int64, error) {
	u, err := c.Uint(size)
	if err != nil {
		return 0, err
	}
	shift := uint(64 - 8*size)
	return int64(u<<shift) >> shift, nil //nolint:gosec // sign extension is the intent
}

// Uint16 reads a 2-byte unsigned integer.
func (c *Cursor) Uint16() (uint16, error) {
	v, err := c.Uint(2)
	return uint16(v), err //nolint:gosec // width is 2 bytes
}

// Uint32 reads a 4-byte unsigned integer.
func (c *Cursor) Uint32() (uint32, error) {
	v, err := c.Uint(4)
	return uint32(v), err //nolint:gosec // width is 4 bytes
}

// Pointer reads a pointer-width unsigned address.
func (c *Cursor) Pointer() (uint64, error) {
	return c.Uint(c.ptrSize)
}

// CString reads a NUL-terminated string and advances past the terminator.
func (c *Cursor) CString() (string, error) {
	var out []byte
	chunk := make([]byte, stringChunk)
	for {
		n, err := c.src.ReadAt(chunk, c.off+int64(len(out)))
		if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
			out = append(out, chunk[:i]...)
			c.off += int64(len(out)) + 1
			return string(out), nil
		}
		out = append(out, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: unterminated string at offset %d", blendtype.ErrTruncated, c.Offset())
			}
			return "", fmt.Errorf("read at offset %d: %w", c.Offset(), err)
		}
		if n == 0 {
			return "", fmt.Errorf("%w: unterminated string at offset %d", blendtype.ErrTruncated, c.Offset())
		}
	}
}
