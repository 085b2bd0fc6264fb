package blend

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/meigma/blend/internal/cursor"
)

// Magic is the identifier every .blend file begins with.
const Magic = "BLENDER"

// HeaderSize is the size of the fixed file header in bytes.
const HeaderSize = 12

// Endianness is the byte order declared by the file header.
type Endianness uint8

const (
	LittleEndian Endianness = iota
	BigEndian
)

// ByteOrder returns the binary.ByteOrder for e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (e Endianness) String() string {
	switch e {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	default:
		return "unknown"
	}
}

// Version is the three-digit producer version, e.g. "293" for 2.93.
type Version string

// Major returns the leading digit.
func (v Version) Major() int {
	if len(v) != 3 {
		return 0
	}
	return int(v[0] - '0')
}

// Minor returns the trailing two digits.
func (v Version) Minor() int {
	if len(v) != 3 {
		return 0
	}
	n, _ := strconv.Atoi(string(v[1:])) //nolint:errcheck // digits validated by ParseHeader
	return n
}

// String returns the dotted form, e.g. "2.93".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// Header is the decoded 12-byte file preamble.
type Header struct {
	Identifier  string
	PointerSize int
	Endianness  Endianness
	Version     Version
}

// ByteOrder returns the byte order used for every multi-byte field in the file.
func (h Header) ByteOrder() binary.ByteOrder {
	return h.Endianness.ByteOrder()
}

// ParseHeader decodes the header at the start of r.
func ParseHeader(r io.ReaderAt) (Header, error) {
	c := cursor.New(r, 0, binary.LittleEndian, 0)
	raw, err := c.Bytes(HeaderSize)
	if err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	return decodeHeader(raw)
}

func decodeHeader(raw []byte) (Header, error) {
	if string(raw[:7]) != Magic {
		return Header{}, fmt.Errorf("%w: identifier %q", ErrMalformedHeader, raw[:7])
	}
	h := Header{Identifier: Magic}

	switch raw[7] {
	case '-':
		h.PointerSize = 8
	case '_':
		h.PointerSize = 4
	default:
		return Header{}, fmt.Errorf("%w: pointer size marker %q", ErrMalformedHeader, raw[7])
	}

	switch raw[8] {
	case 'v':
		h.Endianness = LittleEndian
	case 'V':
		h.Endianness = BigEndian
	default:
		return Header{}, fmt.Errorf("%w: endianness marker %q", ErrMalformedHeader, raw[8])
	}

	for _, d := range raw[9:12] {
		if d < '0' || d > '9' {
			return Header{}, fmt.Errorf("%w: version %q", ErrMalformedHeader, raw[9:12])
		}
	}
	h.Version = Version(raw[9:12])
	return h, nil
}
