package sdna

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/blend/internal/cursor"
)

// Section tags in the order they appear in a DNA1 block body.
const (
	TagSDNA = "SDNA"
	TagName = "NAME"
	TagType = "TYPE"
	TagTLen = "TLEN"
	TagStrc = "STRC"
)

// sectionAlign is the alignment applied before every section after NAME.
const sectionAlign = 4

// Parse decodes a DNA1 block body.
//
// base is the absolute file offset of body[0]; section padding is computed
// against absolute offsets, matching how the producer wrote the file. The body
// is not retained.
func Parse(body []byte, base int64, order binary.ByteOrder) (*Catalog, error) {
	c := cursor.NewSection(bytes.NewReader(body), base, order, 8)

	if err := expectTag(c, TagSDNA); err != nil {
		return nil, err
	}
	if err := expectTag(c, TagName); err != nil {
		return nil, err
	}
	names, err := readStrings(c, len(body))
	if err != nil {
		return nil, fmt.Errorf("sdna names: %w", err)
	}

	c.Align(sectionAlign)
	if err := expectTag(c, TagType); err != nil {
		return nil, err
	}
	types, err := readStrings(c, len(body))
	if err != nil {
		return nil, fmt.Errorf("sdna types: %w", err)
	}

	c.Align(sectionAlign)
	if err := expectTag(c, TagTLen); err != nil {
		return nil, err
	}
	lengths := make([]uint16, len(types))
	for i := range lengths {
		if lengths[i], err = c.Uint16(); err != nil {
			return nil, fmt.Errorf("sdna type lengths: %w", err)
		}
	}

	c.Align(sectionAlign)
	if err := expectTag(c, TagStrc); err != nil {
		return nil, err
	}
	raw, err := readStructs(c, len(body))
	if err != nil {
		return nil, fmt.Errorf("sdna structs: %w", err)
	}

	return assemble(names, types, lengths, raw, digest.FromBytes(body))
}

func expectTag(c *cursor.Cursor, want string) error {
	off := c.Offset()
	got, err := c.Tag()
	if err != nil {
		return fmt.Errorf("sdna %s tag: %w", want, err)
	}
	if got != want {
		return &TagError{Expected: want, Found: got, Offset: off}
	}
	return nil
}

// readStrings reads a 4-byte count followed by that many NUL-terminated strings.
// bodyLen bounds the preallocation so a corrupt count cannot exhaust memory.
func readStrings(c *cursor.Cursor, bodyLen int) ([]string, error) {
	count, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, min(int(count), bodyLen))
	for range count {
		s, err := c.CString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func readStructs(c *cursor.Cursor, bodyLen int) ([]rawStruct, error) {
	count, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]rawStruct, 0, min(int(count), bodyLen/4))
	for range count {
		typeIndex, err := c.Uint16()
		if err != nil {
			return nil, err
		}
		numFields, err := c.Uint16()
		if err != nil {
			return nil, err
		}
		fields := make([]uint16, 2*int(numFields))
		for i := range fields {
			if fields[i], err = c.Uint16(); err != nil {
				return nil, err
			}
		}
		out = append(out, rawStruct{typeIndex: typeIndex, fields: fields})
	}
	return out, nil
}
