package blend

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/meigma/blend/internal/cursor"
	"github.com/meigma/blend/internal/sizing"
)

// CatalogCode is the code of the block holding the SDNA catalog.
const CatalogCode = "DNA1"

// BlockHeader is one block record from the directory scan.
type BlockHeader struct {
	// Code is the block code with trailing NUL padding trimmed, e.g. "SC" or "DNA1".
	Code string

	// Size is the body size in bytes.
	Size uint32

	// Address is the producer's in-memory address of the block.
	// It is only meaningful for resolving pointers recorded elsewhere in the file.
	Address uint64

	// SDNAIndex selects the struct definition the body holds.
	SDNAIndex uint32

	// Count is the number of struct instances in the body.
	Count uint32

	// Offset is the absolute file offset of the body.
	Offset int64
}

// Directory is the ordered set of block records in a file.
type Directory struct {
	blocks []BlockHeader
	byCode map[string][]int
	byAddr map[uint64]int
	codes  []string
}

func newDirectory() *Directory {
	return &Directory{
		byCode: make(map[string][]int),
		byAddr: make(map[uint64]int),
	}
}

func (d *Directory) add(h BlockHeader) {
	i := len(d.blocks)
	d.blocks = append(d.blocks, h)
	if _, seen := d.byCode[h.Code]; !seen {
		d.codes = append(d.codes, h.Code)
	}
	d.byCode[h.Code] = append(d.byCode[h.Code], i)
	if h.Address != 0 {
		d.byAddr[h.Address] = i
	}
}

// Len returns the number of block records.
func (d *Directory) Len() int {
	return len(d.blocks)
}

// At returns the i-th record in file order.
func (d *Directory) At(i int) BlockHeader {
	return d.blocks[i]
}

// All returns an iterator over every record in file order.
func (d *Directory) All() iter.Seq[BlockHeader] {
	return func(yield func(BlockHeader) bool) {
		for _, h := range d.blocks {
			if !yield(h) {
				return
			}
		}
	}
}

// Lookup returns every record with exactly the given code, in file order.
func (d *Directory) Lookup(code string) []BlockHeader {
	idx := d.byCode[code]
	out := make([]BlockHeader, len(idx))
	for i, j := range idx {
		out[i] = d.blocks[j]
	}
	return out
}

// WithPrefix returns an iterator over records whose code starts with prefix,
// in file order. The empty prefix matches every record.
func (d *Directory) WithPrefix(prefix string) iter.Seq[BlockHeader] {
	return func(yield func(BlockHeader) bool) {
		for _, h := range d.blocks {
			if strings.HasPrefix(h.Code, prefix) && !yield(h) {
				return
			}
		}
	}
}

// ByAddress returns the record recorded at addr. When several records share an
// address the last one in file order wins. Address 0 never matches.
func (d *Directory) ByAddress(addr uint64) (BlockHeader, bool) {
	i, ok := d.byAddr[addr]
	if !ok {
		return BlockHeader{}, false
	}
	return d.blocks[i], true
}

// Codes returns the distinct block codes in order of first appearance.
func (d *Directory) Codes() []string {
	return append([]string(nil), d.codes...)
}

// CountByCode returns the number of records per code.
func (d *Directory) CountByCode() map[string]int {
	out := make(map[string]int, len(d.byCode))
	for code, idx := range d.byCode {
		out[code] = len(idx)
	}
	return out
}

// scanDirectory reads every block record following the header.
// Reaching end of input where a code was expected ends the scan.
func scanDirectory(src io.ReaderAt, size int64, h Header) (*Directory, error) {
	d := newDirectory()
	c := cursor.New(src, HeaderSize, h.ByteOrder(), h.PointerSize)

	for {
		recordOff := c.Offset()
		var raw [4]byte
		n, err := c.ReadFull(raw[:])
		if err != nil {
			if n == 0 && errors.Is(err, ErrTruncated) {
				return d, nil
			}
			return nil, fmt.Errorf("block %d code: %w", d.Len(), err)
		}
		if !utf8.Valid(raw[:]) {
			return nil, &BlockCodeError{Raw: raw, Offset: recordOff}
		}
		code := strings.TrimRight(string(raw[:]), "\x00")

		rec, err := readRecord(c)
		if err != nil {
			return nil, fmt.Errorf("block %d (%q) at offset %d: %w", d.Len(), code, recordOff, err)
		}
		rec.Code = code
		rec.Offset = c.Offset()

		end, ok := sizing.AddInt64(rec.Offset, int64(rec.Size))
		if !ok {
			return nil, fmt.Errorf("block %q at offset %d: %w", code, recordOff, ErrSizeOverflow)
		}
		if end > size {
			return nil, fmt.Errorf("%w: block %q body at offset %d needs %d bytes, have %d",
				ErrTruncated, code, rec.Offset, rec.Size, size-rec.Offset)
		}
		c.Seek(end)
		d.add(rec)
	}
}

func readRecord(c *cursor.Cursor) (BlockHeader, error) {
	var rec BlockHeader
	var err error
	if rec.Size, err = c.Uint32(); err != nil {
		return rec, fmt.Errorf("size: %w", err)
	}
	if rec.Address, err = c.Pointer(); err != nil {
		return rec, fmt.Errorf("address: %w", err)
	}
	if rec.SDNAIndex, err = c.Uint32(); err != nil {
		return rec, fmt.Errorf("sdna index: %w", err)
	}
	if rec.Count, err = c.Uint32(); err != nil {
		return rec, fmt.Errorf("count: %w", err)
	}
	return rec, nil
}
