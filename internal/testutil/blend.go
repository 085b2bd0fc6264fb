package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Type declares a catalog type and its byte length.
type Type struct {
	Name   string
	Length int
}

// Field declares a struct member by type name and decorated name.
type Field struct {
	Type string
	Name string
}

// StructDef declares a struct type and its members in order.
type StructDef struct {
	Type   string
	Fields []Field
}

// Schema describes the catalog written into a DNA1 block.
type Schema struct {
	Types   []Type
	Structs []StructDef
}

// Encode serializes the schema as a DNA1 body whose first byte will live at
// the absolute offset base. Section padding is computed against base.
func (s Schema) Encode(order binary.ByteOrder, base int64) []byte {
	var names []string
	nameIdx := make(map[string]int)
	for _, st := range s.Structs {
		for _, f := range st.Fields {
			if _, ok := nameIdx[f.Name]; !ok {
				nameIdx[f.Name] = len(names)
				names = append(names, f.Name)
			}
		}
	}
	typeIdx := make(map[string]int, len(s.Types))
	for i, t := range s.Types {
		typeIdx[t.Name] = i
	}
	lookupType := func(name string) uint16 {
		i, ok := typeIdx[name]
		if !ok {
			panic(fmt.Sprintf("testutil: type %q not declared", name))
		}
		return uint16(i) //nolint:gosec // test schemas are small
	}

	w := &Writer{order: order}
	align := func() {
		for (base+int64(w.Len()))%4 != 0 {
			w.Byte(0)
		}
	}

	w.Raw([]byte("SDNA"))
	w.Raw([]byte("NAME"))
	w.Uint32(uint32(len(names))) //nolint:gosec // test schemas are small
	for _, n := range names {
		w.CString(n)
	}
	align()
	w.Raw([]byte("TYPE"))
	w.Uint32(uint32(len(s.Types))) //nolint:gosec // test schemas are small
	for _, t := range s.Types {
		w.CString(t.Name)
	}
	align()
	w.Raw([]byte("TLEN"))
	for _, t := range s.Types {
		w.Uint16(uint16(t.Length)) //nolint:gosec // test schemas are small
	}
	align()
	w.Raw([]byte("STRC"))
	w.Uint32(uint32(len(s.Structs))) //nolint:gosec // test schemas are small
	for _, st := range s.Structs {
		w.Uint16(lookupType(st.Type))
		w.Uint16(uint16(len(st.Fields))) //nolint:gosec // test schemas are small
		for _, f := range st.Fields {
			w.Uint16(lookupType(f.Type))
			w.Uint16(uint16(nameIdx[f.Name])) //nolint:gosec // test schemas are small
		}
	}
	return w.Bytes()
}

// Block is one block record in a synthetic file.
type Block struct {
	Code      string
	Address   uint64
	SDNAIndex uint32
	Count     uint32
	Body      []byte

	// Size overrides the recorded body size when non-nil.
	Size *uint32

	schema *Schema
}

// File assembles a synthetic .blend file.
type File struct {
	PointerSize int
	Order       binary.ByteOrder
	Version     string
	blocks      []Block
}

// NewFile returns a builder for a file with the given pointer width and byte order.
func NewFile(ptrSize int, order binary.ByteOrder) *File {
	return &File{PointerSize: ptrSize, Order: order, Version: "293"}
}

// Add appends a block record.
func (f *File) Add(b Block) *File {
	f.blocks = append(f.blocks, b)
	return f
}

// AddCatalog appends a DNA1 block encoding schema.
func (f *File) AddCatalog(schema Schema) *File {
	return f.Add(Block{Code: "DNA1", Count: 1, schema: &schema})
}

// Writer returns a body writer using the file's byte order and pointer width.
func (f *File) Writer() *Writer {
	return &Writer{order: f.Order, ptrSize: f.PointerSize}
}

// Header returns the 12-byte file header.
func (f *File) Header() []byte {
	ptr, end := byte('-'), byte('v')
	if f.PointerSize == 4 {
		ptr = '_'
	}
	if f.Order == binary.BigEndian {
		end = 'V'
	}
	h := append([]byte("BLENDER"), ptr, end)
	return append(h, f.Version...)
}

// RecordSize returns the size of one block record header.
func (f *File) RecordSize() int {
	return 16 + f.PointerSize
}

// Bytes serializes the file.
func (f *File) Bytes() []byte {
	w := f.Writer()
	w.Raw(f.Header())
	for _, b := range f.blocks {
		body := b.Body
		if b.schema != nil {
			body = b.schema.Encode(f.Order, int64(w.Len()+f.RecordSize()))
		}
		code := make([]byte, 4)
		copy(code, b.Code)
		w.Raw(code)
		size := uint32(len(body)) //nolint:gosec // test bodies are small
		if b.Size != nil {
			size = *b.Size
		}
		w.Uint32(size)
		w.Pointer(b.Address)
		w.Uint32(b.SDNAIndex)
		w.Uint32(b.Count)
		w.Raw(body)
	}
	return w.Bytes()
}

// Offset returns the body offset the i-th added block will have in Bytes.
func (f *File) Offset(i int) int64 {
	off := int64(len(f.Header()))
	for j := range i {
		off += int64(f.RecordSize())
		if b := f.blocks[j]; b.schema != nil {
			off += int64(len(b.schema.Encode(f.Order, off)))
		} else {
			off += int64(len(b.Body))
		}
	}
	return off + int64(f.RecordSize())
}

// Writer encodes little-endian or big-endian body fields.
type Writer struct {
	order   binary.ByteOrder
	ptrSize int
	buf     bytes.Buffer
}

// NewWriter returns a body writer.
func NewWriter(ptrSize int, order binary.ByteOrder) *Writer {
	return &Writer{order: order, ptrSize: ptrSize}
}

// Len returns the number of bytes written.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte { return bytes.Clone(w.buf.Bytes()) }

// Raw appends bytes verbatim.
func (w *Writer) Raw(p []byte) *Writer { w.buf.Write(p); return w }

// Byte appends one byte.
func (w *Writer) Byte(b byte) *Writer { w.buf.WriteByte(b); return w }

// CString appends s and a NUL terminator.
func (w *Writer) CString(s string) *Writer {
	w.buf.WriteString(s)
	return w.Byte(0)
}

// FixedString appends s padded with NULs to n bytes.
func (w *Writer) FixedString(s string, n int) *Writer {
	p := make([]byte, n)
	copy(p, s)
	return w.Raw(p)
}

// Uint16 appends a 2-byte integer.
func (w *Writer) Uint16(v uint16) *Writer {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	return w.Raw(b[:])
}

// Int16 appends a signed 2-byte integer.
func (w *Writer) Int16(v int16) *Writer { return w.Uint16(uint16(v)) } //nolint:gosec // bit pattern

// Uint32 appends a 4-byte integer.
func (w *Writer) Uint32(v uint32) *Writer {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	return w.Raw(b[:])
}

// Int32 appends a signed 4-byte integer.
func (w *Writer) Int32(v int32) *Writer { return w.Uint32(uint32(v)) } //nolint:gosec // bit pattern

// Uint64 appends an 8-byte integer.
func (w *Writer) Uint64(v uint64) *Writer {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	return w.Raw(b[:])
}

// Float32 appends an IEEE-754 single.
func (w *Writer) Float32(v float32) *Writer { return w.Uint32(math.Float32bits(v)) }

// Pointer appends a pointer-width address.
func (w *Writer) Pointer(addr uint64) *Writer {
	if w.ptrSize == 4 {
		return w.Uint32(uint32(addr)) //nolint:gosec // 4-byte pointer files hold 32-bit addresses
	}
	return w.Uint64(addr)
}
