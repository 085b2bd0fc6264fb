package blend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meigma/blend/internal/cursor"
	"github.com/meigma/blend/internal/sizing"
	"github.com/meigma/blend/sdna"
)

// signedIntegers lists the integer type names decoded as signed. A "u" or
// "unsigned " prefix on any of them selects the unsigned variant.
var signedIntegers = map[string]bool{
	"short":     true,
	"int":       true,
	"long":      true,
	"long long": true,
	"int8_t":    true,
	"int16_t":   true,
	"int32_t":   true,
	"int64_t":   true,
}

// integerSign classifies typ as a member of the integer family.
func integerSign(typ string) (signed, ok bool) {
	if rest, found := strings.CutPrefix(typ, "unsigned "); found {
		return false, signedIntegers[rest]
	}
	if signedIntegers[typ] {
		return true, true
	}
	if rest, found := strings.CutPrefix(typ, "u"); found {
		return false, signedIntegers[rest]
	}
	return false, false
}

func isChar(typ string) bool {
	return typ == "char" || typ == "uchar" || typ == "unsigned char"
}

// decoder reads the fields of one struct instance.
type decoder struct {
	f   *File
	cat *sdna.Catalog
	c   *cursor.Cursor
}

// materialize decodes every field of the struct typ at off.
func (f *File) materialize(typ string, off int64) ([]FieldValue, error) {
	if f.Closed() {
		return nil, ErrResourceClosed
	}
	def, ok := f.catalog.Struct(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a struct", ErrUnknownType, typ)
	}
	length, err := f.catalog.TypeLength(typ)
	if err != nil {
		return nil, err
	}
	end, err := sizing.Span(off, 1, int64(length), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	if end > f.src.Size() {
		return nil, fmt.Errorf("%w: %s at offset %d needs %d bytes, have %d",
			ErrTruncated, typ, off, length, f.src.Size()-off)
	}
	f.materializations.Add(1)

	d := &decoder{
		f:   f,
		cat: f.catalog,
		c:   cursor.New(f.src, off, f.header.ByteOrder(), f.header.PointerSize),
	}
	fields := make([]FieldValue, 0, len(def.Fields))
	for _, fd := range def.Fields {
		v, err := d.field(fd)
		fv := FieldValue{Name: fd.Name, Type: fd.Type, Value: v}
		if err != nil {
			err = &FieldError{Type: typ, Field: fd.Name, Err: err}
			if !errors.Is(err, ErrUnsupportedNestedArray) {
				return nil, err
			}
			fv.Value, fv.Err = Value{}, err
		}
		fields = append(fields, fv)
	}
	return fields, nil
}

// field decodes one member and advances past it.
func (d *decoder) field(fd sdna.Field) (Value, error) {
	decl := fd.Decl
	switch {
	case decl.Nested():
		size, err := d.elemSize(fd.Type, decl)
		if err != nil {
			return Value{}, err
		}
		total, ok := sizing.MulInt64(int64(decl.Count()), size)
		if !ok {
			return Value{}, ErrSizeOverflow
		}
		if err := d.c.Skip(total); err != nil {
			return Value{}, err
		}
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedNestedArray, fd.Name)

	case decl.IsArray():
		n := decl.Dims[0]
		elems := make([]Value, 0, n)
		for i := range n {
			v, err := d.scalar(fd.Type, decl)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, v)
		}
		return arrayValue(fd.Type, elems), nil

	default:
		return d.scalar(fd.Type, decl)
	}
}

// elemSize returns the bytes one element of a field occupies.
func (d *decoder) elemSize(typ string, decl sdna.Name) (int64, error) {
	if decl.IsPointer() {
		return int64(d.c.PointerSize()), nil
	}
	n, err := d.cat.TypeLength(typ)
	return int64(n), err
}

// scalar decodes a single non-array value of typ.
func (d *decoder) scalar(typ string, decl sdna.Name) (Value, error) {
	if decl.IsPointer() {
		return d.pointer(typ, decl)
	}

	length, err := d.cat.TypeLength(typ)
	if err != nil {
		return Value{}, err
	}

	if d.cat.IsStruct(typ) {
		off := d.c.Offset()
		if err := d.c.Skip(int64(length)); err != nil {
			return Value{}, err
		}
		return structValue(newStruct(d.f, typ, off)), nil
	}

	if signed, ok := integerSign(typ); ok && length >= 1 && length <= 8 {
		if signed {
			v, err := d.c.Int(length)
			return intValue(typ, v), err
		}
		v, err := d.c.Uint(length)
		return uintValue(typ, v), err
	}

	raw, err := d.c.Bytes(length)
	if err != nil {
		return Value{}, err
	}
	if isChar(typ) && length >= 1 {
		return charValue(typ, raw[0]), nil
	}
	return opaqueValue(typ, raw, d.c.Order()), nil
}

// pointer decodes a pointer-width address, or an inline string when enabled.
func (d *decoder) pointer(typ string, decl sdna.Name) (Value, error) {
	start := d.c.Offset()
	if d.f.inlineCharPointers && typ == "char" && decl.Pointer == 1 && !decl.Func {
		s, err := d.c.CString()
		if err != nil {
			return Value{}, err
		}
		d.c.Seek(start + int64(d.c.PointerSize()))
		return stringValue(typ, s), nil
	}

	addr, err := d.c.Pointer()
	if err != nil {
		return Value{}, err
	}
	return pointerValue(&Pointer{
		Address: addr,
		Type:    typ,
		Depth:   decl.Pointer,
		Func:    decl.Func,
		f:       d.f,
	}), nil
}
