package blend

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindChar
	KindString
	KindStruct
	KindArray
	KindOpaque
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	case KindOpaque:
		return "opaque"
	case KindPointer:
		return "pointer"
	default:
		return "invalid"
	}
}

// opaquePreview is the number of bytes of an opaque value shown by String.
const opaquePreview = 16

// Value is one decoded field or array element.
//
// The zero Value has KindInvalid. Accessors report false when the Value
// holds a different kind.
type Value struct {
	kind  Kind
	typ   string
	u     uint64
	s     string
	raw   []byte
	order binary.ByteOrder
	elems []Value
	st    *Struct
	ptr   *Pointer
}

func intValue(typ string, v int64) Value {
	return Value{kind: KindInt, typ: typ, u: uint64(v)} //nolint:gosec // bit pattern
}

func uintValue(typ string, v uint64) Value {
	return Value{kind: KindUint, typ: typ, u: v}
}

func charValue(typ string, b byte) Value {
	return Value{kind: KindChar, typ: typ, u: uint64(b)}
}

func stringValue(typ, s string) Value {
	return Value{kind: KindString, typ: typ, s: s}
}

func structValue(s *Struct) Value {
	return Value{kind: KindStruct, typ: s.typ, st: s}
}

func arrayValue(typ string, elems []Value) Value {
	return Value{kind: KindArray, typ: typ, elems: elems}
}

func opaqueValue(typ string, raw []byte, order binary.ByteOrder) Value {
	return Value{kind: KindOpaque, typ: typ, raw: raw, order: order}
}

func pointerValue(p *Pointer) Value {
	return Value{kind: KindPointer, typ: p.Type, ptr: p}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// Type returns the catalog type name of the value, or of its elements for arrays.
func (v Value) Type() string {
	return v.typ
}

// Int returns a signed integer value.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return int64(v.u), true //nolint:gosec // bit pattern
}

// Uint returns an unsigned integer value.
func (v Value) Uint() (uint64, bool) {
	if v.kind != KindUint {
		return 0, false
	}
	return v.u, true
}

// Char returns a single raw character byte.
func (v Value) Char() (byte, bool) {
	if v.kind != KindChar {
		return 0, false
	}
	return byte(v.u), true
}

// Text returns string content: an inline string, or a char array read up to
// its first NUL.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindArray:
		if len(v.elems) == 0 || v.elems[0].kind != KindChar {
			return "", false
		}
		b := make([]byte, 0, len(v.elems))
		for _, e := range v.elems {
			c, ok := e.Char()
			if !ok {
				return "", false
			}
			if c == 0 {
				break
			}
			b = append(b, c)
		}
		return string(b), true
	default:
		return "", false
	}
}

// Struct returns a nested struct handle.
func (v Value) Struct() (*Struct, bool) {
	return v.st, v.kind == KindStruct
}

// Array returns the elements of an array value in source order.
func (v Value) Array() ([]Value, bool) {
	return v.elems, v.kind == KindArray
}

// Bytes returns the raw bytes of an opaque value.
func (v Value) Bytes() ([]byte, bool) {
	return v.raw, v.kind == KindOpaque
}

// Pointer returns a pointer value.
func (v Value) Pointer() (*Pointer, bool) {
	return v.ptr, v.kind == KindPointer
}

// Float decodes an opaque float or double in the file's byte order.
func (v Value) Float() (float64, bool) {
	if v.kind != KindOpaque {
		return 0, false
	}
	switch {
	case v.typ == "float" && len(v.raw) == 4:
		return float64(math.Float32frombits(v.order.Uint32(v.raw))), true
	case v.typ == "double" && len(v.raw) == 8:
		return math.Float64frombits(v.order.Uint64(v.raw)), true
	default:
		return 0, false
	}
}

// String returns a short human-readable representation.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.u), 10) //nolint:gosec // bit pattern
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindChar:
		return strconv.QuoteRuneToASCII(rune(v.u))
	case KindString:
		return strconv.Quote(v.s)
	case KindStruct:
		return v.st.String()
	case KindArray:
		if s, ok := v.Text(); ok {
			return strconv.Quote(s)
		}
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindOpaque:
		if f, ok := v.Float(); ok {
			return v.typ + "(" + strconv.FormatFloat(f, 'g', -1, 64) + ")"
		}
		return opaqueString(v.typ, v.raw)
	case KindPointer:
		return v.ptr.String()
	default:
		return "<invalid>"
	}
}

func opaqueString(typ string, raw []byte) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<%s ", typ)
	if len(raw) > opaquePreview {
		b.WriteString(hex.EncodeToString(raw[:opaquePreview]))
		fmt.Fprintf(&b, "... %d bytes>", len(raw))
		return b.String()
	}
	b.WriteString(hex.EncodeToString(raw))
	b.WriteString(">")
	return b.String()
}
