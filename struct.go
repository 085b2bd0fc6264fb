package blend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// FieldValue is one decoded member of a struct.
type FieldValue struct {
	// Name is the decorated field name, e.g. "*next" or "name[64]".
	Name string

	// Type is the field's catalog type name.
	Type string

	// Value is the decoded value. It is the zero Value when Err is set.
	Value Value

	// Err is a failure scoped to this field, such as ErrUnsupportedNestedArray.
	Err error
}

// Struct is a lazy handle on one struct instance at a fixed file offset.
//
// A Struct starts unloaded. The first call to Force, Field, Fields, or
// Inspect decodes every field once; the result, or the error, is cached for
// the lifetime of the handle. Concurrent callers share a single decode.
type Struct struct {
	f   *File
	typ string
	off int64

	once   sync.Once
	loaded atomic.Bool
	fields []FieldValue
	index  map[string]int
	err    error
}

func newStruct(f *File, typ string, off int64) *Struct {
	return &Struct{f: f, typ: typ, off: off}
}

// Type returns the struct's catalog type name.
func (s *Struct) Type() string {
	return s.typ
}

// Offset returns the absolute file offset of the struct.
func (s *Struct) Offset() int64 {
	return s.off
}

// Loaded reports whether the handle has been materialized.
func (s *Struct) Loaded() bool {
	return s.loaded.Load()
}

// Force materializes the handle if it is not loaded yet.
func (s *Struct) Force() error {
	s.once.Do(func() {
		s.fields, s.err = s.f.materialize(s.typ, s.off)
		if s.err == nil {
			s.index = make(map[string]int, len(s.fields))
			for i, fv := range s.fields {
				s.index[fv.Name] = i
			}
		}
		s.loaded.Store(true)
	})
	return s.err
}

// Field returns the value of the field with the given decorated name.
func (s *Struct) Field(name string) (Value, error) {
	if err := s.Force(); err != nil {
		return Value{}, err
	}
	i, ok := s.index[name]
	if !ok {
		return Value{}, &FieldError{Type: s.typ, Field: name, Err: ErrNoSuchField}
	}
	fv := s.fields[i]
	if fv.Err != nil {
		return Value{}, fv.Err
	}
	return fv.Value, nil
}

// Fields returns every field in declaration order.
func (s *Struct) Fields() ([]FieldValue, error) {
	if err := s.Force(); err != nil {
		return nil, err
	}
	return append([]FieldValue(nil), s.fields...), nil
}

// Len returns the number of fields.
func (s *Struct) Len() (int, error) {
	if err := s.Force(); err != nil {
		return 0, err
	}
	return len(s.fields), nil
}

// Inspect returns an indented JSON object mapping each field name to the
// string form of its value, in declaration order.
func (s *Struct) Inspect() (string, error) {
	if err := s.Force(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fv := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		repr := fv.Value.String()
		if fv.Err != nil {
			repr = "<error: " + fv.Err.Error() + ">"
		}
		buf.WriteString("\n    ")
		writeJSONString(&buf, fv.Name)
		buf.WriteString(": ")
		writeJSONString(&buf, repr)
	}
	if len(s.fields) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// writeJSONString appends s as a JSON string without HTML escaping.
func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) //nolint:errcheck // strings always encode
	buf.Truncate(buf.Len() - 1)
}

func (s *Struct) String() string {
	state := "unloaded"
	if s.Loaded() {
		state = "loaded"
	}
	return fmt.Sprintf("<Struct %s (%s)>", s.typ, state)
}
