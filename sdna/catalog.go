package sdna

import (
	"fmt"
	"iter"

	"github.com/opencontainers/go-digest"
)

// Field is one member of a struct definition.
type Field struct {
	// Name is the decorated name exactly as it appears in the name table.
	Name string

	// Type is the undecorated type name, e.g. "int" or "Object".
	Type string

	// Decl is Name split into pointer depth, base name, and dimensions.
	Decl Name
}

// Struct is a struct definition from the STRC section.
type Struct struct {
	// Type is the struct's own type name.
	Type string

	// Index is the position of the definition in the struct table.
	Index int

	// Fields lists members in declaration order.
	Fields []Field
}

// Field returns the member with the given decorated name.
func (s *Struct) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Catalog is a parsed SDNA structure catalog.
type Catalog struct {
	names    []string
	types    []string
	lengths  []uint16
	structs  []Struct
	raw      []rawStruct
	typeIdx  map[string]int
	structIx map[string]int
	digest   digest.Digest
}

// rawStruct is a struct definition before name and type indexes are resolved.
type rawStruct struct {
	typeIndex uint16
	fields    []uint16 // interleaved (type index, name index) pairs
}

// assemble resolves raw struct definitions against the name and type tables.
func assemble(names, types []string, lengths []uint16, raw []rawStruct, dgst digest.Digest) (*Catalog, error) {
	if len(lengths) != len(types) {
		return nil, fmt.Errorf("%w: %d type lengths for %d types", ErrCorruptCatalog, len(lengths), len(types))
	}
	c := &Catalog{
		names:    names,
		types:    types,
		lengths:  lengths,
		structs:  make([]Struct, 0, len(raw)),
		raw:      raw,
		typeIdx:  make(map[string]int, len(types)),
		structIx: make(map[string]int, len(raw)),
		digest:   dgst,
	}
	for i, t := range types {
		if _, dup := c.typeIdx[t]; !dup {
			c.typeIdx[t] = i
		}
	}

	decls := make(map[string]Name)
	for si, rs := range raw {
		if int(rs.typeIndex) >= len(types) {
			return nil, fmt.Errorf("%w: struct %d has type index %d of %d", ErrInvalidSDNAIndex, si, rs.typeIndex, len(types))
		}
		s := Struct{
			Type:   types[rs.typeIndex],
			Index:  si,
			Fields: make([]Field, 0, len(rs.fields)/2),
		}
		for fi := 0; fi+1 < len(rs.fields); fi += 2 {
			ti, ni := int(rs.fields[fi]), int(rs.fields[fi+1])
			if ti >= len(types) {
				return nil, fmt.Errorf("%w: %s field %d has type index %d of %d", ErrInvalidSDNAIndex, s.Type, fi/2, ti, len(types))
			}
			if ni >= len(names) {
				return nil, fmt.Errorf("%w: %s field %d has name index %d of %d", ErrInvalidSDNAIndex, s.Type, fi/2, ni, len(names))
			}
			name := names[ni]
			decl, ok := decls[name]
			if !ok {
				var err error
				if decl, err = ParseName(name); err != nil {
					return nil, fmt.Errorf("struct %s: %w", s.Type, err)
				}
				decls[name] = decl
			}
			s.Fields = append(s.Fields, Field{Name: name, Type: types[ti], Decl: decl})
		}
		c.structIx[s.Type] = si
		c.structs = append(c.structs, s)
	}
	return c, nil
}

// Names returns the decorated field-name table in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Types returns the type-name table in catalog order.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.types...)
}

// TypeLength returns the declared byte length of a type.
func (c *Catalog) TypeLength(typ string) (int, error) {
	i, ok := c.typeIdx[typ]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return int(c.lengths[i]), nil
}

// TypeLengths returns the type-length table keyed by type name.
func (c *Catalog) TypeLengths() map[string]int {
	out := make(map[string]int, len(c.typeIdx))
	for name, i := range c.typeIdx {
		out[name] = int(c.lengths[i])
	}
	return out
}

// IsStruct reports whether typ names a struct in the struct table.
func (c *Catalog) IsStruct(typ string) bool {
	_, ok := c.structIx[typ]
	return ok
}

// Struct returns the definition of the named struct type.
func (c *Catalog) Struct(typ string) (*Struct, bool) {
	i, ok := c.structIx[typ]
	if !ok {
		return nil, false
	}
	return &c.structs[i], true
}

// StructAt returns the i-th struct definition, as referenced by a block's SDNA index.
func (c *Catalog) StructAt(i int) (*Struct, error) {
	if i < 0 || i >= len(c.structs) {
		return nil, fmt.Errorf("%w: struct index %d of %d", ErrInvalidSDNAIndex, i, len(c.structs))
	}
	return &c.structs[i], nil
}

// NumStructs returns the number of struct definitions.
func (c *Catalog) NumStructs() int {
	return len(c.structs)
}

// Structs returns an iterator over struct definitions in table order.
func (c *Catalog) Structs() iter.Seq[*Struct] {
	return func(yield func(*Struct) bool) {
		for i := range c.structs {
			if !yield(&c.structs[i]) {
				return
			}
		}
	}
}

// Digest returns the digest of the raw catalog bytes the catalog was parsed from.
func (c *Catalog) Digest() digest.Digest {
	return c.digest
}
