package sdna

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Name is a decorated field name split into its parts.
//
// "*next" has Pointer 1, "mat[4][4]" has Dims [4 4], and the function pointer
// "(*draw)()" has Pointer 1 and Func set.
type Name struct {
	Base    string
	Pointer int
	Dims    []int
	Func    bool
}

// IsPointer reports whether the field holds an address rather than a value.
func (n Name) IsPointer() bool {
	return n.Pointer > 0 || n.Func
}

// IsArray reports whether the field has at least one array dimension.
func (n Name) IsArray() bool {
	return len(n.Dims) > 0
}

// Nested reports whether the field has more than one array dimension.
func (n Name) Nested() bool {
	return len(n.Dims) > 1
}

// Count returns the total number of elements: the product of all dimensions,
// or 1 for a scalar.
func (n Name) Count() int {
	count := 1
	for _, d := range n.Dims {
		count *= d
	}
	return count
}

// String returns the decorated form of the name.
func (n Name) String() string {
	var b strings.Builder
	stars := strings.Repeat("*", n.Pointer)
	if n.Func {
		b.WriteString("(" + stars + n.Base + ")()")
	} else {
		b.WriteString(stars + n.Base)
	}
	for _, d := range n.Dims {
		b.WriteString("[" + strconv.Itoa(d) + "]")
	}
	return b.String()
}

type nameAST struct {
	Func  *funcPtrAST `  @@`
	Plain *plainAST   `| @@`
}

type funcPtrAST struct {
	Stars []string `"(" @"*"+`
	Ident string   `@Ident ")" "(" ")"`
	Dims  []int    `( "[" @Int "]" )*`
}

type plainAST struct {
	Stars []string `@"*"*`
	Ident string   `@Ident`
	Dims  []int    `( "[" @Int "]" )*`
}

var nameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[*()\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var nameParser = participle.MustBuild[nameAST](
	participle.Lexer(nameLexer),
	participle.Elide("Whitespace"),
)

// ParseName splits a decorated field name into pointer depth, base name, and
// array dimensions. Malformed names return an error wrapping ErrCorruptCatalog.
func ParseName(decorated string) (Name, error) {
	ast, err := nameParser.ParseString("", decorated)
	if err != nil {
		return Name{}, fmt.Errorf("%w: field name %q: %v", ErrCorruptCatalog, decorated, err)
	}
	var n Name
	switch {
	case ast.Func != nil:
		n = Name{Base: ast.Func.Ident, Pointer: len(ast.Func.Stars), Dims: ast.Func.Dims, Func: true}
	case ast.Plain != nil:
		n = Name{Base: ast.Plain.Ident, Pointer: len(ast.Plain.Stars), Dims: ast.Plain.Dims}
	default:
		return Name{}, fmt.Errorf("%w: field name %q", ErrCorruptCatalog, decorated)
	}
	if len(n.Dims) == 0 {
		n.Dims = nil
	}
	return n, nil
}
