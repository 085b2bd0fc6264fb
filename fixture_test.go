package blend

import (
	"encoding/binary"
	"testing"

	"github.com/meigma/blend/internal/testutil"
)

// Recorded addresses used by the fixture.
const (
	itemAddr     = 0x1000
	textAddr     = 0x2000
	fooAddr      = 0x3000
	danglingAddr = 0xdead
)

// Block indexes in the fixture, in file order.
const (
	fixtureTest = iota
	fixtureItems
	fixtureText
	fixtureFoo
	fixtureCatalog
	fixtureEnd
)

func fixtureSchema(ptrSize int) testutil.Schema {
	return testutil.Schema{
		Types: []testutil.Type{
			{Name: "char", Length: 1},
			{Name: "uchar", Length: 1},
			{Name: "short", Length: 2},
			{Name: "ushort", Length: 2},
			{Name: "int", Length: 4},
			{Name: "float", Length: 4},
			{Name: "void", Length: 0},
			{Name: "Foo", Length: 4},
			{Name: "Item", Length: itemLength(ptrSize)},
		},
		Structs: []testutil.StructDef{
			{Type: "Foo", Fields: []testutil.Field{{Type: "int", Name: "value"}}},
			{Type: "Item", Fields: []testutil.Field{
				{Type: "short", Name: "flag"},
				{Type: "char", Name: "name[8]"},
				{Type: "int", Name: "vals[3]"},
				{Type: "Foo", Name: "foo"},
				{Type: "Item", Name: "*next"},
				{Type: "char", Name: "*label"},
				{Type: "float", Name: "weight"},
				{Type: "float", Name: "mat[2][2]"},
				{Type: "uchar", Name: "c"},
				{Type: "ushort", Name: "id"},
				{Type: "void", Name: "(*draw)()"},
			}},
		},
	}
}

func itemLength(ptrSize int) int {
	return 2 + 8 + 3*4 + 4 + ptrSize + ptrSize + 4 + 4*4 + 1 + 2 + ptrSize
}

type item struct {
	flag   int16
	name   string
	vals   [3]int32
	foo    int32
	next   uint64
	label  uint64
	weight float32
	c      byte
	id     uint16
}

func writeItem(w *testutil.Writer, it item) {
	w.Int16(it.flag).FixedString(it.name, 8)
	for _, v := range it.vals {
		w.Int32(v)
	}
	w.Int32(it.foo).Pointer(it.next).Pointer(it.label).Float32(it.weight)
	for i := range 4 {
		w.Float32(float32(i))
	}
	w.Byte(it.c).Uint16(it.id).Pointer(0)
}

var fixtureItemsData = []item{
	{flag: -3, name: "cube", vals: [3]int32{1, 2, 3}, foo: 7, next: itemAddr, label: textAddr, weight: 1.5, c: 'x', id: 65535},
	{flag: 5, name: "sphere", vals: [3]int32{4, 5, 6}, foo: 8, next: danglingAddr, label: 0, weight: -2, c: 'y', id: 2},
}

// buildFixture assembles a file exercising every decoding rule.
func buildFixture(ptrSize int, order binary.ByteOrder) *testutil.File {
	f := testutil.NewFile(ptrSize, order)

	items := f.Writer()
	for _, it := range fixtureItemsData {
		writeItem(items, it)
	}

	f.Add(testutil.Block{Code: "TEST", Body: make([]byte, 8)})
	f.Add(testutil.Block{Code: "OB", Address: itemAddr, SDNAIndex: 1, Count: 2, Body: items.Bytes()})
	f.Add(testutil.Block{Code: "DATA", Address: textAddr, Count: 1, Body: []byte("hello\x00")})
	f.Add(testutil.Block{Code: "FO", Address: fooAddr, Count: 1, Body: f.Writer().Int32(99).Bytes()})
	f.AddCatalog(fixtureSchema(ptrSize))
	f.Add(testutil.Block{Code: "ENDB"})
	return f
}

// layouts covers both pointer widths and both byte orders.
var layouts = []struct {
	name    string
	ptrSize int
	order   binary.ByteOrder
}{
	{"ptr8-little", 8, binary.LittleEndian},
	{"ptr8-big", 8, binary.BigEndian},
	{"ptr4-little", 4, binary.LittleEndian},
	{"ptr4-big", 4, binary.BigEndian},
}

func openFixture(t *testing.T, ptrSize int, order binary.ByteOrder, opts ...Option) *File {
	t.Helper()
	f, err := OpenBytes(buildFixture(ptrSize, order).Bytes(), opts...)
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// fooFile is a single-struct file: Foo{int value} with count instances.
func fooFile(values ...int32) *testutil.File {
	f := testutil.NewFile(8, binary.LittleEndian)
	w := f.Writer()
	for _, v := range values {
		w.Int32(v)
	}
	//nolint:gosec // test counts are small
	f.Add(testutil.Block{Code: "FO", Address: fooAddr, Count: uint32(len(values)), Body: w.Bytes()})
	f.AddCatalog(testutil.Schema{
		Types:   []testutil.Type{{Name: "int", Length: 4}, {Name: "Foo", Length: 4}},
		Structs: []testutil.StructDef{{Type: "Foo", Fields: []testutil.Field{{Type: "int", Name: "value"}}}},
	})
	return f
}
