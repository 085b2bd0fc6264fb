package blend

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blend/internal/cursor"
	"github.com/meigma/blend/internal/testutil"
)

// Scenario: one struct type Foo{int value}, a block of two instances.
func TestBlocks_SingleStructType(t *testing.T) {
	t.Parallel()

	f, err := OpenBytes(fooFile(42, -1).Bytes())
	require.NoError(t, err)

	var handles []*Struct
	for b := range f.Blocks("") {
		if b.Code != "FO" {
			continue
		}
		for s, err := range b.Structs() {
			require.NoError(t, err)
			handles = append(handles, s)
		}
	}
	require.Len(t, handles, 2)
	assert.False(t, handles[0].Loaded())
	assert.Equal(t, "<Struct Foo (unloaded)>", handles[0].String())

	v, err := handles[0].Field("value")
	require.NoError(t, err)
	n, ok := v.Int()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)
	assert.True(t, handles[0].Loaded())
	assert.Equal(t, "<Struct Foo (loaded)>", handles[0].String())
	assert.False(t, handles[1].Loaded())

	v, err = handles[1].Field("value")
	require.NoError(t, err)
	n, _ = v.Int()
	assert.Equal(t, int64(-1), n)
}

func TestStruct_Decode(t *testing.T) {
	t.Parallel()

	for _, l := range layouts {
		t.Run(l.name, func(t *testing.T) {
			t.Parallel()

			f := openFixture(t, l.ptrSize, l.order)
			blk := f.BlocksByCode("OB")["OB"]
			require.Len(t, blk, 1)
			s, err := blk[0].Struct(0)
			require.NoError(t, err)

			v, err := s.Field("flag")
			require.NoError(t, err)
			flag, ok := v.Int()
			require.True(t, ok)
			assert.Equal(t, int64(-3), flag)

			v, err = s.Field("name[8]")
			require.NoError(t, err)
			elems, ok := v.Array()
			require.True(t, ok)
			assert.Len(t, elems, 8)
			name, ok := v.Text()
			require.True(t, ok)
			assert.Equal(t, "cube", name)

			v, err = s.Field("vals[3]")
			require.NoError(t, err)
			elems, ok = v.Array()
			require.True(t, ok)
			require.Len(t, elems, 3)
			for i, want := range []int64{1, 2, 3} {
				got, ok := elems[i].Int()
				require.True(t, ok)
				assert.Equal(t, want, got)
			}

			v, err = s.Field("foo")
			require.NoError(t, err)
			foo, ok := v.Struct()
			require.True(t, ok)
			assert.False(t, foo.Loaded())
			inner, err := foo.Field("value")
			require.NoError(t, err)
			n, _ := inner.Int()
			assert.Equal(t, int64(7), n)

			v, err = s.Field("weight")
			require.NoError(t, err)
			assert.Equal(t, KindOpaque, v.Kind())
			raw, ok := v.Bytes()
			require.True(t, ok)
			assert.Len(t, raw, 4)
			w, ok := v.Float()
			require.True(t, ok)
			assert.InDelta(t, 1.5, w, 0)

			_, err = s.Field("mat[2][2]")
			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, "Item", fieldErr.Type)
			assert.Equal(t, "mat[2][2]", fieldErr.Field)
			require.ErrorIs(t, err, ErrUnsupportedNestedArray)

			// Fields after the nested array still decode at the right offset.
			v, err = s.Field("c")
			require.NoError(t, err)
			c, ok := v.Char()
			require.True(t, ok)
			assert.Equal(t, byte('x'), c)

			v, err = s.Field("id")
			require.NoError(t, err)
			id, ok := v.Uint()
			require.True(t, ok)
			assert.Equal(t, uint64(65535), id)

			v, err = s.Field("(*draw)()")
			require.NoError(t, err)
			fn, ok := v.Pointer()
			require.True(t, ok)
			assert.True(t, fn.Func)
			assert.Equal(t, TargetNull, fn.Resolve().State)
		})
	}
}

func TestStruct_Pointers(t *testing.T) {
	t.Parallel()

	for _, l := range layouts {
		t.Run(l.name, func(t *testing.T) {
			t.Parallel()

			f := openFixture(t, l.ptrSize, l.order)
			var items []*Struct
			for b := range f.Blocks("OB") {
				for s, err := range b.Structs() {
					require.NoError(t, err)
					items = append(items, s)
				}
			}
			require.Len(t, items, 2)

			v, err := items[0].Field("*next")
			require.NoError(t, err)
			next, ok := v.Pointer()
			require.True(t, ok)
			assert.Equal(t, uint64(itemAddr), next.Address)
			assert.Equal(t, "Item", next.Type)
			assert.Equal(t, 1, next.Depth)

			target := next.Resolve()
			require.Equal(t, TargetResolved, target.State)
			assert.Equal(t, "OB", target.Block.Code)
			require.NotNil(t, target.Struct)
			assert.Equal(t, items[0].Offset(), target.Struct.Offset())
			name, err := target.Struct.Field("name[8]")
			require.NoError(t, err)
			text, _ := name.Text()
			assert.Equal(t, "cube", text)

			v, err = items[0].Field("*label")
			require.NoError(t, err)
			label, ok := v.Pointer()
			require.True(t, ok)
			got, err := label.Text()
			require.NoError(t, err)
			assert.Equal(t, "hello", got)
			assert.Nil(t, label.Resolve().Struct)

			// Pointer with no matching block is dangling, not an error.
			v, err = items[1].Field("*next")
			require.NoError(t, err)
			dangling, _ := v.Pointer()
			assert.Equal(t, TargetDangling, dangling.Resolve().State)
			assert.Equal(t, "*Item 0xdead", dangling.String())

			v, err = items[1].Field("*label")
			require.NoError(t, err)
			null, _ := v.Pointer()
			assert.True(t, null.IsNull())
			assert.Equal(t, TargetNull, null.Resolve().State)
			got, err = null.Text()
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Equal(t, "*char NULL", null.String())

			_, err = next.Text()
			require.Error(t, err)
		})
	}
}

func TestPointer_DanglingText(t *testing.T) {
	t.Parallel()

	f := openFixture(t, 8, binary.LittleEndian)
	p := &Pointer{Address: danglingAddr, Type: "char", Depth: 1, f: f}
	_, err := p.Text()
	require.ErrorIs(t, err, ErrDanglingPointer)
}

func TestStruct_DeclarationOrder(t *testing.T) {
	t.Parallel()

	f := openFixture(t, 8, binary.LittleEndian)
	s := firstItem(f)
	fields, err := s.Fields()
	require.NoError(t, err)

	def, ok := f.Catalog().Struct("Item")
	require.True(t, ok)
	require.Len(t, fields, len(def.Fields))
	for i, fd := range def.Fields {
		assert.Equal(t, fd.Name, fields[i].Name)
		assert.Equal(t, fd.Type, fields[i].Type)
	}
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, len(def.Fields), n)
}

func TestStruct_NoSuchField(t *testing.T) {
	t.Parallel()

	f := openFixture(t, 8, binary.LittleEndian)
	_, err := firstItem(f).Field("missing")
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "missing", fieldErr.Field)
	require.ErrorIs(t, err, ErrNoSuchField)
}

func TestStruct_ForceOnceConcurrent(t *testing.T) {
	t.Parallel()

	f := openFixture(t, 8, binary.LittleEndian)
	s := firstItem(f)

	const callers = 32
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Inspect()
			if err == nil {
				results[i] = out
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.materializations.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	require.NoError(t, s.Force())
	assert.Equal(t, int64(1), f.materializations.Load())
}

func TestStruct_Inspect(t *testing.T) {
	t.Parallel()

	f, err := OpenBytes(fooFile(42).Bytes())
	require.NoError(t, err)
	for b := range f.Blocks("FO") {
		s, err := b.Struct(0)
		require.NoError(t, err)
		out, err := s.Inspect()
		require.NoError(t, err)
		assert.Equal(t, "{\n    \"value\": \"42\"\n}", out)
	}
}

func TestStruct_InspectFixture(t *testing.T) {
	t.Parallel()

	f := openFixture(t, 8, binary.LittleEndian)
	out, err := firstItem(f).Inspect()
	require.NoError(t, err)
	assert.Contains(t, out, `"name[8]": "\"cube\""`)
	assert.Contains(t, out, `"weight": "float(1.5)"`)
	assert.Contains(t, out, `"foo": "<Struct Foo (unloaded)>"`)
	assert.Contains(t, out, `"*next": "*Item 0x1000"`)
	assert.Contains(t, out, `"mat[2][2]": "<error:`)
}

func TestStruct_Truncated(t *testing.T) {
	t.Parallel()

	// Declare three instances but only carry bytes for two, in the last block.
	ff := testutil.NewFile(8, binary.LittleEndian)
	ff.AddCatalog(testutil.Schema{
		Types:   []testutil.Type{{Name: "int", Length: 4}, {Name: "Foo", Length: 4}},
		Structs: []testutil.StructDef{{Type: "Foo", Fields: []testutil.Field{{Type: "int", Name: "value"}}}},
	})
	ff.Add(testutil.Block{Code: "FO", Count: 3, Body: ff.Writer().Int32(1).Int32(2).Bytes()})

	f, err := OpenBytes(ff.Bytes())
	require.NoError(t, err)

	var handles []*Struct
	for b := range f.Blocks("FO") {
		for s, err := range b.Structs() {
			require.NoError(t, err)
			handles = append(handles, s)
		}
	}
	require.Len(t, handles, 3)
	require.NoError(t, handles[1].Force())
	require.ErrorIs(t, handles[2].Force(), ErrTruncated)
	_, err = handles[2].Field("value")
	require.ErrorIs(t, err, ErrTruncated)
}

func TestStruct_UnknownType(t *testing.T) {
	t.Parallel()

	f, err := OpenBytes(fooFile(1).Bytes())
	require.NoError(t, err)

	s := newStruct(f, "Missing", f.Directory().Lookup("FO")[0].Offset)
	require.ErrorIs(t, s.Force(), ErrUnknownType)
	assert.True(t, s.Loaded())
}

func TestStruct_InlineCharPointers(t *testing.T) {
	t.Parallel()

	schema := testutil.Schema{
		Types: []testutil.Type{{Name: "char", Length: 1}, {Name: "int", Length: 4}, {Name: "Old", Length: 12}},
		Structs: []testutil.StructDef{{Type: "Old", Fields: []testutil.Field{
			{Type: "char", Name: "*name"},
			{Type: "int", Name: "after"},
		}}},
	}
	ff := testutil.NewFile(8, binary.LittleEndian)
	ff.AddCatalog(schema)
	ff.Add(testutil.Block{Code: "OL", Count: 1, Body: ff.Writer().Raw([]byte("abc\x00zzzz")).Int32(9).Bytes()})
	data := ff.Bytes()

	inline, err := OpenBytes(data, WithInlineCharPointers(true))
	require.NoError(t, err)
	s, err := inline.BlocksByCode("OL")["OL"][0].Struct(0)
	require.NoError(t, err)
	v, err := s.Field("*name")
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind())
	text, _ := v.Text()
	assert.Equal(t, "abc", text)
	v, err = s.Field("after")
	require.NoError(t, err)
	after, _ := v.Int()
	assert.Equal(t, int64(9), after)

	resolved, err := OpenBytes(data)
	require.NoError(t, err)
	s, err = resolved.BlocksByCode("OL")["OL"][0].Struct(0)
	require.NoError(t, err)
	v, err = s.Field("*name")
	require.NoError(t, err)
	assert.Equal(t, KindPointer, v.Kind())
}

func TestDecoder_ArrayAdvance(t *testing.T) {
	t.Parallel()

	f := openFixture(t, 4, binary.BigEndian)
	def, ok := f.Catalog().Struct("Item")
	require.True(t, ok)

	tests := []struct {
		field string
		want  int64
	}{
		{"vals[3]", 3 * 4},
		{"name[8]", 8 * 1},
		{"mat[2][2]", 2 * 2 * 4},
		{"*next", 4},
		{"(*draw)()", 4},
		{"foo", 4},
	}
	for _, tt := range tests {
		fd, ok := def.Field(tt.field)
		require.True(t, ok, tt.field)

		start := f.Directory().Lookup("OB")[0].Offset
		d := &decoder{
			f:   f,
			cat: f.Catalog(),
			c:   cursor.New(f.src, start, f.Header().ByteOrder(), f.Header().PointerSize),
		}
		_, _ = d.field(fd) //nolint:errcheck // only the advance matters here
		assert.Equal(t, start+tt.want, d.c.Offset(), tt.field)
	}
}

func TestIntegerSign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ    string
		signed bool
		ok     bool
	}{
		{"short", true, true},
		{"int", true, true},
		{"long long", true, true},
		{"int64_t", true, true},
		{"ushort", false, true},
		{"uint", false, true},
		{"uint64_t", false, true},
		{"unsigned int", false, true},
		{"char", false, false},
		{"uchar", false, false},
		{"float", false, false},
		{"Object", false, false},
	}
	for _, tt := range tests {
		signed, ok := integerSign(tt.typ)
		assert.Equal(t, tt.ok, ok, tt.typ)
		if ok {
			assert.Equal(t, tt.signed, signed, tt.typ)
		}
	}
}
