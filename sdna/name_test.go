package sdna

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Name
	}{
		{in: "value", want: Name{Base: "value"}},
		{in: "*next", want: Name{Base: "next", Pointer: 1}},
		{in: "**mat", want: Name{Base: "mat", Pointer: 2}},
		{in: "name[64]", want: Name{Base: "name", Dims: []int{64}}},
		{in: "mat[4][4]", want: Name{Base: "mat", Dims: []int{4, 4}}},
		{in: "*mtex[18]", want: Name{Base: "mtex", Pointer: 1, Dims: []int{18}}},
		{in: "(*draw)()", want: Name{Base: "draw", Pointer: 1, Func: true}},
		{in: "_pad0[7]", want: Name{Base: "_pad0", Dims: []int{7}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseName_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "name[", "[4]", "(*)()", "a b"} {
		_, err := ParseName(in)
		require.ErrorIs(t, err, ErrCorruptCatalog, "input %q", in)
	}
}

func TestName_Predicates(t *testing.T) {
	t.Parallel()

	n, err := ParseName("mat[4][4]")
	require.NoError(t, err)
	assert.True(t, n.IsArray())
	assert.True(t, n.Nested())
	assert.False(t, n.IsPointer())
	assert.Equal(t, 16, n.Count())

	fn, err := ParseName("(*exec)()")
	require.NoError(t, err)
	assert.True(t, fn.IsPointer())
	assert.Equal(t, 1, fn.Count())
}
