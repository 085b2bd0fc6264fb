package sdna_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blend/sdna"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	cat, err := sdna.Parse(testSchema().Encode(binary.LittleEndian, 0), 0, binary.LittleEndian)
	require.NoError(t, err)

	data, err := cat.MarshalBinary()
	require.NoError(t, err)

	restored, err := sdna.UnmarshalCatalog(data)
	require.NoError(t, err)
	assert.Equal(t, cat, restored)
}

func TestUnmarshalCatalog_Rejects(t *testing.T) {
	t.Parallel()

	_, err := sdna.UnmarshalCatalog(nil)
	require.Error(t, err)

	_, err = sdna.UnmarshalCatalog([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0})
	require.Error(t, err)
}
