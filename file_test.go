package blend

import (
	"bytes"
	"encoding/binary"
	"os"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blend/internal/testutil"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, "scene.blend", buildFixture(8, binary.LittleEndian).Bytes())
	f, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, f.Compression())
	assert.Equal(t, 8, f.Header().PointerSize)
	assert.Equal(t, 6, f.Directory().Len())
	assert.Equal(t, 2, f.Catalog().NumStructs())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir() + "/missing.blend")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_MissingCatalog(t *testing.T) {
	t.Parallel()

	f := testutil.NewFile(8, binary.LittleEndian)
	f.Add(testutil.Block{Code: "TEST", Body: make([]byte, 8)})
	_, err := OpenBytes(f.Bytes())
	require.ErrorIs(t, err, ErrMissingCatalog)
}

func TestOpen_CorruptCatalog(t *testing.T) {
	t.Parallel()

	f := testutil.NewFile(8, binary.LittleEndian)
	f.Add(testutil.Block{Code: CatalogCode, Body: []byte("SDNANAMX\x00\x00\x00\x00")})
	_, err := OpenBytes(f.Bytes())
	var tagErr *TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, "NAME", tagErr.Expected)
	require.ErrorIs(t, err, ErrCorruptCatalog)
}

func TestOpen_MalformedHeader(t *testing.T) {
	t.Parallel()

	data := buildFixture(8, binary.LittleEndian).Bytes()
	data[8] = 'x'
	_, err := OpenBytes(data)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestOpen_Deterministic(t *testing.T) {
	t.Parallel()

	for _, l := range layouts {
		t.Run(l.name, func(t *testing.T) {
			t.Parallel()

			data := buildFixture(l.ptrSize, l.order).Bytes()
			a, err := OpenBytes(data)
			require.NoError(t, err)
			b, err := OpenBytes(data)
			require.NoError(t, err)

			assert.Equal(t, a.Header(), b.Header())
			assert.Equal(t, a.Directory().CountByCode(), b.Directory().CountByCode())
			assert.Equal(t, a.Catalog(), b.Catalog())
		})
	}
}

func TestOpen_Compressed(t *testing.T) {
	t.Parallel()

	raw := buildFixture(8, binary.LittleEndian).Bytes()
	tests := []struct {
		name string
		comp Compression
		data []byte
	}{
		{"gzip", CompressionGzip, gzipBytes(t, raw)},
		{"zstd", CompressionZstd, zstdBytes(t, raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spill := t.TempDir()
			f, err := OpenBytes(tt.data, WithSpillDir(spill))
			require.NoError(t, err)
			assert.Equal(t, tt.comp, f.Compression())
			assert.Equal(t, int64(len(raw)), f.Size())

			entries, err := os.ReadDir(spill)
			require.NoError(t, err)
			assert.Len(t, entries, 1)

			plain, err := OpenBytes(raw)
			require.NoError(t, err)
			assert.Equal(t, plain.Catalog(), f.Catalog())
			assert.Equal(t, plain.Directory().CountByCode(), f.Directory().CountByCode())

			s, err := firstItem(f).Inspect()
			require.NoError(t, err)
			want, err := firstItem(plain).Inspect()
			require.NoError(t, err)
			assert.Equal(t, want, s)

			require.NoError(t, f.Close())
			entries, err = os.ReadDir(spill)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestOpen_DecompressedSizeLimit(t *testing.T) {
	t.Parallel()

	raw := buildFixture(8, binary.LittleEndian).Bytes()
	spill := t.TempDir()
	_, err := OpenBytes(zstdBytes(t, raw), WithSpillDir(spill), WithMaxDecompressedSize(int64(len(raw)-1)))
	require.ErrorIs(t, err, ErrSizeOverflow)

	entries, err := os.ReadDir(spill)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_CorruptCompressed(t *testing.T) {
	t.Parallel()

	data := zstdBytes(t, buildFixture(8, binary.LittleEndian).Bytes())
	data = data[:len(data)/2]
	_, err := OpenBytes(data, WithSpillDir(t.TempDir()))
	require.ErrorIs(t, err, ErrDecompression)
}

// memCatalogCache is an in-memory CatalogCache that counts lookups.
type memCatalogCache struct {
	mu      sync.Mutex
	entries map[digest.Digest][]byte
	hits    int
	misses  int
	deletes int
}

func newMemCatalogCache() *memCatalogCache {
	return &memCatalogCache{entries: make(map[digest.Digest][]byte)}
}

func (c *memCatalogCache) Get(d digest.Digest) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[d]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

func (c *memCatalogCache) Put(d digest.Digest, snapshot []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[d] = bytes.Clone(snapshot)
	return nil
}

func (c *memCatalogCache) Delete(d digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, d)
	return nil
}

func TestOpen_CatalogCache(t *testing.T) {
	t.Parallel()

	data := buildFixture(4, binary.BigEndian).Bytes()
	cc := newMemCatalogCache()

	first, err := OpenBytes(data, WithCatalogCache(cc))
	require.NoError(t, err)
	assert.Equal(t, 1, cc.misses)
	require.Len(t, cc.entries, 1)

	second, err := OpenBytes(data, WithCatalogCache(cc))
	require.NoError(t, err)
	assert.Equal(t, 1, cc.hits)
	assert.Equal(t, first.Catalog(), second.Catalog())

	s, err := firstItem(second).Inspect()
	require.NoError(t, err)
	want, err := firstItem(first).Inspect()
	require.NoError(t, err)
	assert.Equal(t, want, s)
}

func TestOpen_CatalogCacheCorruptSnapshot(t *testing.T) {
	t.Parallel()

	data := buildFixture(8, binary.LittleEndian).Bytes()
	cc := newMemCatalogCache()
	f, err := OpenBytes(data, WithCatalogCache(cc))
	require.NoError(t, err)
	dgst := f.Catalog().Digest()

	cc.entries[dgst] = []byte("not a snapshot")
	g, err := OpenBytes(data, WithCatalogCache(cc))
	require.NoError(t, err)
	assert.Equal(t, 1, cc.deletes)
	assert.Equal(t, f.Catalog(), g.Catalog())
	assert.NotEqual(t, []byte("not a snapshot"), cc.entries[dgst])
}

func TestOpenSource_Nil(t *testing.T) {
	t.Parallel()

	_, err := OpenSource(nil)
	require.Error(t, err)
}

func TestOpenSource_ReadsThroughSource(t *testing.T) {
	t.Parallel()

	src := testutil.NewMockByteSource(buildFixture(8, binary.LittleEndian).Bytes())
	f, err := OpenSource(src)
	require.NoError(t, err)
	assert.Positive(t, src.Reads())
	assert.Equal(t, src.Size(), f.Size())
}

func firstItem(f *File) *Struct {
	for b := range f.Blocks("OB") {
		s, err := b.Struct(0)
		if err != nil {
			panic(err)
		}
		return s
	}
	panic("no OB block")
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}
