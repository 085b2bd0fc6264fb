package blend

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/blend/cache"
	"github.com/meigma/blend/internal/cursor"
	"github.com/meigma/blend/internal/sizing"
	"github.com/meigma/blend/sdna"
)

// File is an open .blend session.
//
// The header, block directory, and catalog are decoded when the file is
// opened and are immutable afterwards. A File is safe for concurrent use.
type File struct {
	src         ByteSource
	closers     []io.Closer
	header      Header
	dir         *Directory
	catalog     *sdna.Catalog
	compression Compression
	closed      atomic.Bool

	// materializations counts struct materializer runs.
	materializations atomic.Int64

	logger              *slog.Logger
	catalogCache        cache.CatalogCache
	blockCache          cache.BlockCache
	wrapOpts            []cache.WrapOption
	maxDecompressedSize int64
	spillDir            string
	decoderMaxMemory    uint64
	inlineCharPointers  bool
}

// log returns the logger, falling back to a discard logger if nil.
func (f *File) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// Open opens the .blend file at path.
//
// The returned File must be closed to release the file handle and any
// decompression spill file.
func Open(path string, opts ...Option) (*File, error) {
	osf, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open blend file: %w", err)
	}
	src, err := newFileSource(osf)
	if err != nil {
		osf.Close()
		return nil, err
	}
	f, err := open(src, src, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// OpenSource opens a .blend file served by src.
//
// If src implements io.Closer, the File closes it on Close.
func OpenSource(src ByteSource, opts ...Option) (*File, error) {
	if src == nil {
		return nil, errors.New("blend: source is nil")
	}
	closer, _ := src.(io.Closer)
	return open(src, closer, opts)
}

// OpenBytes opens a .blend file held in memory. Blocks are not copied; data
// must not be modified while the File is in use.
func OpenBytes(data []byte, opts ...Option) (*File, error) {
	return open(newBytesSource(data), nil, opts)
}

func open(src ByteSource, closer io.Closer, opts []Option) (*File, error) {
	f := &File{
		src:                 src,
		maxDecompressedSize: DefaultMaxDecompressedSize,
		decoderMaxMemory:    DefaultDecoderMaxMemory,
	}
	if closer != nil {
		f.closers = append(f.closers, closer)
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.load(); err != nil {
		_ = f.release() //nolint:errcheck // the load error is the one worth reporting
		return nil, err
	}
	return f, nil
}

// load runs the eager open-time passes.
func (f *File) load() error {
	if f.blockCache != nil {
		wrapped, err := f.blockCache.Wrap(f.src, f.wrapOpts...)
		if err != nil {
			return fmt.Errorf("wrap block cache: %w", err)
		}
		f.src = wrapped
	}

	comp, err := sniffCompression(f.src)
	if err != nil {
		return err
	}
	f.compression = comp
	if comp != CompressionNone {
		spill, err := f.decompress(f.src, comp)
		if err != nil {
			return err
		}
		f.closers = append(f.closers, spill)
		f.src = spill
	}

	if f.header, err = ParseHeader(f.src); err != nil {
		return err
	}
	f.log().Debug("read blend header",
		"source", f.src.SourceID(),
		"version", f.header.Version.String(),
		"pointer_size", f.header.PointerSize,
		"endianness", f.header.Endianness.String())

	if f.dir, err = scanDirectory(f.src, f.src.Size(), f.header); err != nil {
		return fmt.Errorf("scan blocks: %w", err)
	}
	f.log().Debug("scanned block directory", "blocks", f.dir.Len(), "codes", len(f.dir.codes))

	if f.catalog, err = f.loadCatalog(); err != nil {
		return err
	}
	return nil
}

// loadCatalog locates and parses the DNA1 block, consulting the catalog cache.
func (f *File) loadCatalog() (*sdna.Catalog, error) {
	blocks := f.dir.Lookup(CatalogCode)
	if len(blocks) == 0 {
		return nil, ErrMissingCatalog
	}
	dna := blocks[0]

	size, err := sizing.ToInt(uint64(dna.Size), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	body, err := cursor.New(f.src, dna.Offset, f.header.ByteOrder(), f.header.PointerSize).Bytes(size)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	dgst := digest.FromBytes(body)

	if f.catalogCache != nil {
		if cat, ok := f.cachedCatalog(dgst); ok {
			return cat, nil
		}
	}

	cat, err := sdna.Parse(body, dna.Offset, f.header.ByteOrder())
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if f.catalogCache != nil {
		f.log().Debug("catalog cache miss", "digest", dgst.String())
		snapshot, err := cat.MarshalBinary()
		if err == nil {
			err = f.catalogCache.Put(dgst, snapshot)
		}
		if err != nil {
			f.log().Debug("catalog cache put failed", "digest", dgst.String(), "error", err)
		}
	}
	return cat, nil
}

func (f *File) cachedCatalog(dgst digest.Digest) (*sdna.Catalog, bool) {
	snapshot, ok := f.catalogCache.Get(dgst)
	if !ok {
		return nil, false
	}
	cat, err := sdna.UnmarshalCatalog(snapshot)
	if err == nil && cat.Digest() != dgst {
		err = fmt.Errorf("snapshot digest %s", cat.Digest())
	}
	if err != nil {
		f.log().Debug("discarding catalog snapshot", "digest", dgst.String(), "error", err)
		_ = f.catalogCache.Delete(dgst) //nolint:errcheck // cache cleanup is best-effort
		return nil, false
	}
	f.log().Debug("catalog cache hit", "digest", dgst.String())
	return cat, true
}

// Close releases the underlying source and removes any spill file.
//
// Handles that were already loaded keep working. Forcing an unloaded handle,
// iterating a block, or resolving pointer text after Close fails with
// ErrResourceClosed. Close is idempotent.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.release()
}

func (f *File) release() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (f *File) Closed() bool {
	return f.closed.Load()
}

// Header returns the decoded file header.
func (f *File) Header() Header {
	return f.header
}

// Directory returns the block directory.
func (f *File) Directory() *Directory {
	return f.dir
}

// Catalog returns the SDNA catalog.
func (f *File) Catalog() *sdna.Catalog {
	return f.catalog
}

// Compression returns the outer compression the file was stored with.
func (f *File) Compression() Compression {
	return f.compression
}

// Size returns the size of the decoded (decompressed) file in bytes.
func (f *File) Size() int64 {
	return f.src.Size()
}

// Blocks returns an iterator over blocks whose code starts with prefix, in
// file order. The empty prefix matches every block. Each call yields fresh
// Block values.
func (f *File) Blocks(prefix string) iter.Seq[*Block] {
	return func(yield func(*Block) bool) {
		for h := range f.dir.WithPrefix(prefix) {
			if !yield(&Block{BlockHeader: h, f: f}) {
				return
			}
		}
	}
}

// BlocksByCode groups blocks whose code starts with prefix by code.
// Each slice is in file order.
func (f *File) BlocksByCode(prefix string) map[string][]*Block {
	out := make(map[string][]*Block)
	for b := range f.Blocks(prefix) {
		out[b.Code] = append(out[b.Code], b)
	}
	return out
}

// BlockAt returns the block recorded at addr.
func (f *File) BlockAt(addr uint64) (*Block, bool) {
	h, ok := f.dir.ByAddress(addr)
	if !ok {
		return nil, false
	}
	return &Block{BlockHeader: h, f: f}, true
}
