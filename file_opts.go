package blend

import (
	"log/slog"

	"github.com/meigma/blend/cache"
)

// Option configures a File.
type Option func(*File)

// WithLogger sets the logger for debug records about opening and caching.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}

// WithCatalogCache enables catalog snapshot caching.
//
// On open, the digest of the raw DNA1 body is looked up in c. A hit skips the
// catalog parse; a miss parses and stores a snapshot.
func WithCatalogCache(c cache.CatalogCache) Option {
	return func(f *File) {
		f.catalogCache = c
	}
}

// WithBlockCache wraps the byte source with block-level caching before any read.
// Compressed sources are cached in their compressed form.
func WithBlockCache(c cache.BlockCache, opts ...cache.WrapOption) Option {
	return func(f *File) {
		f.blockCache = c
		f.wrapOpts = opts
	}
}

// WithMaxDecompressedSize limits the size of a decompressed spill file.
// Set limit to 0 to disable the limit.
func WithMaxDecompressedSize(limit int64) Option {
	return func(f *File) {
		f.maxDecompressedSize = limit
	}
}

// WithSpillDir sets the directory for decompressed spill files.
// The default is os.TempDir.
func WithSpillDir(dir string) Option {
	return func(f *File) {
		f.spillDir = dir
	}
}

// WithDecoderMaxMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithDecoderMaxMemory(limit uint64) Option {
	return func(f *File) {
		f.decoderMaxMemory = limit
	}
}

// WithInlineCharPointers decodes bare "*name" fields of type char as strings
// stored in place, the layout some early writers used, instead of as pointers.
// The field still occupies exactly one pointer width.
func WithInlineCharPointers(enabled bool) Option {
	return func(f *File) {
		f.inlineCharPointers = enabled
	}
}
