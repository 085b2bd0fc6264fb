package cache

import (
	"fmt"
	"io"
	"math"
)

// ByteSource is the subset of blend.ByteSource a block cache needs.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// RangeReader is implemented by sources that can stream a byte range in one
// request, such as the HTTP source. Block fetches prefer it over ReadAt.
type RangeReader interface {
	ReadRange(off, length int64) (io.ReadCloser, error)
}

// BlockCache wraps ByteSources with block-level caching.
//
// Opening a .blend file reads every block record header in sequence, then
// jumps around the file as handles materialize. Over a remote source those
// small scattered reads are what the cache absorbs; a single read spanning
// more than MaxBlocksPerRead blocks, such as a large DNA1 body, bypasses it.
type BlockCache interface {
	Wrap(src ByteSource, opts ...WrapOption) (ByteSource, error)

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune evicts the oldest entries until the cache holds at most
	// targetBytes and reports how many bytes were freed.
	Prune(targetBytes int64) (int64, error)
}

// A block record header is 20 or 24 bytes, so even small blocks hold
// hundreds of records.
const (
	DefaultBlockSize        int64 = 32 << 10
	DefaultMaxBlocksPerRead       = 8
)

// WrapConfig is the per-source block layout.
type WrapConfig struct {
	BlockSize        int64
	MaxBlocksPerRead int // <= 0 disables the bypass
}

// NewWrapConfig applies opts over the defaults and validates the result.
func NewWrapConfig(opts ...WrapOption) (WrapConfig, error) {
	cfg := WrapConfig{
		BlockSize:        DefaultBlockSize,
		MaxBlocksPerRead: DefaultMaxBlocksPerRead,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BlockSize <= 0 || cfg.BlockSize > math.MaxInt32 {
		return WrapConfig{}, fmt.Errorf("block cache: block size %d out of range", cfg.BlockSize)
	}
	return cfg, nil
}

// WrapOption adjusts a WrapConfig.
type WrapOption func(*WrapConfig)

// WithBlockSize sets the size of each cached block.
func WithBlockSize(n int64) WrapOption {
	return func(cfg *WrapConfig) { cfg.BlockSize = n }
}

// WithMaxBlocksPerRead makes a ReadAt spanning more than n blocks go straight
// to the source.
func WithMaxBlocksPerRead(n int) WrapOption {
	return func(cfg *WrapConfig) { cfg.MaxBlocksPerRead = n }
}
