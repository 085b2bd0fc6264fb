// Package blendtype defines shared types used across the blend package and its
// subpackages. This avoids circular imports between blend, sdna, and internal/cursor.
package blendtype

import "bytes"

// Compression identifies the outer compression wrapping a .blend file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// Magic prefixes used to sniff the outer compression.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectCompression reports the compression indicated by the leading bytes of a file.
// Anything that is not recognized is treated as uncompressed.
func DetectCompression(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(prefix, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}
