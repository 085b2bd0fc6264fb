package blend

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/blend/internal/blendtype"
)

// Compression identifies the outer compression wrapping a .blend file.
type Compression = blendtype.Compression

// Re-export compression constants.
const (
	CompressionNone = blendtype.CompressionNone
	CompressionGzip = blendtype.CompressionGzip
	CompressionZstd = blendtype.CompressionZstd
)

// DefaultMaxDecompressedSize caps the size of a decompressed spill file.
const DefaultMaxDecompressedSize int64 = 8 << 30

// DefaultDecoderMaxMemory caps memory used by the zstd decoder.
const DefaultDecoderMaxMemory uint64 = 256 << 20

// sniffCompression reads the leading magic bytes of src.
func sniffCompression(src io.ReaderAt) (Compression, error) {
	var prefix [4]byte
	n, err := src.ReadAt(prefix[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return CompressionNone, fmt.Errorf("read magic: %w", err)
	}
	return blendtype.DetectCompression(prefix[:n]), nil
}

// spillFile is a decompressed copy of a compressed source, removed on Close.
type spillFile struct {
	*fileSource
	path string
}

func (s *spillFile) Close() error {
	err := s.file.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// decompress writes the decompressed contents of src to a temp file in
// f.spillDir and returns it as a ByteSource.
func (f *File) decompress(src ByteSource, comp Compression) (*spillFile, error) {
	zr, err := f.newDecoder(io.NewSectionReader(src, 0, src.Size()), comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompression, comp, err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(f.spillDir, "blend-spill-*")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}
	path := tmp.Name()
	discard := func() {
		tmp.Close()
		_ = os.Remove(path)
	}

	r := io.Reader(zr)
	if f.maxDecompressedSize > 0 {
		r = io.LimitReader(zr, f.maxDecompressedSize+1)
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		discard()
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompression, comp, err)
	}
	if f.maxDecompressedSize > 0 && n > f.maxDecompressedSize {
		discard()
		return nil, fmt.Errorf("decompressed size exceeds %d bytes: %w", f.maxDecompressedSize, ErrSizeOverflow)
	}

	fs, err := newFileSource(tmp)
	if err != nil {
		discard()
		return nil, err
	}
	fs.id = src.SourceID() + "#" + comp.String()
	f.log().Debug("decompressed blend file",
		"compression", comp.String(),
		"compressed_bytes", src.Size(),
		"bytes", n,
		"spill", path)
	return &spillFile{fileSource: fs, path: path}, nil
}

// newDecoder returns a streaming decoder for comp.
func (f *File) newDecoder(r io.Reader, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
		if f.decoderMaxMemory > 0 {
			opts = append(opts, zstd.WithDecoderMaxMemory(f.decoderMaxMemory))
		}
		dec, err := zstd.NewReader(r, opts...)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", comp)
	}
}
