package blend

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// ByteSource provides random access to the bytes of a .blend file.
//
// Implementations exist for local files, in-memory buffers, and HTTP range
// requests (see the http subpackage). SourceID must return a stable identifier
// for the underlying content; block caches key on it.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is captured at construction.
type fileSource struct {
	file *os.File
	size int64
	id   string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	path, err := filepath.Abs(f.Name())
	if err != nil {
		path = f.Name()
	}
	return &fileSource{
		file: f,
		size: info.Size(),
		id:   fmt.Sprintf("file:%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()),
	}, nil
}

// ReadAt implements io.ReaderAt.
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (s *fileSource) Size() int64 {
	return s.size
}

// SourceID identifies the file by absolute path, size, and modification time.
func (s *fileSource) SourceID() string {
	return s.id
}

func (s *fileSource) Close() error {
	return s.file.Close()
}

// bytesSource serves an in-memory buffer.
type bytesSource struct {
	*bytes.Reader
	id string
}

func newBytesSource(data []byte) *bytesSource {
	return &bytesSource{
		Reader: bytes.NewReader(data),
		id:     "bytes:" + digest.FromBytes(data).String(),
	}
}

// SourceID identifies the buffer by content digest.
func (s *bytesSource) SourceID() string {
	return s.id
}

// Interface compliance.
var (
	_ ByteSource = (*fileSource)(nil)
	_ ByteSource = (*bytesSource)(nil)
)
