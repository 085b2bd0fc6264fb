package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/blend/cache"
)

// BlockCache is a disk-backed cache.BlockCache.
//
// Each cached block is one file named by the digest of (source id, block
// size, block index). Concurrent misses on the same block share one fetch.
// The cache is safe for concurrent use.
type BlockCache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64              // 0 = unlimited
	bytes          atomic.Int64       // current total size of cached blocks
	fetches        singleflight.Group // dedups concurrent fetches of one block
	pruneMu        sync.Mutex
}

// BlockCacheOption configures a disk-backed block cache.
type BlockCacheOption func(*BlockCache)

// WithBlockMaxBytes sets the maximum size in bytes for the block cache.
// Values <= 0 disable the limit.
func WithBlockMaxBytes(n int64) BlockCacheOption {
	return func(c *BlockCache) {
		c.maxBytes = n
	}
}

// WithBlockShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithBlockShardPrefixLen(n int) BlockCacheOption {
	return func(c *BlockCache) {
		c.shardPrefixLen = n
	}
}

// NewBlockCache creates a disk-backed block cache rooted at dir.
func NewBlockCache(dir string, opts ...BlockCacheOption) (*BlockCache, error) {
	if dir == "" {
		return nil, errors.New("block cache dir is empty")
	}
	c := &BlockCache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("block cache shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		c.maxBytes = 0
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	c.bytes.Store(size)
	return c, nil
}

// Wrap returns a ByteSource that serves reads from cached fixed-size blocks.
func (c *BlockCache) Wrap(src cache.ByteSource, opts ...cache.WrapOption) (cache.ByteSource, error) {
	if src == nil {
		return nil, errors.New("block cache: source is nil")
	}
	cfg, err := cache.NewWrapConfig(opts...)
	if err != nil {
		return nil, err
	}
	id := src.SourceID()
	if id == "" {
		return nil, errors.New("block cache: source id is empty")
	}
	return &cachedSource{
		src:       src,
		cache:     c,
		id:        id,
		blockSize: cfg.BlockSize,
		maxBlocks: cfg.MaxBlocksPerRead,
	}, nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *BlockCache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *BlockCache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune removes the oldest blocks until the cache is at or below targetBytes.
func (c *BlockCache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, targetBytes)
	if err != nil {
		return 0, err
	}
	c.bytes.Store(remaining)
	return freed, nil
}

// block returns the cached contents of one block, fetching it on a miss.
func (c *BlockCache) block(key string, length int64, fetch func() ([]byte, error)) ([]byte, error) {
	v, err, _ := c.fetches.Do(key, func() (any, error) {
		path := shardedPath(c.dir, key, c.shardPrefixLen)
		data, err := os.ReadFile(path) //nolint:gosec // path is derived from a digest
		switch {
		case err == nil && int64(len(data)) == length:
			return data, nil
		case err == nil:
			// Stale entry from a source that changed size; replace it.
			c.bytes.Add(-int64(len(data)))
			_ = os.Remove(path)
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}

		data, err = fetch()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != length {
			return nil, io.ErrUnexpectedEOF
		}
		_ = c.store(path, data) //nolint:errcheck // cache writes are best-effort
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:errcheck,forcetypeassert // Do returns what the closure returned
}

func (c *BlockCache) store(path string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if !c.reserve(int64(len(data))) {
		return nil
	}
	if err := writeAtomic(path, data, c.dirPerm, "block-*"); err != nil {
		return err
	}
	c.bytes.Add(int64(len(data)))
	return nil
}

// reserve makes room for need bytes, pruning if necessary.
func (c *BlockCache) reserve(need int64) bool {
	if c.maxBytes <= 0 {
		return true
	}
	if need > c.maxBytes {
		return false
	}
	if c.SizeBytes()+need <= c.maxBytes {
		return true
	}
	if _, err := c.Prune(c.maxBytes - need); err != nil {
		return false
	}
	return c.SizeBytes()+need <= c.maxBytes
}

// blockKey names block index of a source split into blockSize blocks.
func blockKey(sourceID string, blockSize, index int64) string {
	buf := make([]byte, 0, len(sourceID)+16)
	buf = append(buf, sourceID...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(blockSize)) //nolint:gosec // validated > 0
	buf = binary.BigEndian.AppendUint64(buf, uint64(index))     //nolint:gosec // always >= 0
	return digest.FromBytes(buf).Encoded()
}

// cachedSource is a ByteSource backed by a BlockCache.
type cachedSource struct {
	src       cache.ByteSource
	cache     *BlockCache
	id        string
	blockSize int64
	maxBlocks int
}

func (s *cachedSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), size-off)

	first := off / s.blockSize
	last := (off + want - 1) / s.blockSize
	if s.maxBlocks > 0 && last-first+1 > int64(s.maxBlocks) {
		return s.src.ReadAt(p, off)
	}

	var n int64
	for idx := first; idx <= last; idx++ {
		start := idx * s.blockSize
		end := min(start+s.blockSize, size)
		data, err := s.cache.block(blockKey(s.id, s.blockSize, idx), end-start, func() ([]byte, error) {
			return s.fetch(start, end-start)
		})
		if err != nil {
			return int(n), err
		}
		from := max(off, start)
		to := min(off+want, end)
		n += int64(copy(p[from-off:to-off], data[from-start:to-start]))
	}
	if want < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// fetch reads one block from the wrapped source, preferring a streamed range read.
func (s *cachedSource) fetch(off, length int64) ([]byte, error) {
	if rr, ok := s.src.(cache.RangeReader); ok {
		rc, err := rr.ReadRange(off, length)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	buf := make([]byte, length)
	n, err := s.src.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (s *cachedSource) Size() int64 {
	return s.src.Size()
}

func (s *cachedSource) SourceID() string {
	return s.id
}

// Interface compliance.
var _ cache.BlockCache = (*BlockCache)(nil)

