// Package disk provides disk-backed implementations of the cache interfaces.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/blend/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	snapshotExt           = ".fbs"
)

// CatalogCache stores catalog snapshots as files named by digest.
//
// Layout: <dir>/<algorithm>/<shard>/<encoded>.fbs, where shard is the leading
// hex characters of the encoded digest.
type CatalogCache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
}

// Option configures a disk catalog cache.
type Option func(*CatalogCache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *CatalogCache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *CatalogCache) {
		c.dirPerm = mode
	}
}

// NewCatalogCache creates a disk-backed catalog cache rooted at dir.
func NewCatalogCache(dir string, opts ...Option) (*CatalogCache, error) {
	if dir == "" {
		return nil, errors.New("catalog cache dir is empty")
	}
	c := &CatalogCache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the snapshot stored for d.
func (c *CatalogCache) Get(d digest.Digest) ([]byte, bool) {
	path, err := c.path(d)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated digest
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores a snapshot for d. An existing entry is left in place.
func (c *CatalogCache) Put(d digest.Digest, snapshot []byte) error {
	path, err := c.path(d)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeAtomic(path, snapshot, c.dirPerm, "catalog-*")
}

// Delete removes the snapshot for d. A missing entry is not an error.
func (c *CatalogCache) Delete(d digest.Digest) error {
	path, err := c.path(d)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SizeBytes returns the total size of stored snapshots.
func (c *CatalogCache) SizeBytes() (int64, error) {
	return dirSize(c.dir)
}

// Prune removes the oldest snapshots until the cache is at or below targetBytes.
// Returns the number of bytes freed.
func (c *CatalogCache) Prune(targetBytes int64) (int64, error) {
	freed, _, err := pruneDir(c.dir, targetBytes)
	return freed, err
}

func (c *CatalogCache) path(d digest.Digest) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("catalog cache key: %w", err)
	}
	return shardedPath(filepath.Join(c.dir, d.Algorithm().String()), d.Encoded(), c.shardPrefixLen) + snapshotExt, nil
}

// shardedPath places name under a subdirectory named by its first n characters.
func shardedPath(dir, name string, n int) string {
	if n <= 0 {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, name[:min(n, len(name))], name)
}

// writeAtomic writes data to a temp file beside path and renames it into place.
// Losing a rename race to an identical entry is not an error.
func writeAtomic(path string, data []byte, dirPerm os.FileMode, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return err
	}
	return nil
}

// Interface compliance.
var _ cache.CatalogCache = (*CatalogCache)(nil)
