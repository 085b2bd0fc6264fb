// Package cache defines the optional caches a blend session can use.
//
// A CatalogCache stores SDNA catalog snapshots keyed by the digest of the raw
// DNA1 bytes they were parsed from. Every file written by the same Blender
// build carries a byte-identical catalog, so one snapshot serves them all and
// a hit skips the catalog parse entirely.
//
// A BlockCache wraps a ByteSource so repeated reads of the same region are
// served from fixed-size cached blocks. It is most useful for remote sources,
// where each miss is an HTTP range request.
package cache

import "github.com/opencontainers/go-digest"

// CatalogCache stores encoded catalog snapshots.
//
// Keys are digests of raw DNA1 block bodies. Values are opaque snapshot bytes
// produced by sdna.Catalog.MarshalBinary. Implementations must be safe for
// concurrent use and handle their own size limits.
type CatalogCache interface {
	// Get returns the snapshot stored for d.
	// Returns nil, false if nothing is cached.
	Get(d digest.Digest) ([]byte, bool)

	// Put stores a snapshot for d.
	Put(d digest.Digest, snapshot []byte) error

	// Delete removes the snapshot for d, typically after it failed to decode.
	Delete(d digest.Digest) error
}
