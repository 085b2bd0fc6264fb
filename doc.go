// Package blend reads Blender .blend files.
//
// A .blend file is a 12-byte header followed by a flat sequence of blocks. One
// block, DNA1, carries the SDNA catalog: a description of every struct type
// the producing build could write. This package decodes records using only
// that embedded catalog; no external schema is needed.
//
// Opening a file is eager: the header, the block directory, and the catalog
// are read and validated before [Open] returns. Everything else is lazy.
// [File.Blocks] yields [Block] accessors, [Block.Structs] yields [Struct]
// handles, and a handle decodes its fields the first time one is requested.
//
// # Quick Start
//
//	f, err := blend.Open("scene.blend")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	for b := range f.Blocks("SC") {
//	    for s, err := range b.Structs() {
//	        if err != nil {
//	            return err
//	        }
//	        v, err := s.Field("id")
//	        ...
//	    }
//	}
//
// # Pointers
//
// Pointer fields decode to a [Pointer] carrying the address the producer had
// in memory. [Pointer.Resolve] maps it back to the block recorded at that
// address. A pointer with no matching block is reported as [TargetDangling],
// not as an error.
//
// # Compression
//
// Files compressed with gzip (older Blender releases) or zstd (Blender 3.0 and
// later) are detected by magic and decompressed into a temporary spill file
// before the directory scan. See [WithMaxDecompressedSize] and [WithSpillDir].
//
// # Caching
//
// A [cache.CatalogCache] stores parsed catalogs keyed by the digest of the raw
// DNA1 bytes, so files written by the same build share one parse. A
// [cache.BlockCache] wraps remote sources such as [http.Source] with
// fixed-size block caching.
package blend
