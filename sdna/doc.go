// Package sdna parses the structure catalog ("SDNA") embedded in the DNA1 block
// of a .blend file.
//
// The catalog describes, for the exact build that wrote the file, every struct
// type that may appear in it: an ordered table of decorated field names, an
// ordered table of type names, the byte length of each type, and the ordered
// field list of each struct. A [Catalog] is immutable once parsed and safe for
// concurrent use.
//
// Catalogs can be encoded as FlatBuffers snapshots with [Catalog.MarshalBinary]
// and restored with [UnmarshalCatalog]. Snapshots are keyed by [Catalog.Digest],
// the digest of the raw catalog bytes.
package sdna
