package blendtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for blend decoding.
var (
	// ErrMalformedHeader is returned when the file header has a bad magic, marker, or version.
	ErrMalformedHeader = errors.New("blend: malformed header")

	// ErrTruncated is returned when fewer bytes remain than a fixed-size field requires.
	ErrTruncated = errors.New("blend: truncated container")

	// ErrInvalidBlockCode is returned when a block code is not valid text.
	ErrInvalidBlockCode = errors.New("blend: invalid block code")

	// ErrMissingCatalog is returned when the file has no DNA1 block.
	ErrMissingCatalog = errors.New("blend: missing catalog")

	// ErrCorruptCatalog is returned when a catalog section tag or name is malformed.
	ErrCorruptCatalog = errors.New("blend: corrupt catalog")

	// ErrUnknownType is returned when a type name has no entry in the length table.
	ErrUnknownType = errors.New("blend: unknown type")

	// ErrInvalidSDNAIndex is returned when a catalog or block index is out of range.
	ErrInvalidSDNAIndex = errors.New("blend: invalid sdna index")

	// ErrUnsupportedNestedArray is returned for fields with more than one array dimension.
	ErrUnsupportedNestedArray = errors.New("blend: unsupported nested array")

	// ErrNoSuchField is returned when a loaded struct has no field with the requested name.
	ErrNoSuchField = errors.New("blend: no such field")

	// ErrResourceClosed is returned when a file is used after Close.
	ErrResourceClosed = errors.New("blend: resource closed")

	// ErrDanglingPointer is returned when a pointer's target is read but no block has its address.
	ErrDanglingPointer = errors.New("blend: dangling pointer")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("blend: size overflow")

	// ErrDecompression is returned when a compressed file cannot be decoded.
	ErrDecompression = errors.New("blend: decompression failed")
)

// TagError reports a catalog section tag that did not match.
type TagError struct {
	Expected string
	Found    string
	Offset   int64
}

func (e *TagError) Error() string {
	return fmt.Sprintf("blend: corrupt catalog: expected tag %q, found %q at offset %d", e.Expected, e.Found, e.Offset)
}

func (e *TagError) Unwrap() error {
	return ErrCorruptCatalog
}

// BlockCodeError reports a block code that could not be decoded as text.
type BlockCodeError struct {
	Raw    [4]byte
	Offset int64
}

func (e *BlockCodeError) Error() string {
	return fmt.Sprintf("blend: invalid block code % x at offset %d", e.Raw[:], e.Offset)
}

func (e *BlockCodeError) Unwrap() error {
	return ErrInvalidBlockCode
}

// FieldError reports a failure scoped to a single struct field.
type FieldError struct {
	Type  string // struct type name
	Field string // decorated field name
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Type, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
