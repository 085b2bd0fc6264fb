package blend

import "github.com/meigma/blend/internal/blendtype"

// Sentinel errors re-exported from internal/blendtype.
var (
	// ErrMalformedHeader is returned when the header magic, markers, or version are invalid.
	ErrMalformedHeader = blendtype.ErrMalformedHeader

	// ErrTruncated is returned when fewer bytes remain than a fixed-size field requires.
	ErrTruncated = blendtype.ErrTruncated

	// ErrInvalidBlockCode is returned when a block code is not valid text.
	ErrInvalidBlockCode = blendtype.ErrInvalidBlockCode

	// ErrMissingCatalog is returned when the file has no DNA1 block.
	ErrMissingCatalog = blendtype.ErrMissingCatalog

	// ErrCorruptCatalog is returned when a catalog section tag or field name is malformed.
	ErrCorruptCatalog = blendtype.ErrCorruptCatalog

	// ErrUnknownType is returned when a type has no entry in the length table.
	ErrUnknownType = blendtype.ErrUnknownType

	// ErrInvalidSDNAIndex is returned when a block or catalog index is out of range.
	ErrInvalidSDNAIndex = blendtype.ErrInvalidSDNAIndex

	// ErrUnsupportedNestedArray is returned for fields with more than one array dimension.
	ErrUnsupportedNestedArray = blendtype.ErrUnsupportedNestedArray

	// ErrNoSuchField is returned when a struct has no field with the requested name.
	ErrNoSuchField = blendtype.ErrNoSuchField

	// ErrResourceClosed is returned when unloaded data is requested after Close.
	ErrResourceClosed = blendtype.ErrResourceClosed

	// ErrDanglingPointer is returned when a pointer's target is read but no block has its address.
	ErrDanglingPointer = blendtype.ErrDanglingPointer

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = blendtype.ErrSizeOverflow

	// ErrDecompression is returned when a compressed file cannot be decoded.
	ErrDecompression = blendtype.ErrDecompression
)

// Typed errors re-exported from internal/blendtype.
type (
	// TagError reports a catalog section tag mismatch. It matches ErrCorruptCatalog.
	TagError = blendtype.TagError

	// BlockCodeError reports an undecodable block code. It matches ErrInvalidBlockCode.
	BlockCodeError = blendtype.BlockCodeError

	// FieldError reports a failure scoped to one struct field.
	FieldError = blendtype.FieldError
)
