package sdna

import "github.com/meigma/blend/internal/blendtype"

// Errors re-exported from internal/blendtype.
var (
	// ErrCorruptCatalog is returned when a section tag or field name is malformed.
	ErrCorruptCatalog = blendtype.ErrCorruptCatalog

	// ErrUnknownType is returned when a type name has no length entry.
	ErrUnknownType = blendtype.ErrUnknownType

	// ErrInvalidSDNAIndex is returned when a struct, type, or name index is out of range.
	ErrInvalidSDNAIndex = blendtype.ErrInvalidSDNAIndex

	// ErrTruncated is returned when the catalog body ends before a section is complete.
	ErrTruncated = blendtype.ErrTruncated
)

// TagError reports a section tag that did not match.
type TagError = blendtype.TagError
