package sdna

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/blend/internal/fb"
)

// SnapshotVersion is the snapshot format written by MarshalBinary.
const SnapshotVersion = 1

// MarshalBinary encodes the catalog as a FlatBuffers snapshot.
func (c *Catalog) MarshalBinary() ([]byte, error) {
	builder := flatbuffers.NewBuilder(1024)

	namesVec := buildStringVector(builder, c.names, fb.CatalogStartNamesVector)
	typesVec := buildStringVector(builder, c.types, fb.CatalogStartTypesVector)

	fb.CatalogStartLengthsVector(builder, len(c.lengths))
	for i := len(c.lengths) - 1; i >= 0; i-- {
		builder.PrependUint16(c.lengths[i])
	}
	lengthsVec := builder.EndVector(len(c.lengths))

	structOffsets := make([]flatbuffers.UOffsetT, len(c.raw))
	for i := len(c.raw) - 1; i >= 0; i-- {
		rs := c.raw[i]
		fb.StructDefStartFieldsVector(builder, len(rs.fields))
		for j := len(rs.fields) - 1; j >= 0; j-- {
			builder.PrependUint16(rs.fields[j])
		}
		fieldsVec := builder.EndVector(len(rs.fields))

		fb.StructDefStart(builder)
		fb.StructDefAddTypeIndex(builder, rs.typeIndex)
		fb.StructDefAddFields(builder, fieldsVec)
		structOffsets[i] = fb.StructDefEnd(builder)
	}
	fb.CatalogStartStructsVector(builder, len(structOffsets))
	for i := len(structOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(structOffsets[i])
	}
	structsVec := builder.EndVector(len(structOffsets))

	digestStr := builder.CreateString(c.digest.String())

	fb.CatalogStart(builder)
	fb.CatalogAddNames(builder, namesVec)
	fb.CatalogAddTypes(builder, typesVec)
	fb.CatalogAddLengths(builder, lengthsVec)
	fb.CatalogAddStructs(builder, structsVec)
	fb.CatalogAddDigest(builder, digestStr)
	fb.CatalogAddVersion(builder, SnapshotVersion)
	builder.Finish(fb.CatalogEnd(builder))

	return builder.FinishedBytes(), nil
}

func buildStringVector(builder *flatbuffers.Builder, values []string, start func(*flatbuffers.Builder, int) flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		offsets[i] = builder.CreateString(values[i])
	}
	start(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	return builder.EndVector(len(offsets))
}

// UnmarshalCatalog restores a catalog from a snapshot written by MarshalBinary.
// Struct definitions are re-resolved and validated exactly as in Parse.
func UnmarshalCatalog(data []byte) (c *Catalog, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("%w: snapshot: %v", ErrCorruptCatalog, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, errors.New("sdna: empty snapshot")
	}

	root := fb.GetRootAsCatalog(data, 0)
	if v := root.Version(); v != SnapshotVersion {
		return nil, fmt.Errorf("sdna: unsupported snapshot version %d", v)
	}

	names := make([]string, root.NamesLength())
	for i := range names {
		names[i] = string(root.Names(i))
	}
	types := make([]string, root.TypesLength())
	for i := range types {
		types[i] = string(root.Types(i))
	}
	lengths := make([]uint16, root.LengthsLength())
	for i := range lengths {
		lengths[i] = root.Lengths(i)
	}

	raw := make([]rawStruct, root.StructsLength())
	var def fb.StructDef
	for i := range raw {
		if !root.Structs(&def, i) {
			return nil, fmt.Errorf("%w: snapshot struct %d", ErrCorruptCatalog, i)
		}
		fields := make([]uint16, def.FieldsLength())
		for j := range fields {
			fields[j] = def.Fields(j)
		}
		raw[i] = rawStruct{typeIndex: def.TypeIndex(), fields: fields}
	}

	dgst, err := digest.Parse(string(root.Digest()))
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot digest: %v", ErrCorruptCatalog, err)
	}
	return assemble(names, types, lengths, raw, dgst)
}
