package blend

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/blend/sdna"
)

// Block is one block of a file together with access to its struct instances.
type Block struct {
	BlockHeader
	f *File
}

// Type returns the struct definition selected by the block's SDNA index.
func (b *Block) Type() (*sdna.Struct, error) {
	def, err := b.f.catalog.StructAt(int(b.SDNAIndex))
	if err != nil {
		return nil, fmt.Errorf("block %q at offset %d: %w", b.Code, b.Offset, err)
	}
	return def, nil
}

// stride returns the struct type name and its length.
func (b *Block) stride() (string, int64, error) {
	def, err := b.Type()
	if err != nil {
		return "", 0, err
	}
	n, err := b.f.catalog.TypeLength(def.Type)
	if err != nil {
		return "", 0, err
	}
	return def.Type, int64(n), nil
}

// Struct returns a fresh handle on the i-th instance in the block.
func (b *Block) Struct(i int) (*Struct, error) {
	if b.f.Closed() {
		return nil, ErrResourceClosed
	}
	if i < 0 || uint64(i) >= uint64(b.Count) {
		return nil, fmt.Errorf("block %q: instance %d of %d: %w", b.Code, i, b.Count, ErrInvalidSDNAIndex)
	}
	typ, size, err := b.stride()
	if err != nil {
		return nil, err
	}
	return newStruct(b.f, typ, b.Offset+int64(i)*size), nil
}

// Structs returns an iterator over fresh handles on each of the block's Count
// instances, at consecutive offsets from the body start. The sequence can be
// ranged over any number of times; each pass yields new handles.
//
// If the file is closed, or the block's type cannot be resolved, the
// iterator yields a single error and stops.
func (b *Block) Structs() iter.Seq2[*Struct, error] {
	return func(yield func(*Struct, error) bool) {
		if b.f.Closed() {
			yield(nil, ErrResourceClosed)
			return
		}
		typ, size, err := b.stride()
		if err != nil {
			yield(nil, err)
			return
		}
		off := b.Offset
		for range b.Count {
			if b.f.Closed() {
				yield(nil, ErrResourceClosed)
				return
			}
			if !yield(newStruct(b.f, typ, off), nil) {
				return
			}
			off += size
		}
	}
}

// LoadAll materializes every instance in the block using up to workers
// goroutines, and returns the loaded handles in order. Values <= 0 use one
// goroutine per instance.
func (b *Block) LoadAll(ctx context.Context, workers int) ([]*Struct, error) {
	var handles []*Struct
	for s, err := range b.Structs() {
		if err != nil {
			return nil, err
		}
		handles = append(handles, s)
	}

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, s := range handles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.Force()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return handles, nil
}
