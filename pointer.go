package blend

import (
	"fmt"
	"io"
	"strings"

	"github.com/meigma/blend/internal/cursor"
)

// TargetState is the outcome of resolving a pointer.
type TargetState uint8

const (
	// TargetNull means the recorded address is 0.
	TargetNull TargetState = iota

	// TargetDangling means no block in the file was recorded at the address.
	TargetDangling

	// TargetResolved means a block was recorded at the address.
	TargetResolved
)

func (s TargetState) String() string {
	switch s {
	case TargetNull:
		return "null"
	case TargetDangling:
		return "dangling"
	case TargetResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Target is a resolved pointer.
type Target struct {
	State TargetState

	// Block is the block recorded at the address. Set when State is TargetResolved.
	Block *Block

	// Struct is a handle on the pointed-to struct. Set only for single-level
	// pointers to a catalog struct type that resolved.
	Struct *Struct
}

// Pointer is a decoded pointer field.
type Pointer struct {
	// Address is the producer's in-memory address.
	Address uint64

	// Type is the pointed-to type name.
	Type string

	// Depth is the number of '*' markers on the field.
	Depth int

	// Func reports a function pointer.
	Func bool

	f *File
}

// IsNull reports whether the address is 0.
func (p *Pointer) IsNull() bool {
	return p.Address == 0
}

// Resolve looks the address up in the block directory.
func (p *Pointer) Resolve() Target {
	if p.Address == 0 {
		return Target{State: TargetNull}
	}
	blk, ok := p.f.BlockAt(p.Address)
	if !ok {
		return Target{State: TargetDangling}
	}
	t := Target{State: TargetResolved, Block: blk}
	if p.Depth == 1 && !p.Func && p.f.catalog.IsStruct(p.Type) {
		t.Struct = newStruct(p.f, p.Type, blk.Offset)
	}
	return t
}

// Text reads the NUL-terminated string a char pointer refers to. The string
// must end within the target block. A null pointer yields "".
func (p *Pointer) Text() (string, error) {
	if p.Type != "char" || p.Depth != 1 || p.Func {
		return "", fmt.Errorf("blend: pointer to %s is not a string", p.declString())
	}
	t := p.Resolve()
	switch t.State {
	case TargetNull:
		return "", nil
	case TargetDangling:
		return "", fmt.Errorf("%w: 0x%x", ErrDanglingPointer, p.Address)
	}
	if p.f.Closed() {
		return "", ErrResourceClosed
	}
	section := io.NewSectionReader(p.f.src, t.Block.Offset, int64(t.Block.Size))
	c := cursor.NewSection(section, t.Block.Offset, p.f.header.ByteOrder(), p.f.header.PointerSize)
	s, err := c.CString()
	if err != nil {
		return "", fmt.Errorf("string at 0x%x: %w", p.Address, err)
	}
	return s, nil
}

func (p *Pointer) declString() string {
	if p.Func {
		return "(*" + p.Type + ")()"
	}
	return strings.Repeat("*", p.Depth) + p.Type
}

// String returns the declared pointer type and address, e.g. "*Object 0x7f20".
func (p *Pointer) String() string {
	if p.Address == 0 {
		return p.declString() + " NULL"
	}
	return fmt.Sprintf("%s 0x%x", p.declString(), p.Address)
}
