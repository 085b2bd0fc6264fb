package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/meigma/blend"
	"github.com/meigma/blend/cache/disk"
	"github.com/meigma/blend/sdna"
)

// HeaderCmd prints the decoded file header.
type HeaderCmd struct {
	File string `arg:"" help:"Path or URL of a .blend file"`
}

// Run executes the header command.
func (c *HeaderCmd) Run(g *Globals) error {
	f, err := g.open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	h := f.Header()
	g.printf("identifier:  %s\n", h.Identifier)
	g.printf("pointer:     %d bytes\n", h.PointerSize)
	g.printf("endianness:  %s\n", h.Endianness)
	g.printf("version:     %s\n", h.Version)
	g.printf("compression: %s\n", f.Compression())
	g.printf("blocks:      %d\n", f.Directory().Len())
	return nil
}

// BlocksCmd lists block records in file order.
type BlocksCmd struct {
	File   string `arg:"" help:"Path or URL of a .blend file"`
	Prefix string `name:"prefix" help:"Only list blocks whose code starts with prefix"`
	Limit  int    `name:"limit" help:"Stop after this many blocks (0 = all)"`
	Counts bool   `name:"counts" help:"Print block counts per code instead"`
}

// Run executes the blocks command.
func (c *BlocksCmd) Run(g *Globals) error {
	f, err := g.open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	tw := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
	if c.Counts {
		counts := f.Directory().CountByCode()
		codes := make([]string, 0, len(counts))
		for code := range counts {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		fmt.Fprintln(tw, "CODE\tBLOCKS")
		for _, code := range codes {
			fmt.Fprintf(tw, "%s\t%d\n", code, counts[code])
		}
		return tw.Flush()
	}

	fmt.Fprintln(tw, "CODE\tADDRESS\tTYPE\tCOUNT\tSIZE\tOFFSET")
	n := 0
	for b := range f.Blocks(c.Prefix) {
		if c.Limit > 0 && n == c.Limit {
			break
		}
		n++
		typ := "?"
		if def, err := b.Type(); err == nil {
			typ = def.Type
		}
		fmt.Fprintf(tw, "%s\t%#x\t%s\t%d\t%d\t%d\n", b.Code, b.Address, typ, b.Count, b.Size, b.Offset)
	}
	return tw.Flush()
}

// CatalogCmd lists struct definitions from the SDNA catalog.
type CatalogCmd struct {
	File   string `arg:"" help:"Path or URL of a .blend file"`
	Struct string `name:"struct" help:"Only print this struct type"`
}

// Run executes the catalog command.
func (c *CatalogCmd) Run(g *Globals) error {
	f, err := g.open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	cat := f.Catalog()
	if c.Struct != "" {
		def, ok := cat.Struct(c.Struct)
		if !ok {
			return fmt.Errorf("struct %q: %w", c.Struct, blend.ErrUnknownType)
		}
		g.printStruct(cat.TypeLengths(), def.Type, def.Fields)
		return nil
	}

	g.printf("digest:  %s\n", cat.Digest())
	g.printf("names:   %d\n", len(cat.Names()))
	g.printf("types:   %d\n", len(cat.Types()))
	g.printf("structs: %d\n", cat.NumStructs())
	lengths := cat.TypeLengths()
	for def := range cat.Structs() {
		g.printf("%d\t%s\t%d bytes\t%d fields\n", def.Index, def.Type, lengths[def.Type], len(def.Fields))
	}
	return nil
}

func (g *Globals) printStruct(lengths map[string]int, typ string, fields []sdna.Field) {
	g.printf("struct %s { // %d bytes\n", typ, lengths[typ])
	for _, fd := range fields {
		g.printf("    %s %s;\n", fd.Type, fd.Name)
	}
	g.printf("}\n")
}

// InspectCmd decodes block instances and prints them as JSON.
type InspectCmd struct {
	File    string `arg:"" help:"Path or URL of a .blend file"`
	Prefix  string `name:"prefix" help:"Only inspect blocks whose code starts with prefix"`
	Address uint64 `name:"address" help:"Inspect the block recorded at this address"`
	Limit   int    `name:"limit" default:"1" help:"Stop after this many structs (0 = all)"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run(g *Globals) error {
	f, err := g.open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	if c.Address != 0 {
		b, ok := f.BlockAt(c.Address)
		if !ok {
			return fmt.Errorf("no block at %#x", c.Address)
		}
		_, err = c.inspect(g, b, 0)
		return err
	}

	n := 0
	for b := range f.Blocks(c.Prefix) {
		if b.Code == blend.CatalogCode || b.Code == "ENDB" {
			continue
		}
		if _, err := b.Type(); err != nil {
			continue
		}
		if n, err = c.inspect(g, b, n); err != nil {
			return err
		}
		if c.done(n) {
			return nil
		}
	}
	return nil
}

func (c *InspectCmd) done(n int) bool {
	return c.Limit > 0 && n >= c.Limit
}

// inspect prints the instances of b and returns the running count n.
func (c *InspectCmd) inspect(g *Globals, b *blend.Block, n int) (int, error) {
	for st, err := range b.Structs() {
		if err != nil {
			return n, err
		}
		if err := c.print(g, b, st); err != nil {
			return n, err
		}
		n++
		if c.done(n) {
			break
		}
	}
	return n, nil
}

func (c *InspectCmd) print(g *Globals, b *blend.Block, st *blend.Struct) error {
	out, err := st.Inspect()
	if err != nil {
		return err
	}
	g.printf("// %s %#x %s @%d\n%s\n", b.Code, b.Address, st.Type(), st.Offset(), out)
	return nil
}

// CacheGroup groups cache maintenance commands.
type CacheGroup struct {
	Prune CachePruneCmd `cmd:"" help:"Shrink the cache directory"`
}

// CachePruneCmd removes the oldest cache entries.
type CachePruneCmd struct {
	MaxBytes int64 `name:"max-bytes" help:"Target size of each cache in bytes" default:"0"`
}

// Run executes the cache prune command.
func (c *CachePruneCmd) Run(g *Globals) error {
	if g.CacheDir == "" {
		return errors.New("--cache-dir is required")
	}
	cc, err := disk.NewCatalogCache(filepath.Join(g.CacheDir, "catalogs"))
	if err != nil {
		return err
	}
	bc, err := disk.NewBlockCache(filepath.Join(g.CacheDir, "blocks"))
	if err != nil {
		return err
	}
	catFreed, err := cc.Prune(c.MaxBytes)
	if err != nil {
		return err
	}
	blockFreed, err := bc.Prune(c.MaxBytes)
	if err != nil {
		return err
	}
	g.printf("catalogs: freed %d bytes\n", catFreed)
	g.printf("blocks:   freed %d bytes\n", blockFreed)
	return nil
}
