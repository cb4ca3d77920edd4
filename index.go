// This file is part of dwarfindex.
//
// dwarfindex is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dwarfindex is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dwarfindex.  If not, see <https://www.gnu.org/licenses/>.

package dwarfindex

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jetsetilly/dwarfindex/internal/abbrev"
	"github.com/jetsetilly/dwarfindex/internal/cu"
	"github.com/jetsetilly/dwarfindex/internal/diescan"
	"github.com/jetsetilly/dwarfindex/internal/elfsec"
	"github.com/jetsetilly/dwarfindex/internal/ixerror"
	"github.com/jetsetilly/dwarfindex/internal/ixlog"
	"github.com/jetsetilly/dwarfindex/internal/reloc"
	"github.com/jetsetilly/dwarfindex/internal/shardmap"
)

// File is a registered ELF file's identity, as returned by Open/OpenELF.
type File struct {
	inner *elfsec.File
}

// Path returns the file's canonicalised path.
func (f *File) Path() string { return f.inner.Path }

// Index is the parallel, sharded DWARF name index. The zero value is not
// usable; construct one with New.
type Index struct {
	flags  Flags
	loader *elfsec.Loader
	shards *shardmap.Map

	mu      sync.Mutex
	pending []*elfsec.File
	all     []*elfsec.File

	dwarfMu    sync.Mutex
	dwarfCache map[*elfsec.File]*dwarf.Data
}

// New creates an index that will keep tags matching flags. flags must
// have at least one bit set.
func New(flags Flags) (*Index, error) {
	if !flags.Any() {
		return nil, ixerror.Errorf(ixerror.InvalidArgument, "at least one index flag must be set")
	}
	return &Index{
		flags:      flags,
		loader:     elfsec.New(),
		shards:     shardmap.New(),
		dwarfCache: make(map[*elfsec.File]*dwarf.Data),
	}, nil
}

// Open registers path for indexing on the next Update. Opening the same
// canonical path twice returns the same File and does not duplicate
// pending work (R2).
func (ix *Index) Open(path string) (*File, error) {
	f, err := ix.loader.Open(path)
	if err != nil {
		return nil, err
	}
	ix.register(f)
	return &File{inner: f}, nil
}

// OpenELF registers an already-open *elf.File owned by a collaborator.
func (ix *Index) OpenELF(ef *elf.File, path string) (*File, error) {
	f, err := ix.loader.OpenELF(ef, path)
	if err != nil {
		return nil, err
	}
	ix.register(f)
	return &File{inner: f}, nil
}

// OpenGlob expands pattern with filepath.Glob and opens every match.
func (ix *Index) OpenGlob(pattern string) ([]*File, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, ixerror.Errorf(ixerror.InvalidArgument, "bad glob pattern %q: %v", pattern, err)
	}
	return ix.OpenAll(matches)
}

// OpenAll opens every path in paths, stopping at the first error.
func (ix *Index) OpenAll(paths []string) ([]*File, error) {
	out := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := ix.Open(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// register records f as pending indexing, unless it (or an equal
// canonical-path File already registered by a prior Open) is already
// known - register is itself idempotent per canonical File pointer,
// since the loader already deduplicates by path.
func (ix *Index) register(f *elfsec.File) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, known := range ix.all {
		if known == f {
			return
		}
	}
	ix.all = append(ix.all, f)
	ix.pending = append(ix.pending, f)
}

// Update processes every pending-open file into the indexed set,
// all-or-nothing (spec: "all-or-nothing per call"). Two consecutive
// calls with no new opens are no-ops (R1).
func (ix *Index) Update(ctx context.Context) error {
	ix.mu.Lock()
	batch := ix.pending
	ix.pending = nil
	ix.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := reloc.Apply(ctx, batch); err != nil {
		ix.rollback(batch)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range batch {
		f := f
		g.Go(func() error {
			return ix.indexFile(gctx, f)
		})
	}
	if err := g.Wait(); err != nil {
		ix.rollback(batch)
		return err
	}

	ixlog.Logf("index", "update committed %d files", len(batch))
	return nil
}

// rollback marks every file in batch as failed and truncates the shard
// map's tail accordingly (spec §4.9).
func (ix *Index) rollback(batch []*elfsec.File) {
	for _, f := range batch {
		f.MarkFailed()
	}
	ix.shards.Rollback()
	ixlog.Logf("index", "update rolled back %d files", len(batch))
}

// indexFile splits one file's .debug_info into compilation units,
// compiles each unit's abbreviation table, and scans its DIEs into the
// shard map.
func (ix *Index) indexFile(ctx context.Context, f *elfsec.File) error {
	units, err := cu.Split(f.Sections[elfsec.NameDebugInfo])
	if err != nil {
		return err
	}
	_, hasLine := f.Sections[elfsec.NameDebugLine]

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		table, err := abbrev.Compile(f.Sections[elfsec.NameDebugAbbrev], int(u.AbbrevOffset), u.AddressSize, u.Is64Bit, hasLine, ix.flags)
		if err != nil {
			return err
		}
		if _, err := diescan.Scan(ctx, f, u, table, ix.flags, ix.shards); err != nil {
			return err
		}
	}

	ixlog.Debugf("index", "%s: scanned %d compilation units", f.Path, len(units))
	return nil
}

// Iterator walks a sequence of indexed entries, filtered by an optional
// TagSet.
type Iterator struct {
	cursor interface {
		Next() (shardmap.Entry, bool)
	}
	tags TagSet
	ix   *Index
}

// Next returns the next matching entry, or false when exhausted.
func (it *Iterator) Next() (Entry, bool) {
	for {
		e, ok := it.cursor.Next()
		if !ok {
			return Entry{}, false
		}
		tag := dwarf.Tag(e.Tag)
		if !it.tags.has(tag) {
			continue
		}
		return Entry{
			Name:         e.Name,
			Tag:          tag,
			FileNameHash: e.FileNameHash,
			file:         e.File,
			offset:       e.Offset,
			ix:           it.ix,
		}, true
	}
}

// Iter starts an iterator over every entry filed under name, optionally
// restricted to tags.
func (ix *Index) Iter(name string, tags TagSet) *Iterator {
	return &Iterator{cursor: ix.shards.Lookup(name), tags: tags, ix: ix}
}

// Lookup implements Reader.
func (ix *Index) Lookup(name string, tags TagSet) *Iterator { return ix.Iter(name, tags) }

// IterAll starts an iterator over every entry in the index, in shard
// order.
func (ix *Index) IterAll() *Iterator {
	return &Iterator{cursor: ix.shards.All(), ix: ix}
}

// Close releases every file descriptor the index itself opened.
func (ix *Index) Close() error {
	ix.mu.Lock()
	files := ix.all
	ix.all = nil
	ix.mu.Unlock()

	var first error
	for _, f := range files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// resolveDIE materializes the DIE at offset within f's .debug_info,
// constructing (and caching) a debug/dwarf.Data view over f's relocated
// sections the first time it's needed.
func (ix *Index) resolveDIE(ctx context.Context, f *elfsec.File, offset int) (*dwarf.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := ix.dwarfData(f)
	if err != nil {
		return nil, err
	}
	r := d.Reader()
	r.Seek(dwarf.Offset(offset))
	entry, err := r.Next()
	if err != nil {
		return nil, ixerror.Wrap(ixerror.DWARFFormat, err)
	}
	if entry == nil {
		return nil, ixerror.Errorf(ixerror.Lookup, "no DIE at offset %d in %s", offset, f.Path)
	}
	return entry, nil
}

// ResolveDIE implements Reader.
func (ix *Index) ResolveDIE(ref DIERef) (*dwarf.Entry, error) {
	return ix.resolveDIE(context.Background(), ref.File.inner, ref.Offset)
}

func (ix *Index) dwarfData(f *elfsec.File) (*dwarf.Data, error) {
	ix.dwarfMu.Lock()
	defer ix.dwarfMu.Unlock()

	if d, ok := ix.dwarfCache[f]; ok {
		return d, nil
	}

	d, err := dwarf.New(
		f.Sections[elfsec.NameDebugAbbrev],
		nil, // aranges
		nil, // frame
		f.Sections[elfsec.NameDebugInfo],
		f.Sections[elfsec.NameDebugLine],
		nil, // pubnames
		nil, // ranges
		f.Sections[elfsec.NameDebugStr],
	)
	if err != nil {
		return nil, ixerror.Wrap(ixerror.DWARFFormat, err)
	}
	ix.dwarfCache[f] = d
	return d, nil
}
