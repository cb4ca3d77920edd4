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

	"github.com/jetsetilly/dwarfindex/internal/elfsec"
)

// Entry is one indexed occurrence of a name: the tag it was filed under,
// the SipHash digest of its declaring file's canonical path, and enough
// to materialize the underlying DIE on demand.
type Entry struct {
	Name         string
	Tag          dwarf.Tag
	FileNameHash uint64

	file   *elfsec.File
	offset int
	ix     *Index
}

// File returns the File that owns this entry.
func (e Entry) File() *File {
	return &File{inner: e.file}
}

// Ref returns the DIERef identifying this entry's DIE, for use with
// Reader.ResolveDIE.
func (e Entry) Ref() DIERef {
	return DIERef{File: e.File(), Offset: e.offset}
}

// DIE materializes the full DWARF entry this index entry points at,
// lazily constructing (and caching, per file) a debug/dwarf.Data view
// over the owning file's relocated sections.
func (e Entry) DIE(ctx context.Context) (*dwarf.Entry, error) {
	return e.ix.resolveDIE(ctx, e.file, e.offset)
}
