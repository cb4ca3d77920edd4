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

import "debug/dwarf"

// TagSet restricts an iteration to a set of DWARF tags. A nil or empty
// TagSet matches every tag.
type TagSet map[dwarf.Tag]bool

// Tags builds a TagSet from the given tags.
func Tags(tags ...dwarf.Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = true
	}
	return s
}

func (s TagSet) has(t dwarf.Tag) bool {
	if len(s) == 0 {
		return true
	}
	return s[t]
}

// DIERef identifies one DIE by the file that owns it and its byte offset
// within that file's .debug_info section.
type DIERef struct {
	File   *File
	Offset int
}

// Reader is the narrow surface a type-lookup, expression evaluator or
// frame-variable resolver needs from the index, expressed as an
// interface so that contract is compiled rather than left as prose. No
// concrete collaborator implementing against Reader exists in this
// repo - type system, evaluator and unwinder are out of scope.
type Reader interface {
	Lookup(name string, tags TagSet) *Iterator
	ResolveDIE(ref DIERef) (*dwarf.Entry, error)
}

var _ Reader = (*Index)(nil)
