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

// Package ixflags holds the Flags type shared by the root package and
// every internal package that needs to know what the caller asked to be
// indexed, without creating an import cycle back to the root package.
package ixflags

// Flags selects which DWARF tags the indexer keeps. At least one must be
// set for create() to succeed.
type Flags uint8

const (
	// Types indexes base, class, enumeration, structure, typedef and
	// union types.
	Types Flags = 1 << iota
	// Variables indexes DW_TAG_variable.
	Variables
	// Enumerators indexes DW_TAG_enumerator (and, always, the enclosing
	// DW_TAG_enumeration_type).
	Enumerators
	// Functions indexes DW_TAG_subprogram.
	Functions
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Any reports whether f has any bit set at all.
func (f Flags) Any() bool { return f != 0 }
