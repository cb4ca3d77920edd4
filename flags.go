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

import "github.com/jetsetilly/dwarfindex/internal/ixflags"

// Flags selects which DWARF tags an Index keeps. At least one must be set
// or New fails.
type Flags = ixflags.Flags

const (
	// Types indexes base, class, enumeration, structure, typedef and
	// union types.
	Types = ixflags.Types
	// Variables indexes DW_TAG_variable.
	Variables = ixflags.Variables
	// Enumerators indexes DW_TAG_enumerator (and, always, the enclosing
	// DW_TAG_enumeration_type).
	Enumerators = ixflags.Enumerators
	// Functions indexes DW_TAG_subprogram.
	Functions = ixflags.Functions
)
