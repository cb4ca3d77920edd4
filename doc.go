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

// Package dwarfindex builds a parallel, sharded name index over the DWARF
// debug information of a set of ELF object files: register files with
// Open/OpenELF, run Update, then Iter/IterAll to find every occurrence of
// a name across all registered files without touching debug/dwarf's own
// (much slower) full-tree walk.
package dwarfindex
