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

// Package elftest hand-assembles ELF64 and DWARF byte fixtures for tests
// elsewhere in the module - a minimal ELF writer (section headers, a
// symbol table, RELA entries) and LEB128/encoding helpers for building
// .debug_abbrev/.debug_info/.debug_line/.debug_str byte slices directly,
// mirroring the shapes internal/elfsec and internal/abbrev expect to
// read back.
package elftest

import (
	"encoding/binary"
)

// ULEB encodes v as unsigned LEB128.
func ULEB(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// SLEB encodes v as signed LEB128.
func SLEB(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// CStr returns s followed by a NUL terminator.
func CStr(s string) []byte {
	return append([]byte(s), 0)
}

// U16/U32/U64 append little-endian fixed-width integers.
func U16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func U32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func U64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }

// Cat concatenates byte slices, for readable fixture assembly.
func Cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// AbbrevDecl describes one abbreviation declaration for BuildAbbrevTable.
type AbbrevDecl struct {
	Code        uint64
	Tag         uint64
	HasChildren bool
	Attrs       []AttrForm
}

// AttrForm is one (attribute, form) pair within an abbreviation
// declaration.
type AttrForm struct {
	Attr uint64
	Form uint64
}

// BuildAbbrevTable encodes a sequence of abbreviation declarations as
// .debug_abbrev bytes, terminated by the table-ending zero code.
func BuildAbbrevTable(decls []AbbrevDecl) []byte {
	var out []byte
	for _, d := range decls {
		out = append(out, ULEB(d.Code)...)
		out = append(out, ULEB(d.Tag)...)
		if d.HasChildren {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		for _, af := range d.Attrs {
			out = append(out, ULEB(af.Attr)...)
			out = append(out, ULEB(af.Form)...)
		}
		out = append(out, ULEB(0)...)
		out = append(out, ULEB(0)...)
	}
	out = append(out, ULEB(0)...)
	return out
}

// CUHeader builds a DWARF32 compilation-unit header (initial length,
// version, abbrev_offset, address_size) around body, returning the full
// encoded CU.
func CUHeader(version uint16, abbrevOffset uint32, addrSize uint8, body []byte) []byte {
	header := Cat(U16(version), U32(abbrevOffset), []byte{addrSize})
	unitLength := uint32(len(header) + len(body))
	return Cat(U32(unitLength), header, body)
}

// LineProgramHeader builds a minimal DWARF32 version-4 line-number
// program header with the given directories and (name, dirIndex) file
// entries; it carries no actual line-number opcodes.
func LineProgramHeader(dirs []string, files []struct {
	Name   string
	DirIdx uint64
}) []byte {
	var body []byte
	body = append(body, 1)    // minimum_instruction_length
	body = append(body, 1)    // maximum_operations_per_instruction (v4)
	body = append(body, 1)    // default_is_stmt
	body = append(body, 0xfb) // line_base (-5)
	body = append(body, 14)   // line_range
	body = append(body, 13)   // opcode_base
	for i := 0; i < 12; i++ {
		body = append(body, 0) // standard_opcode_lengths[opcode_base-1]
	}
	for _, d := range dirs {
		body = append(body, CStr(d)...)
	}
	body = append(body, 0) // end of include_directories
	for _, f := range files {
		body = append(body, CStr(f.Name)...)
		body = append(body, ULEB(f.DirIdx)...)
		body = append(body, ULEB(0)...) // mtime
		body = append(body, ULEB(0)...) // size
	}
	body = append(body, 0) // end of file_names

	headerLength := uint32(len(body))
	prefix := Cat(U16(4), U32(headerLength))
	unitLength := uint32(len(prefix) + len(body))
	return Cat(U32(unitLength), prefix, body)
}

// Section is one named section to place in a built ELF file.
type Section struct {
	Name    string
	Type    uint32
	Data    []byte
	Link    uint32
	Info    uint32
	EntSize uint64
}

// ELF section type constants used by the fixture builder.
const (
	ShtNull     = 0
	ShtProgBits = 1
	ShtSymtab   = 2
	ShtStrtab   = 3
	ShtRela     = 4
	ShtNobits   = 8
)

// Symbol is one Elf64_Sym entry.
type Symbol struct {
	Name  string
	Value uint64
	Shndx uint16
}

// RelaEntry is one Elf64_Rela entry targeting a section by name.
type RelaEntry struct {
	TargetSection string
	Offset        uint64
	SymbolIndex   uint32
	Type          uint32
	Addend        int64
}

// BuildELF64 assembles a minimal little-endian ELF64 relocatable object
// containing sections, an optional symbol table (symbols[0] is always
// the mandatory null symbol and is inserted automatically) and RELA
// sections built from relas.
func BuildELF64(sections []Section, symbols []Symbol, relas []RelaEntry) []byte {
	const ehsize = 64
	const shentsize = 64

	type built struct {
		spec   Section
		offset uint64
	}

	var strtabNames []byte
	strtabNames = append(strtabNames, 0)
	symNameOff := make([]uint32, len(symbols))
	for i, s := range symbols {
		symNameOff[i] = uint32(len(strtabNames))
		strtabNames = append(strtabNames, CStr(s.Name)...)
	}

	var symtabData []byte
	symtabData = append(symtabData, make([]byte, 24)...) // null symbol
	for i, s := range symbols {
		entry := Cat(
			U32(symNameOff[i]),
			[]byte{0x11}, // STB_GLOBAL<<4 | STT_OBJECT
			[]byte{0},
			U16(s.Shndx),
			U64(s.Value),
			U64(0),
		)
		symtabData = append(symtabData, entry...)
	}

	all := append([]Section{{Name: "", Type: ShtNull}}, sections...)
	nameIndex := map[string]int{}
	for i, s := range all {
		if s.Name != "" {
			nameIndex[s.Name] = i
		}
	}

	haveSymtab := len(symbols) > 0
	symtabIdx := 0
	strtabIdx := 0
	if haveSymtab {
		all = append(all, Section{Name: ".symtab", Type: ShtSymtab, Data: symtabData, EntSize: 24})
		symtabIdx = len(all) - 1
		all = append(all, Section{Name: ".strtab", Type: ShtStrtab, Data: strtabNames})
		strtabIdx = len(all) - 1
		all[symtabIdx].Link = uint32(strtabIdx)
	}

	byTarget := map[string][]RelaEntry{}
	for _, r := range relas {
		byTarget[r.TargetSection] = append(byTarget[r.TargetSection], r)
	}
	for target, rs := range byTarget {
		targetIdx, ok := nameIndex[target]
		if !ok {
			continue
		}
		var data []byte
		for _, r := range rs {
			info := (uint64(r.SymbolIndex) << 32) | uint64(r.Type)
			data = append(data, Cat(U64(r.Offset), U64(info), U64(uint64(r.Addend)))...)
		}
		relaName := ".rela" + target
		all = append(all, Section{
			Name: relaName, Type: ShtRela, Data: data,
			Link: uint32(symtabIdx), Info: uint32(targetIdx), EntSize: 24,
		})
	}

	var shstrtab []byte
	shstrtab = append(shstrtab, 0)
	shstrOff := make([]uint32, len(all))
	for i, s := range all {
		if s.Name == "" {
			continue
		}
		shstrOff[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, CStr(s.Name)...)
	}
	// .shstrtab's own name is never written into the table it describes;
	// pointing its sh_name at offset 0 (the empty string) is valid.
	all = append(all, Section{Name: ".shstrtab", Type: ShtStrtab, Data: shstrtab})
	shstrndx := len(all) - 1
	shstrOff = append(shstrOff, 0)

	// Lay out section data after the ELF header.
	offset := uint64(ehsize)
	laidOut := make([]built, len(all))
	for i, s := range all {
		laidOut[i] = built{spec: s, offset: offset}
		if s.Type != ShtNull {
			offset += uint64(len(s.Data))
		}
	}
	shoff := offset

	var out []byte
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = 2 // ELFCLASS64
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	out = append(out, ident...)
	out = append(out, U16(1)...)               // e_type = ET_REL
	out = append(out, U16(62)...)               // e_machine = EM_X86_64
	out = append(out, U32(1)...)                // e_version
	out = append(out, U64(0)...)                // e_entry
	out = append(out, U64(0)...)                // e_phoff
	out = append(out, U64(shoff)...)            // e_shoff
	out = append(out, U32(0)...)                // e_flags
	out = append(out, U16(ehsize)...)           // e_ehsize
	out = append(out, U16(0)...)                // e_phentsize
	out = append(out, U16(0)...)                // e_phnum
	out = append(out, U16(shentsize)...)        // e_shentsize
	out = append(out, U16(uint16(len(all)))...) // e_shnum
	out = append(out, U16(uint16(shstrndx))...) // e_shstrndx

	for _, s := range all {
		if s.Type != ShtNull {
			out = append(out, s.Data...)
		}
	}

	for i, b := range laidOut {
		out = append(out, U32(shstrOff[i])...)
		out = append(out, U32(b.spec.Type)...)
		out = append(out, U64(0)...) // sh_flags
		out = append(out, U64(0)...) // sh_addr
		if b.spec.Type == ShtNull {
			out = append(out, U64(0)...)
		} else {
			out = append(out, U64(b.offset)...)
		}
		out = append(out, U64(uint64(len(b.spec.Data)))...)
		out = append(out, U32(b.spec.Link)...)
		out = append(out, U32(b.spec.Info)...)
		out = append(out, U64(1)...) // sh_addralign
		out = append(out, U64(b.spec.EntSize)...)
	}

	return out
}
