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

// Package abbrev compiles a DWARF abbreviation table into the compact
// skip/parse byte-code the DIE scanner interprets (spec §4.3). This is
// the indexer's single largest design bet: turning a general-purpose
// "attribute x form" dispatch into a precomputed instruction stream makes
// per-DIE scanning branch-light, at the cost of a compile step that runs
// once per CU instead of once per DIE.
package abbrev

import (
	"github.com/jetsetilly/dwarfindex/internal/breader"
	"github.com/jetsetilly/dwarfindex/internal/ixerror"
	"github.com/jetsetilly/dwarfindex/internal/ixflags"
)

// Opcodes occupying 230..255. Bytes 0..229 in Insns mean "skip that many
// raw bytes"; 0 alone, at a position where an opcode was expected, means
// "end of this abbreviation's instruction stream" (never emitted as a
// skip, since skips of length 0 are folded away rather than emitted).
//
// Several opcodes take a one-byte immediate operand (a width selector)
// rather than each getting their own opcode value per width - the spec
// frames opcodes 230-255 as "designating attribute forms whose parsing
// requires work", not as a strict one-opcode-per-form-width mapping, and
// a width-selector byte keeps the scanner just as branch-light (one
// switch on the opcode, one switch on the tiny width set) while leaving
// most of the 230..255 range spare for future forms.
const (
	OpBlock1           = 230 // u8 size, skip size bytes
	OpBlock2           = 231 // u16 size, skip size bytes
	OpBlock4           = 232 // u32 size, skip size bytes
	OpExprloc          = 233 // ULEB128 size, skip size bytes (also covers DW_FORM_block)
	OpLEB128Skip       = 234 // skip one ULEB128/SLEB128-encoded scalar
	OpStringSkip       = 235 // skip one NUL-terminated string
	OpSibling          = 236 // +1 width byte: 1/2/4/8 fixed, 0 = ULEB128
	OpName             = 237 // +1 mode byte: 0 = inline string, 4/8 = .debug_str offset width
	OpStmtList         = 238 // +1 width byte: 4 or 8
	OpDeclFile         = 239 // +1 width byte: 1/2/4/8 fixed, 0 = ULEB128
	OpSpecification    = 240 // +1 width byte: 1/2/4/8 fixed, 0 = ULEB128
	OpDeclarationFlag  = 241 // +1 byte: 0 = flag_present (always true), 1 = flag (read byte, true if nonzero)
)

// refWidthULEB is the width-byte sentinel meaning "this reference is
// ULEB128-encoded, not fixed-width".
const refWidthULEB = 0

// Table is the compiled form of one CU's abbreviation table.
type Table struct {
	// Decls maps abbreviation code-1 to a byte offset into Insns. A code
	// that was never declared maps to -1.
	Decls []int
	Insns []byte
}

// InsnsFor returns the instruction stream beginning at the offset
// recorded for code, or an error if code was never declared.
func (t *Table) InsnsFor(code uint64) ([]byte, error) {
	idx := int(code) - 1
	if idx < 0 || idx >= len(t.Decls) || t.Decls[idx] < 0 {
		return nil, ixerror.Errorf(ixerror.DWARFFormat, "undeclared abbreviation code %d", code)
	}
	return t.Insns[t.Decls[idx]:], nil
}

// Compile builds a Table from the abbreviation declarations starting at
// offset within abbrevSection, stopping at the table-terminating zero
// code. addrSize and dwarf64 come from the owning CU header; hasLine
// reports whether the file has a .debug_line section at all (DW_AT_stmt_list
// only compiles specially when it does); flags is the caller's index
// selection (spec §4.3's "depends on index flags").
func Compile(abbrevSection []byte, offset int, addrSize int, dwarf64 bool, hasLine bool, flags ixflags.Flags) (*Table, error) {
	if offset < 0 || offset > len(abbrevSection) {
		return nil, ixerror.Errorf(ixerror.DWARFFormat, "abbrev offset %d out of range (len %d)", offset, len(abbrevSection))
	}
	r := breader.New(abbrevSection[offset:], nil)

	t := &Table{}
	expected := uint64(1)
	pending := 0

	flush := func() {
		for pending > 229 {
			t.Insns = append(t.Insns, 229)
			pending -= 229
		}
		if pending > 0 {
			t.Insns = append(t.Insns, byte(pending))
			pending = 0
		}
	}

	for {
		code, err := r.ULEB128()
		if err != nil {
			return nil, err
		}
		if code == 0 {
			break
		}
		if code != expected {
			return nil, ixerror.Errorf(ixerror.DWARFFormat, "abbreviation codes must be contiguous from 1: got %d, expected %d", code, expected)
		}
		expected++

		tagVal, err := r.ULEB128()
		if err != nil {
			return nil, err
		}
		hasChildren, err := r.U8()
		if err != nil {
			return nil, err
		}

		tag := Tag(tagVal & TagBits)
		interesting := isInteresting(tag, flags)
		// DW_AT_sibling must not become a jump opcode when the scanner
		// has to descend into an enumeration_type to find enumerators
		// (spec §4.3/§4.5): the attribute's bytes are still consumed,
		// just via the generic fixed-length/LEB skip path below.
		mustDescend := tag == TagEnumerationType && flags.Has(ixflags.Enumerators)

		t.Decls = append(t.Decls, len(t.Insns))
		pending = 0

		for {
			at, err := r.ULEB128()
			if err != nil {
				return nil, err
			}
			fm, err := r.ULEB128()
			if err != nil {
				return nil, err
			}
			if at == 0 && fm == 0 {
				break
			}
			f := form(fm)
			if f == formIndirect {
				return nil, ixerror.Errorf(ixerror.DWARFFormat, "DW_FORM_indirect is not supported")
			}

			switch {
			case attr(at) == atSibling && !mustDescend:
				w, ok := refWidth(f)
				if !ok {
					// unexpected form for DW_AT_sibling: fall through to
					// a generic skip of its fixed/variable length.
					if err := emitGeneric(t, &pending, flush, f, addrSize, dwarf64); err != nil {
						return nil, err
					}
					continue
				}
				flush()
				t.Insns = append(t.Insns, OpSibling, w)

			case attr(at) == atName && interesting:
				switch f {
				case formString:
					flush()
					t.Insns = append(t.Insns, OpName, 0)
				case formStrp:
					flush()
					w := uint8(4)
					if dwarf64 {
						w = 8
					}
					t.Insns = append(t.Insns, OpName, w)
				default:
					if err := emitGeneric(t, &pending, flush, f, addrSize, dwarf64); err != nil {
						return nil, err
					}
				}

			case attr(at) == atStmtList && tag == TagCompileUnit && hasLine:
				w := uint8(4)
				if dwarf64 {
					w = 8
				}
				flush()
				t.Insns = append(t.Insns, OpStmtList, w)

			case attr(at) == atDeclFile && interesting:
				w, ok := declFileWidth(f)
				if !ok {
					if err := emitGeneric(t, &pending, flush, f, addrSize, dwarf64); err != nil {
						return nil, err
					}
					continue
				}
				flush()
				t.Insns = append(t.Insns, OpDeclFile, w)

			case attr(at) == atSpecByname && interesting:
				w, ok := refWidth(f)
				if !ok {
					if err := emitGeneric(t, &pending, flush, f, addrSize, dwarf64); err != nil {
						return nil, err
					}
					continue
				}
				flush()
				t.Insns = append(t.Insns, OpSpecification, w)

			case attr(at) == atDeclaration:
				flush()
				switch f {
				case formFlagPresent:
					t.Insns = append(t.Insns, OpDeclarationFlag, 0)
				case formFlag:
					t.Insns = append(t.Insns, OpDeclarationFlag, 1)
				default:
					if err := emitGeneric(t, &pending, flush, f, addrSize, dwarf64); err != nil {
						return nil, err
					}
				}

			default:
				if err := emitGeneric(t, &pending, flush, f, addrSize, dwarf64); err != nil {
					return nil, err
				}
			}
		}

		flush()
		t.Insns = append(t.Insns, 0) // terminator

		var flagByte byte
		if interesting {
			flagByte |= byte(tag) & TagBits
		}
		if hasChildren != 0 {
			flagByte |= TagFlagChildren
		}
		t.Insns = append(t.Insns, flagByte)
	}

	return t, nil
}

// isInteresting reports whether tag is one the caller asked to index,
// per spec §4.3: "types (base, class, enumeration, structure, typedef,
// union), variables, enumerators, subprograms, compile units, and
// enumeration types (the last two are always preserved when enumerators
// are requested)".
func isInteresting(tag Tag, flags ixflags.Flags) bool {
	switch tag {
	case TagEnumerationType:
		if flags.Has(ixflags.Types) || flags.Has(ixflags.Enumerators) {
			return true
		}
	case TagBaseType, TagClassType, TagStructureType, TagTypedef, TagUnionType:
		if flags.Has(ixflags.Types) {
			return true
		}
	case TagVariable:
		if flags.Has(ixflags.Variables) {
			return true
		}
	case TagEnumerator:
		if flags.Has(ixflags.Enumerators) {
			return true
		}
	case TagSubprogram:
		if flags.Has(ixflags.Functions) {
			return true
		}
	case TagCompileUnit:
		if flags.Has(ixflags.Enumerators) {
			return true
		}
	}
	return false
}

// refWidth returns the instruction width byte for a reference form
// restricted to the set the spec names for sibling/specification:
// {ref1, ref2, ref4, ref8, ref_udata}.
func refWidth(f form) (uint8, bool) {
	switch f {
	case formRef1:
		return 1, true
	case formRef2:
		return 2, true
	case formRef4:
		return 4, true
	case formRef8:
		return 8, true
	case formRefUdata:
		return refWidthULEB, true
	default:
		return 0, false
	}
}

// declFileWidth returns the instruction width byte for the forms the
// spec names for decl_file: {data1, data2, data4, data8, udata}.
func declFileWidth(f form) (uint8, bool) {
	switch f {
	case formData1:
		return 1, true
	case formData2:
		return 2, true
	case formData4:
		return 4, true
	case formData8:
		return 8, true
	case formUdata:
		return refWidthULEB, true
	default:
		return 0, false
	}
}

// emitGeneric emits the instructions for a form that needs no special
// runtime action: either folding its fixed length into the pending skip
// run, or emitting one of the variable-length skip opcodes.
func emitGeneric(t *Table, pending *int, flush func(), f form, addrSize int, dwarf64 bool) error {
	switch f {
	case formFlagPresent:
		return nil // zero bytes: nothing to skip, nothing to fold
	case formAddr:
		*pending += addrSize
		return nil
	case formBlock2:
		flush()
		t.Insns = append(t.Insns, OpBlock2)
		return nil
	case formBlock4:
		flush()
		t.Insns = append(t.Insns, OpBlock4)
		return nil
	case formBlock1:
		flush()
		t.Insns = append(t.Insns, OpBlock1)
		return nil
	case formBlock, formExprloc:
		flush()
		t.Insns = append(t.Insns, OpExprloc)
		return nil
	case formData2:
		*pending += 2
		return nil
	case formData4:
		*pending += 4
		return nil
	case formData8:
		*pending += 8
		return nil
	case formData1, formFlag:
		*pending += 1
		return nil
	case formSdata, formUdata, formRefUdata:
		flush()
		t.Insns = append(t.Insns, OpLEB128Skip)
		return nil
	case formString:
		flush()
		t.Insns = append(t.Insns, OpStringSkip)
		return nil
	case formStrp, formSecOffset:
		if dwarf64 {
			*pending += 8
		} else {
			*pending += 4
		}
		return nil
	case formRefAddr:
		if dwarf64 {
			*pending += 8
		} else {
			*pending += 4
		}
		return nil
	case formRef1:
		*pending += 1
		return nil
	case formRef2:
		*pending += 2
		return nil
	case formRef4:
		*pending += 4
		return nil
	case formRef8, formRefSig8:
		// ref_sig8: preserve skip-only semantics per spec §9 open
		// question - type-unit cross references are not resolved.
		*pending += 8
		return nil
	default:
		return ixerror.Errorf(ixerror.DWARFFormat, "unrecognised DWARF form 0x%x", uint64(f))
	}
}
