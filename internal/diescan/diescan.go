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

// Package diescan is the per-CU DIE scanner (spec §4.5): it interprets a
// compiled abbreviation stream (internal/abbrev) across a compilation
// unit's body, recognising name/decl_file/specification/sibling/stmt_list
// attributes, and feeds matching DIEs into a shardmap.Map.
package diescan

import (
	"context"

	"github.com/jetsetilly/dwarfindex/internal/abbrev"
	"github.com/jetsetilly/dwarfindex/internal/breader"
	"github.com/jetsetilly/dwarfindex/internal/cu"
	"github.com/jetsetilly/dwarfindex/internal/elfsec"
	"github.com/jetsetilly/dwarfindex/internal/ixerror"
	"github.com/jetsetilly/dwarfindex/internal/ixflags"
	"github.com/jetsetilly/dwarfindex/internal/ixlog"
	"github.com/jetsetilly/dwarfindex/internal/lineprog"
	"github.com/jetsetilly/dwarfindex/internal/shardmap"
)

// scratch is the per-DIE record the abbreviation interpreter fills in.
// Fields are "valid" only if the corresponding attribute was present in
// this DIE's abbreviation declaration.
type scratch struct {
	siblingValid bool
	sibling      uint64 // CU-relative offset

	nameValid bool
	name      string

	stmtListValid bool
	stmtList      uint64 // absolute offset into .debug_line

	declFileValid bool
	declFile      uint64

	specValid bool
	spec      uint64 // CU-relative offset

	declared bool // DW_AT_declaration, read at scan time (not baked into the static tag byte)
}

// readWidth reads an unsigned integer of the given byte width (1, 2, 4 or
// 8), or a ULEB128 value when width is abbrev's refWidthULEB sentinel
// (0).
func readWidth(r *breader.R, width uint8) (uint64, error) {
	switch width {
	case 0:
		return r.ULEB128()
	case 1:
		v, err := r.U8()
		return uint64(v), err
	case 2:
		v, err := r.U16()
		return uint64(v), err
	case 4:
		v, err := r.U32()
		return uint64(v), err
	case 8:
		return r.U64()
	default:
		return 0, ixerror.Errorf(ixerror.DWARFFormat, "unrecognised instruction width %d", width)
	}
}

// interpret executes one DIE's compiled instruction stream starting at
// insns[0], reading raw DIE bytes from r (whose cursor sits at the DIE's
// first attribute byte) and resolving .debug_str-relative names via
// debugStr. It returns the populated scratch record, the DIE's tag (0 if
// the abbreviation wasn't compiled as "interesting"), and whether the DIE
// has children.
func interpret(insns []byte, r *breader.R, debugStr []byte) (scratch, abbrev.Tag, bool, error) {
	var sc scratch
	i := 0

	for {
		if i >= len(insns) {
			return sc, 0, false, ixerror.Errorf(ixerror.DWARFFormat, "abbreviation instruction stream ran off the end")
		}
		op := insns[i]
		i++

		switch {
		case op == 0:
			if i >= len(insns) {
				return sc, 0, false, ixerror.Errorf(ixerror.DWARFFormat, "abbreviation instruction stream missing flag byte")
			}
			flagByte := insns[i]
			tag := abbrev.Tag(flagByte & abbrev.TagBits)
			hasChildren := flagByte&abbrev.TagFlagChildren != 0
			return sc, tag, hasChildren, nil

		case op <= 229:
			if err := r.SkipAdvance(int(op)); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpBlock1:
			n, err := r.U8()
			if err != nil {
				return sc, 0, false, err
			}
			if err := r.SkipAdvance(int(n)); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpBlock2:
			n, err := r.U16()
			if err != nil {
				return sc, 0, false, err
			}
			if err := r.SkipAdvance(int(n)); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpBlock4:
			n, err := r.U32()
			if err != nil {
				return sc, 0, false, err
			}
			if err := r.SkipAdvance(int(n)); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpExprloc:
			n, err := r.ULEB128()
			if err != nil {
				return sc, 0, false, err
			}
			if err := r.SkipAdvance(int(n)); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpLEB128Skip:
			if _, err := r.ULEB128(); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpStringSkip:
			if _, err := r.CString(); err != nil {
				return sc, 0, false, err
			}

		case op == abbrev.OpSibling:
			width := insns[i]
			i++
			v, err := readWidth(r, width)
			if err != nil {
				return sc, 0, false, err
			}
			sc.sibling, sc.siblingValid = v, true

		case op == abbrev.OpName:
			mode := insns[i]
			i++
			if mode == 0 {
				s, err := r.CString()
				if err != nil {
					return sc, 0, false, err
				}
				sc.name = s
			} else {
				off, err := readWidth(r, mode)
				if err != nil {
					return sc, 0, false, err
				}
				s, err := breader.CStringAt(debugStr, off)
				if err != nil {
					return sc, 0, false, err
				}
				sc.name = s
			}
			sc.nameValid = true

		case op == abbrev.OpStmtList:
			width := insns[i]
			i++
			v, err := readWidth(r, width)
			if err != nil {
				return sc, 0, false, err
			}
			sc.stmtList, sc.stmtListValid = v, true

		case op == abbrev.OpDeclFile:
			width := insns[i]
			i++
			v, err := readWidth(r, width)
			if err != nil {
				return sc, 0, false, err
			}
			sc.declFile, sc.declFileValid = v, true

		case op == abbrev.OpSpecification:
			width := insns[i]
			i++
			v, err := readWidth(r, width)
			if err != nil {
				return sc, 0, false, err
			}
			sc.spec, sc.specValid = v, true

		case op == abbrev.OpDeclarationFlag:
			mode := insns[i]
			i++
			if mode == 0 {
				sc.declared = true
			} else {
				b, err := r.U8()
				if err != nil {
					return sc, 0, false, err
				}
				sc.declared = b != 0
			}

		default:
			return sc, 0, false, ixerror.Errorf(ixerror.DWARFFormat, "unrecognised abbreviation opcode %d", op)
		}
	}
}

// followSpecification reads name/decl_file from the DIE at the CU's
// specAbs offset, one level only - the spec's resolution rule does not
// chase a chain of specifications.
func followSpecification(info []byte, table *abbrev.Table, debugStr []byte, specAbs int) (scratch, error) {
	r := breader.New(info, nil)
	r.Seek(specAbs)
	code, err := r.ULEB128()
	if err != nil {
		return scratch{}, err
	}
	insns, err := table.InsnsFor(code)
	if err != nil {
		return scratch{}, err
	}
	sc, _, _, err := interpret(insns, r, debugStr)
	return sc, err
}

// Scan walks one compilation unit's DIE tree, inserting every indexable,
// non-declaration DIE with a resolvable name into shards. It returns the
// unit's file-name table (always non-nil; empty if the CU has no
// DW_AT_stmt_list) for callers that want to inspect it after the fact.
func Scan(ctx context.Context, file *elfsec.File, u cu.Unit, table *abbrev.Table, flags ixflags.Flags, shards *shardmap.Map) (*lineprog.FileTable, error) {
	info := file.Sections[elfsec.NameDebugInfo]
	debugLine := file.Sections[elfsec.NameDebugLine]
	debugStr := file.Sections[elfsec.NameDebugStr]

	r := breader.New(info, file.ByteOrder)
	r.Seek(u.HeaderEnd)

	fileTable := &lineprog.FileTable{}

	depth := 0
	enclosingEnumValid := false
	var enclosingEnumOffset int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dieOffset := r.Pos()

		code, err := r.ULEB128()
		if err != nil {
			return nil, err
		}

		if code == 0 {
			depth--
			if depth == 1 {
				enclosingEnumValid = false
			}
			if depth == 0 {
				break
			}
			continue
		}

		insns, err := table.InsnsFor(code)
		if err != nil {
			return nil, err
		}

		sc, tag, hasChildren, err := interpret(insns, r, debugStr)
		if err != nil {
			return nil, err
		}

		switch depth {
		case 0:
			if sc.stmtListValid {
				ft, err := lineprog.Build(debugLine, sc.stmtList, u.Is64Bit)
				if err != nil {
					return nil, err
				}
				fileTable = ft
			}

		case 1:
			if tag == abbrev.TagEnumerationType {
				enclosingEnumOffset = dieOffset
				enclosingEnumValid = true
			} else {
				enclosingEnumValid = false
			}
			if err := indexDIE(info, table, debugStr, fileTable, file, shards, sc, tag, dieOffset, u); err != nil {
				return nil, err
			}

		case 2:
			if tag == abbrev.TagEnumerator && enclosingEnumValid {
				if err := indexDIE(info, table, debugStr, fileTable, file, shards, sc, tag, enclosingEnumOffset, u); err != nil {
					return nil, err
				}
			}
		}

		if hasChildren {
			if sc.siblingValid {
				r.Seek(u.Start + int(sc.sibling))
			} else {
				depth++
			}
		} else if depth == 0 {
			break
		}
	}

	ixlog.Debugf("diescan", "CU at %d: scanned to %d", u.Start, r.Pos())
	return fileTable, nil
}

// indexDIE applies the "indexable tag, declaration bit clear" rule: skip
// declared-only DIEs, resolve a missing name/decl_file via
// DW_AT_specification, compute the file-name hash, and insert.
func indexDIE(info []byte, table *abbrev.Table, debugStr []byte, fileTable *lineprog.FileTable, file *elfsec.File, shards *shardmap.Map, sc scratch, tag abbrev.Tag, offset int, u cu.Unit) error {
	if tag == 0 || sc.declared {
		return nil
	}

	name := sc.name
	declFileValid := sc.declFileValid
	declFile := sc.declFile

	if (name == "" || !declFileValid) && sc.specValid {
		specAbs := u.Start + int(sc.spec)
		specSc, err := followSpecification(info, table, debugStr, specAbs)
		if err != nil {
			return err
		}
		if name == "" && specSc.nameValid {
			name = specSc.name
		}
		if !declFileValid && specSc.declFileValid {
			declFile, declFileValid = specSc.declFile, true
		}
	}

	if name == "" {
		return nil
	}

	var fileHash uint64
	if declFileValid {
		h, err := fileTable.Hash(declFile)
		if err != nil {
			return err
		}
		fileHash = h
	}

	shards.Insert(name, uint8(tag), fileHash, file, offset)
	return nil
}
