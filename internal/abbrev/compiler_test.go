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

package abbrev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetilly/dwarfindex/internal/elftest"
	"github.com/jetsetilly/dwarfindex/internal/ixerror"
	"github.com/jetsetilly/dwarfindex/internal/ixflags"
)

func TestCompileNonContiguousCodesFail(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagCompileUnit), HasChildren: true},
		{Code: 3, Tag: uint64(TagBaseType), HasChildren: false},
	})
	_, err := Compile(raw, 0, 8, false, false, ixflags.Types)
	require.Error(t, err)
	assert.True(t, ixerror.Is(err, ixerror.DWARFFormat))
}

func TestCompileRejectsIndirectForm(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagBaseType), HasChildren: false,
			Attrs: []elftest.AttrForm{{Attr: uint64(atName), Form: uint64(formIndirect)}}},
	})
	_, err := Compile(raw, 0, 8, false, false, ixflags.Types)
	require.Error(t, err)
	assert.True(t, ixerror.Is(err, ixerror.DWARFFormat))
}

func TestCompileNameOpcodeOnlyWhenInteresting(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagBaseType), HasChildren: false,
			Attrs: []elftest.AttrForm{{Attr: uint64(atName), Form: uint64(formString)}}},
	})

	// Types not requested: DW_AT_name falls through to a generic skip
	// (OpStringSkip), never OpName.
	tbl, err := Compile(raw, 0, 8, false, false, ixflags.Variables)
	require.NoError(t, err)
	insns, err := tbl.InsnsFor(1)
	require.NoError(t, err)
	assert.Equal(t, byte(OpStringSkip), insns[0])

	// Types requested: DW_AT_name compiles to OpName with inline-string mode.
	tbl, err = Compile(raw, 0, 8, false, false, ixflags.Types)
	require.NoError(t, err)
	insns, err = tbl.InsnsFor(1)
	require.NoError(t, err)
	require.Equal(t, byte(OpName), insns[0])
	assert.Equal(t, byte(0), insns[1])
}

func TestCompileSiblingSuppressedForEnumUnderEnumerators(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagEnumerationType), HasChildren: true,
			Attrs: []elftest.AttrForm{{Attr: uint64(atSibling), Form: uint64(formRef4)}}},
	})

	tbl, err := Compile(raw, 0, 8, false, false, ixflags.Enumerators)
	require.NoError(t, err)
	insns, err := tbl.InsnsFor(1)
	require.NoError(t, err)
	// sibling's ref4 folds into a plain 4-byte skip instead of OpSibling.
	assert.Equal(t, byte(4), insns[0])
	assert.Equal(t, byte(0), insns[1]) // terminator

	// Same table but indexing types (not enumerators): sibling does
	// compile to a jump opcode.
	tbl, err = Compile(raw, 0, 8, false, false, ixflags.Types)
	require.NoError(t, err)
	insns, err = tbl.InsnsFor(1)
	require.NoError(t, err)
	assert.Equal(t, byte(OpSibling), insns[0])
	assert.Equal(t, byte(4), insns[1])
}

func TestCompileStmtListOnlyOnCompileUnitWithLine(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagCompileUnit), HasChildren: true,
			Attrs: []elftest.AttrForm{{Attr: uint64(atStmtList), Form: uint64(formSecOffset)}}},
	})

	tbl, err := Compile(raw, 0, 8, false, false, ixflags.Types) // hasLine=false
	require.NoError(t, err)
	insns, err := tbl.InsnsFor(1)
	require.NoError(t, err)
	assert.Equal(t, byte(4), insns[0]) // generic 4-byte skip (DWARF32 sec_offset)

	tbl, err = Compile(raw, 0, 8, false, true, ixflags.Types) // hasLine=true
	require.NoError(t, err)
	insns, err = tbl.InsnsFor(1)
	require.NoError(t, err)
	assert.Equal(t, byte(OpStmtList), insns[0])
	assert.Equal(t, byte(4), insns[1])
}

func TestCompileDeclarationFlag(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagBaseType), HasChildren: false,
			Attrs: []elftest.AttrForm{{Attr: uint64(atDeclaration), Form: uint64(formFlagPresent)}}},
	})
	tbl, err := Compile(raw, 0, 8, false, false, ixflags.Types)
	require.NoError(t, err)
	insns, err := tbl.InsnsFor(1)
	require.NoError(t, err)
	assert.Equal(t, byte(OpDeclarationFlag), insns[0])
	assert.Equal(t, byte(0), insns[1])
}

func TestCompileSkipCoalescing(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagBaseType), HasChildren: false, Attrs: []elftest.AttrForm{
			{Attr: 0x99, Form: uint64(formData4)},
			{Attr: 0x98, Form: uint64(formData4)},
			{Attr: 0x97, Form: uint64(formData1)},
		}},
	})
	tbl, err := Compile(raw, 0, 8, false, false, ixflags.Types)
	require.NoError(t, err)
	insns, err := tbl.InsnsFor(1)
	require.NoError(t, err)
	// 4 + 4 + 1 = 9, folded into a single skip byte, then terminator + flag.
	assert.Equal(t, byte(9), insns[0])
	assert.Equal(t, byte(0), insns[1])
}

func TestCompileUnrecognisedFormFails(t *testing.T) {
	raw := elftest.BuildAbbrevTable([]elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(TagBaseType), HasChildren: false,
			Attrs: []elftest.AttrForm{{Attr: 0x99, Form: 0x7f}}},
	})
	_, err := Compile(raw, 0, 8, false, false, ixflags.Types)
	require.Error(t, err)
	assert.True(t, ixerror.Is(err, ixerror.DWARFFormat))
}
