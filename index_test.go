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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetilly/dwarfindex/internal/abbrev"
	"github.com/jetsetilly/dwarfindex/internal/elftest"
)

// buildFooObject assembles a minimal ELF64 object defining
// `struct foo { ... }` declared in file index 1 ("a.c" in directory
// "src"), for S1/S2-style scenarios.
func buildFooObject(t *testing.T) string {
	t.Helper()

	decls := []elftest.AbbrevDecl{
		{Code: 1, Tag: uint64(abbrev.TagCompileUnit), HasChildren: true, Attrs: []elftest.AttrForm{
			{Attr: 0x03, Form: 0x08}, // DW_AT_name, DW_FORM_string
			{Attr: 0x10, Form: 0x17}, // DW_AT_stmt_list, DW_FORM_sec_offset
		}},
		{Code: 2, Tag: uint64(abbrev.TagStructureType), HasChildren: false, Attrs: []elftest.AttrForm{
			{Attr: 0x03, Form: 0x08}, // DW_AT_name, DW_FORM_string
			{Attr: 0x3a, Form: 0x0b}, // DW_AT_decl_file, DW_FORM_data1
		}},
	}
	abbrevBytes := elftest.BuildAbbrevTable(decls)

	body := elftest.Cat(
		elftest.ULEB(1), elftest.CStr("cu"), elftest.U32(0),
		elftest.ULEB(2), elftest.CStr("foo"), []byte{1},
		elftest.ULEB(0),
	)
	infoBytes := elftest.CUHeader(4, 0, 8, body)

	lineBytes := elftest.LineProgramHeader(
		[]string{"src"},
		[]struct {
			Name   string
			DirIdx uint64
		}{{Name: "a.c", DirIdx: 1}},
	)

	elfBytes := elftest.BuildELF64([]elftest.Section{
		{Name: ".debug_abbrev", Type: elftest.ShtProgBits, Data: abbrevBytes},
		{Name: ".debug_info", Type: elftest.ShtProgBits, Data: infoBytes},
		{Name: ".debug_line", Type: elftest.ShtProgBits, Data: lineBytes},
		{Name: ".debug_str", Type: elftest.ShtProgBits, Data: []byte{0}},
	}, nil, nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.o")
	require.NoError(t, os.WriteFile(path, elfBytes, 0o644))
	return path
}

func TestUpdateIndexesStructureWhenTypesRequested(t *testing.T) {
	path := buildFooObject(t)

	ix, err := New(Types)
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.Update(context.Background()))

	it := ix.Iter("foo", Tags(dwarf.TagStructType))
	e, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "foo", e.Name)
	assert.Equal(t, dwarf.TagStructType, e.Tag)
	// B2: file_name_hash is only zero for decl_file == 0, and this DIE's
	// decl_file is 1, so the digest must be nonzero (exact reproduction
	// of the directory/file hash is covered directly in
	// internal/lineprog's own tests).
	assert.NotEqual(t, uint64(0), e.FileNameHash)

	_, ok = it.Next()
	assert.False(t, ok)
}

func TestUpdateSkipsStructureWhenTypesNotRequested(t *testing.T) {
	path := buildFooObject(t)

	ix, err := New(Variables)
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.Update(context.Background()))

	_, ok := ix.Iter("foo", nil).Next()
	assert.False(t, ok)
}

func TestOpenSamePathTwiceReturnsSameFileAndNoDuplicateEntries(t *testing.T) {
	path := buildFooObject(t)

	ix, err := New(Types)
	require.NoError(t, err)
	defer ix.Close()

	f1, err := ix.Open(path)
	require.NoError(t, err)
	f2, err := ix.Open(path)
	require.NoError(t, err)
	assert.Equal(t, f1.inner, f2.inner)

	require.NoError(t, ix.Update(context.Background()))
	require.NoError(t, ix.Update(context.Background())) // R1: no new opens, no-op

	n := 0
	it := ix.Iter("foo", nil)
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
}

func TestNewRejectsZeroFlags(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}

func TestIterAllVisitsEveryEntry(t *testing.T) {
	path := buildFooObject(t)

	ix, err := New(Types)
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.Update(context.Background()))

	it := ix.IterAll()
	n := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
}
