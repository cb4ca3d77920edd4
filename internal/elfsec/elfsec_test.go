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

package elfsec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetilly/dwarfindex/internal/elftest"
)

func minimalObject() []elftest.Section {
	return []elftest.Section{
		{Name: ".debug_abbrev", Type: elftest.ShtProgBits, Data: []byte{0}},
		{Name: ".debug_info", Type: elftest.ShtProgBits, Data: elftest.CUHeader(4, 0, 8, elftest.ULEB(0))},
		{Name: ".debug_str", Type: elftest.ShtProgBits, Data: []byte{0}},
	}
}

func writeObject(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.o")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenReadsRequiredSections(t *testing.T) {
	path := writeObject(t, elftest.BuildELF64(minimalObject(), nil, nil))

	l := New()
	f, err := l.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.Sections, NameDebugAbbrev)
	assert.Contains(t, f.Sections, NameDebugInfo)
	assert.Contains(t, f.Sections, NameDebugStr)
	assert.NotContains(t, f.Sections, NameDebugLine, "optional section absent, not present-but-empty")
}

func TestOpenSamePathTwiceReturnsSameFile(t *testing.T) {
	path := writeObject(t, elftest.BuildELF64(minimalObject(), nil, nil))

	l := New()
	f1, err := l.Open(path)
	require.NoError(t, err)
	f2, err := l.Open(path)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
}

func TestOpenRejectsMissingRequiredSection(t *testing.T) {
	sections := []elftest.Section{
		{Name: ".debug_abbrev", Type: elftest.ShtProgBits, Data: []byte{0}},
		// .debug_info and .debug_str omitted.
	}
	path := writeObject(t, elftest.BuildELF64(sections, nil, nil))

	l := New()
	_, err := l.Open(path)
	require.Error(t, err)
}

func TestOpenDecodesRelaTargetingDebugInfo(t *testing.T) {
	sections := minimalObject()
	symbols := []elftest.Symbol{{Name: "sym", Value: 0, Shndx: 1}}
	relas := []elftest.RelaEntry{
		{TargetSection: ".debug_info", Offset: 4, SymbolIndex: 1, Type: 1, Addend: 0},
	}
	path := writeObject(t, elftest.BuildELF64(sections, symbols, relas))

	l := New()
	f, err := l.Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.Contains(t, f.Relas, NameDebugInfo)
	require.Len(t, f.Relas[NameDebugInfo], 1)
	assert.Equal(t, uint64(4), f.Relas[NameDebugInfo][0].Offset)
	assert.Len(t, f.Symbols, 2) // null symbol + sym
}

func TestMarkFailedAndIsFailed(t *testing.T) {
	path := writeObject(t, elftest.BuildELF64(minimalObject(), nil, nil))

	l := New()
	f, err := l.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, f.IsFailed())
	f.MarkFailed()
	assert.True(t, f.IsFailed())
}

func TestOpenRejectsMissingFile(t *testing.T) {
	l := New()
	_, err := l.Open(filepath.Join(t.TempDir(), "does-not-exist.o"))
	require.Error(t, err)
}
