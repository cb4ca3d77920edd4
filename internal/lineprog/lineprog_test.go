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

package lineprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetilly/dwarfindex/internal/elftest"
)

func TestBuildParsesDirsAndFiles(t *testing.T) {
	debugLine := elftest.LineProgramHeader(
		[]string{"src"},
		[]struct {
			Name   string
			DirIdx uint64
		}{
			{Name: "a.c", DirIdx: 1},
			{Name: "b.c", DirIdx: 0},
		},
	)

	ft, err := Build(debugLine, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, ft.Len())

	h1, err := ft.Hash(1)
	require.NoError(t, err)
	h2, err := ft.Hash(2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashZeroFileIndexIsZero(t *testing.T) {
	ft := &FileTable{}
	h, err := ft.Hash(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h)
}

func TestHashOutOfRangeFails(t *testing.T) {
	ft := &FileTable{hashes: []uint64{1, 2}}
	_, err := ft.Hash(5)
	require.Error(t, err)
}

// TestDirHashReproducible exercises P4: hashing the same directory's
// components twice, independently of the file table machinery, always
// yields the same digest.
func TestDirHashReproducible(t *testing.T) {
	a := hashDirComponents(splitCanonical("/src"))
	b := hashDirComponents(splitCanonical("/src"))
	assert.Equal(t, a, b)
}

// TestWorkedExampleRootSrcFile reproduces the canonical /src/a.c worked
// example: the directory digest is computed over "/", "src/" in that
// order, then combined with the file name "a.c".
func TestWorkedExampleRootSrcFile(t *testing.T) {
	want := hashDirComponents([]string{"", "src"})
	got := hashDirComponents(splitCanonical("/src"))
	assert.Equal(t, want, got)

	fileHash := HashFile(got, "a.c")
	assert.NotEqual(t, uint64(0), fileHash)
}

func TestBuildRejectsDirIndexOutOfRange(t *testing.T) {
	debugLine := elftest.LineProgramHeader(
		[]string{"src"},
		[]struct {
			Name   string
			DirIdx uint64
		}{
			{Name: "a.c", DirIdx: 9},
		},
	)
	_, err := Build(debugLine, 0, false)
	require.Error(t, err)
}
