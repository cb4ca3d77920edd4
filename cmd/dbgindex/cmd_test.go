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

package main

import (
	"bytes"
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBuildRequiresAtLeastOnePath(t *testing.T) {
	_, err := runCmd(t, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paths given")
}

func TestLookupRequiresName(t *testing.T) {
	_, err := runCmd(t, "lookup")
	require.Error(t, err)
}

func TestLookupRejectsUnknownTag(t *testing.T) {
	_, err := runCmd(t, "lookup", "foo", "--tag", "bogus", "testdata/does-not-exist.o")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tag "bogus"`)
}

func TestTagByNameAcceptsCanonicalAndAliasNames(t *testing.T) {
	cases := map[string]dwarf.Tag{
		"struct":     dwarf.TagStructType,
		"structure":  dwarf.TagStructType,
		"union":      dwarf.TagUnionType,
		"enum":       dwarf.TagEnumerationType,
		"enumerator": dwarf.TagEnumerator,
		"function":   dwarf.TagSubprogram,
		"subprogram": dwarf.TagSubprogram,
	}
	for name, want := range cases {
		got, ok := tagByName(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := tagByName("bogus")
	assert.False(t, ok)
}

func TestIterateRequiresAtLeastOnePath(t *testing.T) {
	_, err := runCmd(t, "iterate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paths given")
}
