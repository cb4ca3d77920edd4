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

package breader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetilly/dwarfindex/internal/ixerror"
)

func TestFixedWidthReads(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := New(buf, nil)

	b, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), b)

	u16, err := r.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0302), u16)

	u32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x07060504), u32)
}

func TestU64PastEndFails(t *testing.T) {
	r := New([]byte{1, 2, 3}, nil)
	_, err := r.U64()
	require.Error(t, err)
	assert.True(t, ixerror.Is(err, ixerror.TruncatedDebugInfo))
}

func TestULEB128(t *testing.T) {
	// 624485 encodes as 0xE5 0x8E 0x26 (DWARF spec worked example)
	r := New([]byte{0xE5, 0x8E, 0x26}, nil)
	v, err := r.ULEB128()
	require.NoError(t, err)
	assert.Equal(t, uint64(624485), v)
}

func TestSLEB128Negative(t *testing.T) {
	// -2 encodes as 0x7E
	r := New([]byte{0x7E}, nil)
	v, err := r.SLEB128()
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)
}

func TestULEB128Overflow(t *testing.T) {
	// nine continuation bytes, then 0x01: the value 2^63, which needs the
	// 64th payload bit.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	r := New(buf, nil)
	_, err := r.ULEB128()
	require.Error(t, err)
	assert.True(t, ixerror.Is(err, ixerror.Overflow))
}

func TestCStringSharesMemory(t *testing.T) {
	buf := []byte("hello\x00world")
	r := New(buf, nil)
	s, err := r.CString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.Equal(t, 6, r.Pos())
}

func TestCStringUnterminatedFails(t *testing.T) {
	r := New([]byte("no terminator"), nil)
	_, err := r.CString()
	require.Error(t, err)
	assert.True(t, ixerror.Is(err, ixerror.TruncatedDebugInfo))
}

func TestCStringAt(t *testing.T) {
	buf := []byte("\x00abc\x00def\x00")
	s, err := CStringAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	s, err = CStringAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "def", s)
}

func TestSeekAndSkipAdvance(t *testing.T) {
	r := New([]byte{1, 2, 3, 4, 5}, nil)
	require.NoError(t, r.SkipAdvance(3))
	assert.Equal(t, 3, r.Pos())
	r.Seek(0)
	assert.Equal(t, 0, r.Pos())
	assert.False(t, r.AtEnd())
	r.SeekEnd()
	assert.True(t, r.AtEnd())
}
