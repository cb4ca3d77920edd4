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

// Package breader implements bounds-checked fixed-width and LEB128
// decoding over a byte slice, with optional byte-swap for big-endian
// hosts reading little-endian sections (and vice versa), plus
// null-terminated string extraction. It underlies every other parser in
// the indexer (abbreviation compiler, CU splitter, DIE scanner,
// line-program builder) and deliberately does no allocation: the strings
// it returns share memory with the wrapped buffer.
package breader

import (
	"encoding/binary"
	"unsafe"

	"github.com/jetsetilly/dwarfindex/internal/ixerror"
)

// R is a cursor over a byte slice. It never panics: every read that would
// run past the end of buf returns ixerror.TruncatedDebugInfo.
type R struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

// New wraps buf for reading with the given byte order.
func New(buf []byte, order binary.ByteOrder) *R {
	if order == nil {
		order = binary.LittleEndian
	}
	return &R{buf: buf, order: order}
}

// Pos returns the current absolute offset into the wrapped buffer.
func (r *R) Pos() int { return r.pos }

// Len returns the total length of the wrapped buffer.
func (r *R) Len() int { return len(r.buf) }

// Remaining reports how many bytes are left to read.
func (r *R) Remaining() int { return len(r.buf) - r.pos }

// Seek moves the cursor to an absolute offset. It does not itself bounds
// check - an out-of-range seek surfaces as a failure on the next read,
// matching how the spec's CU/DIE walkers validate lazily as they consume
// bytes rather than up front.
func (r *R) Seek(pos int) { r.pos = pos }

// SeekEnd moves the cursor to the end of the buffer.
func (r *R) SeekEnd() { r.pos = len(r.buf) }

// AtEnd reports whether the cursor has reached the end of the buffer.
func (r *R) AtEnd() bool { return r.pos >= len(r.buf) }

func (r *R) need(n int) error {
	if r.pos < 0 || n < 0 || r.pos+n > len(r.buf) || r.pos+n < r.pos {
		return ixerror.Errorf(ixerror.TruncatedDebugInfo, "need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}

// U8 reads one unsigned byte.
func (r *R) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U16 reads a fixed two-byte unsigned integer.
func (r *R) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// U32 reads a fixed four-byte unsigned integer.
func (r *R) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// U64 reads a fixed eight-byte unsigned integer.
func (r *R) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Bytes returns the next n raw bytes without copying and advances the
// cursor past them.
func (r *R) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// SkipAdvance advances the cursor by n bytes, failing if that runs past
// the end of the buffer.
func (r *R) SkipAdvance(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// CString reads a NUL-terminated string starting at the cursor and
// advances past the terminator. The returned string shares memory with
// the underlying buffer - callers (the DIE scanner, in particular) rely
// on this to keep name references alive exactly as long as their owning
// file (invariant I3).
func (r *R) CString() (string, error) {
	start := r.pos
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			s := unsafe.String(&r.buf[start], i-start)
			r.pos = i + 1
			return s, nil
		}
	}
	return "", ixerror.Errorf(ixerror.TruncatedDebugInfo, "unterminated string at offset %d", start)
}

// CStringAt reads a NUL-terminated string at an absolute offset in buf
// without disturbing the cursor, used for .debug_str lookups.
func CStringAt(buf []byte, offset uint64) (string, error) {
	if offset > uint64(len(buf)) {
		return "", ixerror.Errorf(ixerror.TruncatedDebugInfo, ".debug_str offset %d past end (len %d)", offset, len(buf))
	}
	for i := int(offset); i < len(buf); i++ {
		if buf[i] == 0 {
			return unsafe.String(&buf[offset], i-int(offset)), nil
		}
	}
	return "", ixerror.Errorf(ixerror.DWARFFormat, ".debug_str not NUL-terminated")
}

// ULEB128 reads an unsigned LEB128 value, failing with ixerror.Overflow
// if it requires a 64th payload bit (B4).
func (r *R) ULEB128() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, ixerror.Errorf(ixerror.Overflow, "ULEB128 exceeds 64 bits")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// SLEB128 reads a signed LEB128 value.
func (r *R) SLEB128() (int64, error) {
	var result int64
	var shift uint
	var b uint8
	var err error
	for {
		b, err = r.U8()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, ixerror.Errorf(ixerror.Overflow, "SLEB128 exceeds 64 bits")
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

// PeekULEB128Len reports the number of bytes a ULEB128 value starting at
// the cursor would occupy, without disturbing the cursor.
func (r *R) PeekULEB128Len() (int, error) {
	save := r.pos
	_, err := r.ULEB128()
	n := r.pos - save
	r.pos = save
	if err != nil {
		return 0, err
	}
	return n, nil
}
