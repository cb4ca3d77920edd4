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

// Package cu splits a .debug_info section into compilation-unit
// descriptors (spec §4.4). It validates only the CU header; DIE content
// is validated later by internal/diescan.
package cu

import (
	"github.com/jetsetilly/dwarfindex/internal/breader"
	"github.com/jetsetilly/dwarfindex/internal/ixerror"
)

// Dwarf64Sentinel is the initial-length value (0xffffffff) that
// introduces a DWARF64 unit_length followed by an 8-byte length.
const Dwarf64Sentinel = 0xffffffff

// Unit describes one compilation unit within .debug_info.
type Unit struct {
	// Start is the absolute offset of the CU (at unit_length) within
	// .debug_info.
	Start int
	// HeaderEnd is the absolute offset of the first DIE (right after
	// abbrev_offset/address_size).
	HeaderEnd int
	// End is the absolute offset one past the end of this CU (Start +
	// length-field-size + UnitLength).
	End int

	UnitLength       uint64
	Version          uint16
	AbbrevOffset     uint64
	AddressSize      int
	Is64Bit          bool
}

// Split walks info end-to-end producing one Unit per compilation unit.
// Only versions 2, 3 and 4 are accepted (spec §1 non-goals exclude DWARF
// 5's new forms; a version-5 header is a dwarf-format error, matching
// S6).
func Split(info []byte) ([]Unit, error) {
	var units []Unit
	r := breader.New(info, nil)

	for !r.AtEnd() {
		start := r.Pos()

		initial, err := r.U32()
		if err != nil {
			return nil, ixerror.Errorf(ixerror.DWARFFormat, "CU at %d: %v", start, err)
		}

		is64 := initial == Dwarf64Sentinel
		var unitLength uint64
		if is64 {
			unitLength, err = r.U64()
			if err != nil {
				return nil, ixerror.Errorf(ixerror.DWARFFormat, "CU at %d: truncated DWARF64 length: %v", start, err)
			}
		} else {
			if initial >= 0xfffffff0 {
				return nil, ixerror.Errorf(ixerror.DWARFFormat, "CU at %d: reserved initial-length value 0x%x", start, initial)
			}
			unitLength = uint64(initial)
		}

		lengthFieldEnd := r.Pos()
		end := lengthFieldEnd + int(unitLength)
		if unitLength == 0 || end > len(info) || end < lengthFieldEnd {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "CU at %d: unit_length %d runs past end of .debug_info (len %d)", start, unitLength, len(info))
		}

		version, err := r.U16()
		if err != nil {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "CU at %d: %v", start, err)
		}
		if version < 2 || version > 4 {
			return nil, ixerror.Errorf(ixerror.DWARFFormat, "CU at %d: unsupported DWARF version %d", start, version)
		}

		var abbrevOffset uint64
		if is64 {
			abbrevOffset, err = r.U64()
		} else {
			var v32 uint32
			v32, err = r.U32()
			abbrevOffset = uint64(v32)
		}
		if err != nil {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "CU at %d: %v", start, err)
		}

		addrSize, err := r.U8()
		if err != nil {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "CU at %d: %v", start, err)
		}
		if addrSize != 4 && addrSize != 8 {
			return nil, ixerror.Errorf(ixerror.DWARFFormat, "CU at %d: unsupported address size %d", start, addrSize)
		}

		units = append(units, Unit{
			Start:        start,
			HeaderEnd:    r.Pos(),
			End:          end,
			UnitLength:   unitLength,
			Version:      version,
			AbbrevOffset: abbrevOffset,
			AddressSize:  int(addrSize),
			Is64Bit:      is64,
		})

		r.Seek(end)
	}

	return units, nil
}
