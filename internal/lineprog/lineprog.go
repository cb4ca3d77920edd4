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

// Package lineprog parses the header of a DWARF line-number program and
// builds the per-CU file-name hash table (spec §4.6): a dense array of
// 64-bit SipHash digests, indexed by the 1-based DWARF file index, used
// by the DIE scanner for collision-resistant "same declaring file" checks
// without ever comparing path strings.
package lineprog

import (
	"github.com/dgryski/go-siphash"

	"github.com/jetsetilly/dwarfindex/internal/breader"
	"github.com/jetsetilly/dwarfindex/internal/ixerror"
)

// FileTable is one CU's file-name hash table. Index 0 means "no file"
// and is never populated; valid entries start at index 1.
type FileTable struct {
	hashes []uint64
}

// Hash returns the digest for the given 1-based DWARF file index, or an
// error if the index is out of range (spec: "A file index of 0 means
// 'no file'"; index past the table's end is a dwarf-format error).
func (t *FileTable) Hash(fileIndex uint64) (uint64, error) {
	if fileIndex == 0 {
		return 0, nil
	}
	i := fileIndex - 1
	if i >= uint64(len(t.hashes)) {
		return 0, ixerror.Errorf(ixerror.DWARFFormat, "decl_file index %d out of range (%d files)", fileIndex, len(t.hashes))
	}
	return t.hashes[i], nil
}

// Len reports the number of file entries in the table (for tests).
func (t *FileTable) Len() int { return len(t.hashes) }

// sipK0 and sipK1 form the all-zero 128-bit SipHash key the spec mandates (§9:
// "Hash flooding is out of scope because inputs are controlled by the
// debugger operator").
const sipK0, sipK1 = 0, 0

// hashDirComponents digests a directory's canonicalised path components,
// each terminated by '/' (spec §3). components is root-to-leaf order
// (splitCanonical's output); walking it and appending "component + /" in
// that order reconstructs the directory's own canonical path with a
// trailing slash (e.g. ["", "src"] -> "/src/"), which is what gets fed to
// SipHash - the spec's "iterate ... in reverse" describes how the
// indexer accumulates components while resolving ".." against a stack
// (innermost-first), not the byte order of the final digest input; S2's
// worked example (hash of '/', 'src/', 'a.c' for /src/a.c) only holds
// under root-to-leaf concatenation, so that is the order implemented
// here (see DESIGN.md).
func hashDirComponents(components []string) uint64 {
	var buf []byte
	for _, c := range components {
		buf = append(buf, c...)
		buf = append(buf, '/')
	}
	return siphash.Hash(sipK0, sipK1, buf)
}

// HashFile combines a directory digest with a file name the same way
// Build does, exposed for tests that want to check P4 directly.
func HashFile(dirDigest uint64, name string) uint64 {
	buf := make([]byte, 0, 8+len(name))
	buf = appendUint64LE(buf, dirDigest)
	buf = append(buf, name...)
	return siphash.Hash(sipK0, sipK1, buf)
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56),
	)
}

// header holds the subset of the line-number program header needed to
// build the file table; the rest of the program (the actual line-number
// state machine opcodes) is out of scope for the indexer.
type header struct {
	version      uint16
	dirs         []string
	files        []fileEntry
}

type fileEntry struct {
	name    string
	dirIdx  uint64
}

// Build parses the line-number program header at the given offset within
// the .debug_line section and returns the CU's file table. Only versions
// 2, 3 and 4 are accepted, matching the CU splitter's version gate.
func Build(debugLine []byte, offset uint64, dwarf64 bool) (*FileTable, error) {
	if offset > uint64(len(debugLine)) {
		return nil, ixerror.Errorf(ixerror.DWARFFormat, "stmt_list offset %d out of range (len %d)", offset, len(debugLine))
	}
	r := breader.New(debugLine[offset:], nil)

	initial, err := r.U32()
	if err != nil {
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program header: %v", err)
	}
	is64 := initial == 0xffffffff
	var unitLength uint64
	if is64 {
		unitLength, err = r.U64()
	} else {
		unitLength = uint64(initial)
	}
	if err != nil {
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program header length: %v", err)
	}
	if unitLength == 0 {
		return nil, ixerror.Errorf(ixerror.DWARFFormat, "line program unit_length is zero")
	}

	h := &header{}
	h.version, err = r.U16()
	if err != nil {
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program version: %v", err)
	}
	if h.version < 2 || h.version > 4 {
		return nil, ixerror.Errorf(ixerror.DWARFFormat, "unsupported line program version %d", h.version)
	}

	var headerLength uint64
	if is64 {
		headerLength, err = r.U64()
	} else {
		var v32 uint32
		v32, err = r.U32()
		headerLength = uint64(v32)
	}
	if err != nil {
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program header_length: %v", err)
	}
	afterHeaderLength := r.Pos()
	_ = afterHeaderLength

	// minimum_instruction_length, (version4: maximum_operations_per_instruction),
	// default_is_stmt, line_base, line_range, opcode_base, standard_opcode_lengths[opcode_base-1]
	if _, err := r.U8(); err != nil { // minimum_instruction_length
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program: %v", err)
	}
	if h.version == 4 {
		if _, err := r.U8(); err != nil { // maximum_operations_per_instruction
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program: %v", err)
		}
	}
	if _, err := r.U8(); err != nil { // default_is_stmt
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program: %v", err)
	}
	if _, err := r.U8(); err != nil { // line_base (signed, but we don't interpret it)
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program: %v", err)
	}
	if _, err := r.U8(); err != nil { // line_range
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program: %v", err)
	}
	opcodeBase, err := r.U8()
	if err != nil {
		return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program: %v", err)
	}
	for i := 0; i < int(opcodeBase)-1; i++ {
		if _, err := r.U8(); err != nil {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "line program standard_opcode_lengths: %v", err)
		}
	}

	// include_directories: sequence of non-empty NUL-terminated strings,
	// terminated by an empty string. Directory 0 is implicitly the CU's
	// compilation directory, which this indexer has no way to know from
	// the line program alone; spec §3 hashes with "a zero key" for
	// directory 0 as a neutral placeholder (see hashDirComponents(nil)).
	h.dirs = append(h.dirs, "")
	for {
		s, err := r.CString()
		if err != nil {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "include_directories: %v", err)
		}
		if s == "" {
			break
		}
		h.dirs = append(h.dirs, s)
	}

	// file_names: sequence of (name, dir_index ULEB, mtime ULEB, size
	// ULEB), terminated by an empty name.
	h.files = append(h.files, fileEntry{}) // index 0 placeholder, unused
	for {
		name, err := r.CString()
		if err != nil {
			return nil, ixerror.Errorf(ixerror.TruncatedDebugInfo, "file_names: %v", err)
		}
		if name == "" {
			break
		}
		dirIdx, err := r.ULEB128()
		if err != nil {
			return nil, err
		}
		if _, err := r.ULEB128(); err != nil { // mtime
			return nil, err
		}
		if _, err := r.ULEB128(); err != nil { // size
			return nil, err
		}
		if dirIdx >= uint64(len(h.dirs)) {
			return nil, ixerror.Errorf(ixerror.DWARFFormat, "file %q: directory index %d exceeds %d directories", name, dirIdx, len(h.dirs)-1)
		}
		h.files = append(h.files, fileEntry{name: name, dirIdx: dirIdx})
	}

	// Directory digests, computed from each directory's own path
	// components (canonicalised), reused across every file that
	// references that directory.
	dirDigests := make([]uint64, len(h.dirs))
	for i, d := range h.dirs {
		dirDigests[i] = hashDirComponents(splitCanonical(d))
	}

	ft := &FileTable{hashes: make([]uint64, len(h.files)-1)}
	for i := 1; i < len(h.files); i++ {
		f := h.files[i]
		ft.hashes[i-1] = HashFile(dirDigests[f.dirIdx], f.name)
	}

	return ft, nil
}
