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

// Package elfsec is the ELF section loader (spec §4.1). It opens a file
// once (deduplicated by canonical path), locates .symtab, .debug_abbrev,
// .debug_info, .debug_line and .debug_str by name, and captures the RELA
// sections that target them for the relocation engine to apply later.
//
// The container-format parsing (section headers, symbol table, RELA
// entries) is read through the standard library's debug/elf types, the
// same way the teacher's own hardware/memory/cartridge/elf/elf.go opens
// its cartridges with debug/elf before doing its own work on the
// resulting bytes - what this package adds beyond the teacher is owning,
// mutable copies of the five sections (so the relocation engine can patch
// them in place) and the RELA bookkeeping the teacher never needed
// because cartridge ELFs carry no unresolved relocations against debug
// sections.
package elfsec

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/jetsetilly/dwarfindex/internal/ixerror"
	"github.com/jetsetilly/dwarfindex/internal/ixlog"
)

// Names of the five sections the indexer cares about.
const (
	NameSymtab      = ".symtab"
	NameDebugAbbrev = ".debug_abbrev"
	NameDebugInfo   = ".debug_info"
	NameDebugLine   = ".debug_line"
	NameDebugStr    = ".debug_str"
)

var requiredSections = []string{NameDebugAbbrev, NameDebugInfo, NameDebugStr}

// Rela is one decoded RELA entry, kept target-section-relative.
type Rela struct {
	Offset uint64
	Symbol uint32
	Type   uint32
	Addend int64
}

// File is a loaded ELF file's identity and mutable section bytes. The
// same File is returned for the same canonical path (idempotent open,
// R2) and is shared - read-only during indexing, read-write only during
// the relocation phase which precedes it (§5).
type File struct {
	Path      string // canonicalised
	ByteOrder binary.ByteOrder

	// Sections holds owning copies of the five named sections, keyed by
	// name. Missing optional sections (.symtab, .debug_line) are absent
	// from the map rather than present-but-empty, so callers can
	// distinguish "no line program" from "empty line program".
	Sections map[string][]byte

	// Relas maps a target section name to the RELA entries that apply to
	// it, decoded but not yet applied.
	Relas map[string][]Rela

	// Symbols is the decoded .symtab, used to resolve RELA entries. Index
	// 0 is the null symbol, so a RELA symbol index selects its entry
	// directly.
	Symbols []elf.Symbol

	owned  bool // true if this package opened (and therefore must close) the descriptor
	closer *os.File

	// Failed marks a file that the current update has rolled back; the
	// shard truncation in internal/shardmap consults this.
	Failed bool

	mu sync.Mutex
}

// Loader deduplicates File instances by canonical path.
type Loader struct {
	mu    sync.Mutex
	files map[string]*File
}

// New creates an empty Loader.
func New() *Loader {
	return &Loader{files: make(map[string]*File)}
}

// Open opens and registers path, returning the cached File if this path
// (after canonicalisation) was already opened.
func (l *Loader) Open(path string) (*File, error) {
	canon, err := filepath.EvalSymlinks(path)
	if err != nil {
		// fall back to Abs so a not-yet-existing-on-this-FS path still
		// gets a stable identity; the subsequent os.Open will fail with
		// the real error if the path genuinely doesn't exist.
		canon, err = filepath.Abs(path)
		if err != nil {
			return nil, ixerror.OSError(path, err)
		}
	}

	l.mu.Lock()
	if f, ok := l.files[canon]; ok {
		l.mu.Unlock()
		return f, nil
	}
	l.mu.Unlock()

	osf, err := os.Open(canon)
	if err != nil {
		return nil, ixerror.OSError(path, err)
	}

	f, err := l.fromReader(canon, osf)
	if err != nil {
		osf.Close()
		return nil, err
	}
	f.owned = true
	f.closer = osf

	l.mu.Lock()
	if existing, ok := l.files[canon]; ok {
		l.mu.Unlock()
		osf.Close()
		return existing, nil
	}
	l.files[canon] = f
	l.mu.Unlock()

	ixlog.Debugf("elfsec", "opened %s", canon)
	return f, nil
}

// OpenELF registers an already-open *elf.File (owned by a collaborator)
// under path's canonical identity.
func (l *Loader) OpenELF(ef *elf.File, path string) (*File, error) {
	canon, err := filepath.Abs(path)
	if err != nil {
		return nil, ixerror.OSError(path, err)
	}

	l.mu.Lock()
	if f, ok := l.files[canon]; ok {
		l.mu.Unlock()
		return f, nil
	}
	l.mu.Unlock()

	f, err := l.fromELF(canon, ef)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if existing, ok := l.files[canon]; ok {
		l.mu.Unlock()
		return existing, nil
	}
	l.files[canon] = f
	l.mu.Unlock()

	return f, nil
}

func (l *Loader) fromReader(path string, r *os.File) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, ixerror.Wrap(ixerror.NotELF, err)
	}
	return l.fromELF(path, ef)
}

func (l *Loader) fromELF(path string, ef *elf.File) (*File, error) {
	if ef.Class != elf.ELFCLASS64 {
		return nil, ixerror.Errorf(ixerror.ELFFormat, "32-bit ELF not supported: %s", path)
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if ef.Data == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}

	f := &File{
		Path:      path,
		ByteOrder: order,
		Sections:  make(map[string][]byte),
		Relas:     make(map[string][]Rela),
	}

	// Pass 1: the five named sections.
	present := make(map[string]*elf.Section)
	for _, sec := range ef.Sections {
		if sec.Type == elf.SHT_NOBITS {
			continue
		}
		switch sec.Name {
		case NameSymtab, NameDebugAbbrev, NameDebugInfo, NameDebugLine, NameDebugStr:
			data, err := sectionBytes(sec)
			if err != nil {
				return nil, ixerror.Wrap(ixerror.ELFFormat, err)
			}
			f.Sections[sec.Name] = data
			present[sec.Name] = sec
		}
	}

	for _, name := range requiredSections {
		if _, ok := f.Sections[name]; !ok {
			return nil, ixerror.Errorf(ixerror.MissingDebug, "%s: missing required section %s", path, name)
		}
	}

	if str, ok := f.Sections[NameDebugStr]; ok && len(str) > 0 && str[len(str)-1] != 0 {
		return nil, ixerror.Errorf(ixerror.DWARFFormat, "%s: .debug_str not NUL-terminated at final byte", path)
	}

	// .symtab, used to resolve relocation symbols. debug/elf omits the
	// null symbol at index 0; put it back so indices match r_sym.
	if symtab, err := ef.Symbols(); err == nil {
		f.Symbols = append([]elf.Symbol{{}}, symtab...)
	} else if _, ok := f.Sections[NameSymtab]; ok {
		return nil, ixerror.Errorf(ixerror.ELFFormat, "%s: malformed .symtab: %v", path, err)
	}

	// Pass 2: RELA sections targeting one of the five.
	for _, sec := range ef.Sections {
		if sec.Type != elf.SHT_RELA {
			continue
		}
		if int(sec.Info) >= len(ef.Sections) {
			return nil, ixerror.Errorf(ixerror.ELFFormat, "%s: RELA sh_info %d out of range", path, sec.Info)
		}
		target := ef.Sections[sec.Info]
		if _, ok := present[target.Name]; !ok {
			continue
		}
		relas, err := decodeRela(sec, order)
		if err != nil {
			return nil, ixerror.Wrap(ixerror.ELFFormat, err)
		}
		f.Relas[target.Name] = relas
	}

	return f, nil
}

func sectionBytes(sec *elf.Section) ([]byte, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	// own the bytes: sec.Data() already returns a fresh slice for
	// non-compressed sections, but copy defensively so relocation writes
	// never alias the mmap'd/underlying file buffer in a surprising way.
	owned := make([]byte, len(data))
	copy(owned, data)
	return owned, nil
}

func decodeRela(sec *elf.Section, order binary.ByteOrder) ([]Rela, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	const entSize = 24 // r_offset(8) + r_info(8) + r_addend(8)
	if len(data)%entSize != 0 {
		return nil, ixerror.Errorf(ixerror.ELFFormat, "RELA section size %d not a multiple of %d", len(data), entSize)
	}
	n := len(data) / entSize
	out := make([]Rela, n)
	for i := 0; i < n; i++ {
		base := i * entSize
		off := order.Uint64(data[base:])
		info := order.Uint64(data[base+8:])
		addend := int64(order.Uint64(data[base+16:]))
		out[i] = Rela{
			Offset: off,
			Symbol: uint32(info >> 32),
			Type:   uint32(info & 0xffffffff),
			Addend: addend,
		}
	}
	return out, nil
}

// Close releases the underlying descriptor if this package opened it.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owned && f.closer != nil {
		err := f.closer.Close()
		f.closer = nil
		return err
	}
	return nil
}

// MarkFailed flags the file as failed, used by rollback (§4.9).
func (f *File) MarkFailed() {
	f.mu.Lock()
	f.Failed = true
	f.mu.Unlock()
}

// IsFailed reports whether the file has been marked failed.
func (f *File) IsFailed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Failed
}
