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

// Package shardmap is the concurrent insert-only name-to-DIE multimap
// (spec §4.7): 2^8 shards, each guarded by its own mutex, holding a Go
// map from name to chain-head index plus a dense array of entries. The
// high byte of a name's xxhash digest selects the shard; the inner map is
// keyed by the name string and hashes it again with Go's own map hash,
// so the rest of the digest is not used.
package shardmap

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/jetsetilly/dwarfindex/internal/elfsec"
)

// ShardBits is the number of high bits of the name digest used to pick a
// shard.
const ShardBits = 8

// NumShards is 2^ShardBits.
const NumShards = 1 << ShardBits

// Entry is one indexed DIE: (tag, file_name_hash, file, offset, next)
// per spec §3, plus the name it was filed under (borrowed from the
// owning file's .debug_str or inline DIE bytes - never copied, per I3).
type Entry struct {
	Name         string
	Tag          uint8
	FileNameHash uint64
	File         *elfsec.File
	Offset       int

	// Next is the dense-array index of the next entry in this name's
	// chain, or -1 if this is the chain's tail.
	Next int
}

type shard struct {
	mu      sync.Mutex
	heads   map[string]int
	entries []Entry
}

// Map is the sharded name map.
type Map struct {
	shards [NumShards]*shard
}

// New returns an empty Map.
func New() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i] = &shard{heads: make(map[string]int)}
	}
	return m
}

// Digest is the 64-bit name digest whose high byte selects the shard.
// Chain lookup inside a shard goes through the shard's map[string]int
// and does not use it.
func Digest(name string) uint64 { return xxhash.Sum64String(name) }

func shardFor(digest uint64) int { return int(digest >> (64 - ShardBits)) }

// Insert adds (tag, fileNameHash) under name, filed against file at the
// given .debug_info offset. Idempotent under (name, tag, fileNameHash)
// per P1: an identical second insert is a no-op and leaves the chain
// head and length unchanged.
func (m *Map) Insert(name string, tag uint8, fileNameHash uint64, file *elfsec.File, offset int) {
	s := m.shards[shardFor(Digest(name))]

	s.mu.Lock()
	defer s.mu.Unlock()

	head, ok := s.heads[name]
	if !ok {
		idx := len(s.entries)
		s.entries = append(s.entries, Entry{
			Name: name, Tag: tag, FileNameHash: fileNameHash,
			File: file, Offset: offset, Next: -1,
		})
		s.heads[name] = idx
		return
	}

	cur := head
	for {
		e := &s.entries[cur]
		if e.Tag == tag && e.FileNameHash == fileNameHash {
			return
		}
		if e.Next == -1 {
			break
		}
		cur = e.Next
	}

	idx := len(s.entries)
	s.entries = append(s.entries, Entry{
		Name: name, Tag: tag, FileNameHash: fileNameHash,
		File: file, Offset: offset, Next: -1,
	})
	s.entries[cur].Next = idx
}

// ChainCursor walks one name's chain head-to-tail, in the order entries
// were threaded onto it.
type ChainCursor struct {
	s    *shard
	next int
}

// Lookup starts a chain walk for name. If name was never inserted the
// returned cursor's Next immediately reports exhausted.
func (m *Map) Lookup(name string) *ChainCursor {
	s := m.shards[shardFor(Digest(name))]

	s.mu.Lock()
	head, ok := s.heads[name]
	s.mu.Unlock()
	if !ok {
		head = -1
	}

	return &ChainCursor{s: s, next: head}
}

// Next returns the next entry in the chain, or false when exhausted.
// Rollback resets every Next link into a truncated suffix to -1; the
// index followed here is also bounds-checked against the shard's current
// length.
func (c *ChainCursor) Next() (Entry, bool) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if c.next < 0 || c.next >= len(c.s.entries) {
		return Entry{}, false
	}
	e := c.s.entries[c.next]
	c.next = e.Next
	return e, true
}

// Cursor walks every entry across all shards, shard order then
// dense-array index increasing - the "unnamed" whole-index iteration
// mode of spec §4.8.
type Cursor struct {
	m     *Map
	shard int
	idx   int
}

// All returns a whole-index cursor.
func (m *Map) All() *Cursor { return &Cursor{m: m} }

// Next returns the next entry in shard/index order, or false when every
// shard is exhausted.
func (c *Cursor) Next() (Entry, bool) {
	for c.shard < NumShards {
		s := c.m.shards[c.shard]
		s.mu.Lock()
		if c.idx < len(s.entries) {
			e := s.entries[c.idx]
			c.idx++
			s.mu.Unlock()
			return e, true
		}
		s.mu.Unlock()
		c.shard++
		c.idx = 0
	}
	return Entry{}, false
}

// Rollback truncates every shard's dense array from the tail while the
// last entry's file is marked failed, then deletes any chain head and
// resets any Next link that now points past the truncated length (spec
// §4.9), so a later insert never follows a link into entries appended
// after the rollback. This is sound
// because a single update's new entries occupy a contiguous dense-array
// suffix: nothing from an earlier, already-committed update is ever
// appended after a later update's entries.
func (m *Map) Rollback() {
	for _, s := range m.shards {
		s.mu.Lock()
		for len(s.entries) > 0 && s.entries[len(s.entries)-1].File.IsFailed() {
			s.entries = s.entries[:len(s.entries)-1]
		}
		for name, head := range s.heads {
			if head >= len(s.entries) {
				delete(s.heads, name)
			}
		}
		for i := range s.entries {
			if s.entries[i].Next >= len(s.entries) {
				s.entries[i].Next = -1
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards (for tests).
func (m *Map) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
