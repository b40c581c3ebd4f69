// Package memtable implements the in-memory staging area for the engine's
// write path: a single mutable Memtable plus the Set that tracks the active
// table and a FIFO queue of sealed tables awaiting flush.
package memtable

import "sort"

// Entry is a single key's current value, or its tombstone marker if Deleted.
type Entry struct {
	Key     string
	Value   string
	Deleted bool
}

// Memtable is an ordered in-memory map from key to value-or-tombstone, plus
// a running byte-size estimate used to decide when to rotate.
//
// It is backed by a plain Go map rather than a skip list or balanced tree:
// point reads and writes are O(1), and the only place ordering matters —
// Entries, used by flush — sorts the key set once per call. For the
// thousands-of-entries tables this engine flushes at a time, that one-shot
// sort is cheaper than maintaining an ordered structure on every write.
type Memtable struct {
	data map[string]Entry
	size int64
}

// New creates an empty Memtable.
func New() *Memtable {
	return &Memtable{data: make(map[string]Entry)}
}

func entrySize(key string, e Entry) int64 {
	if e.Deleted {
		return int64(len(key))
	}
	return int64(len(key) + len(e.Value))
}

// Put inserts or overwrites key with value. The size estimate is adjusted by
// subtracting the previous pair's contribution (if any) and adding the new
// one.
func (m *Memtable) Put(key, value string) {
	m.set(key, Entry{Key: key, Value: value, Deleted: false})
}

// Delete inserts a tombstone for key. Tombstones contribute only the key's
// byte length to the size estimate.
func (m *Memtable) Delete(key string) {
	m.set(key, Entry{Key: key, Deleted: true})
}

func (m *Memtable) set(key string, entry Entry) {
	if old, ok := m.data[key]; ok {
		m.size -= entrySize(key, old)
	}
	m.data[key] = entry
	m.size += entrySize(key, entry)
}

// Get returns the entry for key and whether it was present. A present entry
// with Deleted=true is a tombstone, not a miss.
func (m *Memtable) Get(key string) (Entry, bool) {
	e, ok := m.data[key]
	return e, ok
}

// Size returns the current byte-size estimate.
func (m *Memtable) Size() int64 {
	return m.size
}

// Len returns the number of distinct keys, live or tombstoned.
func (m *Memtable) Len() int {
	return len(m.data)
}

// Entries returns every entry in ascending key order.
func (m *Memtable) Entries() []Entry {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = m.data[k]
	}
	return entries
}
