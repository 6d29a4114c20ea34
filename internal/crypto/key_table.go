package crypto

import (
	"slices"
	"sync"
)

// supportedVersions lists the built-in client releases, newest first.
// New releases are prepended.
var supportedVersions = []Version{
	{6, 0, 14}, {6, 0, 13}, {6, 0, 12}, {6, 0, 11}, {6, 0, 10},
	{6, 0, 9}, {6, 0, 8}, {6, 0, 7}, {6, 0, 6}, {6, 0, 5},
	{6, 0, 4}, {6, 0, 3}, {6, 0, 2}, {6, 0, 1}, {6, 0, 0},
	{5, 0, 9}, {5, 0, 8}, {5, 0, 7}, {5, 0, 6}, {5, 0, 5},
	{5, 0, 4}, {5, 0, 3}, {5, 0, 2}, {5, 0, 1}, {5, 0, 0},
	{4, 0, 11}, {4, 0, 10}, {4, 0, 9}, {4, 0, 8}, {4, 0, 7},
	{4, 0, 6}, {4, 0, 5}, {4, 0, 4}, {4, 0, 3}, {4, 0, 2},
	{4, 0, 1}, {4, 0, 0},
	{3, 0, 8}, {3, 0, 7}, {3, 0, 6}, {3, 0, 5}, {3, 0, 4},
	{3, 0, 3}, {3, 0, 2}, {3, 0, 1}, {3, 0, 0},
	{2, 0, 9}, {2, 0, 8}, {2, 0, 7}, {2, 0, 6}, {2, 0, 5},
	{2, 0, 4}, {2, 0, 3}, {2, 0, 2}, {2, 0, 1}, {2, 0, 0},
}

// KeyEntry pairs a protocol version with its login key triple.
type KeyEntry struct {
	Version Version
	Key     KeyTriple
}

// KeyTable is an immutable, ordered list of key entries, newest first.
// The order is the detection order and the tie-break between candidates.
// A KeyTable is safe for concurrent use.
type KeyTable struct {
	entries []KeyEntry
}

// NewKeyTable builds a table from entries in the given order.
func NewKeyTable(entries ...KeyEntry) *KeyTable {
	return &KeyTable{entries: slices.Clone(entries)}
}

// NewKeyTableFromVersions builds a table with derived keys for versions.
func NewKeyTableFromVersions(versions ...Version) *KeyTable {
	entries := make([]KeyEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, KeyEntry{Version: v, Key: DeriveKey(v)})
	}
	return &KeyTable{entries: entries}
}

var defaultKeyTable = sync.OnceValue(func() *KeyTable {
	return NewKeyTableFromVersions(supportedVersions...)
})

// DefaultKeyTable returns the built-in table. It is built on first use and shared.
func DefaultKeyTable() *KeyTable {
	return defaultKeyTable()
}

// WithPrepended returns a new table with derived entries for versions placed
// before the existing ones. The receiver is not modified.
func (t *KeyTable) WithPrepended(versions ...Version) *KeyTable {
	head := NewKeyTableFromVersions(versions...)
	return &KeyTable{entries: slices.Concat(head.entries, t.entries)}
}

// Len returns the number of entries.
func (t *KeyTable) Len() int {
	return len(t.entries)
}

// At returns the i-th entry.
func (t *KeyTable) At(i int) KeyEntry {
	return t.entries[i]
}

// Entries returns a copy of the entries in table order.
func (t *KeyTable) Entries() []KeyEntry {
	return slices.Clone(t.entries)
}

// Lookup returns the key of the first entry with version v.
func (t *KeyTable) Lookup(v Version) (KeyTriple, bool) {
	for _, e := range t.entries {
		if e.Version == v {
			return e.Key, true
		}
	}
	return KeyTriple{}, false
}

// KeyFor returns the table key for v, or the derived key if v is not in the table.
func (t *KeyTable) KeyFor(v Version) KeyTriple {
	if k, ok := t.Lookup(v); ok {
		return k
	}
	return DeriveKey(v)
}
