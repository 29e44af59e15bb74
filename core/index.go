package core

import "github.com/4lexvav/logkv/internal/segment"

// Index is the in-memory mapping from key to the location of its latest
// Set record. It is derived state: the log remains the sole durable
// record and the index is rebuilt deterministically by replay on open.
//
// The index carries no lock of its own; the engine's reader/writer lock
// governs all access.
type Index struct {
	entries map[string]segment.Pointer
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]segment.Pointer)}
}

func (idx *Index) Get(key string) (segment.Pointer, bool) {
	ptr, ok := idx.entries[key]
	return ptr, ok
}

// Put records the latest pointer for key, overwriting any previous entry
// (last write wins by log order).
func (idx *Index) Put(key string, ptr segment.Pointer) {
	idx.entries[key] = ptr
}

// Delete removes the entry for key and reports whether it existed.
func (idx *Index) Delete(key string) bool {
	_, ok := idx.entries[key]
	if ok {
		delete(idx.entries, key)
	}
	return ok
}

func (idx *Index) Len() int { return len(idx.entries) }

// Range calls fn for every entry until fn returns false.
func (idx *Index) Range(fn func(key string, ptr segment.Pointer) bool) {
	for key, ptr := range idx.entries {
		if !fn(key, ptr) {
			return
		}
	}
}

func (idx *Index) Clear() {
	idx.entries = make(map[string]segment.Pointer)
}
