package core

import (
	"github.com/4lexvav/logkv/internal/logging"
	"github.com/4lexvav/logkv/internal/segment"
)

// compact merges every sealed segment into a single fresh segment,
// rewriting only the latest live Set record per key. Tombstones are not
// carried forward; a key absent from the index already encodes deleted.
//
// Called with the write lock held and always on the rotation call stack,
// so no writes interleave and at most one compaction runs at a time.
//
// Crash safety: the source segments are untouched until the compaction
// segment is fully written and synced and the index entries are swapped.
// A crash before the delete step leaves the old segments in place, and
// replay on the next open reproduces the pre-compaction state.
func (e *LogEngine) compact(compactionID uint64) error {
	sources := e.log.Sealed()
	if len(sources) == 0 {
		return nil
	}

	w, err := e.log.Create(compactionID)
	if err != nil {
		return err
	}

	// Rehome every live record that lives in a sealed segment. Records
	// in the active segment are never touched by compaction.
	rehomed := make(map[string]segment.Pointer)
	activeID := e.log.ActiveID()

	var rehomeErr error
	e.index.Range(func(key string, ptr segment.Pointer) bool {
		if ptr.SegmentID == activeID {
			return true
		}

		rec, err := e.log.Read(ptr)
		if err != nil {
			rehomeErr = err
			return false
		}

		newPtr, err := w.Append(rec)
		if err != nil {
			rehomeErr = err
			return false
		}

		rehomed[key] = newPtr
		return true
	})
	if rehomeErr != nil {
		w.Abort()
		return rehomeErr
	}

	// Nothing live in the sealed range: drop the empty output instead of
	// sealing a zero-byte segment.
	if w.Size() == 0 {
		w.Abort()
	} else if err := w.Seal(e.log); err != nil {
		return err
	}

	// The new segment is durable; swap the index over to it.
	for key, ptr := range rehomed {
		e.index.Put(key, ptr)
	}

	// Every source segment is now fully superseded.
	var reclaimed int64
	for _, id := range sources {
		if err := e.log.Delete(id); err != nil {
			return err
		}
		reclaimed++
	}

	// Dead bytes in the sealed range are gone. Bytes superseded inside
	// the still-active segment are counted again by later overwrites.
	e.uncompacted = 0
	e.compactions++

	logging.Info("compaction done: %d segments merged into %d (%d bytes live)",
		reclaimed, compactionID, w.Size())
	return nil
}
