// Package core implements the log-structured storage engine: an
// append-only segment log paired with an in-memory index, with
// rotation-triggered compaction to bound disk growth.
package core

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/4lexvav/logkv/internal/lock"
	"github.com/4lexvav/logkv/internal/logging"
	"github.com/4lexvav/logkv/internal/record"
	"github.com/4lexvav/logkv/internal/segment"
	"github.com/4lexvav/logkv/pkg/kv"
)

// LogEngine is the log-structured implementation of kv.Engine.
//
// All mutations (Set, Remove, Reset, rotation, compaction) hold the
// write lock; Get holds the read lock, so lookups proceed concurrently
// with each other but never observe a pointer whose bytes are not yet
// durable. The index is only updated after the append has been synced.
type LogEngine struct {
	mu sync.RWMutex

	dir   string
	flock *lock.Lock
	log   *segment.Log
	index *Index

	// Bytes in segment files no longer reachable from the index:
	// overwritten values, removed values and their tombstones.
	uncompacted int64

	compactions int64

	opts options
}

var _ kv.Engine = (*LogEngine)(nil)

// Stats is a point-in-time view of the engine's state, used by the
// metrics exporter and by tests.
type Stats struct {
	Keys             int
	Segments         int
	ActiveSegmentID  uint64
	UncompactedBytes int64
	Compactions      int64
}

// Open locks dir, scans it for segment files and replays them in
// ascending id and offset order to rebuild the index and the
// uncompacted-bytes counter. An empty directory starts with segment 1.
//
// Unreadable files surface as I/O errors; log bytes that fail to decode
// surface as kv.ErrCorruption and the engine refuses to start.
func Open(dir string, opts ...Option) (*LogEngine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	fl, err := lock.Acquire(dir)
	if err != nil {
		return nil, err
	}

	log, err := segment.Open(dir)
	if err != nil {
		fl.Release()
		return nil, err
	}

	e := &LogEngine{
		dir:   dir,
		flock: fl,
		log:   log,
		index: NewIndex(),
		opts:  o,
	}

	if err := e.rebuild(); err != nil {
		log.Close()
		fl.Release()
		return nil, err
	}

	logging.Info("engine opened at %s: %d keys, %d segments, %d uncompacted bytes",
		dir, e.index.Len(), len(e.log.List()), e.uncompacted)
	return e, nil
}

// rebuild replays every segment in ascending id and offset order,
// applying each command's effect to the index and accumulating dead
// bytes into the uncompacted counter.
//
// A record that fails to decode is fatal, with one exception: a record
// cut off by end-of-file in the last non-empty segment is the footprint
// of a crash mid-append, not data loss, since every byte after it is
// provably unacknowledged. That tail is truncated away and recovery
// proceeds. Fully-present bytes that fail to decode (a flipped bit, an
// unknown kind) are corruption no matter where they sit, because the
// records behind them were acknowledged.
func (e *LogEngine) rebuild() error {
	apply := func(ptr segment.Pointer, rec *record.Record) error {
		key := string(rec.Key)
		switch rec.Kind {
		case record.KindSet:
			if prev, ok := e.index.Get(key); ok {
				e.uncompacted += prev.Length
			}
			e.index.Put(key, ptr)
		case record.KindRemove:
			if prev, ok := e.index.Get(key); ok {
				e.uncompacted += prev.Length
			}
			e.index.Delete(key)
			// The tombstone itself is dead weight too.
			e.uncompacted += ptr.Length
		}
		return nil
	}

	ids := e.log.List()
	for i, id := range ids {
		validOffset, err := e.log.ReplaySegment(id, apply)
		if err == nil {
			continue
		}
		if !errors.Is(err, record.ErrInvalidRecord) {
			return err
		}
		if !errors.Is(err, record.ErrTruncatedRecord) {
			return fmt.Errorf("%w: %s", kv.ErrCorruption, err)
		}

		tornTail, sizeErr := e.segmentsEmptyAfter(ids[i+1:])
		if sizeErr != nil {
			return sizeErr
		}
		if !tornTail {
			return fmt.Errorf("%w: %s", kv.ErrCorruption, err)
		}

		logging.Warn("truncating torn record at tail of segment %d (offset %d)", id, validOffset)
		if err := e.log.Truncate(id, validOffset); err != nil {
			return err
		}
	}
	return nil
}

// segmentsEmptyAfter reports whether every segment in ids holds no
// records, meaning a decode failure before them sits at the log's tail.
func (e *LogEngine) segmentsEmptyAfter(ids []uint64) (bool, error) {
	for _, id := range ids {
		size, err := e.log.Size(id)
		if err != nil {
			return false, err
		}
		if size > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Get returns the value for key by reading its record back from the log.
// A missing key is reported through the boolean, not an error.
func (e *LogEngine) Get(key string) (string, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ptr, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}

	rec, err := e.log.Read(ptr)
	if err != nil {
		if errors.Is(err, record.ErrInvalidRecord) {
			return "", false, fmt.Errorf("%w: %s", kv.ErrCorruption, err)
		}
		return "", false, err
	}

	return string(rec.Value), true, nil
}

// Set appends a Set command to the log, then updates the index. If the
// append crosses the rotation threshold, the active segment is sealed
// and compaction may run before Set returns.
func (e *LogEngine) Set(key, value string) error {
	rec := record.NewSet(key, value)
	if rec.Size() > e.opts.segmentSize {
		return fmt.Errorf("record of %d bytes exceeds segment size %d", rec.Size(), e.opts.segmentSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ptr, err := e.log.Append(&rec)
	if err != nil {
		return err
	}

	if prev, ok := e.index.Get(key); ok {
		e.uncompacted += prev.Length
	}
	e.index.Put(key, ptr)

	return e.maybeRotate()
}

// Remove appends a tombstone and drops the key from the index. Returns
// kv.ErrKeyNotFound when the key is absent; nothing is written then.
func (e *LogEngine) Remove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.index.Get(key)
	if !ok {
		return kv.ErrKeyNotFound
	}

	rec := record.NewRemove(key)
	ptr, err := e.log.Append(&rec)
	if err != nil {
		return err
	}

	e.index.Delete(key)
	e.uncompacted += prev.Length + ptr.Length

	return e.maybeRotate()
}

// Reset removes every key. The index is cleared and an immediate
// compaction pass reclaims all segments, leaving a single near-empty
// active segment.
func (e *LogEngine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.index.Clear()
	e.uncompacted = 0

	sealedID := e.log.ActiveID()
	if err := e.log.Rotate(sealedID + 2); err != nil {
		return err
	}
	return e.compact(sealedID + 1)
}

// Stats returns a snapshot of the engine's state.
func (e *LogEngine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Keys:             e.index.Len(),
		Segments:         len(e.log.List()),
		ActiveSegmentID:  e.log.ActiveID(),
		UncompactedBytes: e.uncompacted,
		Compactions:      e.compactions,
	}
}

// Close flushes the active segment and releases the directory lock.
func (e *LogEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.log.Close()
	if rerr := e.flock.Release(); err == nil {
		err = rerr
	}
	return err
}

// maybeRotate runs the rotation policy after a successful append, with
// the write lock held. Rotation seals the active segment (id n), starts
// segment n+2 as the new active, and reserves n+1 for the compaction
// output so compacted records still replay before newer writes.
// Compaction only runs when enough dead bytes accumulated.
func (e *LogEngine) maybeRotate() error {
	if e.log.ActiveSize() < e.opts.segmentSize {
		return nil
	}

	sealedID := e.log.ActiveID()
	logging.Debug("rotating: segment %d sealed at %d bytes", sealedID, e.log.ActiveSize())

	if err := e.log.Rotate(sealedID + 2); err != nil {
		return err
	}

	if e.uncompacted < e.opts.compactionThreshold {
		return nil
	}
	return e.compact(sealedID + 1)
}
