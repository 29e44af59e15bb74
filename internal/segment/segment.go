// Package segment owns the on-disk layout of the append-only command log.
//
// A storage directory holds numbered segment files ("seg_<id>.log") with
// monotonically increasing ids. Exactly one segment is active and accepts
// appends; all others are sealed and read-only. Sealed segments are read
// through memory-mapped readers, the active segment through its open
// handle.
package segment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/4lexvav/logkv/internal/record"
)

const (
	filePrefix = "seg_"
	fileExt    = ".log"
)

// Pointer identifies the exact byte range of one record inside a segment.
type Pointer struct {
	SegmentID uint64
	Offset    int64
	Length    int64
}

// Log manages the segment files of one storage directory. It is not
// safe for concurrent use on its own; the engine serializes access.
type Log struct {
	dir string

	active   *os.File
	activeID uint64
	activeSz int64

	sealed []uint64 // ascending

	mu      sync.Mutex // readers cache only
	readers map[uint64]*mmap.ReaderAt
}

// Open scans dir for segment files and opens the highest id as the
// active segment, creating segment 1 if the directory holds none.
// Gapped id sequences left by prior compactions are tolerated.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	ids, err := scanSegments(dir)
	if err != nil {
		return nil, err
	}

	l := &Log{
		dir:     dir,
		readers: make(map[uint64]*mmap.ReaderAt),
	}

	activeID := uint64(1)
	if len(ids) > 0 {
		activeID = ids[len(ids)-1]
		l.sealed = ids[:len(ids)-1]
	}

	f, err := os.OpenFile(l.path(activeID), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open active segment: %w", err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}

	l.active = f
	l.activeID = activeID
	l.activeSz = size
	return l, nil
}

func scanSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	var ids []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != fileExt {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (l *Log) path(id uint64) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s%d%s", filePrefix, id, fileExt))
}

// ActiveID returns the id of the segment currently accepting appends.
func (l *Log) ActiveID() uint64 { return l.activeID }

// ActiveSize returns the current byte size of the active segment.
func (l *Log) ActiveSize() int64 { return l.activeSz }

// Sealed returns the sealed segment ids in ascending order.
func (l *Log) Sealed() []uint64 {
	out := make([]uint64, len(l.sealed))
	copy(out, l.sealed)
	return out
}

// List returns every segment id, sealed first, active last.
func (l *Log) List() []uint64 {
	return append(l.Sealed(), l.activeID)
}

// Append serializes rec, appends it to the active segment and syncs the
// write to disk before returning. The returned pointer locates the
// record's bytes; existing bytes are never overwritten.
func (l *Log) Append(rec *record.Record) (Pointer, error) {
	data, err := record.Encode(rec)
	if err != nil {
		return Pointer{}, err
	}

	offset := l.activeSz
	if _, err := l.active.WriteAt(data, offset); err != nil {
		return Pointer{}, fmt.Errorf("append to segment %d: %w", l.activeID, err)
	}
	if err := l.active.Sync(); err != nil {
		return Pointer{}, fmt.Errorf("sync segment %d: %w", l.activeID, err)
	}

	l.activeSz += int64(len(data))
	return Pointer{SegmentID: l.activeID, Offset: offset, Length: int64(len(data))}, nil
}

// Read returns the record stored at ptr. The bytes must decode to a
// well-formed record; anything else is reported as corruption.
func (l *Log) Read(ptr Pointer) (*record.Record, error) {
	buf := make([]byte, ptr.Length)

	if ptr.SegmentID == l.activeID {
		if _, err := l.active.ReadAt(buf, ptr.Offset); err != nil {
			return nil, fmt.Errorf("read segment %d: %w", ptr.SegmentID, err)
		}
	} else {
		r, err := l.reader(ptr.SegmentID)
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadAt(buf, ptr.Offset); err != nil {
			return nil, fmt.Errorf("read segment %d: %w", ptr.SegmentID, err)
		}
	}

	return record.Decode(buf)
}

// reader returns a cached memory-mapped reader for a sealed segment.
func (l *Log) reader(id uint64) (*mmap.ReaderAt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.readers[id]; ok {
		return r, nil
	}

	r, err := mmap.Open(l.path(id))
	if err != nil {
		return nil, fmt.Errorf("mmap segment %d: %w", id, err)
	}
	l.readers[id] = r
	return r, nil
}

// Rotate seals the active segment and starts a fresh one with the given
// id, which must be greater than every existing id. This is the rotation
// primitive: the sealed segment becomes immutable.
func (l *Log) Rotate(newID uint64) error {
	if err := l.seal(); err != nil {
		return err
	}
	return l.startActive(newID)
}

func (l *Log) seal() error {
	if err := l.active.Sync(); err != nil {
		return fmt.Errorf("seal segment %d: %w", l.activeID, err)
	}
	if err := l.active.Close(); err != nil {
		return fmt.Errorf("seal segment %d: %w", l.activeID, err)
	}
	l.sealed = append(l.sealed, l.activeID)
	l.active = nil
	return nil
}

func (l *Log) startActive(id uint64) error {
	f, err := os.OpenFile(l.path(id), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("start segment %d: %w", id, err)
	}
	l.active = f
	l.activeID = id
	l.activeSz = 0
	return nil
}

// Delete removes a sealed segment's file. Only safe once no live pointer
// references the segment.
func (l *Log) Delete(id uint64) error {
	l.mu.Lock()
	if r, ok := l.readers[id]; ok {
		r.Close()
		delete(l.readers, id)
	}
	l.mu.Unlock()

	if err := os.Remove(l.path(id)); err != nil {
		return fmt.Errorf("delete segment %d: %w", id, err)
	}

	for i, sid := range l.sealed {
		if sid == id {
			l.sealed = append(l.sealed[:i], l.sealed[i+1:]...)
			break
		}
	}
	return nil
}

// Close flushes the active segment and releases every open handle.
func (l *Log) Close() error {
	l.mu.Lock()
	for id, r := range l.readers {
		r.Close()
		delete(l.readers, id)
	}
	l.mu.Unlock()

	if l.active == nil {
		return nil
	}
	if err := l.active.Sync(); err != nil {
		return err
	}
	return l.active.Close()
}
