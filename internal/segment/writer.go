package segment

import (
	"fmt"
	"os"

	"github.com/4lexvav/logkv/internal/record"
)

// Writer builds a new segment outside the active append path. The
// compactor uses it to rehome live records into a fresh segment before
// the superseded ones are deleted.
type Writer struct {
	id     uint64
	file   *os.File
	offset int64
}

// Create opens a new segment file for id and returns a Writer over it.
// The id must not collide with an existing segment.
func (l *Log) Create(id uint64) (*Writer, error) {
	f, err := os.OpenFile(l.path(id), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create segment %d: %w", id, err)
	}
	return &Writer{id: id, file: f}, nil
}

// Append writes rec to the segment and returns its pointer. Durability is
// deferred to Seal, since the segment only becomes reachable afterwards.
func (w *Writer) Append(rec *record.Record) (Pointer, error) {
	data, err := record.Encode(rec)
	if err != nil {
		return Pointer{}, err
	}

	offset := w.offset
	if _, err := w.file.WriteAt(data, offset); err != nil {
		return Pointer{}, fmt.Errorf("append to segment %d: %w", w.id, err)
	}

	w.offset += int64(len(data))
	return Pointer{SegmentID: w.id, Offset: offset, Length: int64(len(data))}, nil
}

// Size returns the bytes written so far.
func (w *Writer) Size() int64 { return w.offset }

// Seal syncs the segment to disk, closes it and registers it with the
// log as a sealed segment. After Seal the writer must not be used.
func (w *Writer) Seal(l *Log) error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync segment %d: %w", w.id, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close segment %d: %w", w.id, err)
	}

	// Keep the sealed list sorted; the writer id may precede the active
	// segment but follows every previously sealed one.
	l.sealed = append(l.sealed, w.id)
	return nil
}

// Abort closes and removes a partially written segment.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.file.Name())
}
