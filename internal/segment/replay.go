package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/4lexvav/logkv/internal/record"
)

// ReplayFunc receives every record in a segment in write order, together
// with the pointer locating its bytes.
type ReplayFunc func(ptr Pointer, rec *record.Record) error

// ReplaySegment scans one segment from the start, calling fn for each
// record. It returns the byte offset up to which the segment held valid
// records. When trailing bytes fail to decode, that offset is returned
// together with the decode error (wrapping record.ErrInvalidRecord) so
// the caller can decide between truncating a torn tail and refusing to
// open.
func (l *Log) ReplaySegment(id uint64, fn ReplayFunc) (int64, error) {
	f, err := os.Open(l.path(id))
	if err != nil {
		return 0, fmt.Errorf("replay segment %d: %w", id, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var offset int64

	for {
		rec, err := record.ReadFrom(reader)
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("replay segment %d at offset %d: %w", id, offset, err)
		}

		ptr := Pointer{SegmentID: id, Offset: offset, Length: rec.Size()}
		if err := fn(ptr, rec); err != nil {
			return offset, err
		}
		offset += rec.Size()
	}
}

// Size returns the byte size of the segment file with the given id.
func (l *Log) Size(id uint64) (int64, error) {
	if id == l.activeID {
		return l.activeSz, nil
	}
	info, err := os.Stat(l.path(id))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Truncate cuts the segment with the given id down to offset and syncs
// it. Used during recovery to drop a torn record left by a crash
// mid-append.
func (l *Log) Truncate(id uint64, offset int64) error {
	if id == l.activeID {
		if err := l.active.Truncate(offset); err != nil {
			return fmt.Errorf("truncate segment %d: %w", id, err)
		}
		if err := l.active.Sync(); err != nil {
			return err
		}
		l.activeSz = offset
		return nil
	}

	f, err := os.OpenFile(l.path(id), os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("truncate segment %d: %w", id, err)
	}
	defer f.Close()

	if err := f.Truncate(offset); err != nil {
		return fmt.Errorf("truncate segment %d: %w", id, err)
	}
	return f.Sync()
}
