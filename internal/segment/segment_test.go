package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4lexvav/logkv/internal/record"
)

func appendSet(t *testing.T, l *Log, key, value string) Pointer {
	t.Helper()
	rec := record.NewSet(key, value)
	ptr, err := l.Append(&rec)
	require.NoError(t, err)
	return ptr
}

func TestOpenEmptyDirStartsSegmentOne(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, uint64(1), l.ActiveID())
	assert.Empty(t, l.Sealed())
	assert.Equal(t, int64(0), l.ActiveSize())
}

func TestAppendAndReadBack(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ptr := appendSet(t, l, "foo", "bar")
	assert.Equal(t, uint64(1), ptr.SegmentID)
	assert.Equal(t, int64(0), ptr.Offset)

	rec, err := l.Read(ptr)
	require.NoError(t, err)
	assert.Equal(t, "foo", string(rec.Key))
	assert.Equal(t, "bar", string(rec.Value))
}

func TestAppendAdvancesOffset(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	first := appendSet(t, l, "a", "1")
	second := appendSet(t, l, "b", "2")

	assert.Equal(t, first.Offset+first.Length, second.Offset)
	assert.Equal(t, second.Offset+second.Length, l.ActiveSize())
}

func TestRotateSealsAndReadsSealed(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ptr := appendSet(t, l, "foo", "bar")

	require.NoError(t, l.Rotate(3))
	assert.Equal(t, uint64(3), l.ActiveID())
	assert.Equal(t, []uint64{1}, l.Sealed())
	assert.Equal(t, int64(0), l.ActiveSize())

	// The sealed segment stays readable through the mmap path.
	rec, err := l.Read(ptr)
	require.NoError(t, err)
	assert.Equal(t, "bar", string(rec.Value))
}

func TestOpenOrdersGappedSegmentIDs(t *testing.T) {
	dir := t.TempDir()

	for _, id := range []uint64{2, 7, 10} {
		rec := record.NewSet("k", "v")
		data, err := record.Encode(&rec)
		require.NoError(t, err)
		name := filepath.Join(dir, fmt.Sprintf("seg_%d.log", id))
		require.NoError(t, os.WriteFile(name, data, 0o644))
	}

	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, uint64(10), l.ActiveID())
	assert.Equal(t, []uint64{2, 7}, l.Sealed())
	assert.Equal(t, []uint64{2, 7, 10}, l.List())
}

func TestDeleteRemovesSealedSegment(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	ptr := appendSet(t, l, "foo", "bar")
	require.NoError(t, l.Rotate(2))

	// Force the mmap reader open before deleting.
	_, err = l.Read(ptr)
	require.NoError(t, err)

	require.NoError(t, l.Delete(1))
	assert.Empty(t, l.Sealed())
	assert.NoFileExists(t, filepath.Join(dir, "seg_1.log"))
}

func TestWriterBuildsSealedSegment(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	appendSet(t, l, "live", "value")
	require.NoError(t, l.Rotate(3))

	w, err := l.Create(2)
	require.NoError(t, err)

	rec := record.NewSet("live", "value")
	ptr, err := w.Append(&rec)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ptr.SegmentID)

	require.NoError(t, w.Seal(l))
	assert.Contains(t, l.Sealed(), uint64(2))

	got, err := l.Read(ptr)
	require.NoError(t, err)
	assert.Equal(t, "value", string(got.Value))
}

func TestReplaySegmentVisitsRecordsInOrder(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	appendSet(t, l, "a", "1")
	appendSet(t, l, "b", "2")

	var keys []string
	valid, err := l.ReplaySegment(1, func(ptr Pointer, rec *record.Record) error {
		keys = append(keys, string(rec.Key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, l.ActiveSize(), valid)
}

func TestReplaySegmentReportsTornTailOffset(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)

	appendSet(t, l, "a", "1")
	good := l.ActiveSize()
	require.NoError(t, l.Close())

	// Simulate a crash mid-append: half a record at the tail.
	f, err := os.OpenFile(filepath.Join(dir, "seg_1.log"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xDE, 0xAD, 0xBE})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err = Open(dir)
	require.NoError(t, err)
	defer l.Close()

	valid, err := l.ReplaySegment(1, func(Pointer, *record.Record) error { return nil })
	require.ErrorIs(t, err, record.ErrTruncatedRecord)
	assert.Equal(t, good, valid)

	require.NoError(t, l.Truncate(1, valid))
	size, err := l.Size(1)
	require.NoError(t, err)
	assert.Equal(t, good, size)
}
