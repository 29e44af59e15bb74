package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4lexvav/logkv/pkg/kv"
)

func openEngine(t *testing.T, dir string, opts ...Option) *LogEngine {
	t.Helper()

	e, err := Open(dir, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		e.Close()
	})
	return e
}

func mustGet(t *testing.T, e *LogEngine, key string) (string, bool) {
	t.Helper()

	value, found, err := e.Get(key)
	require.NoError(t, err)
	return value, found
}

func TestSetGetRoundTrip(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Set("foo", "bar"))

	value, found := mustGet(t, e, "foo")
	assert.True(t, found)
	assert.Equal(t, "bar", value)
}

func TestOverwriteReturnsLatestValue(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Set("key", "v1"))
	require.NoError(t, e.Set("key", "v2"))
	require.NoError(t, e.Set("key", "v3"))

	value, found := mustGet(t, e, "key")
	assert.True(t, found)
	assert.Equal(t, "v3", value)
}

func TestGetMissingKey(t *testing.T) {
	e := openEngine(t, t.TempDir())

	_, found := mustGet(t, e, "nope")
	assert.False(t, found)
}

func TestEmptyKeyAndValueAreStored(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Set("", "empty key"))
	require.NoError(t, e.Set("empty value", ""))

	value, found := mustGet(t, e, "")
	assert.True(t, found)
	assert.Equal(t, "empty key", value)

	value, found = mustGet(t, e, "empty value")
	assert.True(t, found)
	assert.Equal(t, "", value)
}

func TestRemoveThenGetReturnsMissing(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Remove("a"))

	_, found := mustGet(t, e, "a")
	assert.False(t, found)
}

func TestRemoveMissingKeyFails(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Set("b", "x"))

	err := e.Remove("c")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
}

func TestConcreteScenario(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("a", "2"))
	require.NoError(t, e.Remove("a"))

	_, found := mustGet(t, e, "a")
	assert.False(t, found)

	require.NoError(t, e.Set("b", "x"))
	assert.ErrorIs(t, e.Remove("c"), kv.ErrKeyNotFound)
}

func TestReopenRestoresState(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Set("a", "overwritten"))
	require.NoError(t, e.Set("c", "3"))
	require.NoError(t, e.Remove("b"))
	require.NoError(t, e.Close())

	e = openEngine(t, dir)

	value, found := mustGet(t, e, "a")
	assert.True(t, found)
	assert.Equal(t, "overwritten", value)

	_, found = mustGet(t, e, "b")
	assert.False(t, found)

	value, found = mustGet(t, e, "c")
	assert.True(t, found)
	assert.Equal(t, "3", value)

	assert.Equal(t, 2, e.Stats().Keys)
}

func TestReopenAfterRotationsIsIdentical(t *testing.T) {
	dir := t.TempDir()

	// Small segments so the history spans many rotations.
	e, err := Open(dir, WithSegmentSize(512), WithCompactionThreshold(512))
	require.NoError(t, err)

	keys := []string{"k0", "k1", "k2", "k3", "k4"}
	for i := 0; i < 500; i++ {
		key := keys[i%len(keys)]
		require.NoError(t, e.Set(key, fmt.Sprintf("value-%d", i)))
	}
	require.NoError(t, e.Remove("k4"))

	want := make(map[string]string)
	for _, key := range keys[:4] {
		value, found := mustGet(t, e, key)
		require.True(t, found)
		want[key] = value
	}
	require.NoError(t, e.Close())

	e = openEngine(t, dir, WithSegmentSize(512), WithCompactionThreshold(512))

	for key, expected := range want {
		value, found := mustGet(t, e, key)
		assert.True(t, found, "key %s lost on reopen", key)
		assert.Equal(t, expected, value)
	}
	_, found := mustGet(t, e, "k4")
	assert.False(t, found)
}

func TestSegmentSizeTriggerRotatesWithoutCompaction(t *testing.T) {
	// Rotation threshold is tiny while the compaction threshold is huge:
	// segments must accumulate and dead bytes stay unreclaimed.
	e := openEngine(t, t.TempDir(), WithSegmentSize(256), WithCompactionThreshold(1<<30))

	for i := 0; i < 100; i++ {
		require.NoError(t, e.Set("key", fmt.Sprintf("value-%04d", i)))
	}

	stats := e.Stats()
	assert.Greater(t, stats.Segments, 2, "rotation never happened")
	assert.Greater(t, stats.UncompactedBytes, int64(0))
	assert.Equal(t, int64(0), stats.Compactions)
	assert.Equal(t, 1, stats.Keys)
}

func TestUncompactedBytesTriggerCompacts(t *testing.T) {
	// Compaction threshold of one byte: every rotation compacts.
	e := openEngine(t, t.TempDir(), WithSegmentSize(256), WithCompactionThreshold(1))

	for i := 0; i < 200; i++ {
		require.NoError(t, e.Set("key", fmt.Sprintf("value-%04d", i)))
	}

	stats := e.Stats()
	// Compaction output plus the active segment.
	assert.LessOrEqual(t, stats.Segments, 2)
	assert.Greater(t, stats.Compactions, int64(0))

	value, found := mustGet(t, e, "key")
	assert.True(t, found)
	assert.Equal(t, "value-0199", value)
}

func TestRecordLargerThanSegmentSizeRejected(t *testing.T) {
	e := openEngine(t, t.TempDir(), WithSegmentSize(64))

	err := e.Set("key", string(make([]byte, 128)))
	assert.Error(t, err)

	// The oversized write must not have committed anything.
	_, found := mustGet(t, e, "key")
	assert.False(t, found)
}

func TestResetClearsAllKeys(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, e.Set(fmt.Sprintf("key-%d", i), "value"))
	}

	require.NoError(t, e.Reset())

	stats := e.Stats()
	assert.Equal(t, 0, stats.Keys)
	assert.Equal(t, 1, stats.Segments)

	_, found := mustGet(t, e, "key-0")
	assert.False(t, found)

	// The bulk delete survives a restart.
	require.NoError(t, e.Close())
	e = openEngine(t, dir)
	assert.Equal(t, 0, e.Stats().Keys)
}

func TestSecondEngineOnSameDirIsRejected(t *testing.T) {
	dir := t.TempDir()

	e := openEngine(t, dir)
	require.NoError(t, e.Set("k", "v"))

	_, err := Open(dir)
	assert.Error(t, err, "two engines over one directory must not coexist")
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	e := openEngine(t, t.TempDir(), WithSegmentSize(1024), WithCompactionThreshold(1024))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d", i%10)
				if i%3 == 0 {
					_, _, err := e.Get(key)
					assert.NoError(t, err)
				} else {
					assert.NoError(t, e.Set(key, fmt.Sprintf("w%d-%d", w, i)))
				}
			}
		}(w)
	}
	wg.Wait()

	// Every key observed its last write from some worker.
	for i := 0; i < 10; i++ {
		_, found := mustGet(t, e, fmt.Sprintf("key-%d", i))
		assert.True(t, found)
	}
}
