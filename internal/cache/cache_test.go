package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
}

func TestLookupMissReturnsNoError(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := m.Lookup(StageExtraction, "deadbeefdeadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreThenLookupJSON(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, m.StoreJSON(StageChunks, "abc123", nil, sample{Name: "chapter-1"}))

	var out sample
	ok, err := m.LookupJSON(StageChunks, "abc123", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "chapter-1", out.Name)
}

func TestStoreIsAtomicNoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, m.StoreJSON(StageExtraction, "fp1", nil, sample{Name: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestInvalidateRemovesAllStagesForFingerprint(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	fp := "fingerprint01"
	require.NoError(t, m.StoreJSON(StageExtraction, fp, nil, sample{Name: "a"}))
	require.NoError(t, m.StoreJSON(StageClassification, fp, nil, sample{Name: "b"}))
	require.NoError(t, os.MkdirAll(m.EnhancedChunksDir(fp), 0755))

	require.NoError(t, m.Invalidate(fp))

	_, ok, _ := m.Lookup(StageExtraction, fp)
	assert.False(t, ok)
	_, ok, _ = m.Lookup(StageClassification, fp)
	assert.False(t, ok)
	_, err = os.Stat(m.EnhancedChunksDir(fp))
	assert.True(t, os.IsNotExist(err))
}

func TestInvalidateOlderThan(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, m.StoreJSON(StageExtraction, "old", nil, sample{Name: "old"}))
	oldPath := m.artifactPath(StageExtraction, "old")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, old, old))

	require.NoError(t, m.StoreJSON(StageExtraction, "new", nil, sample{Name: "new"}))

	require.NoError(t, m.InvalidateOlderThan(24*time.Hour))

	_, ok, _ := m.Lookup(StageExtraction, "old")
	assert.False(t, ok)
	_, ok, _ = m.Lookup(StageExtraction, "new")
	assert.True(t, ok)
}

func TestStatsCountsArtifactsAndBytes(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, m.StoreJSON(StageExtraction, "fp1", nil, sample{Name: "a"}))
	require.NoError(t, m.StoreJSON(StageChunks, "fp1", nil, sample{Name: "b"}))

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PerStage[StageExtraction].Artifacts)
	assert.Equal(t, 1, stats.PerStage[StageChunks].Artifacts)
	assert.Equal(t, 2, stats.Total.Artifacts)
	assert.Greater(t, stats.Total.Bytes, int64(0))
}

func TestWriteAtomicCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.json")
	require.NoError(t, WriteAtomic(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
