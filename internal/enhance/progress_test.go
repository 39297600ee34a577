package enhance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifactDirect(t *testing.T, dir string, id int, status Status) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	art := EnhancedChunk{ChunkID: id, Status: status, Timestamp: time.Now().UTC()}
	if status == Failed {
		art.Error = "boom"
	}
	raw, err := json.Marshal(art)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ArtifactPath(dir, id), raw, 0644))
}

func TestRebuildProgressFromArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeArtifactDirect(t, dir, 1, Completed)
	writeArtifactDirect(t, dir, 2, Failed)

	p, err := RebuildProgress(dir, 3, "fake")
	require.NoError(t, err)
	assert.True(t, p.Completed[1])
	assert.Contains(t, p.Failed, 2)
	assert.False(t, p.Completed[3])
}

func TestRebuildProgressOnMissingDirReturnsEmpty(t *testing.T) {
	p, err := RebuildProgress(filepath.Join(t.TempDir(), "missing"), 5, "fake")
	require.NoError(t, err)
	assert.Empty(t, p.Completed)
	assert.Empty(t, p.Failed)
	assert.Equal(t, 5, p.TotalChunks)
}

func TestPendingRefusesPartialStateWithoutFlags(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{}}
	_, err := Pending(p, []int{1, 2}, false, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "partial-progress")
}

func TestPendingResumeSkipsCompleted(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{}}
	pending, err := Pending(p, []int{1, 2, 3}, true, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, pending)
}

func TestPendingRetryFailedIncludesFailed(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{2: "boom"}}
	pending, err := Pending(p, []int{1, 2, 3}, true, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, pending)
}

func TestPendingRetryFailedFalseExcludesFailed(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{2: "boom"}}
	pending, err := Pending(p, []int{1, 2, 3}, true, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3}, pending)
}

func TestAllDoneTrueWhenNoFailuresAndAllCompleted(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true, 2: true}, Failed: map[int]string{}}
	assert.True(t, AllDone(p, []int{1, 2}))
}

func TestAllDoneFalseWithAnyFailure(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{2: "x"}}
	assert.False(t, AllDone(p, []int{1, 2}))
}

func TestAllDoneFalseWhenIncomplete(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{}}
	assert.False(t, AllDone(p, []int{1, 2}))
}

func TestRecordCompletedUpdatesEMA(t *testing.T) {
	p := &Progress{Completed: map[int]bool{}, Failed: map[int]string{}}
	p.recordCompleted(1, 100*time.Millisecond)
	assert.InDelta(t, 100.0, p.AvgChunkMillis, 0.001)
	p.recordCompleted(2, 200*time.Millisecond)
	assert.InDelta(t, 0.3*200+0.7*100, p.AvgChunkMillis, 0.001)
}

func TestRecordFailedClearsCompleted(t *testing.T) {
	p := &Progress{Completed: map[int]bool{1: true}, Failed: map[int]string{}}
	p.recordFailed(1, "timed out")
	assert.False(t, p.Completed[1])
	assert.Equal(t, "timed out", p.Failed[1])
}

func TestSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	p := &Progress{
		TotalChunks: 2,
		Completed:   map[int]bool{1: true},
		Failed:      map[int]string{2: "oops"},
		Provider:    "fake",
	}
	require.NoError(t, Save(path, p))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Progress
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, 2, loaded.TotalChunks)
	assert.Equal(t, []int{1}, loaded.CompletedIDs)
	require.Len(t, loaded.FailedIDs, 1)
	assert.Equal(t, 2, loaded.FailedIDs[0].ChunkID)
}
