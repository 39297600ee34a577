package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryRecordsStageOutcomesInOrder(t *testing.T) {
	s := newSummary("guide.pdf")
	s.cacheHit("extract", 0)
	s.ran("classify", 0)
	s.skip("skill-enhance")
	s.finish()

	require.Len(t, s.Stages, 3)
	assert.Equal(t, StatusCached, s.Stages[0].Status)
	assert.Equal(t, StatusRan, s.Stages[1].Status)
	assert.Equal(t, StatusSkipped, s.Stages[2].Status)
	assert.False(t, s.EndTime.IsZero())
}

func TestSummaryFailSetsErrorAndFinishes(t *testing.T) {
	s := newSummary("guide.pdf")
	s.fail("enhance", errors.New("stage 4: 1 of 2 chunks failed"))

	require.Len(t, s.Stages, 1)
	assert.Equal(t, StatusFailed, s.Stages[0].Status)
	assert.Contains(t, s.Stages[0].Error, "1 of 2 chunks failed")
	assert.False(t, s.EndTime.IsZero())
}

func TestSummaryFinishIsIdempotent(t *testing.T) {
	s := newSummary("guide.pdf")
	s.finish()
	first := s.EndTime
	s.finish()
	assert.Equal(t, first, s.EndTime)
}

func TestSummaryWriteToRoundTrips(t *testing.T) {
	s := newSummary("guide.pdf")
	s.ran("extract", 0)
	s.finish()

	path := filepath.Join(t.TempDir(), "run-summary.json")
	require.NoError(t, s.writeTo(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Summary
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, "guide.pdf", loaded.PDFPath)
	require.Len(t, loaded.Stages, 1)
	assert.Equal(t, "extract", loaded.Stages[0].Stage)
}
