package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craskill/internal/extract"
)

func TestClassifyByKeywordsPicksHighestDensityCategory(t *testing.T) {
	ext := &extract.Record{FullText: "Report your T4 employment income, salary and wages from your employer."}
	rec, err := Classify(context.Background(), ext, nil)
	require.NoError(t, err)
	assert.Equal(t, EmploymentIncome, rec.PrimaryCategory)
	assert.NotEmpty(t, rec.MatchedKeywords)
}

func TestClassifyByKeywordsFallsBackToGeneral(t *testing.T) {
	ext := &extract.Record{FullText: "the quick brown fox jumps over the lazy dog"}
	rec, err := Classify(context.Background(), ext, nil)
	require.NoError(t, err)
	assert.Equal(t, OtherGeneral, rec.PrimaryCategory)
}

func TestClassifyConfidenceAndQualityAreClamped(t *testing.T) {
	ext := &extract.Record{FullText: "capital gain capital loss schedule 3 adjusted cost base"}
	rec, err := Classify(context.Background(), ext, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
	for _, v := range []float64{rec.Quality.Completeness, rec.Quality.Accuracy, rec.Quality.Relevance, rec.Quality.Clarity, rec.Quality.Practicality} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestClampHelper(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-5))
	assert.Equal(t, 1.0, clamp01(5))
	assert.Equal(t, 0.5, clamp01(0.5))
}

func TestExtractJSONObjectStripsSurroundingProse(t *testing.T) {
	in := "Sure, here is the result:\n{\"primary_category\":\"deductions\"}\nHope that helps!"
	assert.Equal(t, `{"primary_category":"deductions"}`, extractJSONObject(in))
}
